package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-insights/internal/anomaly"
	"github.com/dvloznov/statement-insights/internal/insights"
)

func newInsightsCommand(opts *globalOptions) *cobra.Command {
	var (
		timeframe string
		budgets   bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Summarize spending and suggest where to save",
		Long: "Summarize spending and suggest where to save. The summary is written by Gemini\n" +
			"when GEMINI_API_KEY is set and falls back to a fixed analysis otherwise.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			svcOpts := []insights.Option{insights.WithAnomalyOptions(s.cfg.AnomalyOptions())}
			if key := s.cfg.Insights.APIKey; key != "" {
				model, err := insights.NewGeminiModel(ctx, key, s.cfg.Insights.Model)
				if err != nil {
					s.log.Warn().Err(err).Msg("Gemini unavailable, using fallback insights")
				} else {
					svcOpts = append(svcOpts, insights.WithModel(model))
				}
			}
			svc := insights.NewService(s.store, anomaly.NewEngine(s.store), svcOpts...)

			var report interface{}
			if budgets {
				report, err = svc.Budgets(ctx, s.userID)
			} else {
				report, err = svc.Spending(ctx, s.userID, insights.ParseTimeframe(timeframe))
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(s.out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			switch r := report.(type) {
			case *insights.BudgetReport:
				printBudgets(s.out, r)
			case *insights.SpendingReport:
				printInsights(s.out, r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&timeframe, "timeframe", string(insights.Month), "window sent to the model (week, month, quarter)")
	cmd.Flags().BoolVar(&budgets, "budgets", false, "suggest monthly budgets instead")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

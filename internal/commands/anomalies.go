package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-insights/internal/anomaly"
)

func newAnomaliesCommand(opts *globalOptions) *cobra.Command {
	var (
		days      int
		threshold float64
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Report unusual spending in the recent history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			detectOpts := s.cfg.AnomalyOptions()
			if cmd.Flags().Changed("days") {
				detectOpts.LookbackDays = days
			}
			if cmd.Flags().Changed("threshold") {
				detectOpts.ZScoreThreshold = threshold
			}

			report, err := anomaly.NewEngine(s.store).Detect(ctx, s.userID, detectOpts)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(s.out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(s.out, report)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", anomaly.DefaultLookbackDays, "lookback window in days")
	cmd.Flags().Float64Var(&threshold, "threshold", anomaly.DefaultZScoreThreshold, "z-score threshold")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

package commands

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

func newImportCommand(opts *globalOptions) *cobra.Command {
	var (
		skipDuplicates bool
		currency       string
		asJSON         bool
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv|gs://bucket/object>",
		Short: "Import a statement into the transaction store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			data, err := readStatement(ctx, args[0])
			if err != nil {
				return err
			}

			importOpts := s.cfg.ImportOptions()
			if cmd.Flags().Changed("skip-duplicates") {
				importOpts.SkipDuplicates = skipDuplicates
			}
			if currency != "" {
				importOpts.DefaultCurrency = strings.ToUpper(currency)
			}

			result, err := s.service.RunImport(ctx, s.userID, data, importOpts)
			if err != nil {
				return err
			}

			s.log.Info().
				Str("user_id", s.userID).
				Str("source", args[0]).
				Int("imported", result.Summary.Imported).
				Int("skipped", result.Summary.Skipped).
				Int("errored", result.Summary.Errored).
				Msg("Statement imported")

			if asJSON {
				enc := json.NewEncoder(s.out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printImportResult(s.out, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipDuplicates, "skip-duplicates", true, "leave rows flagged as duplicates out (default from config)")
	cmd.Flags().StringVar(&currency, "currency", "", "currency for imported rows (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

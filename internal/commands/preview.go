package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newPreviewCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "preview <file.csv|gs://bucket/object>",
		Short: "Parse a statement and show what an import would do",
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

			preview, err := s.service.PreviewImport(ctx, s.userID, data)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(s.out)
				enc.SetIndent("", "  ")
				return enc.Encode(preview)
			}
			printPreview(s.out, preview)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the preview as JSON")
	return cmd
}

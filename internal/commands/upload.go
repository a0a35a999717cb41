package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-insights/internal/gcsuploader"
	"github.com/dvloznov/statement-insights/internal/logger"
)

func newUploadCommand(opts *globalOptions) *cobra.Command {
	var bucket, object string

	cmd := &cobra.Command{
		Use:   "upload <file.csv>",
		Short: "Upload a statement to the GCS bucket for asynchronous import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if bucket == "" {
				bucket = cfg.Storage.Bucket
			}
			if bucket == "" {
				return fmt.Errorf("no bucket: pass --bucket or set GCS_BUCKET")
			}
			if object == "" {
				object = gcsuploader.StatementObjectName(opts.userID, uuid.NewString(), filepath.Base(args[0]), time.Now())
			}

			log := logger.NewWithWriter(cmd.ErrOrStderr())
			ctx := logger.WithContext(cmd.Context(), log)

			client, err := gcsuploader.NewClient(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			uri, err := client.UploadFile(ctx, bucket, object, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s\n", args[0], uri)
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "GCS bucket (default from config)")
	cmd.Flags().StringVar(&object, "object", "", "object name (default statements/<user>/<yyyy>/<mm>/<id>-<file>)")
	return cmd
}

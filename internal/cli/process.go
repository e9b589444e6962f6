package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/s3-ingestor/internal/config"
	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
	"github.com/GabrielNunesIT/s3-ingestor/internal/pipeline"
	"github.com/GabrielNunesIT/s3-ingestor/internal/queue"
)

// NewProcessCmd creates the process command.
func NewProcessCmd(cfgFile, logLevel *string) *cobra.Command {
	var bucket, key string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Ingest a single object and print the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd, cfgFile, logLevel, (*config.Config).ValidateProcessing)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			// The one-shot path never polls, so no queue is set up.
			p, err := pipeline.New(ctx, cfg, log, pipeline.WithChannel(queue.NewMemory()))
			if err != nil {
				return fmt.Errorf("creating pipeline: %w", err)
			}

			outcome, err := p.ProcessFile(ctx, model.FileReference{Bucket: bucket, Key: key})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(map[string]any{
				"bucket":    outcome.Ref.Bucket,
				"key":       outcome.Ref.Key,
				"file_type": outcome.FileType,
				"target":    outcome.Target,
				"records":   outcome.Records,
				"ids":       outcome.IDs,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "bucket name")
	cmd.Flags().StringVar(&key, "key", "", "object key")
	cmd.Flags().String("backend", "", "storage backend (mongodb, dynamodb, couchdb, elasticsearch, file, stdout)")
	cmd.Flags().String("rules-file", "", "YAML routing rule file (selects the file rule store)")
	cmd.Flags().String("source-root", "", "read objects from <root>/<bucket>/<key> instead of S3")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

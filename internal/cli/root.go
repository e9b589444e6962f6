package cli

import (
	"github.com/spf13/cobra"
)

// Execute builds and runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile  string
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:   "s3-ingestor",
		Short: "Ingest objects announced by S3 event notifications into a data store",
		Long: `s3-ingestor polls a notification queue for S3 event envelopes. For every
object announced it finds the first routing rule whose pattern matches the
object key, fetches the object, parses it by file type (csv, json, ndjson)
and stores the records in the rule's target table.

A message is deleted only after every object it announces was stored, so a
failed object is retried when the queue redelivers the message.

Backends: mongodb, dynamodb, couchdb, elasticsearch, file, stdout.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(
		NewRunCmd(&cfgFile, &logLevel),
		NewProcessCmd(&cfgFile, &logLevel),
		NewValidateCmd(&cfgFile),
		NewVersionCmd(),
	)

	return rootCmd
}

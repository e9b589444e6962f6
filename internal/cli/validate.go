package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/s3-ingestor/internal/config"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration valid:\n")
			fmt.Fprintf(out, "  Channel: %s\n", cfg.Consumer.Channel)
			fmt.Fprintf(out, "  Source:  %s\n", cfg.Source.Type)
			fmt.Fprintf(out, "  Rules:   %s\n", cfg.Rules.Store)
			fmt.Fprintf(out, "  Backend: %s\n", cfg.Backend.Type)
			return nil
		},
	}
}

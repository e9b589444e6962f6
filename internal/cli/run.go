package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/s3-ingestor/internal/config"
	"github.com/GabrielNunesIT/s3-ingestor/internal/pipeline"
)

// NewRunCmd creates the run command.
func NewRunCmd(cfgFile, logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Consume notifications until stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, cfgFile, logLevel)
		},
	}

	cmd.Flags().String("queue-url", "", "SQS queue URL (selects the sqs channel)")
	cmd.Flags().String("spool-dir", "", "envelope spool directory (selects the spool channel)")
	cmd.Flags().String("backend", "", "storage backend (mongodb, dynamodb, couchdb, elasticsearch, file, stdout)")
	cmd.Flags().String("rules-file", "", "YAML routing rule file (selects the file rule store)")
	cmd.Flags().String("metrics-address", "", "serve Prometheus metrics on this address")

	return cmd
}

func runPipeline(cmd *cobra.Command, cfgFile, logLevel *string) error {
	cfg, log, err := loadConfig(cmd, cfgFile, logLevel, (*config.Config).Validate)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go handleSignals(ctx, cancel, sigChan, log)

	p, err := pipeline.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	log.Infof("starting ingestor: channel=%s, source=%s, rules=%s, backend=%s",
		cfg.Consumer.Channel, cfg.Source.Type, cfg.Rules.Store, p.BackendName())

	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("pipeline error: %w", err)
	}

	log.Info("ingestor stopped")
	return nil
}

// loadConfig loads, overrides and validates configuration, then sets up logging.
func loadConfig(cmd *cobra.Command, cfgFile, logLevel *string, validate func(*config.Config) error) (*config.Config, logger.ILogger, error) {
	cfg, err := config.Load(*cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	applyCLIOverrides(cmd, cfg)

	if err := validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, SetupLogging(cfg.LogLevel), nil
}

func handleSignals(ctx context.Context, cancel context.CancelFunc, sigChan <-chan os.Signal, log logger.ILogger) {
	select {
	case sig := <-sigChan:
		log.Infof("received shutdown signal: %v", sig)
		cancel()
	case <-ctx.Done():
	}
}

func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("queue-url"); v != "" {
		cfg.Consumer.Channel = "sqs"
		cfg.Queue.SQS.URL = v
	}
	if v, _ := cmd.Flags().GetString("spool-dir"); v != "" {
		cfg.Consumer.Channel = "spool"
		cfg.Queue.Spool.Dir = v
	}
	if v, _ := cmd.Flags().GetString("backend"); v != "" {
		cfg.Backend.Type = v
	}
	if v, _ := cmd.Flags().GetString("rules-file"); v != "" {
		cfg.Rules.Store = "file"
		cfg.Rules.File.Path = v
	}
	if v, _ := cmd.Flags().GetString("metrics-address"); v != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = v
	}
	if v, _ := cmd.Flags().GetString("source-root"); v != "" {
		cfg.Source.Type = "local"
		cfg.Source.Local.Root = v
	}
}

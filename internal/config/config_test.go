package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	// Ensure no config file affects the test
	origDir, _ := os.Getwd()
	tmpDir := t.TempDir()
	_ = os.Chdir(tmpDir)
	defer os.Chdir(origDir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("expected loglevel=info, got %s", cfg.LogLevel)
	}
	if cfg.Pipeline.ShutdownTimeout != 30*time.Second {
		t.Errorf("expected shutdowntimeout=30s, got %v", cfg.Pipeline.ShutdownTimeout)
	}

	// Consumer defaults mirror the SQS long-poll limits
	if cfg.Consumer.BatchSize != 10 {
		t.Errorf("expected batchsize=10, got %d", cfg.Consumer.BatchSize)
	}
	if cfg.Consumer.WaitTime != 20*time.Second {
		t.Errorf("expected waittime=20s, got %v", cfg.Consumer.WaitTime)
	}
	if cfg.Consumer.DecodeKeys {
		t.Error("expected decodekeys disabled by default")
	}

	if cfg.Rules.Store != "mongodb" {
		t.Errorf("expected rules store=mongodb, got %s", cfg.Rules.Store)
	}
	if cfg.Rules.MongoDB.Collection != "ingestion_config" {
		t.Errorf("expected rules collection=ingestion_config, got %s", cfg.Rules.MongoDB.Collection)
	}
	if cfg.Rules.SkipInvalid {
		t.Error("expected skipinvalid disabled by default")
	}
	if cfg.Backend.Type != "mongodb" {
		t.Errorf("expected backend type=mongodb, got %s", cfg.Backend.Type)
	}
	if cfg.MongoDB.Database != "ingestion_db" {
		t.Errorf("expected mongodb database=ingestion_db, got %s", cfg.MongoDB.Database)
	}
	if cfg.Metrics.Enabled {
		t.Error("expected metrics disabled by default")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	origDir, _ := os.Getwd()
	tmpDir := t.TempDir()
	_ = os.Chdir(tmpDir)
	defer os.Chdir(origDir)

	// S3_INGESTOR_LOGLEVEL -> loglevel
	t.Setenv("S3_INGESTOR_LOGLEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected loglevel=debug from env, got %s", cfg.LogLevel)
	}
}

func TestLoad_NestedEnvOverride(t *testing.T) {
	origDir, _ := os.Getwd()
	tmpDir := t.TempDir()
	_ = os.Chdir(tmpDir)
	defer os.Chdir(origDir)

	// S3_INGESTOR_BACKEND_TYPE -> backend.type
	t.Setenv("S3_INGESTOR_BACKEND_TYPE", "dynamodb")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Backend.Type != "dynamodb" {
		t.Errorf("expected backend type=dynamodb from nested env, got %s", cfg.Backend.Type)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
loglevel: warn
consumer:
  channel: spool
  batchsize: 5
queue:
  spool:
    dir: /var/spool/s3-ingestor
rules:
  store: file
  file:
    path: /etc/s3-ingestor/rules.yaml
backend:
  type: couchdb
  couchdb:
    url: http://couch:5984
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("expected loglevel=warn from file, got %s", cfg.LogLevel)
	}
	if cfg.Consumer.Channel != "spool" || cfg.Consumer.BatchSize != 5 {
		t.Errorf("expected spool channel with batchsize=5, got %s/%d", cfg.Consumer.Channel, cfg.Consumer.BatchSize)
	}
	if cfg.Rules.File.Path != "/etc/s3-ingestor/rules.yaml" {
		t.Errorf("unexpected rules file path: %s", cfg.Rules.File.Path)
	}
	if cfg.Backend.CouchDB.URL != "http://couch:5984" {
		t.Errorf("unexpected couchdb url: %s", cfg.Backend.CouchDB.URL)
	}
	// Untouched keys keep their defaults
	if cfg.Backend.CouchDB.Timeout != 30*time.Second {
		t.Errorf("expected default timeout=30s, got %v", cfg.Backend.CouchDB.Timeout)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte(`loglevel: warn`), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("S3_INGESTOR_LOGLEVEL", "error")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("expected env to override file, got %s", cfg.LogLevel)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidContent := `
loglevel: info
  invalid_indent: true
`
	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaults()
		cfg.Queue.SQS.URL = "https://sqs.us-east-1.amazonaws.com/123/ingest"
		return &cfg
	}

	tests := []struct {
		name          string
		mutate        func(*Config)
		expectedError string
	}{
		{name: "Defaults With Queue URL", mutate: func(c *Config) {}},
		{name: "Queue Name Only", mutate: func(c *Config) { c.Queue.SQS.URL = ""; c.Queue.SQS.Name = "ingest" }},
		{
			name:          "Missing Queue",
			mutate:        func(c *Config) { c.Queue.SQS.URL = "" },
			expectedError: "queue.sqs.url",
		},
		{
			name:          "Spool Without Dir",
			mutate:        func(c *Config) { c.Consumer.Channel = "spool" },
			expectedError: "queue.spool.dir",
		},
		{
			name:          "Unknown Channel",
			mutate:        func(c *Config) { c.Consumer.Channel = "kafka" },
			expectedError: "unknown consumer channel",
		},
		{
			name:          "Zero Batch",
			mutate:        func(c *Config) { c.Consumer.BatchSize = 0 },
			expectedError: "batchsize",
		},
		{
			name:          "Local Source Without Root",
			mutate:        func(c *Config) { c.Source.Type = "local" },
			expectedError: "source.local.root",
		},
		{
			name:          "File Rules Without Path",
			mutate:        func(c *Config) { c.Rules.Store = "file" },
			expectedError: "rules.file.path",
		},
		{
			name:          "Unknown Backend",
			mutate:        func(c *Config) { c.Backend.Type = "cassandra" },
			expectedError: "unknown backend type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateProcessing(t *testing.T) {
	cfg := defaults()
	cfg.Queue.SQS.URL = ""
	assert.Error(t, cfg.Validate())
	assert.NoError(t, cfg.ValidateProcessing())

	cfg.Backend.Type = "cassandra"
	assert.ErrorContains(t, cfg.ValidateProcessing(), "unknown backend type")
}

func TestConfig_Needs(t *testing.T) {
	cfg := defaults()
	assert.True(t, cfg.NeedsAWS())
	assert.True(t, cfg.NeedsMongoDB())

	cfg.Consumer.Channel = "spool"
	cfg.Source.Type = "local"
	cfg.Rules.Store = "file"
	cfg.Backend.Type = "stdout"
	assert.False(t, cfg.NeedsAWS())
	assert.False(t, cfg.NeedsMongoDB())

	cfg.Backend.Type = "dynamodb"
	assert.True(t, cfg.NeedsAWS())
}

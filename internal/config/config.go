// Package config provides configuration loading with layered overrides.
// Load order: defaults -> YAML file -> environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	configloader "github.com/GabrielNunesIT/go-libs/config-loader"
)

// EnvPrefix is the prefix of environment variable overrides, e.g. S3_INGESTOR_BACKEND_TYPE.
const EnvPrefix = "S3_INGESTOR_"

// Config is the root configuration structure for the ingestor.
type Config struct {
	LogLevel string         `koanf:"loglevel" yaml:"log_level" json:"log_level"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Consumer ConsumerConfig `koanf:"consumer"`
	Queue    QueueConfig    `koanf:"queue"`
	AWS      AWSConfig      `koanf:"aws"`
	MongoDB  MongoDBConfig  `koanf:"mongodb"`
	Source   SourceConfig   `koanf:"source"`
	Rules    RulesConfig    `koanf:"rules"`
	Backend  BackendConfig  `koanf:"backend"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// PipelineConfig controls process lifecycle.
type PipelineConfig struct {
	ShutdownTimeout time.Duration `koanf:"shutdowntimeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// ConsumerConfig controls the notification consumer loop.
type ConsumerConfig struct {
	Channel   string        `koanf:"channel"` // "sqs" or "spool"
	BatchSize int           `koanf:"batchsize" yaml:"batch_size" json:"batch_size"`
	WaitTime  time.Duration `koanf:"waittime" yaml:"wait_time" json:"wait_time"`

	// DecodeKeys URL-decodes object keys taken from event envelopes.
	DecodeKeys bool `koanf:"decodekeys" yaml:"decode_keys" json:"decode_keys"`
}

// QueueConfig holds the notification channel settings.
type QueueConfig struct {
	SQS   SQSQueueConfig   `koanf:"sqs"`
	Spool SpoolQueueConfig `koanf:"spool"`
}

// SQSQueueConfig identifies the SQS queue. URL wins over Name.
type SQSQueueConfig struct {
	URL  string `koanf:"url"`
	Name string `koanf:"name"`
}

// SpoolQueueConfig configures the local spool directory channel.
type SpoolQueueConfig struct {
	Dir               string        `koanf:"dir"`
	VisibilityTimeout time.Duration `koanf:"visibilitytimeout" yaml:"visibility_timeout" json:"visibility_timeout"`
}

// AWSConfig is shared by the S3, SQS and DynamoDB clients.
type AWSConfig struct {
	Region         string `koanf:"region"`
	Endpoint       string `koanf:"endpoint"`
	ForcePathStyle bool   `koanf:"forcepathstyle" yaml:"force_path_style" json:"force_path_style"`
}

// MongoDBConfig is shared by the MongoDB rule store and backend.
type MongoDBConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

// SourceConfig selects the object fetcher.
type SourceConfig struct {
	Type  string            `koanf:"type"` // "s3" or "local"
	Local LocalSourceConfig `koanf:"local"`
}

// LocalSourceConfig reads objects from <root>/<bucket>/<key>.
type LocalSourceConfig struct {
	Root string `koanf:"root"`
}

// RulesConfig selects and tunes the routing rule store.
type RulesConfig struct {
	Store string `koanf:"store"` // "mongodb", "dynamodb" or "file"

	// SkipInvalid skips rules with invalid patterns instead of failing resolution.
	SkipInvalid bool `koanf:"skipinvalid" yaml:"skip_invalid" json:"skip_invalid"`
	CacheSize   int  `koanf:"cachesize" yaml:"cache_size" json:"cache_size"`

	File     FileRulesConfig     `koanf:"file"`
	MongoDB  MongoDBRulesConfig  `koanf:"mongodb"`
	DynamoDB DynamoDBRulesConfig `koanf:"dynamodb"`
}

// FileRulesConfig points at a YAML rule file.
type FileRulesConfig struct {
	Path string `koanf:"path"`
}

// MongoDBRulesConfig names the rule collection.
type MongoDBRulesConfig struct {
	Collection string `koanf:"collection"`
}

// DynamoDBRulesConfig names the rule table.
type DynamoDBRulesConfig struct {
	Table string `koanf:"table"`
}

// BackendConfig selects the storage backend.
type BackendConfig struct {
	Type          string                     `koanf:"type"`
	CouchDB       CouchDBBackendConfig       `koanf:"couchdb"`
	Elasticsearch ElasticsearchBackendConfig `koanf:"elasticsearch"`
	File          FileBackendConfig          `koanf:"file"`
	Stdout        StdoutBackendConfig        `koanf:"stdout"`
}

// CouchDBBackendConfig configures the CouchDB bulk backend.
type CouchDBBackendConfig struct {
	URL      string        `koanf:"url"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	Timeout  time.Duration `koanf:"timeout"`
}

// ElasticsearchBackendConfig configures the Elasticsearch backend.
type ElasticsearchBackendConfig struct {
	Addresses  []string `koanf:"addresses"`
	Username   string   `koanf:"username"`
	Password   string   `koanf:"password"`
	FlushBytes int      `koanf:"flushbytes" yaml:"flush_bytes" json:"flush_bytes"`
}

// FileBackendConfig configures the rotating NDJSON file backend.
type FileBackendConfig struct {
	Dir        string `koanf:"dir"`
	MaxSizeMB  int    `koanf:"maxsizemb" yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `koanf:"maxbackups" yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `koanf:"maxagedays" yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// StdoutBackendConfig configures the dry-run stdout backend.
type StdoutBackendConfig struct {
	Format string `koanf:"format"` // "json" or "text"
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Address string `koanf:"address"`
}

// defaults returns the default configuration values.
func defaults() Config {
	return Config{
		LogLevel: "info",
		Pipeline: PipelineConfig{
			ShutdownTimeout: 30 * time.Second,
		},
		Consumer: ConsumerConfig{
			Channel:   "sqs",
			BatchSize: 10,
			WaitTime:  20 * time.Second,
		},
		Queue: QueueConfig{
			Spool: SpoolQueueConfig{
				VisibilityTimeout: 30 * time.Second,
			},
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		MongoDB: MongoDBConfig{
			URI:      "mongodb://localhost:27017",
			Database: "ingestion_db",
		},
		Source: SourceConfig{
			Type: "s3",
		},
		Rules: RulesConfig{
			Store:     "mongodb",
			CacheSize: 256,
			MongoDB:   MongoDBRulesConfig{Collection: "ingestion_config"},
			DynamoDB:  DynamoDBRulesConfig{Table: "ingestion_config"},
		},
		Backend: BackendConfig{
			Type: "mongodb",
			CouchDB: CouchDBBackendConfig{
				URL:     "http://localhost:5984",
				Timeout: 30 * time.Second,
			},
			Elasticsearch: ElasticsearchBackendConfig{
				Addresses:  []string{"http://localhost:9200"},
				FlushBytes: 5e+6,
			},
			File: FileBackendConfig{
				Dir:        "./data",
				MaxSizeMB:  100,
				MaxBackups: 3,
				MaxAgeDays: 7,
				Compress:   true,
			},
			Stdout: StdoutBackendConfig{
				Format: "json",
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
		},
	}
}

// Load reads configuration from all sources with proper override order.
// Order: defaults -> config file -> environment variables.
func Load(configPath string) (*Config, error) {
	opts := []configloader.Option[Config]{
		configloader.WithDefaults[Config](defaults()),
	}

	if configPath != "" {
		opts = append(opts, configloader.WithFile[Config](configPath))
	} else {
		for _, path := range []string{"./config.yaml", "/etc/s3-ingestor/config.yaml"} {
			if _, err := os.Stat(path); err == nil {
				opts = append(opts, configloader.WithFile[Config](path))
				break
			}
		}
	}

	opts = append(opts, configloader.WithEnv[Config](EnvPrefix))

	loader := configloader.NewConfigLoader[Config](opts...)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that the loader cannot express.
func (c *Config) Validate() error {
	if err := c.validateConsumer(); err != nil {
		return err
	}
	return c.ValidateProcessing()
}

func (c *Config) validateConsumer() error {
	switch c.Consumer.Channel {
	case "sqs":
		if c.Queue.SQS.URL == "" && c.Queue.SQS.Name == "" {
			return fmt.Errorf("queue.sqs.url or queue.sqs.name is required for the sqs channel")
		}
	case "spool":
		if c.Queue.Spool.Dir == "" {
			return fmt.Errorf("queue.spool.dir is required for the spool channel")
		}
	default:
		return fmt.Errorf("unknown consumer channel: %q", c.Consumer.Channel)
	}

	if c.Consumer.BatchSize < 1 {
		return fmt.Errorf("consumer.batchsize must be positive, got %d", c.Consumer.BatchSize)
	}
	return nil
}

// ValidateProcessing checks the source, rule store and backend settings only.
// One-shot processing needs no queue, so it validates with this.
func (c *Config) ValidateProcessing() error {
	switch c.Source.Type {
	case "s3":
	case "local":
		if c.Source.Local.Root == "" {
			return fmt.Errorf("source.local.root is required for the local source")
		}
	default:
		return fmt.Errorf("unknown source type: %q", c.Source.Type)
	}

	switch c.Rules.Store {
	case "mongodb", "dynamodb":
	case "file":
		if c.Rules.File.Path == "" {
			return fmt.Errorf("rules.file.path is required for the file rule store")
		}
	default:
		return fmt.Errorf("unknown rule store: %q", c.Rules.Store)
	}

	switch c.Backend.Type {
	case "mongodb", "dynamodb", "couchdb", "elasticsearch", "file", "stdout":
	default:
		return fmt.Errorf("unknown backend type: %q", c.Backend.Type)
	}

	return nil
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.Consumer.Channel == "sqs" ||
		c.Source.Type == "s3" ||
		c.Rules.Store == "dynamodb" ||
		c.Backend.Type == "dynamodb"
}

// NeedsMongoDB reports whether any configured component talks to MongoDB.
func (c *Config) NeedsMongoDB() bool {
	return c.Rules.Store == "mongodb" || c.Backend.Type == "mongodb"
}

// Package pipeline builds every collaborator from configuration once and runs
// the consumer until the process is asked to stop.
package pipeline

import (
	"context"
	"fmt"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/GabrielNunesIT/s3-ingestor/internal/backend"
	"github.com/GabrielNunesIT/s3-ingestor/internal/config"
	"github.com/GabrielNunesIT/s3-ingestor/internal/consumer"
	"github.com/GabrielNunesIT/s3-ingestor/internal/fetcher"
	"github.com/GabrielNunesIT/s3-ingestor/internal/ingest"
	"github.com/GabrielNunesIT/s3-ingestor/internal/metrics"
	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
	"github.com/GabrielNunesIT/s3-ingestor/internal/parser"
	"github.com/GabrielNunesIT/s3-ingestor/internal/queue"
	"github.com/GabrielNunesIT/s3-ingestor/internal/rules"
)

// Option replaces a collaborator the pipeline would otherwise build.
type Option func(*Pipeline)

// WithChannel sets the notification channel.
func WithChannel(ch queue.Channel) Option {
	return func(p *Pipeline) {
		p.channel = ch
	}
}

// WithFetcher sets the object fetcher.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(p *Pipeline) {
		p.fetcher = f
	}
}

// WithRuleStore sets the routing rule store.
func WithRuleStore(s rules.Store) Option {
	return func(p *Pipeline) {
		p.ruleStore = s
	}
}

// WithBackend sets the storage backend.
func WithBackend(b backend.Backend) Option {
	return func(p *Pipeline) {
		p.backend = b
	}
}

// Pipeline owns the collaborators of one ingestor process.
type Pipeline struct {
	cfg    *config.Config
	logger logger.ILogger

	session *session.Session
	mongo   *mongo.Client

	ruleStore    rules.Store
	fetcher      fetcher.Fetcher
	backend      backend.Backend
	channel      queue.Channel
	orchestrator *ingest.Orchestrator
	loop         *consumer.Loop

	// closers release channel and client resources, in order.
	closers []func(context.Context) error
}

// New builds the pipeline described by cfg. Clients are created only for the
// components that need them and are shared between those components.
func New(ctx context.Context, cfg *config.Config, log logger.ILogger, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:    cfg,
		logger: log.SubLogger("Pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.build(ctx, log); err != nil {
		_ = p.close(context.Background())
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) build(ctx context.Context, log logger.ILogger) error {
	if p.ruleStore == nil {
		store, err := p.buildRuleStore(ctx)
		if err != nil {
			return fmt.Errorf("building rule store: %w", err)
		}
		p.ruleStore = store
	}

	resolver, err := rules.NewResolver(p.ruleStore, log,
		rules.WithSkipInvalid(p.cfg.Rules.SkipInvalid),
		rules.WithCacheSize(p.cfg.Rules.CacheSize),
	)
	if err != nil {
		return fmt.Errorf("building resolver: %w", err)
	}

	if p.fetcher == nil {
		f, err := p.buildFetcher(log)
		if err != nil {
			return fmt.Errorf("building fetcher: %w", err)
		}
		p.fetcher = f
	}

	if p.backend == nil {
		b, err := p.buildBackend(ctx, log)
		if err != nil {
			return fmt.Errorf("building backend: %w", err)
		}
		p.backend = b
	}

	p.orchestrator = ingest.NewOrchestrator(resolver, p.fetcher, parser.NewRegistry(log), p.backend, log)

	if p.channel == nil {
		ch, err := p.buildChannel(ctx, log)
		if err != nil {
			return fmt.Errorf("building channel: %w", err)
		}
		p.channel = ch
	}

	p.loop = consumer.NewLoop(p.channel, p.orchestrator, log,
		consumer.WithBatchSize(p.cfg.Consumer.BatchSize),
		consumer.WithWaitTime(p.cfg.Consumer.WaitTime),
		consumer.WithDecodeKeys(p.cfg.Consumer.DecodeKeys),
	)

	p.logger.Debugf("pipeline built: channel=%s, source=%s, rules=%s, backend=%s",
		p.cfg.Consumer.Channel, p.cfg.Source.Type, p.cfg.Rules.Store, p.backend.Name())
	return nil
}

func (p *Pipeline) buildRuleStore(ctx context.Context) (rules.Store, error) {
	switch p.cfg.Rules.Store {
	case "file":
		return rules.NewFileStore(p.cfg.Rules.File.Path), nil
	case "mongodb":
		client, err := p.mongoClient(ctx)
		if err != nil {
			return nil, err
		}
		return rules.NewMongoStore(client, p.cfg.MongoDB.Database, p.cfg.Rules.MongoDB.Collection), nil
	case "dynamodb":
		sess, err := p.awsSession()
		if err != nil {
			return nil, err
		}
		return rules.NewDynamoDBStore(dynamodb.New(sess), p.cfg.Rules.DynamoDB.Table), nil
	default:
		return nil, fmt.Errorf("unknown rule store: %q", p.cfg.Rules.Store)
	}
}

func (p *Pipeline) buildFetcher(log logger.ILogger) (fetcher.Fetcher, error) {
	switch p.cfg.Source.Type {
	case "local":
		return fetcher.NewLocal(p.cfg.Source.Local.Root, log), nil
	case "s3":
		sess, err := p.awsSession()
		if err != nil {
			return nil, err
		}
		return fetcher.NewS3(s3.New(sess), log), nil
	default:
		return nil, fmt.Errorf("unknown source type: %q", p.cfg.Source.Type)
	}
}

func (p *Pipeline) buildBackend(ctx context.Context, log logger.ILogger) (backend.Backend, error) {
	bc := p.cfg.Backend
	switch bc.Type {
	case "mongodb":
		client, err := p.mongoClient(ctx)
		if err != nil {
			return nil, err
		}
		return backend.NewMongoBackend(client, p.cfg.MongoDB.Database, log), nil
	case "dynamodb":
		sess, err := p.awsSession()
		if err != nil {
			return nil, err
		}
		return backend.NewDynamoDBBackend(dynamodb.New(sess), log), nil
	case "couchdb":
		return backend.NewCouchDBBackend(bc.CouchDB, log), nil
	case "elasticsearch":
		return backend.NewElasticsearchBackend(bc.Elasticsearch, log), nil
	case "file":
		return backend.NewFileBackend(bc.File, log), nil
	case "stdout":
		return backend.NewStdoutBackend(bc.Stdout, log), nil
	default:
		return nil, fmt.Errorf("unknown backend type: %q", bc.Type)
	}
}

func (p *Pipeline) buildChannel(ctx context.Context, log logger.ILogger) (queue.Channel, error) {
	switch p.cfg.Consumer.Channel {
	case "spool":
		spool, err := queue.NewSpool(p.cfg.Queue.Spool.Dir, p.cfg.Queue.Spool.VisibilityTimeout, log)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, func(context.Context) error { return spool.Close() })
		return spool, nil
	case "sqs":
		sess, err := p.awsSession()
		if err != nil {
			return nil, err
		}
		return queue.NewSQS(ctx, sqs.New(sess), p.cfg.Queue.SQS.URL, p.cfg.Queue.SQS.Name, log)
	default:
		return nil, fmt.Errorf("unknown consumer channel: %q", p.cfg.Consumer.Channel)
	}
}

// awsSession returns the shared AWS session, creating it on first use.
func (p *Pipeline) awsSession() (*session.Session, error) {
	if p.session != nil {
		return p.session, nil
	}

	awsCfg := &aws.Config{
		Region:  aws.String(p.cfg.AWS.Region),
		Retryer: client.DefaultRetryer{NumMaxRetries: 3},
	}
	if p.cfg.AWS.Endpoint != "" {
		p.logger.Infof("overriding AWS endpoint: %s", p.cfg.AWS.Endpoint)
		awsCfg.Endpoint = aws.String(p.cfg.AWS.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if p.cfg.AWS.ForcePathStyle {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating AWS session")
	}
	p.session = sess
	return sess, nil
}

// mongoClient returns the shared MongoDB client, connecting on first use.
func (p *Pipeline) mongoClient(ctx context.Context) (*mongo.Client, error) {
	if p.mongo != nil {
		return p.mongo, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(p.cfg.MongoDB.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	p.mongo = client
	p.closers = append(p.closers, client.Disconnect)
	return client, nil
}

// Run starts the backend, then consumes until ctx is cancelled or the channel
// fails. The backend and clients are released before Run returns.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.backend.Start(ctx); err != nil {
		p.shutdown()
		return fmt.Errorf("starting backend %s: %w", p.backend.Name(), err)
	}
	p.logger.Debugf("started backend: %s", p.backend.Name())

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.loop.Run(gCtx)
	})

	if p.cfg.Metrics.Enabled {
		server := metrics.NewServer(p.cfg.Metrics.Address, p.logger)
		g.Go(func() error {
			return server.Serve(gCtx)
		})
	}

	err := g.Wait()

	p.shutdown()

	return err
}

// ProcessFile runs the pipeline once for ref, outside the consumer loop.
func (p *Pipeline) ProcessFile(ctx context.Context, ref model.FileReference) (model.Outcome, error) {
	if err := p.backend.Start(ctx); err != nil {
		p.shutdown()
		return model.Outcome{}, fmt.Errorf("starting backend %s: %w", p.backend.Name(), err)
	}
	defer p.shutdown()

	return p.orchestrator.ProcessFile(ctx, ref)
}

// Close releases clients without running. Use it when neither Run nor
// ProcessFile is called.
func (p *Pipeline) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Pipeline.ShutdownTimeout)
	defer cancel()
	return p.close(ctx)
}

// BackendName returns the name of the configured backend.
func (p *Pipeline) BackendName() string {
	return p.backend.Name()
}

// shutdown stops the backend and releases clients within the shutdown timeout.
func (p *Pipeline) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Pipeline.ShutdownTimeout)
	defer cancel()

	if err := p.backend.Stop(ctx); err != nil {
		p.logger.Warningf("backend stop error: name=%s, error=%v", p.backend.Name(), err)
	}
	if err := p.close(ctx); err != nil {
		p.logger.Warningf("close error: %v", err)
	}
	p.logger.Debug("pipeline stopped")
}

func (p *Pipeline) close(ctx context.Context) error {
	var firstErr error
	for _, c := range p.closers {
		if err := c(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.closers = nil
	return firstErr
}

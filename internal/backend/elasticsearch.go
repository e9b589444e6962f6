package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/GabrielNunesIT/s3-ingestor/internal/config"
	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
)

// IndexerFactory creates a BulkIndexer writing to index.
type IndexerFactory func(index string) (esutil.BulkIndexer, error)

// ElasticsearchOption configures the ElasticsearchBackend.
type ElasticsearchOption func(*ElasticsearchBackend)

// WithIndexerFactory sets a custom factory for creating the BulkIndexer.
// This is primarily used for testing to inject a mock indexer.
func WithIndexerFactory(f IndexerFactory) ElasticsearchOption {
	return func(e *ElasticsearchBackend) {
		e.factory = f
	}
}

// ElasticsearchBackend indexes each batch into the index named by the target.
type ElasticsearchBackend struct {
	cfg     config.ElasticsearchBackendConfig
	factory IndexerFactory
	logger  logger.ILogger
}

// NewElasticsearchBackend creates a new Elasticsearch backend.
func NewElasticsearchBackend(cfg config.ElasticsearchBackendConfig, log logger.ILogger, opts ...ElasticsearchOption) *ElasticsearchBackend {
	e := &ElasticsearchBackend{
		cfg:    cfg,
		logger: log.SubLogger("ElasticsearchBackend"),
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the backend identifier.
func (e *ElasticsearchBackend) Name() string {
	return "elasticsearch"
}

// Start creates the Elasticsearch client unless a factory was injected.
func (e *ElasticsearchBackend) Start(ctx context.Context) error {
	if e.factory != nil {
		return nil
	}

	esCfg := elasticsearch.Config{
		Addresses: e.cfg.Addresses,
	}
	if e.cfg.Username != "" {
		esCfg.Username = e.cfg.Username
		esCfg.Password = e.cfg.Password
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return fmt.Errorf("creating elasticsearch client: %w", err)
	}

	flushBytes := e.cfg.FlushBytes
	e.factory = func(index string) (esutil.BulkIndexer, error) {
		return esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
			Client:     client,
			Index:      index,
			NumWorkers: 1,
			FlushBytes: flushBytes,
		})
	}
	return nil
}

// Stop is a no-op; indexers are closed at the end of each batch.
func (e *ElasticsearchBackend) Stop(ctx context.Context) error {
	return nil
}

// InsertMany indexes records and waits for the bulk requests to finish.
// Any failed item fails the batch; items already indexed stay indexed.
func (e *ElasticsearchBackend) InsertMany(ctx context.Context, target string, records []*model.Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if e.factory == nil {
		return nil, fmt.Errorf("elasticsearch backend not started")
	}

	indexer, err := e.factory(target)
	if err != nil {
		return nil, fmt.Errorf("creating bulk indexer: %w", err)
	}

	var (
		mu       sync.Mutex
		ids      []string
		firstErr error
	)
	onSuccess := func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem) {
		mu.Lock()
		ids = append(ids, res.DocumentID)
		mu.Unlock()
	}
	onFailure := func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr != nil {
			return
		}
		if err != nil {
			firstErr = err
		} else {
			firstErr = fmt.Errorf("%s: %s", res.Error.Type, res.Error.Reason)
		}
	}

	for i, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			_ = indexer.Close(ctx)
			return nil, fmt.Errorf("encoding record %d: %w", i, err)
		}
		err = indexer.Add(ctx, esutil.BulkIndexerItem{
			Action:    "index",
			Body:      bytes.NewReader(data),
			OnSuccess: onSuccess,
			OnFailure: onFailure,
		})
		if err != nil {
			_ = indexer.Close(ctx)
			return nil, fmt.Errorf("adding record %d: %w", i, err)
		}
	}

	if err := indexer.Close(ctx); err != nil {
		return nil, fmt.Errorf("flushing bulk indexer: %w", err)
	}

	stats := indexer.Stats()
	if stats.NumFailed > 0 {
		mu.Lock()
		defer mu.Unlock()
		return nil, fmt.Errorf("%d of %d documents failed in %s: %v", stats.NumFailed, len(records), target, firstErr)
	}

	e.logger.Debugf("indexed documents: index=%s, count=%d", target, len(records))
	return ids, nil
}

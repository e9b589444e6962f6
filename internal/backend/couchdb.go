package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/GabrielNunesIT/s3-ingestor/internal/config"
	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
)

// CouchDBOption configures the CouchDBBackend.
type CouchDBOption func(*CouchDBBackend)

// WithCouchDBHTTPClient sets a custom HTTP client for the CouchDB backend.
func WithCouchDBHTTPClient(client HTTPDoer) CouchDBOption {
	return func(b *CouchDBBackend) {
		b.client = client
	}
}

// CouchDBBackend posts each batch to the database's _bulk_docs endpoint.
type CouchDBBackend struct {
	cfg    config.CouchDBBackendConfig
	client HTTPDoer
	logger logger.ILogger
}

// NewCouchDBBackend creates a backend for the server at cfg.URL.
// A bulk POST is not idempotent, so the client sends each request once.
func NewCouchDBBackend(cfg config.CouchDBBackendConfig, log logger.ILogger, opts ...CouchDBOption) *CouchDBBackend {
	b := &CouchDBBackend{
		cfg:    cfg,
		logger: log.SubLogger("CouchDBBackend"),
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.CheckRetry = noRetry
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = leveledLogger{b.logger}
	b.client = rc.StandardClient()

	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend identifier.
func (b *CouchDBBackend) Name() string {
	return "couchdb"
}

// Start is a no-op.
func (b *CouchDBBackend) Start(ctx context.Context) error {
	return nil
}

// Stop is a no-op.
func (b *CouchDBBackend) Stop(ctx context.Context) error {
	return nil
}

type bulkDocsRequest struct {
	Docs []*model.Record `json:"docs"`
}

type bulkDocsResult struct {
	ID string `json:"id"`
}

// InsertMany sends all records in one bulk request. Success depends only on
// the request reaching the server; an error status is logged, not returned,
// and per-document results are not checked. Returned ids are whatever the
// server echoed back.
func (b *CouchDBBackend) InsertMany(ctx context.Context, target string, records []*model.Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(bulkDocsRequest{Docs: records})
	if err != nil {
		return nil, fmt.Errorf("encoding bulk request: %w", err)
	}

	endpoint := strings.TrimRight(b.cfg.URL, "/") + "/" + url.PathEscape(target) + "/_bulk_docs"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.cfg.Username != "" {
		req.SetBasicAuth(b.cfg.Username, b.cfg.Password)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting to %s: %w", target, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		b.logger.Warningf("bulk write answered with error status: database=%s, status=%d, body=%s",
			target, resp.StatusCode, strings.TrimSpace(string(respBody)))
		return nil, nil
	}

	var results []bulkDocsResult
	_ = json.Unmarshal(respBody, &results)
	ids := make([]string, 0, len(results))
	for _, r := range results {
		if r.ID != "" {
			ids = append(ids, r.ID)
		}
	}

	b.logger.Debugf("bulk write sent: database=%s, docs=%d, status=%d", target, len(records), resp.StatusCode)
	return ids, nil
}

// noRetry hands every response and transport error back to the caller.
func noRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	return false, err
}

// leveledLogger adapts ILogger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log logger.ILogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) {
	l.log.Errorf("%s %v", msg, kv)
}

func (l leveledLogger) Warn(msg string, kv ...interface{}) {
	l.log.Warningf("%s %v", msg, kv)
}

func (l leveledLogger) Info(msg string, kv ...interface{}) {
	l.log.Debugf("%s %v", msg, kv)
}

func (l leveledLogger) Debug(msg string, kv ...interface{}) {
	l.log.Debugf("%s %v", msg, kv)
}

var _ retryablehttp.LeveledLogger = leveledLogger{}

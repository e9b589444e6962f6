// Package backend defines the storage contract and its implementations.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
)

// Inserter stores a batch of records into a named target.
type Inserter interface {
	// InsertMany writes records into target and returns the identifiers the
	// backend reports, if any. An empty batch succeeds without a backend call.
	InsertMany(ctx context.Context, target string, records []*model.Record) ([]string, error)
}

// Backend is a storage destination with a lifecycle.
type Backend interface {
	Inserter

	// Start prepares connections. Called once before InsertMany.
	Start(ctx context.Context) error

	// Stop flushes and releases resources.
	Stop(ctx context.Context) error

	// Name returns a unique identifier for this backend.
	Name() string
}

// HTTPDoer abstracts HTTP client operations for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Ensure http.Client implements HTTPDoer.
var _ HTTPDoer = (*http.Client)(nil)

// stringForm renders a non-scalar value for backends that only store scalars.
func stringForm(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

// Package parser turns fetched object bytes into records.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
)

// Strategy parses one file format.
type Strategy interface {
	// Parse returns the records contained in data.
	// A malformed input aborts the whole file; there is no partial result.
	Parse(data []byte, opts Options) ([]*model.Record, error)

	// Name returns the strategy identifier.
	Name() string
}

// Options is the decoded parser_config of a routing rule.
type Options struct {
	// Format overrides the type derived from the object key.
	Format string `json:"format"`

	// Delimiter is the csv field separator. Defaults to ','.
	Delimiter string `json:"delimiter"`

	// Comment marks csv lines to ignore.
	Comment string `json:"comment"`

	LazyQuotes       bool `json:"lazyquotes"`
	TrimLeadingSpace bool `json:"trimleadingspace"`
}

// ParseOptions decodes a rule's parser_config. Empty input yields zero Options.
func ParseOptions(raw json.RawMessage) (Options, error) {
	var opts Options
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return opts, nil
	}
	if err := json.Unmarshal(trimmed, &opts); err != nil {
		return opts, fmt.Errorf("decoding parser_config: %w", err)
	}
	opts.Format = strings.ToLower(opts.Format)
	return opts, nil
}

// DetectType returns the lower-cased text after the last '.' of key,
// or "" when key has no '.'.
func DetectType(key string) string {
	i := strings.LastIndexByte(key, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(key[i+1:])
}

// Registry dispatches parsing to the strategy registered for a file type.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	logger     logger.ILogger
}

// NewRegistry creates a registry holding the built-in strategies:
// csv, json, ndjson and jsonl.
func NewRegistry(log logger.ILogger) *Registry {
	r := &Registry{
		strategies: make(map[string]Strategy),
		logger:     log.SubLogger("Parser"),
	}
	r.Register("csv", NewCSV())
	r.Register("json", NewJSON())
	ndjson := NewNDJSON()
	r.Register("ndjson", ndjson)
	r.Register("jsonl", ndjson)
	return r
}

// Register binds fileType to s, replacing any previous binding.
func (r *Registry) Register(fileType string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[strings.ToLower(fileType)] = s
}

// Types returns the registered file types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.strategies))
	for t := range r.strategies {
		types = append(types, t)
	}
	return types
}

// Parse parses data with the strategy registered for fileType.
// An unregistered type fails with model.ErrUnsupportedType.
func (r *Registry) Parse(data []byte, fileType string, opts Options) ([]*model.Record, error) {
	r.mu.RLock()
	s, ok := r.strategies[fileType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedType, fileType)
	}

	records, err := s.Parse(data, opts)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.Name(), err)
	}

	r.logger.Debugf("parsed file: type=%s, strategy=%s, bytes=%d, records=%d", fileType, s.Name(), len(data), len(records))
	return records, nil
}

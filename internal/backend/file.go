package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/natefinch/lumberjack"

	"github.com/GabrielNunesIT/s3-ingestor/internal/config"
	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
)

// WriterFactory creates the writer for one target.
type WriterFactory func(target string) (io.WriteCloser, error)

// FileOption configures the FileBackend.
type FileOption func(*FileBackend)

// WithWriterFactory sets a custom factory for creating writers.
func WithWriterFactory(f WriterFactory) FileOption {
	return func(b *FileBackend) {
		b.factory = f
	}
}

// FileBackend appends records as NDJSON to <dir>/<target>.ndjson with rotation.
type FileBackend struct {
	cfg     config.FileBackendConfig
	factory WriterFactory
	writers map[string]io.WriteCloser
	mu      sync.Mutex
	logger  logger.ILogger
}

// NewFileBackend creates a new file backend.
func NewFileBackend(cfg config.FileBackendConfig, log logger.ILogger, opts ...FileOption) *FileBackend {
	b := &FileBackend{
		cfg:     cfg,
		writers: make(map[string]io.WriteCloser),
		logger:  log.SubLogger("FileBackend"),
	}

	// Default factory creates lumberjack logger
	b.factory = func(target string) (io.WriteCloser, error) {
		return &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, target+".ndjson"),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}, nil
	}

	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend identifier.
func (b *FileBackend) Name() string {
	return "file"
}

// Start is a no-op; writers open on first use.
func (b *FileBackend) Start(ctx context.Context) error {
	return nil
}

// Stop closes every open writer.
func (b *FileBackend) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for target, w := range b.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s: %w", target, err)
		}
		delete(b.writers, target)
	}
	return firstErr
}

// InsertMany appends one JSON line per record.
func (b *FileBackend) InsertMany(ctx context.Context, target string, records []*model.Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if target == "" || filepath.Base(target) != target {
		return nil, fmt.Errorf("invalid target name %q", target)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.writers[target]
	if !ok {
		var err error
		w, err = b.factory(target)
		if err != nil {
			return nil, fmt.Errorf("opening writer for %s: %w", target, err)
		}
		b.writers[target] = w
	}

	var buf []byte
	for i, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encoding record %d: %w", i, err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	if _, err := w.Write(buf); err != nil {
		return nil, fmt.Errorf("writing %s: %w", target, err)
	}

	b.logger.Debugf("appended records: target=%s, count=%d", target, len(records))
	return nil, nil
}

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/s3-ingestor/internal/config"
	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
)

// StdoutBackend prints records instead of storing them.
type StdoutBackend struct {
	cfg    config.StdoutBackendConfig
	writer io.Writer
	mu     sync.Mutex
	logger logger.ILogger
}

// NewStdoutBackend creates a new stdout backend.
func NewStdoutBackend(cfg config.StdoutBackendConfig, log logger.ILogger) *StdoutBackend {
	return NewStdoutBackendWithWriter(cfg, os.Stdout, log)
}

// NewStdoutBackendWithWriter creates a stdout backend with a custom writer (for testing).
func NewStdoutBackendWithWriter(cfg config.StdoutBackendConfig, w io.Writer, log logger.ILogger) *StdoutBackend {
	return &StdoutBackend{
		cfg:    cfg,
		writer: w,
		logger: log.SubLogger("StdoutBackend"),
	}
}

// Name returns the backend identifier.
func (s *StdoutBackend) Name() string {
	return "stdout"
}

// Start initializes the backend (no-op for stdout).
func (s *StdoutBackend) Start(ctx context.Context) error {
	s.logger.Debugf("stdout backend started: format=%s", s.cfg.Format)
	return nil
}

// Stop gracefully shuts down the backend (no-op for stdout).
func (s *StdoutBackend) Stop(ctx context.Context) error {
	s.logger.Debug("stdout backend stopped")
	return nil
}

// InsertMany writes one line per record.
func (s *StdoutBackend) InsertMany(ctx context.Context, target string, records []*model.Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		var (
			output []byte
			err    error
		)
		switch s.cfg.Format {
		case "text":
			output = formatText(target, r)
		default:
			output, err = formatJSON(target, r)
		}
		if err != nil {
			return nil, err
		}
		if _, err := s.writer.Write(append(output, '\n')); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// formatJSON wraps the record with its target.
func formatJSON(target string, r *model.Record) ([]byte, error) {
	return json.Marshal(struct {
		Target string        `json:"target"`
		Record *model.Record `json:"record"`
	}{Target: target, Record: r})
}

// formatText renders the record as key=value pairs.
func formatText(target string, r *model.Record) []byte {
	parts := make([]string, 0, r.Len())
	for _, f := range r.Fields() {
		parts = append(parts, fmt.Sprintf("%s=%s", f.Name, stringForm(f.Value)))
	}
	return []byte(fmt.Sprintf("[%s] %s", target, strings.Join(parts, " ")))
}

package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/s3-ingestor/internal/config"
	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
	"github.com/GabrielNunesIT/s3-ingestor/internal/testutil"
)

type bufferWriteCloser struct {
	bytes.Buffer
	closed   bool
	writeErr error
}

func (b *bufferWriteCloser) Write(p []byte) (int, error) {
	if b.writeErr != nil {
		return 0, b.writeErr
	}
	return b.Buffer.Write(p)
}

func (b *bufferWriteCloser) Close() error {
	b.closed = true
	return nil
}

func TestFileBackend_InsertMany(t *testing.T) {
	writers := map[string]*bufferWriteCloser{}
	factory := func(target string) (io.WriteCloser, error) {
		w := &bufferWriteCloser{}
		writers[target] = w
		return w, nil
	}

	b := NewFileBackend(config.FileBackendConfig{}, testutil.NewTestLogger(), WithWriterFactory(factory))
	require.NoError(t, b.Start(context.Background()))

	_, err := b.InsertMany(context.Background(), "events", []*model.Record{record("id", "1"), record("id", "2")})
	require.NoError(t, err)
	_, err = b.InsertMany(context.Background(), "events", []*model.Record{record("id", "3")})
	require.NoError(t, err)
	_, err = b.InsertMany(context.Background(), "audit", []*model.Record{record("who", "me")})
	require.NoError(t, err)

	require.Len(t, writers, 2)
	assert.Equal(t, "{\"id\":\"1\"}\n{\"id\":\"2\"}\n{\"id\":\"3\"}\n", writers["events"].String())
	assert.Equal(t, "{\"who\":\"me\"}\n", writers["audit"].String())

	require.NoError(t, b.Stop(context.Background()))
	assert.True(t, writers["events"].closed)
	assert.True(t, writers["audit"].closed)
}

func TestFileBackend_Errors(t *testing.T) {
	t.Run("factory error", func(t *testing.T) {
		b := NewFileBackend(config.FileBackendConfig{}, testutil.NewTestLogger(), WithWriterFactory(func(string) (io.WriteCloser, error) {
			return nil, errors.New("factory error")
		}))
		_, err := b.InsertMany(context.Background(), "events", []*model.Record{record("id", "1")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "factory error")
	})

	t.Run("write error", func(t *testing.T) {
		b := NewFileBackend(config.FileBackendConfig{}, testutil.NewTestLogger(), WithWriterFactory(func(string) (io.WriteCloser, error) {
			return &bufferWriteCloser{writeErr: errors.New("disk full")}, nil
		}))
		_, err := b.InsertMany(context.Background(), "events", []*model.Record{record("id", "1")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("path target", func(t *testing.T) {
		b := NewFileBackend(config.FileBackendConfig{}, testutil.NewTestLogger())
		_, err := b.InsertMany(context.Background(), "../escape", []*model.Record{record("id", "1")})
		assert.Error(t, err)
	})
}

func TestFileBackend_Lumberjack(t *testing.T) {
	dir := t.TempDir()
	b := NewFileBackend(config.FileBackendConfig{Dir: dir, MaxSizeMB: 1}, testutil.NewTestLogger())

	_, err := b.InsertMany(context.Background(), "events", []*model.Record{record("id", "1")})
	require.NoError(t, err)
	require.NoError(t, b.Stop(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, "events.ndjson"))
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, strings.TrimSpace(string(data)))
}

package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/fsnotify/fsnotify"
)

// Spool is a Channel backed by a directory of *.json envelope files.
//
// A received file stays invisible for the visibility timeout and is then
// delivered again unless it was deleted. Delete removes the file. Files whose
// name starts with '.' are ignored, so writers should write under a dot name
// and rename into place.
type Spool struct {
	dir        string
	visibility time.Duration
	watcher    *fsnotify.Watcher
	now        func() time.Time

	mu       sync.Mutex
	inFlight map[string]time.Time

	logger logger.ILogger
}

// NewSpool creates a channel reading dir, creating it if needed.
func NewSpool(dir string, visibility time.Duration, log logger.ILogger) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating spool dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating spool watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching spool dir %q: %w", dir, err)
	}

	return &Spool{
		dir:        dir,
		visibility: visibility,
		watcher:    watcher,
		now:        time.Now,
		inFlight:   make(map[string]time.Time),
		logger:     log.SubLogger("Spool"),
	}, nil
}

// Close stops watching the spool directory.
func (s *Spool) Close() error {
	return s.watcher.Close()
}

// Receive returns up to limit visible files in name order, waiting up to wait
// for one to appear when none are visible.
func (s *Spool) Receive(ctx context.Context, limit int, wait time.Duration) ([]Message, error) {
	limit = max(limit, 1)

	msgs, err := s.take(limit)
	if err != nil || len(msgs) > 0 || wait <= 0 {
		return msgs, err
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case <-timer.C:
			return s.take(limit)
		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil, fmt.Errorf("spool watcher closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			msgs, err := s.take(limit)
			if err != nil || len(msgs) > 0 {
				return msgs, err
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil, fmt.Errorf("spool watcher closed")
			}
			s.logger.Warningf("spool watcher error: dir=%s, error=%v", s.dir, err)
		}
	}
}

// Delete removes the file behind msg.
func (s *Spool) Delete(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filepath.Join(s.dir, msg.Receipt)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting spool file %s: %w", msg.Receipt, err)
	}
	delete(s.inFlight, msg.Receipt)
	return nil
}

// take claims up to limit visible files.
func (s *Spool) take(limit int) ([]Message, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing spool dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var msgs []Message
	for _, name := range names {
		if len(msgs) == limit {
			break
		}
		if until, ok := s.inFlight[name]; ok && now.Before(until) {
			continue
		}

		body, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return msgs, fmt.Errorf("reading spool file %s: %w", name, err)
		}

		s.inFlight[name] = now.Add(s.visibility)
		msgs = append(msgs, Message{ID: name, Body: string(body), Receipt: name})
	}
	return msgs, nil
}

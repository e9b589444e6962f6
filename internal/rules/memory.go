package rules

import (
	"context"
	"sync"

	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
)

// MemoryStore is an in-process rule store. Enumeration order is insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	rules []model.RoutingRule
}

// NewMemoryStore creates a store holding rules.
func NewMemoryStore(rules ...model.RoutingRule) *MemoryStore {
	return &MemoryStore{rules: append([]model.RoutingRule(nil), rules...)}
}

// Rules returns a copy of the stored rules.
func (s *MemoryStore) Rules(ctx context.Context) ([]model.RoutingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.RoutingRule(nil), s.rules...), nil
}

// Replace swaps the stored rules.
func (s *MemoryStore) Replace(rules ...model.RoutingRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append([]model.RoutingRule(nil), rules...)
}

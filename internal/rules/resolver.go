// Package rules resolves object keys to routing rules.
//
// Rules are read from a Store on every lookup so that a change to the store is
// visible on the next resolution without a restart. Rules are scanned in the
// order the store enumerates them; the first matching rule wins.
package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/GabrielNunesIT/go-libs/logger"
	lru "github.com/hashicorp/golang-lru"

	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
)

// Store holds the routing rules.
type Store interface {
	// Rules returns every rule in the store's enumeration order.
	Rules(ctx context.Context) ([]model.RoutingRule, error)
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSkipInvalid makes the resolver skip rules with an invalid pattern
// (logging a warning) instead of failing the whole resolution.
func WithSkipInvalid(skip bool) ResolverOption {
	return func(r *Resolver) {
		r.skipInvalid = skip
	}
}

// WithCacheSize bounds the compiled-pattern cache. Zero disables caching.
func WithCacheSize(size int) ResolverOption {
	return func(r *Resolver) {
		r.cacheSize = size
	}
}

// Resolver finds the routing rule for an object key.
type Resolver struct {
	store       Store
	skipInvalid bool
	cacheSize   int
	patterns    *lru.Cache
	logger      logger.ILogger
}

// NewResolver creates a resolver reading rules from store.
func NewResolver(store Store, log logger.ILogger, opts ...ResolverOption) (*Resolver, error) {
	r := &Resolver{
		store:     store,
		cacheSize: 256,
		logger:    log.SubLogger("Resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.cacheSize > 0 {
		cache, err := lru.New(r.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating pattern cache: %w", err)
		}
		r.patterns = cache
	}

	return r, nil
}

// Resolve returns the first rule whose pattern matches key.
// found is false when no rule matches; that is not an error.
// Errors wrapping model.ErrConfig report a malformed rule.
func (r *Resolver) Resolve(ctx context.Context, key string) (rule model.RoutingRule, found bool, err error) {
	rules, err := r.store.Rules(ctx)
	if err != nil {
		return model.RoutingRule{}, false, fmt.Errorf("loading rules: %w", err)
	}

	for i, candidate := range rules {
		re, err := r.compile(candidate.Pattern)
		if err != nil {
			if r.skipInvalid {
				r.logger.Warningf("skipping invalid rule: index=%d, pattern=%q, error=%v", i, candidate.Pattern, err)
				continue
			}
			return model.RoutingRule{}, false, fmt.Errorf("%w: rule %d: %v", model.ErrConfig, i, err)
		}

		if !re.MatchString(key) {
			continue
		}

		if err := validateMatched(candidate); err != nil {
			return model.RoutingRule{}, false, fmt.Errorf("%w: rule %d: %v", model.ErrConfig, i, err)
		}

		r.logger.Debugf("rule matched: index=%d, pattern=%q, target=%s, key=%s", i, candidate.Pattern, candidate.Target, key)
		return candidate, true, nil
	}

	r.logger.Debugf("no rule matched: key=%s, rules_checked=%d", key, len(rules))
	return model.RoutingRule{}, false, nil
}

// compile returns the compiled form of pattern, using the cache when enabled.
// The cache is keyed by pattern text, so an edited rule compiles afresh.
func (r *Resolver) compile(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("missing pattern")
	}

	if r.patterns != nil {
		if re, ok := r.patterns.Get(pattern); ok {
			return re.(*regexp.Regexp), nil
		}
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	if r.patterns != nil {
		r.patterns.Add(pattern, re)
	}
	return re, nil
}

func validateMatched(rule model.RoutingRule) error {
	if rule.Target == "" {
		return fmt.Errorf("pattern %q has no target_table", rule.Pattern)
	}
	if len(rule.ParserConfig) > 0 && !json.Valid(rule.ParserConfig) {
		return fmt.Errorf("pattern %q has malformed parser_config", rule.Pattern)
	}
	return nil
}

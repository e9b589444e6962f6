package rules

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
	"github.com/GabrielNunesIT/s3-ingestor/internal/testutil"
)

// countingStore wraps a store and counts reads.
type countingStore struct {
	Store
	reads int
	err   error
}

func (c *countingStore) Rules(ctx context.Context) ([]model.RoutingRule, error) {
	c.reads++
	if c.err != nil {
		return nil, c.err
	}
	return c.Store.Rules(ctx)
}

func newResolver(t *testing.T, store Store, opts ...ResolverOption) *Resolver {
	t.Helper()
	r, err := NewResolver(store, testutil.NewTestLogger(), opts...)
	require.NoError(t, err)
	return r
}

func TestResolver_Resolve(t *testing.T) {
	csvRule := model.RoutingRule{Pattern: `^incoming/.*\.csv$`, Target: "events"}
	jsonRule := model.RoutingRule{Pattern: `\.json$`, Target: "documents"}
	anyIncoming := model.RoutingRule{Pattern: `incoming/`, Target: "catch_all"}

	tests := []struct {
		name       string
		rules      []model.RoutingRule
		key        string
		wantFound  bool
		wantTarget string
	}{
		{
			name:       "Single Match",
			rules:      []model.RoutingRule{jsonRule, csvRule},
			key:        "incoming/data.csv",
			wantFound:  true,
			wantTarget: "events",
		},
		{
			name:       "First Match Wins",
			rules:      []model.RoutingRule{anyIncoming, csvRule},
			key:        "incoming/data.csv",
			wantFound:  true,
			wantTarget: "catch_all",
		},
		{
			name:       "First Match Wins Reversed Order",
			rules:      []model.RoutingRule{csvRule, anyIncoming},
			key:        "incoming/data.csv",
			wantFound:  true,
			wantTarget: "events",
		},
		{
			name:       "Unanchored Pattern Matches Anywhere",
			rules:      []model.RoutingRule{{Pattern: `data`, Target: "t"}},
			key:        "archive/2024/data.csv",
			wantFound:  true,
			wantTarget: "t",
		},
		{
			name:      "No Match",
			rules:     []model.RoutingRule{csvRule, jsonRule},
			key:       "outgoing/report.pdf",
			wantFound: false,
		},
		{
			name:      "Empty Store",
			key:       "incoming/data.csv",
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(t, NewMemoryStore(tt.rules...))

			rule, found, err := r.Resolve(context.Background(), tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantTarget, rule.Target)
		})
	}
}

func TestResolver_InvalidPatternAbortsResolution(t *testing.T) {
	store := NewMemoryStore(
		model.RoutingRule{Pattern: `([unclosed`, Target: "broken"},
		model.RoutingRule{Pattern: `\.csv$`, Target: "events"},
	)
	r := newResolver(t, store)

	_, found, err := r.Resolve(context.Background(), "incoming/data.csv")
	require.Error(t, err)
	assert.False(t, found)
	assert.True(t, errors.Is(err, model.ErrConfig))
}

func TestResolver_InvalidPatternAfterMatchIsNotChecked(t *testing.T) {
	store := NewMemoryStore(
		model.RoutingRule{Pattern: `\.csv$`, Target: "events"},
		model.RoutingRule{Pattern: `([unclosed`, Target: "broken"},
	)
	r := newResolver(t, store)

	rule, found, err := r.Resolve(context.Background(), "incoming/data.csv")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "events", rule.Target)
}

func TestResolver_SkipInvalid(t *testing.T) {
	store := NewMemoryStore(
		model.RoutingRule{Pattern: `([unclosed`, Target: "broken"},
		model.RoutingRule{Pattern: ``, Target: "empty"},
		model.RoutingRule{Pattern: `\.csv$`, Target: "events"},
	)
	r := newResolver(t, store, WithSkipInvalid(true))

	rule, found, err := r.Resolve(context.Background(), "incoming/data.csv")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "events", rule.Target)
}

func TestResolver_MalformedMatchedRule(t *testing.T) {
	tests := []struct {
		name string
		rule model.RoutingRule
	}{
		{name: "Missing Target", rule: model.RoutingRule{Pattern: `\.csv$`}},
		{name: "Missing Pattern", rule: model.RoutingRule{Target: "events"}},
		{name: "Bad Parser Config", rule: model.RoutingRule{Pattern: `\.csv$`, Target: "events", ParserConfig: json.RawMessage(`{"delimiter":`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(t, NewMemoryStore(tt.rule))
			_, _, err := r.Resolve(context.Background(), "incoming/data.csv")
			assert.ErrorIs(t, err, model.ErrConfig)
		})
	}
}

func TestResolver_StoreReadEveryCall(t *testing.T) {
	mem := NewMemoryStore(model.RoutingRule{Pattern: `\.csv$`, Target: "v1"})
	store := &countingStore{Store: mem}
	r := newResolver(t, store)

	rule, _, err := r.Resolve(context.Background(), "a.csv")
	require.NoError(t, err)
	assert.Equal(t, "v1", rule.Target)

	// A mutation is visible on the very next call, cached patterns notwithstanding.
	mem.Replace(model.RoutingRule{Pattern: `\.csv$`, Target: "v2"})
	rule, _, err = r.Resolve(context.Background(), "a.csv")
	require.NoError(t, err)
	assert.Equal(t, "v2", rule.Target)

	mem.Replace(model.RoutingRule{Pattern: `\.tsv$`, Target: "v3"})
	_, found, err := r.Resolve(context.Background(), "a.csv")
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, 3, store.reads)
}

func TestResolver_StoreError(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore(), err: errors.New("connection refused")}
	r := newResolver(t, store, WithCacheSize(0))

	_, found, err := r.Resolve(context.Background(), "a.csv")
	require.Error(t, err)
	assert.False(t, found)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, errors.Is(err, model.ErrConfig))
}

func TestFileStore_Rules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
rules:
  - pattern: '^incoming/.*\.csv$'
    target_table: events
    parser_config:
      delimiter: ";"
  - pattern: '\.json$'
    target_table: documents
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rules, err := NewFileStore(path).Rules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, `^incoming/.*\.csv$`, rules[0].Pattern)
	assert.Equal(t, "events", rules[0].Target)
	assert.JSONEq(t, `{"delimiter":";"}`, string(rules[0].ParserConfig))
	assert.Equal(t, "documents", rules[1].Target)
	assert.Nil(t, rules[1].ParserConfig)
}

func TestFileStore_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFileStore(filepath.Join(dir, "missing.yaml")).Rules(context.Background())
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rules: [unclosed"), 0o644))
	_, err = NewFileStore(bad).Rules(context.Background())
	assert.ErrorIs(t, err, model.ErrConfig)
}

package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_SetKeepsOrder(t *testing.T) {
	rec := NewRecord(3)
	rec.Set("id", "1")
	rec.Set("name", "Alice")
	rec.Set("id", "2")

	require.Equal(t, 2, rec.Len())
	assert.Equal(t, []Field{{Name: "id", Value: "2"}, {Name: "name", Value: "Alice"}}, rec.Fields())

	v, ok := rec.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "Alice", v)

	_, ok = rec.Get("missing")
	assert.False(t, ok)
}

func TestRecord_MarshalJSONPreservesOrder(t *testing.T) {
	rec := NewRecord(0)
	rec.Set("z", "last-alphabetically")
	rec.Set("a", json.Number("42"))
	rec.Set("m", true)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"z":"last-alphabetically","a":42,"m":true}`, string(data))
}

func TestRecord_ZeroValueUsable(t *testing.T) {
	var rec Record
	rec.Set("k", "v")
	assert.Equal(t, map[string]any{"k": "v"}, rec.Map())
}

func TestKindOf(t *testing.T) {
	ref := FileReference{Bucket: "b1", Key: "incoming/data.csv"}
	err := &IngestError{Kind: KindStorage, Stage: StageStore, Ref: ref, Err: errors.New("boom")}
	wrapped := errors.Join(errors.New("outer"), err)

	assert.Equal(t, KindStorage, KindOf(wrapped))
	assert.Equal(t, StageStore, StageOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Contains(t, err.Error(), "s3://b1/incoming/data.csv")
}

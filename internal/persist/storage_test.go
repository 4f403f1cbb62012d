package persist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, SaveJSON(ctx, s, "k", snapshot{Name: "cards", Count: 3}))

	var got snapshot
	ok, err := LoadJSON(ctx, s, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, snapshot{Name: "cards", Count: 3}, got)
}

func TestLoadJSONMissingKey(t *testing.T) {
	got := snapshot{Name: "default"}
	ok, err := LoadJSON(context.Background(), NewMemoryStorage(), "missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "default", got.Name)
}

func TestLoadJSONCorruptBlob(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.Set(ctx, "k", []byte("{not json")))

	var got snapshot
	ok, err := LoadJSON(ctx, s, "k", &got)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestFailingBackend(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	s.FailWrites = true
	err := SaveJSON(ctx, s, "k", snapshot{})
	assert.ErrorIs(t, err, ErrUnavailable)

	s.FailReads = true
	var got snapshot
	_, err = LoadJSON(ctx, s, "k", &got)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMemoryStorageCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	blob := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", blob))
	blob[0] = 'x'

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(v))
}

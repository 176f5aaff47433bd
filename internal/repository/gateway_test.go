package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestGateway_LoadMissingKeyReturnsFallback(t *testing.T) {
	g := NewGateway(NewMemoryStore(), zerolog.Nop())

	got := LoadOr(context.Background(), g, "missing", doc{Name: "default"})
	assert.Equal(t, doc{Name: "default"}, got)
}

func TestGateway_SaveThenLoad(t *testing.T) {
	ctx := context.Background()
	g := NewGateway(NewMemoryStore(), zerolog.Nop())

	g.Save(ctx, "k", doc{Name: "a", Count: 2})

	got := LoadOr(ctx, g, "k", doc{})
	assert.Equal(t, doc{Name: "a", Count: 2}, got)
}

func TestGateway_CorruptDocumentReturnsFallback(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	require.NoError(t, kv.Set(ctx, "k", []byte("{not json")))
	g := NewGateway(kv, zerolog.Nop())

	dst := doc{Name: "keep"}
	assert.False(t, g.Load(ctx, "k", &dst))
	assert.Equal(t, "keep", dst.Name)
}

func TestGateway_StorageFailureIsSoft(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	g := NewGateway(kv, zerolog.Nop())
	g.Save(ctx, "k", doc{Name: "stored"})

	kv.Fail(errors.New("quota exceeded"))
	assert.NotPanics(t, func() { g.Save(ctx, "k", doc{Name: "lost"}) })
	assert.Equal(t, doc{Name: "fallback"}, LoadOr(ctx, g, "k", doc{Name: "fallback"}))

	kv.Fail(nil)
	assert.Equal(t, doc{Name: "stored"}, LoadOr(ctx, g, "k", doc{}))
}

func TestGateway_UnencodableValueIsSoft(t *testing.T) {
	g := NewGateway(NewMemoryStore(), zerolog.Nop())
	assert.NotPanics(t, func() { g.Save(context.Background(), "k", make(chan int)) })
}

func TestEntryRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "tasks.db"), zerolog.Nop())
	require.NoError(t, err)
	repo := NewEntryRepository(db)

	_, err = repo.Get(ctx, TasksKey)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, repo.Set(ctx, TasksKey, []byte(`{"tasks":[]}`)))
	require.NoError(t, repo.Set(ctx, TasksKey, []byte(`{"tasks":[{"id":"1"}]}`)))

	got, err := repo.Get(ctx, TasksKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tasks":[{"id":"1"}]}`, string(got))
}

func TestEntryRepository_BehindGateway(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB(filepath.Join(t.TempDir(), "tasks.db"), zerolog.Nop())
	require.NoError(t, err)
	g := NewGateway(NewEntryRepository(db), zerolog.Nop())

	g.Save(ctx, MetaKey, doc{Name: "meta", Count: 7})
	assert.Equal(t, doc{Name: "meta", Count: 7}, LoadOr(ctx, g, MetaKey, doc{}))
}

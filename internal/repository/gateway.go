package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
)

// Storage keys of the two persisted documents.
const (
	TasksKey = "ftasks.pro.v1"
	MetaKey  = "ftasks.pro.meta.v1"
)

// Gateway loads and saves JSON documents without ever failing the caller.
// Storage problems are logged; the in-memory state stays authoritative.
type Gateway struct {
	kv  KeyValue
	log zerolog.Logger
}

func NewGateway(kv KeyValue, log zerolog.Logger) *Gateway {
	return &Gateway{kv: kv, log: log.With().Str("component", "gateway").Logger()}
}

// Load decodes the document under key into dst. It returns false and leaves
// dst untouched when the key is missing, unreadable or not valid JSON.
func (g *Gateway) Load(ctx context.Context, key string, dst any) bool {
	raw, err := g.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			g.log.Debug().Str("key", key).Msg("no stored document")
		} else {
			g.log.Warn().Err(err).Str("key", key).Msg("failed to read document")
		}
		return false
	}

	if !json.Valid(raw) {
		g.log.Warn().Str("key", key).Msg("stored document is not valid json")
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("failed to decode document")
		return false
	}
	return true
}

// LoadOr returns the decoded document under key, or fallback on any failure.
func LoadOr[T any](ctx context.Context, g *Gateway, key string, fallback T) T {
	var v T
	if !g.Load(ctx, key, &v) {
		return fallback
	}
	return v
}

// Save encodes value and writes it under key. Failures are logged only.
func (g *Gateway) Save(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		g.log.Error().Err(err).Str("key", key).Msg("failed to encode document")
		return
	}
	if err := g.kv.Set(ctx, key, raw); err != nil {
		g.log.Error().Err(err).Str("key", key).Msg("failed to save document")
		return
	}
	g.log.Debug().Str("key", key).Int("bytes", len(raw)).Msg("saved document")
}

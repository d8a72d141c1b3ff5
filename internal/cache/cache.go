// Package cache stores serialized analysis results keyed by a hash of the
// analyzed text.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Key namespaces the SHA-256 of text under kind.
func Key(kind, text string) string {
	sum := sha256.Sum256([]byte(text))
	return kind + ":" + hex.EncodeToString(sum[:])
}

type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache expires entries after ttl; ttl <= 0 keeps them forever.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		return &MemoryCache{c: gocache.New(gocache.NoExpiration, 0)}
	}
	return &MemoryCache{c: gocache.New(ttl, 2*ttl)}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v.([]byte), true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	m.c.SetDefault(key, value)
	return nil
}

func (m *MemoryCache) Len() int {
	return m.c.ItemCount()
}

type valkeyStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const valkeyPrefix = "feedbackflow:analysis:"

// ValkeyCache shares results between processes.
type ValkeyCache struct {
	store valkeyStore
	ttl   time.Duration
}

func NewValkeyCache(store valkeyStore, ttl time.Duration) *ValkeyCache {
	return &ValkeyCache{store: store, ttl: ttl}
}

func (v *ValkeyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return v.store.Get(ctx, valkeyPrefix+key)
}

func (v *ValkeyCache) Set(ctx context.Context, key string, value []byte) error {
	return v.store.Set(ctx, valkeyPrefix+key, value, v.ttl)
}

// Layered reads through a local cache to a shared one and backfills the
// local cache on remote hits. Remote errors degrade to a miss.
type Layered struct {
	local  Cache
	remote Cache
}

func NewLayered(local, remote Cache) *Layered {
	return &Layered{local: local, remote: remote}
}

func (l *Layered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, _ := l.local.Get(ctx, key); ok {
		return v, true, nil
	}

	v, ok, err := l.remote.Get(ctx, key)
	if err != nil {
		slog.Warn("[Cache] Remote lookup failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}
	_ = l.local.Set(ctx, key, v)
	return v, true, nil
}

func (l *Layered) Set(ctx context.Context, key string, value []byte) error {
	_ = l.local.Set(ctx, key, value)
	if err := l.remote.Set(ctx, key, value); err != nil {
		slog.Warn("[Cache] Remote write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

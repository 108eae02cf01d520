// Package persistence mirrors the session snapshot to a durable key/value medium.
package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/classroom-client/internal/config"
	"github.com/stemsi/classroom-client/internal/kv"
	"github.com/stemsi/classroom-client/internal/model"
)

// mediumTimeout bounds a single medium call.
const mediumTimeout = 2 * time.Second

// Adapter saves, loads and clears the session snapshot. None of its methods
// fail: medium errors are logged and the in-memory mirror keeps serving.
type Adapter struct {
	mu     sync.Mutex
	medium kv.Store // nil means in-memory only
	key    string
	mirror []byte
	log    zerolog.Logger
}

// NewAdapter creates an adapter over medium, which may be nil.
func NewAdapter(medium kv.Store, log zerolog.Logger) *Adapter {
	return &Adapter{
		medium: medium,
		key:    config.CacheKey.SessionSnapshotKey(),
		log:    log.With().Str("component", "persistence").Logger(),
	}
}

// Save writes the complete snapshot as one value under one key.
// An inconsistent snapshot is never written; it clears instead.
func (a *Adapter) Save(s *model.SessionSnapshot) {
	if !s.Valid() {
		a.log.Debug().Msg("Refusing to persist partial snapshot, clearing instead")
		a.Clear()
		return
	}
	raw, err := Encode(s)
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to encode session snapshot")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.mirror = raw
	if a.medium == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mediumTimeout)
	defer cancel()
	if err := a.medium.SetItem(ctx, a.key, string(raw)); err != nil {
		a.log.Warn().Err(err).Msg("Durable medium unavailable, snapshot kept in memory")
	}
}

// Load returns the persisted snapshot, or ok=false when absent or inconsistent.
func (a *Adapter) Load() (*model.SessionSnapshot, bool) {
	raw, ok := a.Raw()
	if !ok {
		return nil, false
	}
	return Decode(raw)
}

// Raw returns the persisted bytes as stored, preferring the durable medium.
func (a *Adapter) Raw() ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.medium != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mediumTimeout)
		defer cancel()
		v, ok, err := a.medium.GetItem(ctx, a.key)
		if err == nil {
			if !ok {
				return nil, false
			}
			return []byte(v), true
		}
		a.log.Warn().Err(err).Msg("Durable medium unavailable, reading in-memory snapshot")
	}
	if a.mirror == nil {
		return nil, false
	}
	return a.mirror, true
}

// Clear removes the snapshot from the mirror and the medium.
func (a *Adapter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.mirror = nil
	if a.medium == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mediumTimeout)
	defer cancel()
	if err := a.medium.RemoveItem(ctx, a.key); err != nil {
		a.log.Warn().Err(err).Msg("Durable medium unavailable, snapshot cleared in memory only")
	}
}

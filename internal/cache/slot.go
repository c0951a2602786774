// Package cache holds the single most recent analysis result.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ibeckermayer/credify/internal/analysis"
	"github.com/ibeckermayer/credify/internal/store"
)

// Key is the one well-known key the slot persists under.
const Key = "lastAnalysis"

// KV is the persistence the slot writes through. *store.Store satisfies it.
type KV interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Slot holds at most one analysis.Result. Each Put replaces the whole
// record; nothing is merged or accumulated.
type Slot struct {
	kv      KV
	current atomic.Pointer[analysis.Result]
	writeMu sync.Mutex
}

// New returns an empty slot writing through to kv. kv may be nil for a
// memory-only slot.
func New(kv KV) *Slot {
	return &Slot{kv: kv}
}

// Open returns a slot primed with the record persisted in kv, if any. A
// record that cannot be read or decoded is logged and the slot starts
// empty; the next Put overwrites it.
func Open(ctx context.Context, kv KV, logger *slog.Logger) *Slot {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := New(kv)
	raw, err := kv.Get(ctx, Key)
	if errors.Is(err, store.ErrNotFound) {
		return s
	}
	if err != nil {
		logger.Warn("cached analysis not loaded", "key", Key, "error", err)
		return s
	}
	var r analysis.Result
	if err := json.Unmarshal(raw, &r); err != nil {
		logger.Warn("discarding corrupt cached analysis", "key", Key, "error", err)
		return s
	}
	s.current.Store(&r)
	return s
}

// Get returns a copy of the cached result. It never blocks.
func (s *Slot) Get() (analysis.Result, bool) {
	p := s.current.Load()
	if p == nil {
		return analysis.Result{}, false
	}
	return *p, true
}

// For returns the cached result only when it belongs to itemID.
func (s *Slot) For(itemID string) (analysis.Result, bool) {
	r, ok := s.Get()
	if !ok || r.ItemID != itemID {
		return analysis.Result{}, false
	}
	return r, true
}

// Put replaces the slot with r and persists it. Readers observe either the
// old or the new record, never a mix. The in-memory slot is updated even
// when persisting fails.
func (s *Slot) Put(ctx context.Context, r analysis.Result) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	r.Flags = append([]string(nil), r.Flags...)
	if r.Flags == nil {
		r.Flags = []string{}
	}
	s.current.Store(&r)

	if s.kv == nil {
		return nil
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode %s: %w", Key, err)
	}
	if err := s.kv.Put(ctx, Key, raw); err != nil {
		return fmt.Errorf("persist %s: %w", Key, err)
	}
	return nil
}

package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gitlab.com/yelinaung/ledger-core/internal/logger"
	"golang.org/x/sync/singleflight"
)

type cachedSnapshot struct {
	snapshot  RateSnapshot
	expiresAt time.Time
}

// RateTable caches rate snapshots per base currency. Expired snapshots keep
// being served while a refresh runs; a failed refresh leaves them in place.
type RateTable struct {
	source RateSource
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	snapshots map[string]cachedSnapshot
	onUpdate  func(base string)
}

// NewRateTable returns a table backed by source.
func NewRateTable(source RateSource, ttl time.Duration) *RateTable {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RateTable{
		source:    source,
		ttl:       ttl,
		now:       time.Now,
		snapshots: make(map[string]cachedSnapshot),
	}
}

// OnUpdate registers fn to run after every successful refresh.
func (t *RateTable) OnUpdate(fn func(base string)) {
	t.mu.Lock()
	t.onUpdate = fn
	t.mu.Unlock()
}

// Cached returns the last snapshot for base, fresh or not.
func (t *RateTable) Cached(base string) (RateSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.snapshots[NormalizeCode(base)]
	return entry.snapshot, ok
}

// Snapshot returns rates for base. A stale snapshot is returned as-is and a
// refresh is started in the background; the source is only called inline
// when nothing was ever fetched.
func (t *RateTable) Snapshot(ctx context.Context, base string) (RateSnapshot, error) {
	if t.source == nil {
		return RateSnapshot{}, errors.New("rate source is required")
	}
	key := NormalizeCode(base)

	t.mu.RLock()
	entry, ok := t.snapshots[key]
	t.mu.RUnlock()

	if ok {
		if !t.now().Before(entry.expiresAt) {
			go func() {
				if _, err := t.Refresh(context.WithoutCancel(ctx), key); err != nil {
					logger.Log.Warn().Err(err).Str("base", key).Msg("Background rate refresh failed; serving stale rates")
				}
			}()
		}
		return entry.snapshot, nil
	}

	snap, err := t.Refresh(ctx, key)
	if err != nil {
		return RateSnapshot{}, fmt.Errorf("%w: %s: %w", ErrRateUnavailable, key, err)
	}
	return snap, nil
}

// Refresh fetches base from the source and replaces the cached snapshot.
// Concurrent refreshes of one base share a single upstream call.
func (t *RateTable) Refresh(ctx context.Context, base string) (RateSnapshot, error) {
	key := NormalizeCode(base)

	v, err, _ := t.group.Do(key, func() (any, error) {
		// Detached so one short-deadline caller cannot fail the shared fetch.
		snap, err := t.source.FetchRates(context.WithoutCancel(ctx), key)
		if err != nil {
			return RateSnapshot{}, err
		}
		if err := snap.validate(); err != nil {
			return RateSnapshot{}, err
		}
		if snap.Base == "" {
			snap.Base = key
		}

		fetchedAt := t.now()
		t.mu.Lock()
		t.snapshots[key] = cachedSnapshot{
			snapshot:  snap,
			expiresAt: fetchedAt.Add(t.ttl),
		}
		onUpdate := t.onUpdate
		t.mu.Unlock()

		if onUpdate != nil {
			onUpdate(key)
		}
		return snap, nil
	})
	if err != nil {
		return RateSnapshot{}, err
	}
	return v.(RateSnapshot), nil
}

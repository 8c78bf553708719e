// Package cache keeps short-lived per-player power and collection snapshots
// derived from storage. Engine mutations invalidate them after commit.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/power"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
)

// DefaultTTL bounds how stale a snapshot may get without an invalidation.
const DefaultTTL = 5 * time.Minute

// Source is the read side of storage the cache derives snapshots from.
type Source interface {
	ListStacks(ctx context.Context, query storage.ListStacksQuery) ([]esprit.Stack, error)
	ListBases(ctx context.Context) ([]esprit.Base, error)
}

// CollectionStats summarizes a player's collection.
type CollectionStats struct {
	UniqueStacks int
	TotalCopies  int
	HighestTier  int
	ByElement    map[element.Element]int
	ByTier       map[int]int
}

type entry[T any] struct {
	value    T
	loadedAt time.Time
}

// Snapshots caches per-player totals. The zero value is not usable; call New.
type Snapshots struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu    sync.Mutex
	power map[string]entry[int]
	stats map[string]entry[CollectionStats]
	// gen counts invalidations per player so a load that raced with an
	// invalidation does not store its stale result.
	powerGen map[string]uint64
	statsGen map[string]uint64
}

// Option configures Snapshots.
type Option func(*Snapshots)

// WithTTL overrides DefaultTTL. Non-positive values disable expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Snapshots) { s.ttl = ttl }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Snapshots) { s.now = now }
}

// New builds a cache over source.
func New(source Source, opts ...Option) *Snapshots {
	s := &Snapshots{
		source:   source,
		ttl:      DefaultTTL,
		now:      time.Now,
		power:    map[string]entry[int]{},
		stats:    map[string]entry[CollectionStats]{},
		powerGen: map[string]uint64{},
		statsGen: map[string]uint64{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Snapshots) fresh(loadedAt time.Time) bool {
	return s.ttl <= 0 || s.now().Sub(loadedAt) < s.ttl
}

// TotalPower returns the summed power of every stack the player owns.
func (s *Snapshots) TotalPower(ctx context.Context, playerID string) (int, error) {
	s.mu.Lock()
	if e, ok := s.power[playerID]; ok && s.fresh(e.loadedAt) {
		s.mu.Unlock()
		return e.value, nil
	}
	gen := s.powerGen[playerID]
	s.mu.Unlock()

	v, err, _ := s.group.Do("power:"+playerID, func() (any, error) {
		stacks, bases, err := s.load(ctx, playerID)
		if err != nil {
			return 0, err
		}
		return power.Total(stacks, bases), nil
	})
	if err != nil {
		return 0, err
	}
	total := v.(int)

	s.mu.Lock()
	if s.powerGen[playerID] == gen {
		s.power[playerID] = entry[int]{value: total, loadedAt: s.now()}
	}
	s.mu.Unlock()
	return total, nil
}

// Collection returns collection statistics for the player.
func (s *Snapshots) Collection(ctx context.Context, playerID string) (CollectionStats, error) {
	s.mu.Lock()
	if e, ok := s.stats[playerID]; ok && s.fresh(e.loadedAt) {
		s.mu.Unlock()
		return e.value, nil
	}
	gen := s.statsGen[playerID]
	s.mu.Unlock()

	v, err, _ := s.group.Do("stats:"+playerID, func() (any, error) {
		stacks, err := s.source.ListStacks(ctx, storage.ListStacksQuery{OwnerID: playerID})
		if err != nil {
			return CollectionStats{}, fmt.Errorf("load stacks: %w", err)
		}
		return Summarize(stacks), nil
	})
	if err != nil {
		return CollectionStats{}, err
	}
	stats := v.(CollectionStats)

	s.mu.Lock()
	if s.statsGen[playerID] == gen {
		s.stats[playerID] = entry[CollectionStats]{value: stats, loadedAt: s.now()}
	}
	s.mu.Unlock()
	return stats, nil
}

func (s *Snapshots) load(ctx context.Context, playerID string) ([]esprit.Stack, map[string]esprit.Base, error) {
	stacks, err := s.source.ListStacks(ctx, storage.ListStacksQuery{OwnerID: playerID})
	if err != nil {
		return nil, nil, fmt.Errorf("load stacks: %w", err)
	}
	list, err := s.source.ListBases(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load bases: %w", err)
	}
	bases := make(map[string]esprit.Base, len(list))
	for _, b := range list {
		bases[b.ID] = b
	}
	return stacks, bases, nil
}

// InvalidatePlayerPower drops the cached power total.
func (s *Snapshots) InvalidatePlayerPower(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.power, playerID)
	s.powerGen[playerID]++
	s.group.Forget("power:" + playerID)
}

// InvalidateCollectionStats drops the cached collection statistics.
func (s *Snapshots) InvalidateCollectionStats(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stats, playerID)
	s.statsGen[playerID]++
	s.group.Forget("stats:" + playerID)
}

// Summarize computes collection statistics from stacks.
func Summarize(stacks []esprit.Stack) CollectionStats {
	stats := CollectionStats{
		ByElement: map[element.Element]int{},
		ByTier:    map[int]int{},
	}
	for _, st := range stacks {
		stats.UniqueStacks++
		stats.TotalCopies += st.Quantity
		stats.ByElement[st.Element] += st.Quantity
		stats.ByTier[st.Tier] += st.Quantity
		stats.HighestTier = max(stats.HighestTier, st.Tier)
	}
	return stats
}

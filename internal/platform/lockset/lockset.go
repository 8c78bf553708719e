// Package lockset serializes work on named resources inside one process.
//
// Keys are always acquired in sorted order, so two callers that need
// overlapping key sets can never deadlock on each other regardless of the
// order in which they list the keys.
package lockset

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Set holds one binary semaphore per active key.
type Set struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// New returns an empty lock set.
func New() *Set {
	return &Set{locks: map[string]*entry{}}
}

// Release unlocks everything a successful Acquire took.
type Release func()

// Acquire locks every key in sorted order, waiting until ctx ends.
// Duplicate and empty keys are ignored. On failure nothing stays locked.
func (s *Set) Acquire(ctx context.Context, keys ...string) (Release, error) {
	ordered := normalize(keys)
	held := make([]string, 0, len(ordered))

	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			s.release(held[i])
		}
	}

	for _, key := range ordered {
		e := s.ref(key)
		if err := e.sem.Acquire(ctx, 1); err != nil {
			s.unref(key)
			unlock()
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(unlock) }, nil
}

// Len reports how many keys currently have holders or waiters.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

func (s *Set) ref(key string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.locks[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		s.locks[key] = e
	}
	e.refs++
	return e
}

func (s *Set) unref(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.locks[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(s.locks, key)
	}
}

func (s *Set) release(key string) {
	s.mu.Lock()
	e, ok := s.locks[key]
	s.mu.Unlock()
	if !ok {
		return
	}
	e.sem.Release(1)
	s.unref(key)
}

func normalize(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// PlayerKey names the lock guarding a player row and its balances.
func PlayerKey(playerID string) string {
	return "player:" + playerID
}

// StackKey names the lock guarding one creature stack row.
func StackKey(stackID string) string {
	return "stack:" + stackID
}

// Package memory provides an in-process forge store. Transactions run one at
// a time against a copy of the state that replaces the live state on commit.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
)

type state struct {
	players      map[string]esprit.Player
	stacks       map[string]esprit.Stack
	bases        map[string]esprit.Base
	entries      []storage.FragmentEntry
	nextEntryID  int64
	transactions []storage.TransactionRecord
}

func (s *state) clone() *state {
	out := &state{
		players:      make(map[string]esprit.Player, len(s.players)),
		stacks:       maps.Clone(s.stacks),
		bases:        maps.Clone(s.bases),
		entries:      slices.Clone(s.entries),
		nextEntryID:  s.nextEntryID,
		transactions: slices.Clone(s.transactions),
	}
	for id, p := range s.players {
		out.players[id] = p.Clone()
	}
	return out
}

// Store is a mutex-guarded in-memory storage.Store. txMu serializes every
// writer; mu guards the state pointer for readers.
type Store struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	state  *state
	closed atomic.Bool
}

// New returns an empty store.
func New() *Store {
	return &Store{state: &state{
		players: map[string]esprit.Player{},
		stacks:  map[string]esprit.Stack{},
		bases:   map[string]esprit.Base{},
	}}
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.state == nil {
		return fmt.Errorf("storage is not configured")
	}
	if s.closed.Load() {
		return fmt.Errorf("storage is closed")
	}
	return nil
}

// InTx runs fn against a private copy and publishes it when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.state.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &tx{state: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = working
	s.mu.Unlock()
	return nil
}

// GetPlayer returns a copy of one player.
func (s *Store) GetPlayer(ctx context.Context, playerID string) (esprit.Player, error) {
	if err := s.ready(ctx); err != nil {
		return esprit.Player{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.players[strings.TrimSpace(playerID)]
	if !ok {
		return esprit.Player{}, storage.ErrNotFound
	}
	return p.Clone(), nil
}

// GetStack returns one stack.
func (s *Store) GetStack(ctx context.Context, stackID string) (esprit.Stack, error) {
	if err := s.ready(ctx); err != nil {
		return esprit.Stack{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	stack, ok := s.state.stacks[strings.TrimSpace(stackID)]
	if !ok {
		return esprit.Stack{}, storage.ErrNotFound
	}
	return stack, nil
}

// ListStacks filters, orders and pages a player's stacks.
func (s *Store) ListStacks(ctx context.Context, query storage.ListStacksQuery) ([]esprit.Stack, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	ownerID := strings.TrimSpace(query.OwnerID)
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}
	if _, ok := storage.StackOrderSQL(query.OrderBy); !ok {
		return nil, fmt.Errorf("unsupported order: %s", query.OrderBy)
	}

	s.mu.RLock()
	var stacks []esprit.Stack
	for _, stack := range s.state.stacks {
		if stack.OwnerID == ownerID && query.Filter.Match(stack) {
			stacks = append(stacks, stack)
		}
	}
	s.mu.RUnlock()

	storage.SortStacks(stacks, query.OrderBy)
	offset := min(max(query.Offset, 0), len(stacks))
	stacks = stacks[offset:]
	if query.Limit > 0 && len(stacks) > query.Limit {
		stacks = stacks[:query.Limit]
	}
	return stacks, nil
}

// ListBases returns the catalog sorted by tier then id.
func (s *Store) ListBases(ctx context.Context) ([]esprit.Base, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	bases := slices.Collect(maps.Values(s.state.bases))
	s.mu.RUnlock()
	slices.SortFunc(bases, func(a, b esprit.Base) int {
		if a.Tier != b.Tier {
			return a.Tier - b.Tier
		}
		return strings.Compare(a.ID, b.ID)
	})
	return bases, nil
}

// PutBases upserts catalog entries.
func (s *Store) PutBases(ctx context.Context, bases []esprit.Base) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	for _, base := range bases {
		if err := base.Validate(); err != nil {
			return err
		}
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, base := range bases {
		s.state.bases[base.ID] = base
	}
	return nil
}

// ListFragmentEntries returns a player's journal, newest first.
func (s *Store) ListFragmentEntries(ctx context.Context, playerID string, limit int) ([]storage.FragmentEntry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []storage.FragmentEntry
	for i := len(s.state.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if entry := s.state.entries[i]; entry.PlayerID == playerID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// RecordTransaction appends one transaction log line.
func (s *Store) RecordTransaction(ctx context.Context, record storage.TransactionRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("transaction id is required")
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.state.transactions {
		if existing.ID == record.ID {
			return storage.ErrAlreadyExists
		}
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.Inputs = slices.Clone(record.Inputs)
	record.Detail = maps.Clone(record.Detail)
	s.state.transactions = append(s.state.transactions, record)
	return nil
}

// ListTransactions returns a player's transaction log, newest first.
func (s *Store) ListTransactions(ctx context.Context, playerID string, limit int) ([]storage.TransactionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []storage.TransactionRecord
	for i := len(s.state.transactions) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if record := s.state.transactions[i]; record.PlayerID == playerID {
			out = append(out, record)
		}
	}
	return out, nil
}

// Close marks the store unusable.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.closed.Store(true)
	return nil
}

type tx struct {
	state *state
}

func (t *tx) GetPlayerForUpdate(_ context.Context, playerID string) (esprit.Player, error) {
	p, ok := t.state.players[strings.TrimSpace(playerID)]
	if !ok {
		return esprit.Player{}, storage.ErrNotFound
	}
	return p.Clone(), nil
}

func (t *tx) InsertPlayer(_ context.Context, player esprit.Player) error {
	if strings.TrimSpace(player.ID) == "" {
		return fmt.Errorf("player id is required")
	}
	if _, exists := t.state.players[player.ID]; exists {
		return storage.ErrAlreadyExists
	}
	t.state.players[player.ID] = player.Clone()
	return nil
}

func (t *tx) SavePlayer(_ context.Context, player esprit.Player) error {
	if _, ok := t.state.players[player.ID]; !ok {
		return storage.ErrNotFound
	}
	if player.Currency < 0 {
		return esprit.Invariant("storage.save_player", "player %s currency %d is negative", player.ID, player.Currency)
	}
	for e, amount := range player.ElementFragments {
		if amount < 0 {
			return esprit.Invariant("storage.save_player", "player %s balance %s is %d", player.ID, esprit.ElementKey(e), amount)
		}
	}
	for tr, amount := range player.TierFragments {
		if amount < 0 {
			return esprit.Invariant("storage.save_player", "player %s balance %s is %d", player.ID, esprit.TierKey(tr), amount)
		}
	}
	t.state.players[player.ID] = player.Clone()
	return nil
}

func (t *tx) GetStackForUpdate(_ context.Context, stackID string) (esprit.Stack, error) {
	stack, ok := t.state.stacks[strings.TrimSpace(stackID)]
	if !ok {
		return esprit.Stack{}, storage.ErrNotFound
	}
	return stack, nil
}

func (t *tx) FindStack(_ context.Context, key esprit.StackKey) (esprit.Stack, error) {
	for _, stack := range t.state.stacks {
		if stack.Key() == key {
			return stack, nil
		}
	}
	return esprit.Stack{}, storage.ErrNotFound
}

func (t *tx) SaveStack(_ context.Context, stack esprit.Stack) error {
	if err := stack.Validate(); err != nil {
		return esprit.Invariant("storage.save_stack", "%v", err)
	}
	if _, ok := t.state.players[stack.OwnerID]; !ok {
		return fmt.Errorf("save stack %s: owner %s does not exist", stack.ID, stack.OwnerID)
	}
	if _, ok := t.state.bases[stack.BaseID]; !ok {
		return fmt.Errorf("save stack %s: base %s does not exist", stack.ID, stack.BaseID)
	}
	for id, existing := range t.state.stacks {
		if id != stack.ID && existing.Key() == stack.Key() {
			return storage.ErrAlreadyExists
		}
	}
	if existing, ok := t.state.stacks[stack.ID]; ok {
		existing.Quantity = stack.Quantity
		existing.AwakeningLevel = stack.AwakeningLevel
		existing.UpdatedAt = stack.UpdatedAt
		stack = existing
	}
	t.state.stacks[stack.ID] = stack
	return nil
}

func (t *tx) DeleteStack(_ context.Context, stackID string) error {
	if _, ok := t.state.stacks[stackID]; !ok {
		return storage.ErrNotFound
	}
	delete(t.state.stacks, stackID)
	return nil
}

func (t *tx) GetBase(_ context.Context, baseID string) (esprit.Base, error) {
	base, ok := t.state.bases[strings.TrimSpace(baseID)]
	if !ok {
		return esprit.Base{}, storage.ErrNotFound
	}
	return base, nil
}

func (t *tx) FindBases(_ context.Context, tier int, e element.Element) ([]esprit.Base, error) {
	var out []esprit.Base
	for _, base := range t.state.bases {
		if base.Tier == tier && base.Element == e {
			out = append(out, base)
		}
	}
	slices.SortFunc(out, func(a, b esprit.Base) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *tx) AppendFragmentEntry(_ context.Context, entry storage.FragmentEntry) error {
	if entry.Delta == 0 {
		return fmt.Errorf("fragment entry delta must not be zero")
	}
	t.state.nextEntryID++
	entry.ID = t.state.nextEntryID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	t.state.entries = append(t.state.entries, entry)
	return nil
}

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*tx)(nil)
)

// Package storage defines persistence contracts for the forge service.
//
// Engine operations run inside Store.InTx and touch state only through Tx,
// which plays the role of both the stack repository and the player ledger.
// Implementations live in subpackages (sqlite, memory).
//
// Common error types:
//   - ErrNotFound: requested record is missing
//   - ErrAlreadyExists: a uniqueness-constrained record already exists
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/storage/filter"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// FragmentEntry is one journaled fragment balance change.
type FragmentEntry struct {
	ID        int64
	PlayerID  string
	Key       esprit.FragmentKey
	Delta     int
	Reason    string
	CreatedAt time.Time
}

// TransactionRecord is one persisted forge transaction log line.
type TransactionRecord struct {
	ID        string
	Kind      string
	PlayerID  string
	Inputs    []string
	Succeeded bool
	Cost      int64
	Result    string
	Detail    map[string]string
	CreatedAt time.Time
}

// ListStacksQuery selects one page of a player's stacks.
type ListStacksQuery struct {
	OwnerID string
	Filter  *filter.Expr
	// OrderBy is one of StackOrders; empty means DefaultStackOrder.
	OrderBy string
	Limit   int
	Offset  int
}

// Tx is the transactional view engine operations mutate. Reads made through
// Tx hold the write lock until the transaction ends.
type Tx interface {
	GetPlayerForUpdate(ctx context.Context, playerID string) (esprit.Player, error)
	InsertPlayer(ctx context.Context, player esprit.Player) error
	SavePlayer(ctx context.Context, player esprit.Player) error

	GetStackForUpdate(ctx context.Context, stackID string) (esprit.Stack, error)
	// FindStack returns the stack matching key or ErrNotFound.
	FindStack(ctx context.Context, key esprit.StackKey) (esprit.Stack, error)
	// SaveStack inserts or updates a stack by id.
	SaveStack(ctx context.Context, stack esprit.Stack) error
	DeleteStack(ctx context.Context, stackID string) error

	GetBase(ctx context.Context, baseID string) (esprit.Base, error)
	// FindBases returns every base at tier and element, sorted by id.
	FindBases(ctx context.Context, tier int, e element.Element) ([]esprit.Base, error)

	AppendFragmentEntry(ctx context.Context, entry FragmentEntry) error
}

// Store is the forge persistence boundary.
type Store interface {
	// InTx runs fn in one transaction. fn's error rolls back; nil commits.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetPlayer(ctx context.Context, playerID string) (esprit.Player, error)
	GetStack(ctx context.Context, stackID string) (esprit.Stack, error)
	ListStacks(ctx context.Context, query ListStacksQuery) ([]esprit.Stack, error)

	ListBases(ctx context.Context) ([]esprit.Base, error)
	// PutBases upserts catalog entries by id.
	PutBases(ctx context.Context, bases []esprit.Base) error

	// ListFragmentEntries returns a player's journal, newest first.
	ListFragmentEntries(ctx context.Context, playerID string, limit int) ([]FragmentEntry, error)

	RecordTransaction(ctx context.Context, record TransactionRecord) error
	// ListTransactions returns a player's transaction log, newest first.
	ListTransactions(ctx context.Context, playerID string, limit int) ([]TransactionRecord, error)

	Close() error
}

// Package sqlite provides a SQLite-backed forge storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/louisbranch/espritforge/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/espritforge/internal/platform/timeouts"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
	"github.com/louisbranch/espritforge/internal/services/forge/storage/sqlite/migrations"
)

// Store persists forge state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite forge store and applies embedded migrations.
//
// Transactions begin IMMEDIATE, so the first read inside InTx already holds
// the database write lock.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL"+
		"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_txlock=immediate",
		cleanPath, timeouts.SQLiteBusy.Milliseconds())
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// InTx runs fn inside one IMMEDIATE transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(ctx, &txStore{q: sqlTx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetPlayer returns one player with fragment balances.
func (s *Store) GetPlayer(ctx context.Context, playerID string) (esprit.Player, error) {
	if err := s.ready(ctx); err != nil {
		return esprit.Player{}, err
	}
	return getPlayer(ctx, s.sqlDB, playerID)
}

// GetStack returns one stack by id.
func (s *Store) GetStack(ctx context.Context, stackID string) (esprit.Stack, error) {
	if err := s.ready(ctx); err != nil {
		return esprit.Stack{}, err
	}
	return getStack(ctx, s.sqlDB, stackID)
}

// ListStacks returns one page of a player's stacks.
func (s *Store) ListStacks(ctx context.Context, query storage.ListStacksQuery) ([]esprit.Stack, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	ownerID := strings.TrimSpace(query.OwnerID)
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}
	orderSQL, ok := storage.StackOrderSQL(query.OrderBy)
	if !ok {
		return nil, fmt.Errorf("unsupported order: %s", query.OrderBy)
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + stackColumns + ` FROM esprit_stacks WHERE owner_id = ?`)
	args := []any{ownerID}
	if cond := query.Filter.SQL(); cond.Clause != "" {
		b.WriteString(" AND " + cond.Clause)
		args = append(args, cond.Params...)
	}
	b.WriteString(" ORDER BY " + orderSQL)
	limit := query.Limit
	if limit <= 0 {
		limit = -1
	}
	b.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, max(query.Offset, 0))

	rows, err := s.sqlDB.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}
	defer rows.Close()

	var stacks []esprit.Stack
	for rows.Next() {
		stack, err := scanStack(rows)
		if err != nil {
			return nil, fmt.Errorf("list stacks: %w", err)
		}
		stacks = append(stacks, stack)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}
	return stacks, nil
}

// ListBases returns the whole catalog sorted by tier then id.
func (s *Store) ListBases(ctx context.Context) ([]esprit.Base, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+baseColumns+` FROM esprit_bases ORDER BY tier ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list bases: %w", err)
	}
	return collectBases(rows)
}

// PutBases upserts catalog entries in one transaction.
func (s *Store) PutBases(ctx context.Context, bases []esprit.Base) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	for _, base := range bases {
		if err := base.Validate(); err != nil {
			return err
		}
	}
	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()
	for _, base := range bases {
		_, err := sqlTx.ExecContext(ctx,
			`INSERT INTO esprit_bases (id, name, element, tier, base_attack, base_defense, base_hp, description)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   name = excluded.name,
			   element = excluded.element,
			   tier = excluded.tier,
			   base_attack = excluded.base_attack,
			   base_defense = excluded.base_defense,
			   base_hp = excluded.base_hp,
			   description = excluded.description`,
			base.ID, base.Name, string(base.Element), base.Tier,
			base.BaseAttack, base.BaseDefense, base.BaseHP, base.Description,
		)
		if err != nil {
			return fmt.Errorf("put base %s: %w", base.ID, err)
		}
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit bases: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)

package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
)

// ListFragmentEntries returns a player's fragment journal, newest first.
func (s *Store) ListFragmentEntries(ctx context.Context, playerID string, limit int) ([]storage.FragmentEntry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, player_id, fragment_key, delta, reason, created_at
		   FROM fragment_entries
		  WHERE player_id = ?
		  ORDER BY id DESC
		  LIMIT ?`,
		strings.TrimSpace(playerID), limit)
	if err != nil {
		return nil, fmt.Errorf("list fragment entries: %w", err)
	}
	defer rows.Close()

	var entries []storage.FragmentEntry
	for rows.Next() {
		var (
			entry     storage.FragmentEntry
			rawKey    string
			createdAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.PlayerID, &rawKey, &entry.Delta, &entry.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("list fragment entries: %w", err)
		}
		if entry.Key, err = esprit.ParseFragmentKey(rawKey); err != nil {
			return nil, fmt.Errorf("list fragment entries: %w", err)
		}
		entry.CreatedAt = fromMillis(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list fragment entries: %w", err)
	}
	return entries, nil
}

// RecordTransaction appends one transaction log line.
func (s *Store) RecordTransaction(ctx context.Context, record storage.TransactionRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("transaction id is required")
	}
	inputs, err := json.Marshal(nonNilStrings(record.Inputs))
	if err != nil {
		return fmt.Errorf("encode transaction inputs: %w", err)
	}
	detail := record.Detail
	if detail == nil {
		detail = map[string]string{}
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("encode transaction detail: %w", err)
	}
	createdAt, _ := stamps(record.CreatedAt, record.CreatedAt)
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO forge_transactions (id, kind, player_id, inputs, succeeded, cost, result, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Kind, record.PlayerID, string(inputs), record.Succeeded, record.Cost,
		record.Result, string(detailJSON), toMillis(createdAt))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

// ListTransactions returns a player's transaction log, newest first.
func (s *Store) ListTransactions(ctx context.Context, playerID string, limit int) ([]storage.TransactionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, kind, player_id, inputs, succeeded, cost, result, detail, created_at
		   FROM forge_transactions
		  WHERE player_id = ?
		  ORDER BY created_at DESC, id DESC
		  LIMIT ?`,
		strings.TrimSpace(playerID), limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var records []storage.TransactionRecord
	for rows.Next() {
		var (
			record     storage.TransactionRecord
			inputs     string
			detailJSON string
			createdAt  int64
		)
		if err := rows.Scan(&record.ID, &record.Kind, &record.PlayerID, &inputs, &record.Succeeded,
			&record.Cost, &record.Result, &detailJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		if err := json.Unmarshal([]byte(inputs), &record.Inputs); err != nil {
			return nil, fmt.Errorf("decode transaction inputs: %w", err)
		}
		if err := json.Unmarshal([]byte(detailJSON), &record.Detail); err != nil {
			return nil, fmt.Errorf("decode transaction detail: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return records, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

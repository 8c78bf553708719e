package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
)

const stackColumns = `id, base_id, owner_id, quantity, tier, awakening_level, element, created_at, updated_at`

const baseColumns = `id, name, element, tier, base_attack, base_defense, base_hp, description`

func scanStack(row rowScanner) (esprit.Stack, error) {
	var (
		stack     esprit.Stack
		elem      string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&stack.ID,
		&stack.BaseID,
		&stack.OwnerID,
		&stack.Quantity,
		&stack.Tier,
		&stack.AwakeningLevel,
		&elem,
		&createdAt,
		&updatedAt,
	); err != nil {
		return esprit.Stack{}, err
	}
	stack.Element = element.Element(elem)
	stack.CreatedAt = fromMillis(createdAt)
	stack.UpdatedAt = fromMillis(updatedAt)
	return stack, nil
}

func scanBase(row rowScanner) (esprit.Base, error) {
	var (
		base esprit.Base
		elem string
	)
	if err := row.Scan(
		&base.ID,
		&base.Name,
		&elem,
		&base.Tier,
		&base.BaseAttack,
		&base.BaseDefense,
		&base.BaseHP,
		&base.Description,
	); err != nil {
		return esprit.Base{}, err
	}
	base.Element = element.Element(elem)
	return base, nil
}

func collectBases(rows *sql.Rows) ([]esprit.Base, error) {
	defer rows.Close()
	var bases []esprit.Base
	for rows.Next() {
		base, err := scanBase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan base: %w", err)
		}
		bases = append(bases, base)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan bases: %w", err)
	}
	return bases, nil
}

func getStack(ctx context.Context, q queryer, stackID string) (esprit.Stack, error) {
	stackID = strings.TrimSpace(stackID)
	if stackID == "" {
		return esprit.Stack{}, fmt.Errorf("stack id is required")
	}
	stack, err := scanStack(q.QueryRowContext(ctx,
		`SELECT `+stackColumns+` FROM esprit_stacks WHERE id = ?`, stackID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return esprit.Stack{}, storage.ErrNotFound
		}
		return esprit.Stack{}, fmt.Errorf("get stack: %w", err)
	}
	return stack, nil
}

func getPlayer(ctx context.Context, q queryer, playerID string) (esprit.Player, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return esprit.Player{}, fmt.Errorf("player id is required")
	}
	var (
		player    esprit.Player
		createdAt int64
		updatedAt int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, currency, total_fusions, successful_fusions, total_awakenings, created_at, updated_at
		   FROM players
		  WHERE id = ?`,
		playerID,
	).Scan(
		&player.ID,
		&player.Currency,
		&player.TotalFusions,
		&player.SuccessfulFusions,
		&player.TotalAwakenings,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return esprit.Player{}, storage.ErrNotFound
		}
		return esprit.Player{}, fmt.Errorf("get player: %w", err)
	}
	player.CreatedAt = fromMillis(createdAt)
	player.UpdatedAt = fromMillis(updatedAt)
	player.ElementFragments = map[element.Element]int{}
	player.TierFragments = map[int]int{}

	rows, err := q.QueryContext(ctx,
		`SELECT fragment_key, amount FROM player_fragments WHERE player_id = ?`, playerID)
	if err != nil {
		return esprit.Player{}, fmt.Errorf("get player fragments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rawKey string
			amount int
		)
		if err := rows.Scan(&rawKey, &amount); err != nil {
			return esprit.Player{}, fmt.Errorf("scan player fragments: %w", err)
		}
		key, err := esprit.ParseFragmentKey(rawKey)
		if err != nil {
			return esprit.Player{}, fmt.Errorf("player %s: %w", playerID, err)
		}
		player.SetFragments(key, amount)
	}
	if err := rows.Err(); err != nil {
		return esprit.Player{}, fmt.Errorf("scan player fragments: %w", err)
	}
	return player, nil
}

// txStore implements storage.Tx on an open transaction.
type txStore struct {
	q queryer
}

func (t *txStore) GetPlayerForUpdate(ctx context.Context, playerID string) (esprit.Player, error) {
	return getPlayer(ctx, t.q, playerID)
}

func (t *txStore) InsertPlayer(ctx context.Context, player esprit.Player) error {
	if strings.TrimSpace(player.ID) == "" {
		return fmt.Errorf("player id is required")
	}
	createdAt, updatedAt := stamps(player.CreatedAt, player.UpdatedAt)
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO players (id, currency, total_fusions, successful_fusions, total_awakenings, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		player.ID, player.Currency, player.TotalFusions, player.SuccessfulFusions, player.TotalAwakenings,
		toMillis(createdAt), toMillis(updatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert player: %w", err)
	}
	return t.writeFragments(ctx, player)
}

func (t *txStore) SavePlayer(ctx context.Context, player esprit.Player) error {
	if player.Currency < 0 {
		return esprit.Invariant("storage.save_player", "player %s currency %d is negative", player.ID, player.Currency)
	}
	result, err := t.q.ExecContext(ctx,
		`UPDATE players
		    SET currency = ?, total_fusions = ?, successful_fusions = ?, total_awakenings = ?, updated_at = ?
		  WHERE id = ?`,
		player.Currency, player.TotalFusions, player.SuccessfulFusions, player.TotalAwakenings,
		toMillis(player.UpdatedAt), player.ID,
	)
	if err != nil {
		return fmt.Errorf("save player: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save player: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	if _, err := t.q.ExecContext(ctx, `DELETE FROM player_fragments WHERE player_id = ?`, player.ID); err != nil {
		return fmt.Errorf("clear player fragments: %w", err)
	}
	return t.writeFragments(ctx, player)
}

func (t *txStore) writeFragments(ctx context.Context, player esprit.Player) error {
	write := func(key esprit.FragmentKey, amount int) error {
		if amount < 0 {
			return esprit.Invariant("storage.save_player", "player %s balance %s is %d", player.ID, key, amount)
		}
		if amount == 0 {
			return nil
		}
		_, err := t.q.ExecContext(ctx,
			`INSERT INTO player_fragments (player_id, fragment_key, amount) VALUES (?, ?, ?)`,
			player.ID, key.String(), amount)
		if err != nil {
			return fmt.Errorf("write fragments %s: %w", key, err)
		}
		return nil
	}
	for e, amount := range player.ElementFragments {
		if err := write(esprit.ElementKey(e), amount); err != nil {
			return err
		}
	}
	for tr, amount := range player.TierFragments {
		if err := write(esprit.TierKey(tr), amount); err != nil {
			return err
		}
	}
	return nil
}

func (t *txStore) GetStackForUpdate(ctx context.Context, stackID string) (esprit.Stack, error) {
	return getStack(ctx, t.q, stackID)
}

func (t *txStore) FindStack(ctx context.Context, key esprit.StackKey) (esprit.Stack, error) {
	stack, err := scanStack(t.q.QueryRowContext(ctx,
		`SELECT `+stackColumns+`
		   FROM esprit_stacks
		  WHERE owner_id = ? AND base_id = ? AND tier = ? AND element = ?`,
		key.OwnerID, key.BaseID, key.Tier, string(key.Element),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return esprit.Stack{}, storage.ErrNotFound
		}
		return esprit.Stack{}, fmt.Errorf("find stack: %w", err)
	}
	return stack, nil
}

func (t *txStore) SaveStack(ctx context.Context, stack esprit.Stack) error {
	if err := stack.Validate(); err != nil {
		return esprit.Invariant("storage.save_stack", "%v", err)
	}
	createdAt, updatedAt := stamps(stack.CreatedAt, stack.UpdatedAt)
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO esprit_stacks (`+stackColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   quantity = excluded.quantity,
		   awakening_level = excluded.awakening_level,
		   updated_at = excluded.updated_at`,
		stack.ID, stack.BaseID, stack.OwnerID, stack.Quantity, stack.Tier, stack.AwakeningLevel,
		string(stack.Element), toMillis(createdAt), toMillis(updatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("save stack: %w", err)
	}
	return nil
}

func (t *txStore) DeleteStack(ctx context.Context, stackID string) error {
	result, err := t.q.ExecContext(ctx, `DELETE FROM esprit_stacks WHERE id = ?`, stackID)
	if err != nil {
		return fmt.Errorf("delete stack: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete stack: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *txStore) GetBase(ctx context.Context, baseID string) (esprit.Base, error) {
	base, err := scanBase(t.q.QueryRowContext(ctx,
		`SELECT `+baseColumns+` FROM esprit_bases WHERE id = ?`, strings.TrimSpace(baseID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return esprit.Base{}, storage.ErrNotFound
		}
		return esprit.Base{}, fmt.Errorf("get base: %w", err)
	}
	return base, nil
}

func (t *txStore) FindBases(ctx context.Context, tier int, e element.Element) ([]esprit.Base, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT `+baseColumns+` FROM esprit_bases WHERE tier = ? AND element = ? ORDER BY id ASC`,
		tier, string(e))
	if err != nil {
		return nil, fmt.Errorf("find bases: %w", err)
	}
	return collectBases(rows)
}

func (t *txStore) AppendFragmentEntry(ctx context.Context, entry storage.FragmentEntry) error {
	if entry.Delta == 0 {
		return fmt.Errorf("fragment entry delta must not be zero")
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO fragment_entries (player_id, fragment_key, delta, reason, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.PlayerID, entry.Key.String(), entry.Delta, entry.Reason, toMillis(createdAt))
	if err != nil {
		return fmt.Errorf("append fragment entry: %w", err)
	}
	return nil
}

func stamps(createdAt, updatedAt time.Time) (time.Time, time.Time) {
	if createdAt.IsZero() && updatedAt.IsZero() {
		now := time.Now().UTC()
		return now, now
	}
	if createdAt.IsZero() {
		createdAt = updatedAt
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	return createdAt, updatedAt
}

var _ storage.Tx = (*txStore)(nil)

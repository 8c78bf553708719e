package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	apperrors "github.com/louisbranch/espritforge/internal/platform/errors"
	"github.com/louisbranch/espritforge/internal/services/forge/audit"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
)

// CreatePlayer registers a player with a starting balance.
func (e *Engine) CreatePlayer(ctx context.Context, playerID string, currency int64) (esprit.Player, error) {
	trimIDs(&playerID)
	if err := requireIDs("player_id", playerID); err != nil {
		return esprit.Player{}, err
	}
	if currency < 0 {
		return esprit.Player{}, apperrors.New(apperrors.CodeCurrencyInvalidAmount, "starting currency must not be negative")
	}
	player := esprit.NewPlayer(playerID, currency, e.now())
	err := e.mutate(ctx, playerID, nil, func(ctx context.Context, tx storage.Tx) (audit.Record, error) {
		if err := tx.InsertPlayer(ctx, player); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return audit.Record{}, apperrors.WithMetadata(apperrors.CodePlayerExists,
					fmt.Sprintf("player %s already exists", playerID), map[string]string{"PlayerID": playerID})
			}
			return audit.Record{}, fmt.Errorf("insert player: %w", err)
		}
		return audit.Record{
			Kind:      audit.KindPlayerSetup,
			PlayerID:  playerID,
			Succeeded: true,
			Detail:    map[string]string{"currency": strconv.FormatInt(currency, 10)},
		}, nil
	})
	if err != nil {
		return esprit.Player{}, err
	}
	return player, nil
}

// GrantCurrency credits currency, e.g. quest or battle rewards.
func (e *Engine) GrantCurrency(ctx context.Context, playerID string, amount int64) (esprit.Player, error) {
	trimIDs(&playerID)
	if err := requireIDs("player_id", playerID); err != nil {
		return esprit.Player{}, err
	}
	var player esprit.Player
	err := e.mutate(ctx, playerID, nil, func(ctx context.Context, tx storage.Tx) (audit.Record, error) {
		var err error
		if player, err = loadPlayer(ctx, tx, playerID); err != nil {
			return audit.Record{}, err
		}
		if err := Grant(&player, amount); err != nil {
			return audit.Record{}, err
		}
		player.UpdatedAt = e.now()
		if err := tx.SavePlayer(ctx, player); err != nil {
			return audit.Record{}, fmt.Errorf("save player: %w", err)
		}
		return audit.Record{
			Kind:      audit.KindGrant,
			PlayerID:  playerID,
			Succeeded: true,
			Detail:    map[string]string{"currency": strconv.FormatInt(amount, 10)},
		}, nil
	})
	if err != nil {
		return esprit.Player{}, err
	}
	return player, nil
}

// GrantFragments credits fragments from outside fusion, such as boss
// victories or duplicate captures.
func (e *Engine) GrantFragments(ctx context.Context, playerID string, key esprit.FragmentKey, amount int, reason string) (esprit.Player, error) {
	trimIDs(&playerID)
	if err := requireIDs("player_id", playerID); err != nil {
		return esprit.Player{}, err
	}
	switch reason {
	case ReasonBossVictory, ReasonEchoDuplicate, ReasonAdminGrant:
	case "":
		reason = ReasonAdminGrant
	default:
		return esprit.Player{}, apperrors.WithMetadata(apperrors.CodeRequestInvalid,
			fmt.Sprintf("unknown fragment reason %q", reason), map[string]string{"Field": "reason"})
	}
	var player esprit.Player
	err := e.mutate(ctx, playerID, nil, func(ctx context.Context, tx storage.Tx) (audit.Record, error) {
		var err error
		if player, err = loadPlayer(ctx, tx, playerID); err != nil {
			return audit.Record{}, err
		}
		now := e.now()
		if err := NewFragmentLedger(tx, now).Add(ctx, &player, key, amount, reason); err != nil {
			return audit.Record{}, err
		}
		player.UpdatedAt = now
		if err := tx.SavePlayer(ctx, player); err != nil {
			return audit.Record{}, fmt.Errorf("save player: %w", err)
		}
		return audit.Record{
			Kind:      audit.KindGrant,
			PlayerID:  playerID,
			Succeeded: true,
			Detail: map[string]string{
				"fragment_key": key.String(),
				"amount":       strconv.Itoa(amount),
				"reason":       reason,
			},
		}, nil
	})
	if err != nil {
		return esprit.Player{}, err
	}
	return player, nil
}

// CaptureEsprit adds one copy of a catalog base to the player's collection,
// stacking with an identical existing stack.
func (e *Engine) CaptureEsprit(ctx context.Context, playerID, baseID string) (esprit.Stack, error) {
	trimIDs(&playerID, &baseID)
	if err := requireIDs("player_id", playerID, "base_id", baseID); err != nil {
		return esprit.Stack{}, err
	}
	var stack esprit.Stack
	err := e.mutate(ctx, playerID, nil, func(ctx context.Context, tx storage.Tx) (audit.Record, error) {
		player, err := loadPlayer(ctx, tx, playerID)
		if err != nil {
			return audit.Record{}, err
		}
		base, err := tx.GetBase(ctx, baseID)
		if errors.Is(err, storage.ErrNotFound) {
			return audit.Record{}, apperrors.WithMetadata(apperrors.CodeBaseNotFound,
				fmt.Sprintf("base %s not found", baseID), map[string]string{"BaseID": baseID})
		}
		if err != nil {
			return audit.Record{}, fmt.Errorf("load base: %w", err)
		}
		now := e.now()
		if stack, err = e.addCopy(ctx, tx, player.ID, base, now); err != nil {
			return audit.Record{}, err
		}
		return audit.Record{
			Kind:      audit.KindCapture,
			PlayerID:  playerID,
			Inputs:    []string{baseID},
			Succeeded: true,
			Result:    stack.ID,
		}, nil
	})
	if err != nil {
		return esprit.Stack{}, err
	}
	return stack, nil
}

package engine

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	apperrors "github.com/louisbranch/espritforge/internal/platform/errors"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
)

// Fragment reasons written outside fusion.
const (
	ReasonBossVictory   = "boss_victory"
	ReasonEchoDuplicate = "echo_duplicate"
	ReasonAdminGrant    = "admin_grant"
)

// Spend debits currency from a locked player.
func Spend(player *esprit.Player, amount int64) error {
	if amount < 0 {
		return esprit.Invariant("ledger.spend", "negative spend %d", amount)
	}
	if player.Currency < amount {
		return apperrors.WithMetadata(apperrors.CodeInsufficientFunds,
			fmt.Sprintf("player %s has %d, needs %d", player.ID, player.Currency, amount),
			map[string]string{"Cost": strconv.FormatInt(amount, 10), "Balance": strconv.FormatInt(player.Currency, 10)})
	}
	player.Currency -= amount
	return nil
}

// Grant credits currency to a locked player.
func Grant(player *esprit.Player, amount int64) error {
	if amount <= 0 {
		return apperrors.New(apperrors.CodeCurrencyInvalidAmount, fmt.Sprintf("grant amount %d must be positive", amount))
	}
	if player.Currency > math.MaxInt64-amount {
		return apperrors.New(apperrors.CodeCurrencyInvalidAmount, "grant would overflow the balance")
	}
	player.Currency += amount
	return nil
}

// FragmentLedger changes fragment balances on a locked player and journals
// every change in the same transaction.
type FragmentLedger struct {
	tx  storage.Tx
	now time.Time
}

// NewFragmentLedger binds a ledger to tx.
func NewFragmentLedger(tx storage.Tx, now time.Time) *FragmentLedger {
	return &FragmentLedger{tx: tx, now: now}
}

// Balance returns the player's balance under key.
func (l *FragmentLedger) Balance(player esprit.Player, key esprit.FragmentKey) int {
	return player.Fragments(key)
}

// Add credits amount fragments under key.
func (l *FragmentLedger) Add(ctx context.Context, player *esprit.Player, key esprit.FragmentKey, amount int, reason string) error {
	if err := checkFragmentArgs(key, amount); err != nil {
		return err
	}
	return l.AdjustFragment(ctx, player, key, amount, reason)
}

// Consume debits amount fragments under key or fails with
// INSUFFICIENT_FRAGMENTS.
func (l *FragmentLedger) Consume(ctx context.Context, player *esprit.Player, key esprit.FragmentKey, amount int, reason string) error {
	if err := checkFragmentArgs(key, amount); err != nil {
		return err
	}
	if have := player.Fragments(key); have < amount {
		return apperrors.WithMetadata(apperrors.CodeInsufficientFragments,
			fmt.Sprintf("player %s has %d %s fragments, needs %d", player.ID, have, key, amount),
			map[string]string{"Needed": strconv.Itoa(amount), "Key": key.String(), "Balance": strconv.Itoa(have)})
	}
	return l.AdjustFragment(ctx, player, key, -amount, reason)
}

// AdjustFragment applies a signed delta and journals it. The balance may
// never go negative.
func (l *FragmentLedger) AdjustFragment(ctx context.Context, player *esprit.Player, key esprit.FragmentKey, delta int, reason string) error {
	next := player.Fragments(key) + delta
	if next < 0 {
		return esprit.Invariant("ledger.adjust", "player %s %s balance would be %d", player.ID, key, next)
	}
	player.SetFragments(key, next)
	return l.tx.AppendFragmentEntry(ctx, storage.FragmentEntry{
		PlayerID:  player.ID,
		Key:       key,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: l.now,
	})
}

func checkFragmentArgs(key esprit.FragmentKey, amount int) error {
	if err := key.Validate(); err != nil {
		return apperrors.Wrap(apperrors.CodeFragmentInvalidKey, "invalid fragment key", err)
	}
	if amount <= 0 {
		return apperrors.New(apperrors.CodeFragmentInvalidAmount, fmt.Sprintf("fragment amount %d must be positive", amount))
	}
	return nil
}

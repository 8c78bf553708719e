package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/louisbranch/espritforge/internal/platform/errors"
	"github.com/louisbranch/espritforge/internal/services/forge/audit"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/awakening"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/power"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
)

// AwakenRequest raises one stack by one level.
type AwakenRequest struct {
	PlayerID string
	StackID  string
}

// AwakenBatchRequest raises one stack by up to Count levels.
type AwakenBatchRequest struct {
	PlayerID string
	StackID  string
	Count    int
}

// AwakenResult describes a committed awakening.
type AwakenResult struct {
	Stack          esprit.Stack
	OldLevel       int
	NewLevel       int
	CopiesConsumed int
	// PowerBefore and PowerAfter are whole-stack power.
	PowerBefore int
	PowerAfter  int
}

// Steps is how many levels were gained.
func (r AwakenResult) Steps() int {
	return r.NewLevel - r.OldLevel
}

// Awaken spends copies to raise the stack one level.
func (e *Engine) Awaken(ctx context.Context, req AwakenRequest) (AwakenResult, error) {
	return e.awaken(ctx, "Awaken", req.PlayerID, req.StackID, 1)
}

// AwakenBatch repeats Awaken up to Count times in one transaction, stopping
// early when the stack can no longer awaken. It fails only when not even one
// step is possible.
func (e *Engine) AwakenBatch(ctx context.Context, req AwakenBatchRequest) (AwakenResult, error) {
	if req.Count <= 0 {
		return AwakenResult{}, apperrors.WithMetadata(apperrors.CodeRequestInvalid,
			fmt.Sprintf("awaken count %d must be positive", req.Count), map[string]string{"Field": "count"})
	}
	return e.awaken(ctx, "AwakenBatch", req.PlayerID, req.StackID, req.Count)
}

func (e *Engine) awaken(ctx context.Context, op, playerID, stackID string, limit int) (result AwakenResult, err error) {
	ctx, span := e.start(ctx, op, playerID)
	defer func() {
		if err == nil {
			span.SetAttributes(
				attribute.Int("forge.old_level", result.OldLevel),
				attribute.Int("forge.new_level", result.NewLevel),
			)
		}
		e.finish(span, op, err)
	}()

	trimIDs(&playerID, &stackID)
	if err := requireIDs("player_id", playerID, "stack_id", stackID); err != nil {
		return AwakenResult{}, err
	}
	err = e.mutate(ctx, playerID, []string{stackID}, func(ctx context.Context, tx storage.Tx) (audit.Record, error) {
		var err error
		result, err = e.awakenTx(ctx, tx, playerID, stackID, limit)
		if err != nil {
			return audit.Record{}, err
		}
		return audit.Record{
			Kind:      audit.KindAwakening,
			PlayerID:  playerID,
			Inputs:    []string{stackID},
			Succeeded: true,
			Result:    stackID,
			Detail: map[string]string{
				"old_level":       strconv.Itoa(result.OldLevel),
				"new_level":       strconv.Itoa(result.NewLevel),
				"copies_consumed": strconv.Itoa(result.CopiesConsumed),
			},
		}, nil
	})
	if err != nil {
		e.recordRejection(ctx, audit.KindAwakening, playerID, []string{stackID}, err)
		return AwakenResult{}, err
	}
	return result, nil
}

func (e *Engine) awakenTx(ctx context.Context, tx storage.Tx, playerID, stackID string, limit int) (AwakenResult, error) {
	player, err := loadPlayer(ctx, tx, playerID)
	if err != nil {
		return AwakenResult{}, err
	}
	stack, err := loadOwnedStack(ctx, tx, playerID, stackID)
	if err != nil {
		return AwakenResult{}, err
	}
	base, err := tx.GetBase(ctx, stack.BaseID)
	if errors.Is(err, storage.ErrNotFound) {
		return AwakenResult{}, esprit.Invariant("awaken", "stack %s references missing base %s", stack.ID, stack.BaseID)
	}
	if err != nil {
		return AwakenResult{}, fmt.Errorf("load base: %w", err)
	}

	steps, copies := awakening.Plan(stack, limit)
	if steps == 0 {
		return AwakenResult{}, awakeningBlocked(stack)
	}

	result := AwakenResult{
		OldLevel:       stack.AwakeningLevel,
		PowerBefore:    power.Stack(stack, base).Power,
		CopiesConsumed: copies,
	}
	stack.Quantity -= copies
	stack.AwakeningLevel += steps
	if stack.Quantity < 1 {
		return AwakenResult{}, esprit.Invariant("awaken", "stack %s left with %d copies", stack.ID, stack.Quantity)
	}

	now := e.now()
	stack.UpdatedAt = now
	if err := tx.SaveStack(ctx, stack); err != nil {
		return AwakenResult{}, fmt.Errorf("save stack: %w", err)
	}
	player.TotalAwakenings += steps
	player.UpdatedAt = now
	if err := tx.SavePlayer(ctx, player); err != nil {
		return AwakenResult{}, fmt.Errorf("save player: %w", err)
	}

	result.Stack = stack
	result.NewLevel = stack.AwakeningLevel
	result.PowerAfter = power.Stack(stack, base).Power
	return result, nil
}

func awakeningBlocked(stack esprit.Stack) error {
	switch awakening.Check(stack) {
	case awakening.MaxLevel:
		return apperrors.WithMetadata(apperrors.CodeAwakeningMaxLevel,
			fmt.Sprintf("stack %s is already at level %d", stack.ID, stack.AwakeningLevel),
			map[string]string{"StackID": stack.ID})
	default:
		need := awakening.Cost(stack.AwakeningLevel) + 1
		return apperrors.WithMetadata(apperrors.CodeAwakeningInsufficientCopies,
			fmt.Sprintf("stack %s has %d copies, needs %d", stack.ID, stack.Quantity, need),
			map[string]string{"Needed": strconv.Itoa(need), "Balance": strconv.Itoa(stack.Quantity)})
	}
}

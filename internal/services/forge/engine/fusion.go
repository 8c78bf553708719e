package engine

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/louisbranch/espritforge/internal/platform/random"
	"github.com/louisbranch/espritforge/internal/services/forge/audit"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/fusion"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
)

// FuseRequest asks to fuse two of a player's stacks. StackAID and StackBID
// may name the same stack.
type FuseRequest struct {
	PlayerID     string
	StackAID     string
	StackBID     string
	Bonuses      esprit.LeaderBonuses
	UseFragments bool
	// Seed fixes every random draw; nil draws a fresh seed, reported back in
	// the outcome.
	Seed *int64
}

// PreviewRequest asks what a fusion would cost and how likely it is.
type PreviewRequest struct {
	PlayerID string
	StackAID string
	StackBID string
	Bonuses  esprit.LeaderBonuses
}

// Fuse executes one fusion. A failed roll returns an Outcome with Succeeded
// false and a nil error; errors mean nothing changed.
func (e *Engine) Fuse(ctx context.Context, req FuseRequest) (outcome fusion.Outcome, err error) {
	ctx, span := e.start(ctx, "Fuse", req.PlayerID)
	defer func() {
		if err == nil {
			span.SetAttributes(
				attribute.Int("forge.result_tier", outcome.ResultTier),
				attribute.Bool("forge.succeeded", outcome.Succeeded),
				attribute.Bool("forge.guaranteed", outcome.Guaranteed),
				attribute.Int64("forge.seed", outcome.Seed),
			)
		}
		e.finish(span, "fuse", err)
	}()

	trimIDs(&req.PlayerID, &req.StackAID, &req.StackBID)
	if err := requireIDs("player_id", req.PlayerID, "stack_a_id", req.StackAID, "stack_b_id", req.StackBID); err != nil {
		return fusion.Outcome{}, err
	}
	seed, err := random.ResolveSeed(req.Seed, e.seedSource)
	if err != nil {
		return fusion.Outcome{}, fmt.Errorf("resolve seed: %w", err)
	}

	err = e.mutate(ctx, req.PlayerID, []string{req.StackAID, req.StackBID}, func(ctx context.Context, tx storage.Tx) (audit.Record, error) {
		var err error
		outcome, err = e.fuse(ctx, tx, req, seed)
		if err != nil {
			return audit.Record{}, err
		}
		return fusionRecord(req, outcome), nil
	})
	if err != nil {
		e.recordRejection(ctx, audit.KindFusion, req.PlayerID, []string{req.StackAID, req.StackBID}, err)
		return fusion.Outcome{}, err
	}
	e.logger.Debug("fusion resolved",
		zap.String("player_id", req.PlayerID),
		zap.Bool("succeeded", outcome.Succeeded),
		zap.Bool("produced", outcome.ProducedCreature()),
		zap.Int("result_tier", outcome.ResultTier),
		zap.Int64("seed", seed))
	return outcome, nil
}

func (e *Engine) fuse(ctx context.Context, tx storage.Tx, req FuseRequest, seed int64) (fusion.Outcome, error) {
	player, err := loadPlayer(ctx, tx, req.PlayerID)
	if err != nil {
		return fusion.Outcome{}, err
	}
	a, err := loadStack(ctx, tx, req.StackAID)
	if err != nil {
		return fusion.Outcome{}, err
	}
	b := a
	if req.StackBID != req.StackAID {
		if b, err = loadStack(ctx, tx, req.StackBID); err != nil {
			return fusion.Outcome{}, err
		}
	}

	plan, err := e.rules.Plan(fusion.Input{
		Player:       player,
		A:            a,
		B:            b,
		Bonuses:      req.Bonuses,
		UseFragments: req.UseFragments,
	})
	if err != nil {
		return fusion.Outcome{}, err
	}

	now := e.now()
	ledger := NewFragmentLedger(tx, now)
	roller := random.NewRoller(seed)
	outcome := fusion.Outcome{
		CostPaid:    plan.Cost,
		ResultTier:  plan.ResultTier,
		SuccessRate: plan.Rate,
		Guaranteed:  plan.Guaranteed,
		Seed:        seed,
		Consumed:    map[string]int{},
	}

	if err := Spend(&player, plan.Cost); err != nil {
		return fusion.Outcome{}, err
	}
	if plan.Guaranteed {
		key := esprit.ElementKey(plan.GuaranteeElement())
		if err := ledger.Consume(ctx, &player, key, fusion.GuaranteeFragments, fusion.ReasonGuarantee); err != nil {
			return fusion.Outcome{}, err
		}
		outcome.FragmentsConsumed = fusion.GuaranteeFragments
	}

	var inputs []esprit.Stack
	if plan.SelfFusion {
		a.Quantity -= 2
		inputs = []esprit.Stack{a}
		outcome.Consumed[a.ID] = 2
	} else {
		a.Quantity--
		b.Quantity--
		inputs = []esprit.Stack{a, b}
		outcome.Consumed[a.ID] = 1
		outcome.Consumed[b.ID] = 1
	}
	for _, in := range inputs {
		in.UpdatedAt = now
		deleted, err := putStack(ctx, tx, in)
		if err != nil {
			return fusion.Outcome{}, err
		}
		if deleted {
			outcome.DeletedStackIDs = append(outcome.DeletedStackIDs, in.ID)
		}
	}

	// Draw order is fixed: result element, success roll, then either the
	// consolation element or the target base.
	outcome.ResultElement = plan.RollElement(roller)
	outcome.Succeeded = plan.RollSuccess(roller)

	if !outcome.Succeeded {
		grant := plan.FailureConsolation(a.Element, b.Element, roller)
		if err := ledger.Add(ctx, &player, esprit.ElementKey(grant.Element), grant.Amount, grant.Reason); err != nil {
			return fusion.Outcome{}, err
		}
		outcome.Consolation = &grant
	} else {
		candidates, err := tx.FindBases(ctx, plan.ResultTier, outcome.ResultElement)
		if err != nil {
			return fusion.Outcome{}, fmt.Errorf("find bases: %w", err)
		}
		if base, ok := fusion.PickBase(candidates, roller); ok {
			stack, err := e.addCopy(ctx, tx, player.ID, base, now)
			if err != nil {
				return fusion.Outcome{}, err
			}
			outcome.ResultStack = &stack
			outcome.ResultBaseID = base.ID
		} else {
			grant := plan.NoTargetConsolation(outcome.ResultElement)
			if err := ledger.Add(ctx, &player, esprit.ElementKey(grant.Element), grant.Amount, grant.Reason); err != nil {
				return fusion.Outcome{}, err
			}
			outcome.Consolation = &grant
		}
	}

	player.TotalFusions++
	if outcome.ProducedCreature() {
		player.SuccessfulFusions++
	}
	player.UpdatedAt = now
	if err := tx.SavePlayer(ctx, player); err != nil {
		return fusion.Outcome{}, fmt.Errorf("save player: %w", err)
	}
	return outcome, nil
}

// Preview reports cost, rate and guarantee availability without changing
// anything. It reads outside any transaction, so balances may move before a
// following Fuse.
func (e *Engine) Preview(ctx context.Context, req PreviewRequest) (fusion.Preview, error) {
	trimIDs(&req.PlayerID, &req.StackAID, &req.StackBID)
	if err := requireIDs("player_id", req.PlayerID, "stack_a_id", req.StackAID, "stack_b_id", req.StackBID); err != nil {
		return fusion.Preview{}, err
	}
	player, err := e.store.GetPlayer(ctx, req.PlayerID)
	if err != nil {
		return fusion.Preview{}, playerLookupError(req.PlayerID, err)
	}
	a, err := e.store.GetStack(ctx, req.StackAID)
	if err != nil {
		return fusion.Preview{}, stackLookupError(req.StackAID, err)
	}
	b := a
	if req.StackBID != req.StackAID {
		if b, err = e.store.GetStack(ctx, req.StackBID); err != nil {
			return fusion.Preview{}, stackLookupError(req.StackBID, err)
		}
	}
	return e.rules.Preview(fusion.Input{Player: player, A: a, B: b, Bonuses: req.Bonuses})
}

func fusionRecord(req FuseRequest, o fusion.Outcome) audit.Record {
	rec := audit.Record{
		Kind:      audit.KindFusion,
		PlayerID:  req.PlayerID,
		Inputs:    []string{req.StackAID, req.StackBID},
		Succeeded: o.Succeeded,
		Cost:      o.CostPaid,
		Detail: map[string]string{
			"seed":           strconv.FormatInt(o.Seed, 10),
			"result_element": string(o.ResultElement),
			"result_tier":    strconv.Itoa(o.ResultTier),
			"success_rate":   strconv.FormatFloat(o.SuccessRate, 'f', 4, 64),
			"guaranteed":     strconv.FormatBool(o.Guaranteed),
		},
	}
	if o.ResultStack != nil {
		rec.Result = o.ResultStack.ID
		rec.Detail["result_base_id"] = o.ResultBaseID
	}
	if o.Consolation != nil {
		rec.Detail["consolation"] = fmt.Sprintf("%d %s (%s)", o.Consolation.Amount, o.Consolation.Element, o.Consolation.Reason)
	}
	return rec
}

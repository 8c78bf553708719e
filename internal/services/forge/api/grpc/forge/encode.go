package forge

import (
	"sort"
	"strconv"
	"time"

	"github.com/louisbranch/espritforge/internal/services/forge/cache"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/fusion"
	"github.com/louisbranch/espritforge/internal/services/forge/engine"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
)

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func stringList(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func playerFields(p esprit.Player) map[string]any {
	elements := map[string]any{}
	for e, n := range p.ElementFragments {
		elements[string(e)] = n
	}
	tiers := map[string]any{}
	for t, n := range p.TierFragments {
		tiers[strconv.Itoa(t)] = n
	}
	return map[string]any{
		"player_id":          p.ID,
		"currency":           p.Currency,
		"element_fragments":  elements,
		"tier_fragments":     tiers,
		"total_fusions":      p.TotalFusions,
		"successful_fusions": p.SuccessfulFusions,
		"total_awakenings":   p.TotalAwakenings,
		"created_at":         timestamp(p.CreatedAt),
		"updated_at":         timestamp(p.UpdatedAt),
	}
}

func stackFields(s esprit.Stack) map[string]any {
	return map[string]any{
		"stack_id":        s.ID,
		"base_id":         s.BaseID,
		"owner_id":        s.OwnerID,
		"quantity":        s.Quantity,
		"tier":            s.Tier,
		"awakening_level": s.AwakeningLevel,
		"element":         string(s.Element),
		"created_at":      timestamp(s.CreatedAt),
		"updated_at":      timestamp(s.UpdatedAt),
	}
}

func baseFields(b esprit.Base) map[string]any {
	return map[string]any{
		"base_id":      b.ID,
		"name":         b.Name,
		"element":      string(b.Element),
		"tier":         b.Tier,
		"base_attack":  b.BaseAttack,
		"base_defense": b.BaseDefense,
		"base_hp":      b.BaseHP,
		"description":  b.Description,
	}
}

func collectionFields(stats cache.CollectionStats) map[string]any {
	byElement := map[string]any{}
	for e, n := range stats.ByElement {
		byElement[string(e)] = n
	}
	byTier := map[string]any{}
	for t, n := range stats.ByTier {
		byTier[strconv.Itoa(t)] = n
	}
	return map[string]any{
		"unique_stacks": stats.UniqueStacks,
		"total_copies":  stats.TotalCopies,
		"highest_tier":  stats.HighestTier,
		"by_element":    byElement,
		"by_tier":       byTier,
	}
}

func elementList(values []element.Element) []any {
	out := make([]any, len(values))
	for i, e := range values {
		out[i] = string(e)
	}
	return out
}

func previewFields(p fusion.Preview) map[string]any {
	return map[string]any{
		"cost":                p.Cost,
		"affordable":          p.Affordable,
		"base_rate":           p.BaseRate,
		"rate":                p.Rate,
		"same_element":        p.SameElement,
		"shape":               p.Shape.String(),
		"candidates":          elementList(p.Candidates),
		"result_tier":         p.ResultTier,
		"guarantee_available": p.GuaranteeAvailable,
		"guarantee_element":   string(p.GuaranteeElement),
		"fragment_balance":    p.FragmentBalance,
	}
}

func outcomeFields(o fusion.Outcome) map[string]any {
	consumed := map[string]any{}
	for id, n := range o.Consumed {
		consumed[id] = n
	}
	deleted := append([]string(nil), o.DeletedStackIDs...)
	sort.Strings(deleted)

	out := map[string]any{
		"succeeded":          o.Succeeded,
		"produced_creature":  o.ProducedCreature(),
		"result_stack":       nil,
		"consolation":        nil,
		"cost_paid":          o.CostPaid,
		"fragments_consumed": o.FragmentsConsumed,
		"result_element":     string(o.ResultElement),
		"result_tier":        o.ResultTier,
		"result_base_id":     o.ResultBaseID,
		"success_rate":       o.SuccessRate,
		"guaranteed":         o.Guaranteed,
		"seed":               strconv.FormatInt(o.Seed, 10),
		"consumed":           consumed,
		"deleted_stack_ids":  stringList(deleted),
	}
	if o.ResultStack != nil {
		out["result_stack"] = stackFields(*o.ResultStack)
	}
	if c := o.Consolation; c != nil {
		out["consolation"] = map[string]any{
			"element": string(c.Element),
			"amount":  c.Amount,
			"reason":  c.Reason,
		}
	}
	return out
}

func awakenFields(r engine.AwakenResult) map[string]any {
	return map[string]any{
		"stack":           stackFields(r.Stack),
		"old_level":       r.OldLevel,
		"new_level":       r.NewLevel,
		"steps":           r.Steps(),
		"copies_consumed": r.CopiesConsumed,
		"power_before":    r.PowerBefore,
		"power_after":     r.PowerAfter,
	}
}

func transactionFields(rec storage.TransactionRecord) map[string]any {
	detail := map[string]any{}
	for k, v := range rec.Detail {
		detail[k] = v
	}
	return map[string]any{
		"transaction_id": rec.ID,
		"kind":           rec.Kind,
		"player_id":      rec.PlayerID,
		"inputs":         stringList(rec.Inputs),
		"succeeded":      rec.Succeeded,
		"cost":           rec.Cost,
		"result":         rec.Result,
		"detail":         detail,
		"created_at":     timestamp(rec.CreatedAt),
	}
}

func fragmentEntryFields(e storage.FragmentEntry) map[string]any {
	return map[string]any{
		"entry_id":     strconv.FormatInt(e.ID, 10),
		"fragment_key": e.Key.String(),
		"delta":        e.Delta,
		"reason":       e.Reason,
		"created_at":   timestamp(e.CreatedAt),
	}
}

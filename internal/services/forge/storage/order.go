package storage

import (
	"cmp"
	"slices"

	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
)

// DefaultStackOrder lists the strongest stacks first.
const DefaultStackOrder = "tier desc"

// StackOrders are the accepted ListStacksQuery.OrderBy values.
var StackOrders = []string{
	"tier desc",
	"tier",
	"awakening_level desc",
	"quantity desc",
	"created_at",
	"created_at desc",
}

var stackOrderSQL = map[string]string{
	"tier desc":            "tier DESC, awakening_level DESC, id ASC",
	"tier":                 "tier ASC, id ASC",
	"awakening_level desc": "awakening_level DESC, tier DESC, id ASC",
	"quantity desc":        "quantity DESC, id ASC",
	"created_at":           "created_at ASC, id ASC",
	"created_at desc":      "created_at DESC, id ASC",
}

// StackOrderSQL returns the ORDER BY body for orderBy and whether it is known.
func StackOrderSQL(orderBy string) (string, bool) {
	if orderBy == "" {
		orderBy = DefaultStackOrder
	}
	clause, ok := stackOrderSQL[orderBy]
	return clause, ok
}

// SortStacks orders stacks in place the way StackOrderSQL does.
func SortStacks(stacks []esprit.Stack, orderBy string) {
	if orderBy == "" {
		orderBy = DefaultStackOrder
	}
	slices.SortFunc(stacks, func(a, b esprit.Stack) int {
		var c int
		switch orderBy {
		case "tier desc":
			c = cmp.Or(cmp.Compare(b.Tier, a.Tier), cmp.Compare(b.AwakeningLevel, a.AwakeningLevel))
		case "tier":
			c = cmp.Compare(a.Tier, b.Tier)
		case "awakening_level desc":
			c = cmp.Or(cmp.Compare(b.AwakeningLevel, a.AwakeningLevel), cmp.Compare(b.Tier, a.Tier))
		case "quantity desc":
			c = cmp.Compare(b.Quantity, a.Quantity)
		case "created_at":
			c = a.CreatedAt.Compare(b.CreatedAt)
		case "created_at desc":
			c = b.CreatedAt.Compare(a.CreatedAt)
		}
		return cmp.Or(c, cmp.Compare(a.ID, b.ID))
	})
}

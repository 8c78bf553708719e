package element

import "fmt"

// Shape classifies how a chart entry resolves.
type Shape int

const (
	// ShapeSingle always yields one fixed element.
	ShapeSingle Shape = iota + 1
	// ShapePair yields one of two named elements with equal odds.
	ShapePair
	// ShapeRandom yields any of the six elements with equal odds.
	ShapeRandom
)

func (s Shape) String() string {
	switch s {
	case ShapeSingle:
		return "single"
	case ShapePair:
		return "pair"
	case ShapeRandom:
		return "random"
	default:
		return "unknown"
	}
}

// Result is one chart entry.
type Result struct {
	Shape      Shape
	Candidates []Element
}

// Deterministic reports whether the result element is known before any roll.
func (r Result) Deterministic() bool {
	return r.Shape == ShapeSingle
}

// Resolve picks the result element. intn must return a value in [0, n) and is
// only called for randomized shapes.
func (r Result) Resolve(intn func(n int) int) Element {
	switch r.Shape {
	case ShapeSingle:
		return r.Candidates[0]
	default:
		return r.Candidates[intn(len(r.Candidates))]
	}
}

// Pair is an unordered element pair, normalized so A sorts before B in
// canonical element order.
type Pair struct {
	A, B Element
}

// NewPair normalizes (a, b) into canonical order.
func NewPair(a, b Element) Pair {
	if index(b) < index(a) {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

func index(e Element) int {
	for i, candidate := range all {
		if candidate == e {
			return i
		}
	}
	return len(all)
}

// Chart maps unordered cross-element pairs to results. Same-element fusion is
// not charted; it always keeps its element.
type Chart struct {
	entries map[Pair]Result
}

// NewChart builds a chart and rejects unknown elements, same-element keys
// and malformed results.
func NewChart(entries map[Pair]Result) (*Chart, error) {
	normalized := make(map[Pair]Result, len(entries))
	for pair, result := range entries {
		if !pair.A.Valid() || !pair.B.Valid() {
			return nil, fmt.Errorf("chart pair %s+%s has an unknown element", pair.A, pair.B)
		}
		if pair.A == pair.B {
			return nil, fmt.Errorf("chart pair %s+%s is same-element", pair.A, pair.B)
		}
		if err := validateResult(result); err != nil {
			return nil, fmt.Errorf("chart pair %s+%s: %w", pair.A, pair.B, err)
		}
		key := NewPair(pair.A, pair.B)
		if _, dup := normalized[key]; dup {
			return nil, fmt.Errorf("chart pair %s+%s listed twice", key.A, key.B)
		}
		normalized[key] = result
	}
	return &Chart{entries: normalized}, nil
}

func validateResult(r Result) error {
	want := map[Shape]int{ShapeSingle: 1, ShapePair: 2, ShapeRandom: len(all)}
	n, ok := want[r.Shape]
	if !ok {
		return fmt.Errorf("unknown shape %d", r.Shape)
	}
	if len(r.Candidates) != n {
		return fmt.Errorf("%s result needs %d candidates, got %d", r.Shape, n, len(r.Candidates))
	}
	for _, c := range r.Candidates {
		if !c.Valid() {
			return fmt.Errorf("unknown candidate %q", c)
		}
	}
	return nil
}

// Lookup returns the result for fusing a with b in either order. Same-element
// input yields a single result of that element.
func (c *Chart) Lookup(a, b Element) (Result, bool) {
	if a == b {
		if !a.Valid() {
			return Result{}, false
		}
		return Result{Shape: ShapeSingle, Candidates: []Element{a}}, true
	}
	r, ok := c.entries[NewPair(a, b)]
	return r, ok
}

// Complete reports the cross-element pairs that have no entry.
func (c *Chart) Complete() []Pair {
	var missing []Pair
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			pair := Pair{A: all[i], B: all[j]}
			if _, ok := c.entries[pair]; !ok {
				missing = append(missing, pair)
			}
		}
	}
	return missing
}

func single(e Element) Result { return Result{Shape: ShapeSingle, Candidates: []Element{e}} }

func pair(a, b Element) Result { return Result{Shape: ShapePair, Candidates: []Element{a, b}} }

func random() Result { return Result{Shape: ShapeRandom, Candidates: All()} }

// DefaultChart is the live fusion chart. It covers all fifteen cross-element
// pairs.
var DefaultChart = mustChart(map[Pair]Result{
	{Inferno, Verdant}: single(Inferno),
	{Inferno, Abyssal}: single(Tempest),
	{Inferno, Tempest}: pair(Inferno, Tempest),
	{Inferno, Umbral}:  single(Umbral),
	{Inferno, Radiant}: single(Radiant),
	{Verdant, Abyssal}: single(Verdant),
	{Verdant, Tempest}: pair(Verdant, Tempest),
	{Verdant, Umbral}:  pair(Verdant, Umbral),
	{Verdant, Radiant}: single(Radiant),
	{Abyssal, Tempest}: single(Abyssal),
	{Abyssal, Umbral}:  pair(Abyssal, Umbral),
	{Abyssal, Radiant}: pair(Abyssal, Radiant),
	{Tempest, Umbral}:  single(Umbral),
	{Tempest, Radiant}: single(Tempest),
	{Umbral, Radiant}:  random(),
})

func mustChart(entries map[Pair]Result) *Chart {
	c, err := NewChart(entries)
	if err != nil {
		panic(err)
	}
	return c
}

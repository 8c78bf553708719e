package esprit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/tier"
)

// FragmentKey names a fragment balance: either an element or a tier.
type FragmentKey struct {
	Element element.Element
	Tier    int
}

// ElementKey keys fragments of element e.
func ElementKey(e element.Element) FragmentKey {
	return FragmentKey{Element: e}
}

// TierKey keys fragments of tier t.
func TierKey(t int) FragmentKey {
	return FragmentKey{Tier: t}
}

// IsTier reports whether the key addresses a tier balance.
func (k FragmentKey) IsTier() bool {
	return k.Tier != 0
}

// Validate requires exactly one known dimension.
func (k FragmentKey) Validate() error {
	switch {
	case k.Tier != 0 && k.Element != "":
		return fmt.Errorf("fragment key sets both element and tier")
	case k.Tier != 0:
		if !tier.Valid(k.Tier) {
			return fmt.Errorf("fragment tier %d out of range", k.Tier)
		}
		return nil
	case k.Element != "":
		if !k.Element.Valid() {
			return fmt.Errorf("unknown fragment element %q", k.Element)
		}
		return nil
	default:
		return fmt.Errorf("fragment key is empty")
	}
}

// String renders "element:<name>" or "tier:<n>".
func (k FragmentKey) String() string {
	if k.IsTier() {
		return "tier:" + strconv.Itoa(k.Tier)
	}
	return "element:" + string(k.Element)
}

// ParseFragmentKey reverses String.
func ParseFragmentKey(value string) (FragmentKey, error) {
	kind, raw, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return FragmentKey{}, fmt.Errorf("fragment key %q must be element:<name> or tier:<n>", value)
	}
	var key FragmentKey
	switch kind {
	case "element":
		e, err := element.Parse(raw)
		if err != nil {
			return FragmentKey{}, err
		}
		key = ElementKey(e)
	case "tier":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return FragmentKey{}, fmt.Errorf("fragment tier %q: %w", raw, err)
		}
		key = TierKey(n)
	default:
		return FragmentKey{}, fmt.Errorf("unknown fragment kind %q", kind)
	}
	if err := key.Validate(); err != nil {
		return FragmentKey{}, err
	}
	return key, nil
}

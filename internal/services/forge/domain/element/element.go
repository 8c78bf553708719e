// Package element defines the six Esprit elements and the chart that decides
// which element a cross-element fusion yields.
package element

import (
	"fmt"
	"strings"
)

// Element is one of the six Esprit affinities.
type Element string

const (
	Inferno Element = "inferno"
	Verdant Element = "verdant"
	Abyssal Element = "abyssal"
	Tempest Element = "tempest"
	Umbral  Element = "umbral"
	Radiant Element = "radiant"
)

var all = [...]Element{Inferno, Verdant, Abyssal, Tempest, Umbral, Radiant}

// All returns every element in canonical order. The slice is a copy.
func All() []Element {
	out := make([]Element, len(all))
	copy(out, all[:])
	return out
}

// Valid reports whether e is a known element.
func (e Element) Valid() bool {
	for _, candidate := range all {
		if candidate == e {
			return true
		}
	}
	return false
}

// String returns the lowercase element name.
func (e Element) String() string {
	return string(e)
}

// Title returns the display form, e.g. "Inferno".
func (e Element) Title() string {
	if e == "" {
		return ""
	}
	return strings.ToUpper(string(e[:1])) + string(e[1:])
}

// Parse accepts any casing of an element name.
func Parse(value string) (Element, error) {
	e := Element(strings.ToLower(strings.TrimSpace(value)))
	if !e.Valid() {
		return "", fmt.Errorf("unknown element %q", value)
	}
	return e, nil
}

// Package catalog loads the base creature catalog from YAML.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/louisbranch/espritforge/internal/platform/errors"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/tier"
)

//go:embed esprits.yaml
var embedded []byte

type document struct {
	Esprits []entry `yaml:"esprits"`
}

type entry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Element     string `yaml:"element"`
	Tier        int    `yaml:"tier"`
	Attack      int    `yaml:"attack"`
	Defense     int    `yaml:"defense"`
	HP          int    `yaml:"hp"`
	Description string `yaml:"description"`
}

// Default returns the embedded catalog.
func Default() ([]esprit.Base, error) {
	return Parse(embedded)
}

// Load reads the catalog at path, or the embedded one when path is blank.
func Load(path string) ([]esprit.Base, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document. Unknown fields,
// duplicate ids and entries outside the tier table are rejected.
func Parse(data []byte) ([]esprit.Base, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, apperrors.Wrap(apperrors.CodeCatalogInvalid, "decode catalog", err)
	}
	if len(doc.Esprits) == 0 {
		return nil, apperrors.New(apperrors.CodeCatalogInvalid, "catalog has no esprits")
	}

	seen := make(map[string]struct{}, len(doc.Esprits))
	bases := make([]esprit.Base, 0, len(doc.Esprits))
	for i, e := range doc.Esprits {
		elem, err := element.Parse(e.Element)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeCatalogInvalid, fmt.Sprintf("catalog entry %d (%s)", i, e.ID), err)
		}
		base := esprit.Base{
			ID:          strings.TrimSpace(e.ID),
			Name:        strings.TrimSpace(e.Name),
			Element:     elem,
			Tier:        e.Tier,
			BaseAttack:  e.Attack,
			BaseDefense: e.Defense,
			BaseHP:      e.HP,
			Description: strings.TrimSpace(e.Description),
		}
		if err := base.Validate(); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeCatalogInvalid, fmt.Sprintf("catalog entry %d", i), err)
		}
		if _, dup := seen[base.ID]; dup {
			return nil, apperrors.New(apperrors.CodeCatalogInvalid, fmt.Sprintf("catalog id %s listed twice", base.ID))
		}
		seen[base.ID] = struct{}{}
		bases = append(bases, base)
	}
	return bases, nil
}

// Cell is one tier/element slot of the catalog grid.
type Cell struct {
	Tier    int
	Element element.Element
}

// EmptyCells lists the tier/element slots with no base, in tier then
// element order. Successful fusions into these slots pay fragments.
func EmptyCells(bases []esprit.Base) []Cell {
	filled := make(map[Cell]bool, len(bases))
	for _, b := range bases {
		filled[Cell{Tier: b.Tier, Element: b.Element}] = true
	}
	var empty []Cell
	for t := tier.Min; t <= tier.Max; t++ {
		for _, e := range element.All() {
			if c := (Cell{Tier: t, Element: e}); !filled[c] {
				empty = append(empty, c)
			}
		}
	}
	return empty
}

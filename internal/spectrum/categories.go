package spectrum

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spacesedan/feedbackflow/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var defaultCategories []byte

var ErrInvalidTable = errors.New("invalid category table")

type Category struct {
	Name       models.Spectrum `yaml:"name"`
	Weight     float64         `yaml:"weight"`
	Keywords   []string        `yaml:"keywords"`
	Contextual []string        `yaml:"contextual"`
}

// Table is an ordered list of categories. Order is the tie-break order.
type Table struct {
	Categories []Category `yaml:"categories"`
}

func DefaultTable() Table {
	t, err := ParseTable(defaultCategories)
	if err != nil {
		panic(fmt.Sprintf("embedded categories.yaml: %v", err))
	}
	return t
}

// LoadTable reads path, or returns the embedded table when path is empty.
func LoadTable(path string) (Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read category table: %w", err)
	}
	return ParseTable(raw)
}

func ParseTable(raw []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	if err := t.normalize(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// normalize lower-cases phrases and rejects unknown or repeated names.
func (t *Table) normalize() error {
	if len(t.Categories) == 0 {
		return fmt.Errorf("%w: no categories", ErrInvalidTable)
	}

	seen := make(map[models.Spectrum]bool, len(t.Categories))
	for i := range t.Categories {
		c := &t.Categories[i]
		if !c.Name.IsValid() {
			return fmt.Errorf("%w: unknown category %q", ErrInvalidTable, c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidTable, c.Name)
		}
		seen[c.Name] = true

		c.Keywords = lowerAll(c.Keywords)
		c.Contextual = lowerAll(c.Contextual)
	}
	return nil
}

func lowerAll(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

package taxonomy

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Column categories, in default generation order.
const (
	CategoryEssential     = "essential"
	CategoryImportant     = "important"
	CategorySupplementary = "supplementary"
	CategoryAdvanced      = "advanced"
)

// Content types a column can carry.
const (
	ContentText        = "text"
	ContentMarkdown    = "markdown"
	ContentJSON        = "json"
	ContentArray       = "array"
	ContentInteractive = "interactive"
)

// ColumnDefinition is one field of the fixed per-term taxonomy. Definitions
// are loaded once from the embedded catalog and never change at runtime.
type ColumnDefinition struct {
	ID              string `yaml:"id"`
	Path            string `yaml:"path"`
	Title           string `yaml:"title"`
	Category        string `yaml:"category"`
	Priority        int    `yaml:"priority"`
	ContentType     string `yaml:"content_type"`
	EstimatedTokens int    `yaml:"estimated_tokens"`
}

type catalog struct {
	Columns []ColumnDefinition `yaml:"columns"`
}

//go:embed columns.yaml
var catalogYAML []byte

type Registry struct {
	byID    map[string]ColumnDefinition
	ordered []ColumnDefinition
}

// Load parses and validates the embedded catalog. Called once from main;
// a broken catalog is a deploy error, not a runtime condition.
func Load() (*Registry, error) {
	return Parse(catalogYAML)
}

func Parse(raw []byte) (*Registry, error) {
	var cat catalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("parse column catalog: %w", err)
	}
	if len(cat.Columns) == 0 {
		return nil, fmt.Errorf("column catalog is empty")
	}

	byID := make(map[string]ColumnDefinition, len(cat.Columns))
	for _, col := range cat.Columns {
		if err := validate(col); err != nil {
			return nil, err
		}
		if _, dup := byID[col.ID]; dup {
			return nil, fmt.Errorf("column %q: duplicate id", col.ID)
		}
		byID[col.ID] = col
	}

	ordered := make([]ColumnDefinition, len(cat.Columns))
	copy(ordered, cat.Columns)
	sort.SliceStable(ordered, func(i, j int) bool {
		ci, cj := categoryRank(ordered[i].Category), categoryRank(ordered[j].Category)
		if ci != cj {
			return ci < cj
		}
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	return &Registry{byID: byID, ordered: ordered}, nil
}

func validate(col ColumnDefinition) error {
	if col.ID == "" {
		return fmt.Errorf("column with path %q: missing id", col.Path)
	}
	if col.Path == "" {
		return fmt.Errorf("column %q: missing path", col.ID)
	}
	switch col.Category {
	case CategoryEssential, CategoryImportant, CategorySupplementary, CategoryAdvanced:
	default:
		return fmt.Errorf("column %q: unknown category %q", col.ID, col.Category)
	}
	switch col.ContentType {
	case ContentText, ContentMarkdown, ContentJSON, ContentArray, ContentInteractive:
	default:
		return fmt.Errorf("column %q: unknown content type %q", col.ID, col.ContentType)
	}
	if col.Priority < 1 || col.Priority > 10 {
		return fmt.Errorf("column %q: priority %d out of range [1,10]", col.ID, col.Priority)
	}
	if col.EstimatedTokens <= 0 {
		return fmt.Errorf("column %q: estimated_tokens must be positive", col.ID)
	}
	return nil
}

func categoryRank(category string) int {
	switch category {
	case CategoryEssential:
		return 0
	case CategoryImportant:
		return 1
	case CategorySupplementary:
		return 2
	case CategoryAdvanced:
		return 3
	default:
		return 4
	}
}

// Get returns the definition for a column id.
func (r *Registry) Get(id string) (ColumnDefinition, bool) {
	col, ok := r.byID[id]
	return col, ok
}

// All returns every column ordered by category rank then priority (desc).
func (r *Registry) All() []ColumnDefinition {
	out := make([]ColumnDefinition, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// ByCategory returns the columns of one category, priority-ordered.
func (r *Registry) ByCategory(category string) []ColumnDefinition {
	var out []ColumnDefinition
	for _, col := range r.ordered {
		if col.Category == category {
			out = append(out, col)
		}
	}
	return out
}

// Len reports the catalog size.
func (r *Registry) Len() int {
	return len(r.ordered)
}

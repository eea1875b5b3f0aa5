package prompts

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/termforge/glossary-backend/internal/taxonomy"
)

// TripletSpec binds the three prompt bodies of one column (or of a whole
// category, as fallback). Bodies are text/template with term and column
// fields; they are compiled at registration so a broken template fails
// startup, not a batch.
type TripletSpec struct {
	ColumnID    string
	Category    string
	Generative  string
	Evaluative  string
	Improvement string
}

// GenerateInput carries everything a generative template can reference.
type GenerateInput struct {
	TermName        string
	TermShortDef    string
	Attributes      map[string]any
	ColumnTitle     string
	ColumnPath      string
	ContentType     string
	EstimatedTokens int
}

type EvaluateInput struct {
	GenerateInput
	Content string
}

type ImproveInput struct {
	GenerateInput
	Content  string
	Feedback string
}

// Triplet is a compiled prompt triplet.
type Triplet struct {
	generative  *template.Template
	evaluative  *template.Template
	improvement *template.Template
}

func compile(spec TripletSpec) (*Triplet, error) {
	name := spec.ColumnID
	if name == "" {
		name = "category:" + spec.Category
	}
	if spec.Generative == "" || spec.Evaluative == "" || spec.Improvement == "" {
		return nil, fmt.Errorf("triplet %s: all three prompt bodies are required", name)
	}
	gen, err := template.New(name + ":generative").Parse(spec.Generative)
	if err != nil {
		return nil, fmt.Errorf("triplet %s: generative: %w", name, err)
	}
	eval, err := template.New(name + ":evaluative").Parse(spec.Evaluative)
	if err != nil {
		return nil, fmt.Errorf("triplet %s: evaluative: %w", name, err)
	}
	imp, err := template.New(name + ":improvement").Parse(spec.Improvement)
	if err != nil {
		return nil, fmt.Errorf("triplet %s: improvement: %w", name, err)
	}
	return &Triplet{generative: gen, evaluative: eval, improvement: imp}, nil
}

func render(t *template.Template, in any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, in); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(sb.String()), nil
}

func (t *Triplet) RenderGenerative(in GenerateInput) (string, error) {
	return render(t.generative, in)
}

func (t *Triplet) RenderEvaluative(in EvaluateInput) (string, error) {
	return render(t.evaluative, in)
}

func (t *Triplet) RenderImprovement(in ImproveInput) (string, error) {
	return render(t.improvement, in)
}

// Store resolves a column to its triplet. Bespoke column triplets win over
// the category default.
type Store struct {
	byColumn   map[string]*Triplet
	byCategory map[string]*Triplet
}

// NewStore compiles the registered specs and checks that every column in the
// catalog resolves to a triplet.
func NewStore(registry *taxonomy.Registry) (*Store, error) {
	s := &Store{
		byColumn:   make(map[string]*Triplet),
		byCategory: make(map[string]*Triplet),
	}
	for _, spec := range allSpecs() {
		t, err := compile(spec)
		if err != nil {
			return nil, err
		}
		switch {
		case spec.ColumnID != "":
			if _, dup := s.byColumn[spec.ColumnID]; dup {
				return nil, fmt.Errorf("triplet %s: registered twice", spec.ColumnID)
			}
			if _, known := registry.Get(spec.ColumnID); !known {
				return nil, fmt.Errorf("triplet %s: no such column in catalog", spec.ColumnID)
			}
			s.byColumn[spec.ColumnID] = t
		case spec.Category != "":
			if _, dup := s.byCategory[spec.Category]; dup {
				return nil, fmt.Errorf("category triplet %s: registered twice", spec.Category)
			}
			s.byCategory[spec.Category] = t
		default:
			return nil, fmt.Errorf("triplet spec with neither column id nor category")
		}
	}
	for _, col := range registry.All() {
		if _, ok := s.TripletFor(col); !ok {
			return nil, fmt.Errorf("column %s: no triplet and no %s category default", col.ID, col.Category)
		}
	}
	return s, nil
}

// TripletFor returns the triplet serving a column.
func (s *Store) TripletFor(col taxonomy.ColumnDefinition) (*Triplet, bool) {
	if t, ok := s.byColumn[col.ID]; ok {
		return t, true
	}
	t, ok := s.byCategory[col.Category]
	return t, ok
}

// InputForColumn builds the template input shared by all three phases.
func InputForColumn(termName, termShortDef string, attributes map[string]any, col taxonomy.ColumnDefinition) GenerateInput {
	return GenerateInput{
		TermName:        termName,
		TermShortDef:    termShortDef,
		Attributes:      attributes,
		ColumnTitle:     col.Title,
		ColumnPath:      col.Path,
		ContentType:     col.ContentType,
		EstimatedTokens: col.EstimatedTokens,
	}
}

package prompts

import (
	"strings"
	"testing"

	"github.com/termforge/glossary-backend/internal/taxonomy"
)

func loadRegistry(t *testing.T) *taxonomy.Registry {
	t.Helper()
	registry, err := taxonomy.Load()
	if err != nil {
		t.Fatalf("taxonomy.Load() error: %v", err)
	}
	return registry
}

func TestNewStoreCoversCatalog(t *testing.T) {
	registry := loadRegistry(t)
	store, err := NewStore(registry)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	for _, col := range registry.All() {
		if _, ok := store.TripletFor(col); !ok {
			t.Errorf("column %s resolves to no triplet", col.ID)
		}
	}
}

func TestBespokeTripletWinsOverCategoryDefault(t *testing.T) {
	registry := loadRegistry(t)
	store, err := NewStore(registry)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	bespoke, ok := registry.Get("introduction_definition")
	if !ok {
		t.Fatal("introduction_definition missing from catalog")
	}
	var sibling taxonomy.ColumnDefinition
	for _, col := range registry.ByCategory(bespoke.Category) {
		if col.ID != bespoke.ID && col.ID != "how_it_works_overview" {
			sibling = col
			break
		}
	}
	if sibling.ID == "" {
		t.Fatal("no category-default sibling found")
	}

	bt, _ := store.TripletFor(bespoke)
	st, _ := store.TripletFor(sibling)
	if bt == st {
		t.Error("bespoke column shares the category-default triplet")
	}
}

func TestRenderedPromptsCarryTermAndColumn(t *testing.T) {
	registry := loadRegistry(t)
	store, err := NewStore(registry)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	col, _ := registry.Get("introduction_definition")
	triplet, _ := store.TripletFor(col)
	in := InputForColumn("Transformer", "A neural architecture based on attention.", map[string]any{"field": "ml"}, col)

	gen, err := triplet.RenderGenerative(in)
	if err != nil {
		t.Fatalf("RenderGenerative() error: %v", err)
	}
	if !strings.Contains(gen, "Transformer") {
		t.Error("generative prompt does not mention the term")
	}

	eval, err := triplet.RenderEvaluative(EvaluateInput{GenerateInput: in, Content: "draft content"})
	if err != nil {
		t.Fatalf("RenderEvaluative() error: %v", err)
	}
	if !strings.Contains(eval, "draft content") {
		t.Error("evaluative prompt does not include the content under review")
	}
	if !strings.Contains(eval, `"score"`) {
		t.Error("evaluative prompt does not state the score contract")
	}

	imp, err := triplet.RenderImprovement(ImproveInput{GenerateInput: in, Content: "draft content", Feedback: "too vague"})
	if err != nil {
		t.Fatalf("RenderImprovement() error: %v", err)
	}
	if !strings.Contains(imp, "too vague") {
		t.Error("improvement prompt does not include the feedback")
	}
}

func TestCompileRejectsIncompleteSpec(t *testing.T) {
	_, err := compile(TripletSpec{ColumnID: "x", Generative: "a", Evaluative: "b"})
	if err == nil {
		t.Fatal("compile accepted a triplet with a missing improvement body")
	}
}

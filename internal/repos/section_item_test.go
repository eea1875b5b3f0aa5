package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/termforge/glossary-backend/internal/db"
	"github.com/termforge/glossary-backend/internal/logger"
	"github.com/termforge/glossary-backend/internal/types"
)

func newTestDB(t *testing.T) (*gorm.DB, *logger.Logger) {
	t.Helper()
	gormDB, err := db.NewSQLiteMemory()
	if err != nil {
		t.Fatalf("NewSQLiteMemory() error: %v", err)
	}
	baseLog, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New() error: %v", err)
	}
	return gormDB, baseLog
}

func TestSectionItemUpsertKeepsOneRowPerPair(t *testing.T) {
	gormDB, baseLog := newTestDB(t)
	repo := NewSectionItemRepo(gormDB, baseLog)
	ctx := context.Background()

	termID := uuid.New()
	first := &types.SectionItem{
		TermID:          termID,
		ColumnID:        "introduction_definition",
		Content:         "first draft",
		ProcessingPhase: types.PhaseGenerated,
		GenerationCost:  0.01,
	}
	if err := repo.Upsert(ctx, nil, first); err != nil {
		t.Fatalf("first Upsert() error: %v", err)
	}

	second := &types.SectionItem{
		TermID:          termID,
		ColumnID:        "introduction_definition",
		Content:         "second draft",
		EvaluationScore: 8,
		ProcessingPhase: types.PhaseFinal,
		QualityScore:    8,
		GenerationCost:  0.03,
	}
	if err := repo.Upsert(ctx, nil, second); err != nil {
		t.Fatalf("second Upsert() error: %v", err)
	}

	var count int64
	if err := gormDB.Model(&types.SectionItem{}).
		Where("term_id = ? AND column_id = ?", termID, "introduction_definition").
		Count(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1 per (term, column) pair", count)
	}

	stored, err := repo.GetByTermAndColumn(ctx, nil, termID, "introduction_definition")
	if err != nil {
		t.Fatalf("GetByTermAndColumn() error: %v", err)
	}
	if stored.Content != "second draft" || stored.ProcessingPhase != types.PhaseFinal || stored.QualityScore != 8 {
		t.Errorf("stored row kept stale values: %+v", stored)
	}
}

func TestSectionItemGetMissingPair(t *testing.T) {
	gormDB, baseLog := newTestDB(t)
	repo := NewSectionItemRepo(gormDB, baseLog)

	got, err := repo.GetByTermAndColumn(context.Background(), nil, uuid.New(), "introduction_definition")
	if err != nil {
		t.Fatalf("GetByTermAndColumn() error: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for an unprocessed pair", got)
	}
}

func TestSectionItemFinalListings(t *testing.T) {
	gormDB, baseLog := newTestDB(t)
	repo := NewSectionItemRepo(gormDB, baseLog)
	ctx := context.Background()

	finalTerm := uuid.New()
	pendingTerm := uuid.New()
	failedTerm := uuid.New()

	seed := []*types.SectionItem{
		{TermID: finalTerm, ColumnID: "introduction_definition", ProcessingPhase: types.PhaseFinal},
		{TermID: finalTerm, ColumnID: "how_it_works_overview", ProcessingPhase: types.PhaseEvaluated},
		{TermID: pendingTerm, ColumnID: "introduction_definition", ProcessingPhase: types.PhaseGenerated},
		{TermID: failedTerm, ColumnID: "introduction_definition", ProcessingPhase: types.PhaseFailed},
	}
	for _, item := range seed {
		if err := repo.Upsert(ctx, nil, item); err != nil {
			t.Fatalf("seed Upsert() error: %v", err)
		}
	}

	termIDs, err := repo.ListFinalTermIDs(ctx, nil, "introduction_definition")
	if err != nil {
		t.Fatalf("ListFinalTermIDs() error: %v", err)
	}
	if len(termIDs) != 1 || termIDs[0] != finalTerm {
		t.Errorf("ListFinalTermIDs = %v, want only the final term; generated and failed items are redone", termIDs)
	}

	colIDs, err := repo.ListFinalColumnIDs(ctx, nil, finalTerm)
	if err != nil {
		t.Fatalf("ListFinalColumnIDs() error: %v", err)
	}
	if len(colIDs) != 1 || colIDs[0] != "introduction_definition" {
		t.Errorf("ListFinalColumnIDs = %v, want only introduction_definition", colIDs)
	}

	incomplete, err := repo.ListIncomplete(ctx, nil, "introduction_definition", 10, 0)
	if err != nil {
		t.Fatalf("ListIncomplete() error: %v", err)
	}
	if len(incomplete) != 2 {
		t.Errorf("ListIncomplete returned %d items, want 2 (generated + failed)", len(incomplete))
	}
}

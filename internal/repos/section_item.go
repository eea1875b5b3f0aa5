package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/termforge/glossary-backend/internal/logger"
	"github.com/termforge/glossary-backend/internal/types"
)

type SectionItemRepo interface {
	GetByTermAndColumn(ctx context.Context, tx *gorm.DB, termID uuid.UUID, columnID string) (*types.SectionItem, error)
	Upsert(ctx context.Context, tx *gorm.DB, row *types.SectionItem) error
	ListFinalTermIDs(ctx context.Context, tx *gorm.DB, columnID string) ([]uuid.UUID, error)
	ListFinalColumnIDs(ctx context.Context, tx *gorm.DB, termID uuid.UUID) ([]string, error)
	ListIncomplete(ctx context.Context, tx *gorm.DB, columnID string, limit, offset int) ([]*types.SectionItem, error)
}

type sectionItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSectionItemRepo(db *gorm.DB, baseLog *logger.Logger) SectionItemRepo {
	repoLog := baseLog.With("repo", "SectionItemRepo")
	return &sectionItemRepo{db: db, log: repoLog}
}

// GetByTermAndColumn returns nil (no error) when the pair has never been
// processed.
func (r *sectionItemRepo) GetByTermAndColumn(ctx context.Context, tx *gorm.DB, termID uuid.UUID, columnID string) (*types.SectionItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.SectionItem
	err := transaction.WithContext(ctx).
		Where("term_id = ? AND column_id = ?", termID, columnID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Upsert writes the item atomically keyed on (term_id, column_id). Workers
// upsert concurrently; last write wins at the storage layer, no in-process
// lock.
func (r *sectionItemRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.SectionItem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}

	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "term_id"}, {Name: "column_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"content", "evaluation_score", "evaluation_feedback",
				"improved_content", "processing_phase", "generation_cost",
				"quality_score", "model", "error", "updated_at",
			}),
		}).
		Create(row).Error; err != nil {
		return err
	}
	return nil
}

// ListFinalTermIDs returns term ids whose item for the column is final,
// for skipExisting scans over a column scope.
func (r *sectionItemRepo) ListFinalTermIDs(ctx context.Context, tx *gorm.DB, columnID string) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.SectionItem{}).
		Where("column_id = ? AND processing_phase = ?", columnID, types.PhaseFinal).
		Pluck("term_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListFinalColumnIDs is the term-scope counterpart of ListFinalTermIDs.
func (r *sectionItemRepo) ListFinalColumnIDs(ctx context.Context, tx *gorm.DB, termID uuid.UUID) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []string
	if err := transaction.WithContext(ctx).
		Model(&types.SectionItem{}).
		Where("term_id = ? AND processing_phase = ?", termID, types.PhaseFinal).
		Pluck("column_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListIncomplete pages through non-final items of a column, oldest first.
func (r *sectionItemRepo) ListIncomplete(ctx context.Context, tx *gorm.DB, columnID string, limit, offset int) ([]*types.SectionItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.SectionItem
	q := transaction.WithContext(ctx).
		Where("column_id = ? AND processing_phase <> ?", columnID, types.PhaseFinal).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

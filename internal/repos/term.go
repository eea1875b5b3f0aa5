package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/termforge/glossary-backend/internal/logger"
	"github.com/termforge/glossary-backend/internal/types"
)

type TermRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Term) ([]*types.Term, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Term, error)
	ListIDs(ctx context.Context, tx *gorm.DB) ([]uuid.UUID, error)
	Count(ctx context.Context, tx *gorm.DB) (int64, error)
}

type termRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTermRepo(db *gorm.DB, baseLog *logger.Logger) TermRepo {
	repoLog := baseLog.With("repo", "TermRepo")
	return &termRepo{db: db, log: repoLog}
}

func (r *termRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Term) ([]*types.Term, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.Term{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *termRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Term, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Term
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

// ListIDs returns every live term id ordered by name, so batch enumeration
// is stable between runs.
func (r *termRepo) ListIDs(ctx context.Context, tx *gorm.DB) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.Term{}).
		Order("name ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *termRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.Term{}).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

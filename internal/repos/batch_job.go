package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/termforge/glossary-backend/internal/logger"
	"github.com/termforge/glossary-backend/internal/types"
)

type BatchJobRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.BatchJob) (*types.BatchJob, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.BatchJob, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error
	ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.BatchJob, error)
}

type batchJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBatchJobRepo(db *gorm.DB, baseLog *logger.Logger) BatchJobRepo {
	repoLog := baseLog.With("repo", "BatchJobRepo")
	return &batchJobRepo{db: db, log: repoLog}
}

func (r *batchJobRepo) Create(ctx context.Context, tx *gorm.DB, row *types.BatchJob) (*types.BatchJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}

	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *batchJobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.BatchJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.BatchJob
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *batchJobRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(updates) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Model(&types.BatchJob{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return err
	}
	return nil
}

func (r *batchJobRepo) ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.BatchJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if limit <= 0 {
		limit = 20
	}

	var results []*types.BatchJob
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

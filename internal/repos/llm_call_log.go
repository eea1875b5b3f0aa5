package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/termforge/glossary-backend/internal/logger"
	"github.com/termforge/glossary-backend/internal/types"
)

// ColumnUsage is one row of the per-column cost rollup.
type ColumnUsage struct {
	ColumnID         string  `json:"column_id"`
	Calls            int64   `json:"calls"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}

type LLMCallLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.LLMCallLog) ([]*types.LLMCallLog, error)
	AggregateByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) ([]ColumnUsage, error)
	CountByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (int64, error)
}

type llmCallLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLLMCallLogRepo(db *gorm.DB, baseLog *logger.Logger) LLMCallLogRepo {
	repoLog := baseLog.With("repo", "LLMCallLogRepo")
	return &llmCallLogRepo{db: db, log: repoLog}
}

func (r *llmCallLogRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.LLMCallLog) ([]*types.LLMCallLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.LLMCallLog{}, nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// AggregateByJob rolls the call log up per column for one job; this is the
// billed-usage view, so failed and retried attempts count too.
func (r *llmCallLogRepo) AggregateByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) ([]ColumnUsage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []ColumnUsage
	if err := transaction.WithContext(ctx).
		Model(&types.LLMCallLog{}).
		Select("column_id, COUNT(*) AS calls, SUM(prompt_tokens) AS prompt_tokens, SUM(completion_tokens) AS completion_tokens, SUM(cost) AS cost").
		Where("job_id = ?", jobID).
		Group("column_id").
		Order("column_id ASC").
		Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *llmCallLogRepo) CountByJob(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.LLMCallLog{}).
		Where("job_id = ?", jobID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

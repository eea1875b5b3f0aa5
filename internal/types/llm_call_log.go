package types

import (
	"time"

	"github.com/google/uuid"
)

// LLMCallLog is one row per LLM call attempt, successful or not. Billed
// usage is reconstructed from this table, so retried and failed attempts
// are logged too (failed attempts with zero usage and the error string).
type LLMCallLog struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	JobID            *uuid.UUID `gorm:"type:uuid;index" json:"job_id,omitempty"`
	TermID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"term_id"`
	ColumnID         string     `gorm:"column:column_id;not null;index" json:"column_id"`
	Phase            string     `gorm:"column:phase;not null" json:"phase"`
	Attempt          int        `gorm:"column:attempt;not null;default:1" json:"attempt"`
	Model            string     `gorm:"column:model;not null" json:"model"`
	PromptTokens     int        `gorm:"column:prompt_tokens;not null;default:0" json:"prompt_tokens"`
	CompletionTokens int        `gorm:"column:completion_tokens;not null;default:0" json:"completion_tokens"`
	Cost             float64    `gorm:"column:cost;not null;default:0" json:"cost"`
	Success          bool       `gorm:"column:success;not null" json:"success"`
	Error            string     `gorm:"column:error" json:"error,omitempty"`
	CreatedAt        time.Time  `gorm:"not null;index" json:"created_at"`
}

func (LLMCallLog) TableName() string { return "llm_call_log" }

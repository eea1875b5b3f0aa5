package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusCancelled = "cancelled"
	JobStatusFailed    = "failed"
)

// BatchJob is one orchestrated run over a scope of (term, column) pairs:
// either one column across every term, or every column for one term.
type BatchJob struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ColumnID    string         `gorm:"column:column_id;index" json:"column_id,omitempty"`
	TermID      *uuid.UUID     `gorm:"type:uuid;index" json:"term_id,omitempty"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	TotalItems  int            `gorm:"column:total_items;not null;default:0" json:"total_items"`
	Processed   int            `gorm:"column:processed;not null;default:0" json:"processed"`
	Succeeded   int            `gorm:"column:succeeded;not null;default:0" json:"succeeded"`
	Failed      int            `gorm:"column:failed;not null;default:0" json:"failed"`
	Skipped     int            `gorm:"column:skipped;not null;default:0" json:"skipped"`
	TotalCost   float64        `gorm:"column:total_cost;not null;default:0" json:"total_cost"`
	Config      datatypes.JSON `gorm:"type:jsonb;column:config" json:"config"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	StartedAt   time.Time      `gorm:"not null" json:"started_at"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (BatchJob) TableName() string { return "batch_job" }

// Terminal reports whether the job left the running state.
func (j *BatchJob) Terminal() bool {
	return j.Status != JobStatusRunning
}

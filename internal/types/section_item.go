package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Processing phases for a section item. A phase only moves forward along
// generated -> evaluated -> (improved) -> final; the only regression is to
// failed.
const (
	PhaseGenerated = "generated"
	PhaseEvaluated = "evaluated"
	PhaseImproved  = "improved"
	PhaseFinal     = "final"
	PhaseFailed    = "failed"
)

// SectionItem is the content of one column for one term. One row per
// (term_id, column_id); re-processing the same pair upserts.
type SectionItem struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TermID             uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_section_term_column" json:"term_id"`
	ColumnID           string         `gorm:"column:column_id;not null;uniqueIndex:idx_section_term_column" json:"column_id"`
	Content            string         `gorm:"column:content;type:text" json:"content"`
	EvaluationScore    int            `gorm:"column:evaluation_score;not null;default:0" json:"evaluation_score"`
	EvaluationFeedback string         `gorm:"column:evaluation_feedback;type:text" json:"evaluation_feedback"`
	ImprovedContent    string         `gorm:"column:improved_content;type:text" json:"improved_content,omitempty"`
	ProcessingPhase    string         `gorm:"column:processing_phase;not null;index" json:"processing_phase"`
	GenerationCost     float64        `gorm:"column:generation_cost;not null;default:0" json:"generation_cost"`
	QualityScore       int            `gorm:"column:quality_score;not null;default:0" json:"quality_score"`
	Model              string         `gorm:"column:model" json:"model"`
	Error              string         `gorm:"column:error" json:"error,omitempty"`
	CreatedAt          time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;index" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SectionItem) TableName() string { return "section_item" }

// FinalContent returns the improved content when the improve pass ran,
// otherwise the originally generated content.
func (s *SectionItem) FinalContent() string {
	if s.ImprovedContent != "" {
		return s.ImprovedContent
	}
	return s.Content
}

package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Term is one glossary entry. Attributes holds the structured fields the
// prompt templates interpolate (short definition, aliases, related terms...).
type Term struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string         `gorm:"column:name;not null;index" json:"name"`
	Slug       string         `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	ShortDef   string         `gorm:"column:short_def" json:"short_def"`
	Attributes datatypes.JSON `gorm:"type:jsonb;column:attributes" json:"attributes"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Term) TableName() string { return "term" }

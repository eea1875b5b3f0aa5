package services

import (
	"fmt"
	"time"
)

// Pipeline modes.
const (
	ModeFullPipeline = "full-pipeline"
	ModeGenerateOnly = "generate-only"
)

const (
	DefaultQualityThreshold    = 7
	DefaultBatchSize           = 10
	DefaultConcurrency         = 5
	DefaultDelayBetweenBatches = 2 * time.Second
	DefaultMaxAttempts         = 3
)

// GenerationConfig is the per-request knob set for both single-item runs and
// batches. Zero values are filled by Normalize; Validate rejects a config
// before anything is dispatched.
type GenerationConfig struct {
	Mode                string        `json:"mode"`
	QualityThreshold    int           `json:"quality_threshold"`
	Model               string        `json:"model"`
	BatchSize           int           `json:"batch_size"`
	DelayBetweenBatches time.Duration `json:"delay_between_batches"`
	SkipExisting        bool          `json:"skip_existing"`
	Concurrency         int           `json:"concurrency"`
	MaxAttempts         int           `json:"max_attempts"`
}

// ConfigValidationError rejects a job before dispatch.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Reason)
}

// Normalize fills unset fields with defaults. Called before Validate so a
// mostly-empty config is usable.
func (c *GenerationConfig) Normalize() {
	if c.Mode == "" {
		c.Mode = ModeFullPipeline
	}
	if c.QualityThreshold == 0 {
		c.QualityThreshold = DefaultQualityThreshold
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.DelayBetweenBatches == 0 {
		c.DelayBetweenBatches = DefaultDelayBetweenBatches
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
}

func (c *GenerationConfig) Validate() error {
	switch c.Mode {
	case ModeFullPipeline, ModeGenerateOnly:
	default:
		return &ConfigValidationError{Field: "mode", Reason: fmt.Sprintf("must be %q or %q, got %q", ModeFullPipeline, ModeGenerateOnly, c.Mode)}
	}
	if c.QualityThreshold < 1 || c.QualityThreshold > 10 {
		return &ConfigValidationError{Field: "quality_threshold", Reason: fmt.Sprintf("must be in [1,10], got %d", c.QualityThreshold)}
	}
	if c.BatchSize < 1 {
		return &ConfigValidationError{Field: "batch_size", Reason: fmt.Sprintf("must be positive, got %d", c.BatchSize)}
	}
	if c.Concurrency < 1 {
		return &ConfigValidationError{Field: "concurrency", Reason: fmt.Sprintf("must be positive, got %d", c.Concurrency)}
	}
	if c.DelayBetweenBatches < 0 {
		return &ConfigValidationError{Field: "delay_between_batches", Reason: "must not be negative"}
	}
	if c.MaxAttempts < 1 {
		return &ConfigValidationError{Field: "max_attempts", Reason: fmt.Sprintf("must be positive, got %d", c.MaxAttempts)}
	}
	return nil
}

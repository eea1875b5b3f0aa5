package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/termforge/glossary-backend/internal/logger"
	"github.com/termforge/glossary-backend/internal/repos"
	"github.com/termforge/glossary-backend/internal/services"
)

// generationConfigRequest is the wire form of the pipeline config; the delay
// travels as milliseconds.
type generationConfigRequest struct {
	Mode                  string `json:"mode"`
	QualityThreshold      int    `json:"quality_threshold"`
	Model                 string `json:"model"`
	BatchSize             int    `json:"batch_size"`
	DelayBetweenBatchesMS int    `json:"delay_between_batches_ms"`
	SkipExisting          bool   `json:"skip_existing"`
	Concurrency           int    `json:"concurrency"`
	MaxAttempts           int    `json:"max_attempts"`
}

func (r generationConfigRequest) toConfig() services.GenerationConfig {
	return services.GenerationConfig{
		Mode:                r.Mode,
		QualityThreshold:    r.QualityThreshold,
		Model:               r.Model,
		BatchSize:           r.BatchSize,
		DelayBetweenBatches: time.Duration(r.DelayBetweenBatchesMS) * time.Millisecond,
		SkipExisting:        r.SkipExisting,
		Concurrency:         r.Concurrency,
		MaxAttempts:         r.MaxAttempts,
	}
}

type GenerationHandler struct {
	log         *logger.Logger
	engine      services.GenerationEngine
	callLogRepo repos.LLMCallLogRepo
}

func NewGenerationHandler(baseLog *logger.Logger, engine services.GenerationEngine, callLogRepo repos.LLMCallLogRepo) *GenerationHandler {
	return &GenerationHandler{
		log:         baseLog.With("handler", "GenerationHandler"),
		engine:      engine,
		callLogRepo: callLogRepo,
	}
}

// GenerateSection runs the full pipeline for one (term, column) pair
// synchronously and returns the resulting item with its cost report.
func (gh *GenerationHandler) GenerateSection(c *gin.Context) {
	termID, err := uuid.Parse(c.Param("termId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid term id"})
		return
	}
	columnID := c.Param("columnId")

	var req generationConfigRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	cfg := req.toConfig()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tracker := services.NewCostTracker(gh.log, gh.callLogRepo)
	item, err := gh.engine.ProcessSection(c.Request.Context(), termID, columnID, cfg, nil, tracker)
	if err != nil {
		var genErr *services.GenerationError
		if errors.As(err, &genErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": genErr.Error(), "phase": genErr.Phase})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "costs": tracker.Report()})
}

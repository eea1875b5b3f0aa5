package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/termforge/glossary-backend/internal/logger"
	"github.com/termforge/glossary-backend/internal/services"
)

type BatchHandler struct {
	log          *logger.Logger
	orchestrator services.BatchOrchestrator
}

func NewBatchHandler(baseLog *logger.Logger, orchestrator services.BatchOrchestrator) *BatchHandler {
	return &BatchHandler{
		log:          baseLog.With("handler", "BatchHandler"),
		orchestrator: orchestrator,
	}
}

func (bh *BatchHandler) StartColumnBatch(c *gin.Context) {
	columnID := c.Param("columnId")

	var req generationConfigRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	jobID, err := bh.orchestrator.StartColumnBatch(c.Request.Context(), columnID, req.toConfig())
	if err != nil {
		bh.respondStartError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

func (bh *BatchHandler) StartTermBatch(c *gin.Context) {
	termID, err := uuid.Parse(c.Param("termId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid term id"})
		return
	}

	var req generationConfigRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	jobID, err := bh.orchestrator.StartTermBatch(c.Request.Context(), termID, req.toConfig())
	if err != nil {
		bh.respondStartError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

func (bh *BatchHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := bh.orchestrator.GetStatus(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (bh *BatchHandler) GetJobCosts(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	usage, err := bh.orchestrator.CostReport(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	var total float64
	for _, u := range usage {
		total += u.Cost
	}
	c.JSON(http.StatusOK, gin.H{"per_column": usage, "total_cost": total})
}

func (bh *BatchHandler) CancelJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	if err := bh.orchestrator.Cancel(jobID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": jobID, "cancelling": true})
}

func (bh *BatchHandler) respondStartError(c *gin.Context, err error) {
	var cfgErr *services.ConfigValidationError
	if errors.As(err, &cfgErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": cfgErr.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/termforge/glossary-backend/internal/logger"
	"github.com/termforge/glossary-backend/internal/repos"
	"github.com/termforge/glossary-backend/internal/taxonomy"
	"github.com/termforge/glossary-backend/internal/types"
)

// BatchOrchestrator fans a job scope out over (term, column) work units:
// sequential batches, a bounded worker pool inside each batch, a pacing
// delay between batches, and partial-failure aggregation into the job row.
type BatchOrchestrator interface {
	StartColumnBatch(ctx context.Context, columnID string, cfg GenerationConfig) (uuid.UUID, error)
	StartTermBatch(ctx context.Context, termID uuid.UUID, cfg GenerationConfig) (uuid.UUID, error)
	GetStatus(ctx context.Context, jobID uuid.UUID) (*types.BatchJob, error)
	CostReport(ctx context.Context, jobID uuid.UUID) ([]repos.ColumnUsage, error)
	Cancel(jobID uuid.UUID) error
}

type workUnit struct {
	termID   uuid.UUID
	columnID string
}

type jobScope struct {
	columnID string
	termID   *uuid.UUID
}

// jobControl carries the cooperative cancellation flag. Closing stop is
// observed between work-unit dispatches; in-flight items always finish.
type jobControl struct {
	stop chan struct{}
	once sync.Once
}

func (c *jobControl) requestStop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *jobControl) stopRequested() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

type batchOrchestrator struct {
	db          *gorm.DB
	log         *logger.Logger
	registry    *taxonomy.Registry
	termRepo    repos.TermRepo
	sectionRepo repos.SectionItemRepo
	jobRepo     repos.BatchJobRepo
	callLogRepo repos.LLMCallLogRepo
	engine      GenerationEngine
	statusPub   JobStatusPublisher

	mu      sync.Mutex
	running map[uuid.UUID]*jobControl
}

func NewBatchOrchestrator(
	db *gorm.DB,
	baseLog *logger.Logger,
	registry *taxonomy.Registry,
	termRepo repos.TermRepo,
	sectionRepo repos.SectionItemRepo,
	jobRepo repos.BatchJobRepo,
	callLogRepo repos.LLMCallLogRepo,
	engine GenerationEngine,
	statusPub JobStatusPublisher,
) BatchOrchestrator {
	return &batchOrchestrator{
		db:          db,
		log:         baseLog.With("service", "BatchOrchestrator"),
		registry:    registry,
		termRepo:    termRepo,
		sectionRepo: sectionRepo,
		jobRepo:     jobRepo,
		callLogRepo: callLogRepo,
		engine:      engine,
		statusPub:   statusPub,
		running:     make(map[uuid.UUID]*jobControl),
	}
}

func (o *batchOrchestrator) StartColumnBatch(ctx context.Context, columnID string, cfg GenerationConfig) (uuid.UUID, error) {
	if _, ok := o.registry.Get(columnID); !ok {
		return uuid.Nil, &ConfigValidationError{Field: "column_id", Reason: fmt.Sprintf("unknown column %q", columnID)}
	}
	return o.start(ctx, jobScope{columnID: columnID}, cfg)
}

func (o *batchOrchestrator) StartTermBatch(ctx context.Context, termID uuid.UUID, cfg GenerationConfig) (uuid.UUID, error) {
	if _, err := o.termRepo.GetByID(ctx, nil, termID); err != nil {
		return uuid.Nil, &ConfigValidationError{Field: "term_id", Reason: fmt.Sprintf("unknown term %s", termID)}
	}
	return o.start(ctx, jobScope{termID: &termID}, cfg)
}

func (o *batchOrchestrator) start(ctx context.Context, scope jobScope, cfg GenerationConfig) (uuid.UUID, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return uuid.Nil, err
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("snapshot config: %w", err)
	}

	now := time.Now()
	job := &types.BatchJob{
		ID:        uuid.New(),
		ColumnID:  scope.columnID,
		TermID:    scope.termID,
		Status:    types.JobStatusRunning,
		Config:    datatypes.JSON(cfgJSON),
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := o.jobRepo.Create(ctx, nil, job); err != nil {
		return uuid.Nil, fmt.Errorf("create batch job: %w", err)
	}

	control := &jobControl{stop: make(chan struct{})}
	o.mu.Lock()
	o.running[job.ID] = control
	o.mu.Unlock()

	o.log.Info("Batch job started",
		"job_id", job.ID,
		"column_id", scope.columnID,
		"batch_size", cfg.BatchSize,
		"concurrency", cfg.Concurrency,
		"skip_existing", cfg.SkipExisting,
	)

	// The job outlives the trigger request; it stops via the control flag,
	// not via the request context.
	go o.run(context.Background(), job.ID, scope, cfg, control)

	return job.ID, nil
}

func (o *batchOrchestrator) run(ctx context.Context, jobID uuid.UUID, scope jobScope, cfg GenerationConfig, control *jobControl) {
	defer func() {
		o.mu.Lock()
		delete(o.running, jobID)
		o.mu.Unlock()
	}()

	units, skipped, err := o.enumerate(ctx, scope, cfg)
	if err != nil {
		o.failJob(ctx, jobID, fmt.Errorf("enumerate work units: %w", err))
		return
	}

	if err := o.jobRepo.UpdateFields(ctx, nil, jobID, map[string]any{
		"total_items": len(units) + skipped,
		"skipped":     skipped,
		"updated_at":  time.Now(),
	}); err != nil {
		o.failJob(ctx, jobID, fmt.Errorf("record job scope: %w", err))
		return
	}

	tracker := NewCostTracker(o.log, o.callLogRepo)

	var mu sync.Mutex
	var processed, succeeded, failed int
	cancelled := false

	for start := 0; start < len(units); start += cfg.BatchSize {
		if control.stopRequested() {
			cancelled = true
			break
		}

		end := start + cfg.BatchSize
		if end > len(units) {
			end = len(units)
		}
		batch := units[start:end]

		g := new(errgroup.Group)
		g.SetLimit(cfg.Concurrency)
		for _, unit := range batch {
			if control.stopRequested() {
				cancelled = true
				break
			}
			unit := unit
			g.Go(func() error {
				_, err := o.engine.ProcessSection(ctx, unit.termID, unit.columnID, cfg, &jobID, tracker)
				mu.Lock()
				processed++
				if err != nil {
					failed++
				} else {
					succeeded++
				}
				mu.Unlock()
				if err != nil {
					o.log.Warn("Work unit failed",
						"job_id", jobID,
						"term_id", unit.termID,
						"column_id", unit.columnID,
						"error", err,
					)
				}
				// Item failures are aggregated, never propagated.
				return nil
			})
		}
		_ = g.Wait()

		mu.Lock()
		snapshot := map[string]any{
			"processed":  processed,
			"succeeded":  succeeded,
			"failed":     failed,
			"total_cost": tracker.TotalCost(),
			"updated_at": time.Now(),
		}
		mu.Unlock()
		if err := o.jobRepo.UpdateFields(ctx, nil, jobID, snapshot); err != nil {
			o.log.Warn("Failed to update job counters", "job_id", jobID, "error", err)
		}
		o.publishStatus(ctx, jobID)

		if cancelled || end >= len(units) {
			break
		}

		// Pacing against the upstream rate limit.
		select {
		case <-control.stop:
			cancelled = true
		case <-time.After(cfg.DelayBetweenBatches):
		}
		if cancelled {
			break
		}
	}

	status := types.JobStatusCompleted
	if cancelled {
		status = types.JobStatusCancelled
	}
	now := time.Now()
	if err := o.jobRepo.UpdateFields(ctx, nil, jobID, map[string]any{
		"status":       status,
		"processed":    processed,
		"succeeded":    succeeded,
		"failed":       failed,
		"total_cost":   tracker.TotalCost(),
		"completed_at": now,
		"updated_at":   now,
	}); err != nil {
		o.log.Error("Failed to finalize job", "job_id", jobID, "error", err)
	}
	o.publishStatus(ctx, jobID)

	o.log.Info("Batch job finished",
		"job_id", jobID,
		"status", status,
		"processed", processed,
		"succeeded", succeeded,
		"failed", failed,
		"skipped", skipped,
		"total_cost", tracker.TotalCost(),
	)
}

// enumerate expands the scope into work units, minus already-final pairs
// when skipExisting is set. Failed items count as not-final and are redone.
func (o *batchOrchestrator) enumerate(ctx context.Context, scope jobScope, cfg GenerationConfig) ([]workUnit, int, error) {
	switch {
	case scope.columnID != "":
		termIDs, err := o.termRepo.ListIDs(ctx, nil)
		if err != nil {
			return nil, 0, err
		}
		done := map[uuid.UUID]bool{}
		if cfg.SkipExisting {
			finalIDs, err := o.sectionRepo.ListFinalTermIDs(ctx, nil, scope.columnID)
			if err != nil {
				return nil, 0, err
			}
			for _, id := range finalIDs {
				done[id] = true
			}
		}
		var units []workUnit
		skipped := 0
		for _, termID := range termIDs {
			if done[termID] {
				skipped++
				continue
			}
			units = append(units, workUnit{termID: termID, columnID: scope.columnID})
		}
		return units, skipped, nil

	case scope.termID != nil:
		done := map[string]bool{}
		if cfg.SkipExisting {
			finalIDs, err := o.sectionRepo.ListFinalColumnIDs(ctx, nil, *scope.termID)
			if err != nil {
				return nil, 0, err
			}
			for _, id := range finalIDs {
				done[id] = true
			}
		}
		var units []workUnit
		skipped := 0
		for _, col := range o.registry.All() {
			if done[col.ID] {
				skipped++
				continue
			}
			units = append(units, workUnit{termID: *scope.termID, columnID: col.ID})
		}
		return units, skipped, nil

	default:
		return nil, 0, fmt.Errorf("job scope is empty")
	}
}

func (o *batchOrchestrator) failJob(ctx context.Context, jobID uuid.UUID, cause error) {
	o.log.Error("Batch job failed", "job_id", jobID, "error", cause)
	now := time.Now()
	if err := o.jobRepo.UpdateFields(ctx, nil, jobID, map[string]any{
		"status":       types.JobStatusFailed,
		"error":        cause.Error(),
		"completed_at": now,
		"updated_at":   now,
	}); err != nil {
		o.log.Error("Failed to mark job failed", "job_id", jobID, "error", err)
	}
	o.publishStatus(ctx, jobID)
}

func (o *batchOrchestrator) publishStatus(ctx context.Context, jobID uuid.UUID) {
	if o.statusPub == nil {
		return
	}
	job, err := o.jobRepo.GetByID(ctx, nil, jobID)
	if err != nil {
		return
	}
	o.statusPub.Publish(ctx, job)
}

func (o *batchOrchestrator) GetStatus(ctx context.Context, jobID uuid.UUID) (*types.BatchJob, error) {
	return o.jobRepo.GetByID(ctx, nil, jobID)
}

func (o *batchOrchestrator) CostReport(ctx context.Context, jobID uuid.UUID) ([]repos.ColumnUsage, error) {
	if _, err := o.jobRepo.GetByID(ctx, nil, jobID); err != nil {
		return nil, err
	}
	return o.callLogRepo.AggregateByJob(ctx, nil, jobID)
}

// Cancel requests a cooperative stop: queued work units are dropped,
// dispatched ones finish, and the job ends as cancelled.
func (o *batchOrchestrator) Cancel(jobID uuid.UUID) error {
	o.mu.Lock()
	control, ok := o.running[jobID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s is not running", jobID)
	}
	control.requestStop()
	return nil
}

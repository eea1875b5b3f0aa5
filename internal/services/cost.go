package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/termforge/glossary-backend/internal/logger"
	"github.com/termforge/glossary-backend/internal/repos"
	"github.com/termforge/glossary-backend/internal/types"
)

// ModelPricing is USD per 1K tokens.
type ModelPricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

var defaultPricing = map[string]ModelPricing{
	"gpt-4.1":      {InputPer1K: 0.002, OutputPer1K: 0.008},
	"gpt-4.1-mini": {InputPer1K: 0.0004, OutputPer1K: 0.0016},
	"gpt-4o":       {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"gpt-4o-mini":  {InputPer1K: 0.00015, OutputPer1K: 0.0006},
}

// fallbackPricing is deliberately on the expensive side so an unknown model
// overestimates rather than underestimates spend.
var fallbackPricing = ModelPricing{InputPer1K: 0.0025, OutputPer1K: 0.01}

// ColumnCost accumulates usage for one column within a run.
type ColumnCost struct {
	Calls            int     `json:"calls"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}

// CostReport is the per-run rollup.
type CostReport struct {
	PerColumn        map[string]ColumnCost `json:"per_column"`
	TotalCalls       int                   `json:"total_calls"`
	TotalPromptTok   int                   `json:"total_prompt_tokens"`
	TotalCompleteTok int                   `json:"total_completion_tokens"`
	TotalCost        float64               `json:"total_cost"`
}

// RecordCallParams describes one LLM call attempt, successful or failed.
type RecordCallParams struct {
	JobID            *uuid.UUID
	TermID           uuid.UUID
	ColumnID         string
	Phase            string
	Attempt          int
	Model            string
	PromptTokens     int
	CompletionTokens int
	Err              error
}

// CostTracker accumulates spend in memory for the live report and persists
// every call attempt to the call log. One tracker per run.
type CostTracker struct {
	mu          sync.Mutex
	log         *logger.Logger
	callLogRepo repos.LLMCallLogRepo
	pricing     map[string]ModelPricing

	perColumn map[string]*ColumnCost
	report    CostReport
}

func NewCostTracker(baseLog *logger.Logger, callLogRepo repos.LLMCallLogRepo) *CostTracker {
	return &CostTracker{
		log:         baseLog.With("service", "CostTracker"),
		callLogRepo: callLogRepo,
		pricing:     defaultPricing,
		perColumn:   make(map[string]*ColumnCost),
	}
}

// Record computes the cost of one call attempt, folds it into the rollup and
// appends a call log row. Failed attempts are recorded with whatever usage
// the response carried (usually zero) because they are still billed work.
func (t *CostTracker) Record(ctx context.Context, p RecordCallParams) float64 {
	pricing, ok := t.pricing[p.Model]
	if !ok {
		pricing = fallbackPricing
	}
	cost := float64(p.PromptTokens)/1000*pricing.InputPer1K +
		float64(p.CompletionTokens)/1000*pricing.OutputPer1K

	t.mu.Lock()
	col, exists := t.perColumn[p.ColumnID]
	if !exists {
		col = &ColumnCost{}
		t.perColumn[p.ColumnID] = col
	}
	col.Calls++
	col.PromptTokens += p.PromptTokens
	col.CompletionTokens += p.CompletionTokens
	col.Cost += cost
	t.report.TotalCalls++
	t.report.TotalPromptTok += p.PromptTokens
	t.report.TotalCompleteTok += p.CompletionTokens
	t.report.TotalCost += cost
	t.mu.Unlock()

	row := &types.LLMCallLog{
		JobID:            p.JobID,
		TermID:           p.TermID,
		ColumnID:         p.ColumnID,
		Phase:            p.Phase,
		Attempt:          p.Attempt,
		Model:            p.Model,
		PromptTokens:     p.PromptTokens,
		CompletionTokens: p.CompletionTokens,
		Cost:             cost,
		Success:          p.Err == nil,
	}
	if p.Err != nil {
		row.Error = p.Err.Error()
	}
	if _, err := t.callLogRepo.Create(ctx, nil, []*types.LLMCallLog{row}); err != nil {
		// Losing an audit row should not fail the pipeline item.
		t.log.Warn("Failed to persist call log row", "column_id", p.ColumnID, "phase", p.Phase, "error", err)
	}

	return cost
}

// Report snapshots the in-memory rollup.
func (t *CostTracker) Report() CostReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.report
	out.PerColumn = make(map[string]ColumnCost, len(t.perColumn))
	for id, col := range t.perColumn {
		out.PerColumn[id] = *col
	}
	return out
}

// TotalCost returns the running total.
func (t *CostTracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.report.TotalCost
}

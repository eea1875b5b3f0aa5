package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/termforge/glossary-backend/internal/logger"
	"github.com/termforge/glossary-backend/internal/prompts"
	"github.com/termforge/glossary-backend/internal/repos"
	"github.com/termforge/glossary-backend/internal/taxonomy"
	"github.com/termforge/glossary-backend/internal/types"
)

// Pipeline phases as recorded in the call log.
const (
	phaseGenerate = "generate"
	phaseEvaluate = "evaluate"
	phaseImprove  = "improve"
)

// GenerationError is the item-level failure the orchestrator records without
// aborting the batch.
type GenerationError struct {
	TermID   uuid.UUID
	ColumnID string
	Phase    string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for term %s column %s at phase %s: %v", e.TermID, e.ColumnID, e.Phase, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// GenerationEngine drives one (term, column) pair through
// generate -> evaluate -> gate -> (improve) -> final. The item is upserted
// after every phase transition so a crash loses at most one phase.
type GenerationEngine interface {
	ProcessSection(ctx context.Context, termID uuid.UUID, columnID string, cfg GenerationConfig, jobID *uuid.UUID, costs *CostTracker) (*types.SectionItem, error)
}

type generationEngine struct {
	db          *gorm.DB
	log         *logger.Logger
	registry    *taxonomy.Registry
	promptStore *prompts.Store
	llm         LLMClient
	termRepo    repos.TermRepo
	sectionRepo repos.SectionItemRepo

	retryBackoffBase time.Duration
	retryBackoffCap  time.Duration
}

func NewGenerationEngine(
	db *gorm.DB,
	baseLog *logger.Logger,
	registry *taxonomy.Registry,
	promptStore *prompts.Store,
	llm LLMClient,
	termRepo repos.TermRepo,
	sectionRepo repos.SectionItemRepo,
) GenerationEngine {
	return &generationEngine{
		db:               db,
		log:              baseLog.With("service", "GenerationEngine"),
		registry:         registry,
		promptStore:      promptStore,
		llm:              llm,
		termRepo:         termRepo,
		sectionRepo:      sectionRepo,
		retryBackoffBase: 1 * time.Second,
		retryBackoffCap:  10 * time.Second,
	}
}

func (e *generationEngine) ProcessSection(ctx context.Context, termID uuid.UUID, columnID string, cfg GenerationConfig, jobID *uuid.UUID, costs *CostTracker) (*types.SectionItem, error) {
	col, ok := e.registry.Get(columnID)
	if !ok {
		return nil, &GenerationError{TermID: termID, ColumnID: columnID, Phase: phaseGenerate, Err: fmt.Errorf("unknown column %q", columnID)}
	}
	triplet, ok := e.promptStore.TripletFor(col)
	if !ok {
		return nil, &GenerationError{TermID: termID, ColumnID: columnID, Phase: phaseGenerate, Err: fmt.Errorf("no prompt triplet for column %q", columnID)}
	}

	term, err := e.termRepo.GetByID(ctx, nil, termID)
	if err != nil {
		return nil, &GenerationError{TermID: termID, ColumnID: columnID, Phase: phaseGenerate, Err: fmt.Errorf("load term: %w", err)}
	}

	var attributes map[string]any
	if len(term.Attributes) > 0 {
		if err := json.Unmarshal(term.Attributes, &attributes); err != nil {
			e.log.Warn("Term attributes are not valid JSON, rendering without them", "term_id", termID, "error", err)
		}
	}
	input := prompts.InputForColumn(term.Name, term.ShortDef, attributes, col)

	// Cost carries over from earlier runs of the same pair; it only grows.
	item := &types.SectionItem{
		TermID:   termID,
		ColumnID: columnID,
		Model:    cfg.Model,
	}
	if existing, err := e.sectionRepo.GetByTermAndColumn(ctx, nil, termID, columnID); err == nil && existing != nil {
		item.ID = existing.ID
		item.GenerationCost = existing.GenerationCost
	}

	call := callMeta{jobID: jobID, termID: termID, columnID: columnID, maxAttempts: cfg.MaxAttempts, maxTokens: completionBudget(col), model: cfg.Model}

	// Phase 1: generate.
	genPrompt, err := triplet.RenderGenerative(input)
	if err != nil {
		return nil, e.markFailed(ctx, item, phaseGenerate, err)
	}
	genComp, genCost, err := e.callWithRetry(ctx, call.withPhase(phaseGenerate), genPrompt, costs)
	if err != nil {
		return nil, e.markFailed(ctx, item, phaseGenerate, err)
	}
	item.Content = genComp.Text
	item.Model = genComp.Model
	item.GenerationCost += genCost
	item.ProcessingPhase = types.PhaseGenerated
	if err := e.persist(ctx, item); err != nil {
		return nil, err
	}

	if cfg.Mode == ModeGenerateOnly {
		// Item stays in generated; a later full-pipeline run finishes it.
		return item, nil
	}

	// Phase 2: evaluate.
	evalPrompt, err := triplet.RenderEvaluative(prompts.EvaluateInput{GenerateInput: input, Content: item.Content})
	if err != nil {
		return nil, e.markFailed(ctx, item, phaseEvaluate, err)
	}
	evalComp, evalCost, err := e.callWithRetry(ctx, call.withPhase(phaseEvaluate), evalPrompt, costs)
	if err != nil {
		return nil, e.markFailed(ctx, item, phaseEvaluate, err)
	}
	score, feedback, err := parseEvaluation(evalComp.Text)
	if err != nil {
		// Unparseable review output is a content fault, not worth retrying.
		return nil, e.markFailed(ctx, item, phaseEvaluate, &PermanentLLMError{Err: err})
	}
	item.EvaluationScore = score
	item.EvaluationFeedback = feedback
	item.GenerationCost += evalCost
	item.ProcessingPhase = types.PhaseEvaluated
	if err := e.persist(ctx, item); err != nil {
		return nil, err
	}

	// Phase 3: gate, then at most one improve pass. No re-evaluation after
	// improving; the cost per item stays bounded.
	if DecideQuality(score, cfg.QualityThreshold) == DecisionImprove {
		impPrompt, err := triplet.RenderImprovement(prompts.ImproveInput{GenerateInput: input, Content: item.Content, Feedback: feedback})
		if err != nil {
			return nil, e.markFailed(ctx, item, phaseImprove, err)
		}
		impComp, impCost, err := e.callWithRetry(ctx, call.withPhase(phaseImprove), impPrompt, costs)
		if err != nil {
			return nil, e.markFailed(ctx, item, phaseImprove, err)
		}
		item.ImprovedContent = impComp.Text
		item.GenerationCost += impCost
		item.ProcessingPhase = types.PhaseImproved
		if err := e.persist(ctx, item); err != nil {
			return nil, err
		}
	}

	item.QualityScore = score
	item.Error = ""
	item.ProcessingPhase = types.PhaseFinal
	if err := e.persist(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

type callMeta struct {
	jobID       *uuid.UUID
	termID      uuid.UUID
	columnID    string
	phase       string
	maxAttempts int
	maxTokens   int
	model       string
}

func (m callMeta) withPhase(phase string) callMeta {
	m.phase = phase
	return m
}

// callWithRetry is the attempt-counted retry loop: transient errors back off
// and retry up to the cap, permanent errors fail immediately. Every attempt,
// including failed ones, lands in the cost tracker.
func (e *generationEngine) callWithRetry(ctx context.Context, meta callMeta, prompt string, costs *CostTracker) (*Completion, float64, error) {
	var totalCost float64
	backoff := e.retryBackoffBase

	for attempt := 1; attempt <= meta.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, totalCost, ctx.Err()
		}

		comp, err := e.llm.Complete(ctx, CompletionRequest{Prompt: prompt, Model: meta.model, MaxTokens: meta.maxTokens})

		rec := RecordCallParams{
			JobID:    meta.jobID,
			TermID:   meta.termID,
			ColumnID: meta.columnID,
			Phase:    meta.phase,
			Attempt:  attempt,
			Model:    meta.model,
			Err:      err,
		}
		if comp != nil {
			rec.Model = comp.Model
			rec.PromptTokens = comp.PromptTokens
			rec.CompletionTokens = comp.CompletionTokens
		}
		totalCost += costs.Record(ctx, rec)

		if err == nil {
			return comp, totalCost, nil
		}
		if !IsTransientLLMError(err) {
			return nil, totalCost, err
		}
		if attempt == meta.maxAttempts {
			return nil, totalCost, err
		}

		sleepFor := backoff
		if sleepFor > e.retryBackoffCap {
			sleepFor = e.retryBackoffCap
		}
		sleepFor = jitter(sleepFor)
		e.log.Warn("LLM call retrying",
			"phase", meta.phase,
			"column_id", meta.columnID,
			"attempt", attempt,
			"max_attempts", meta.maxAttempts,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return nil, totalCost, ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}
	return nil, totalCost, fmt.Errorf("unreachable retry loop")
}

// jitter spreads a backoff by +/- 20%.
func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := base.Seconds() * 0.2
	low := base.Seconds() - delta
	v := low + rand.Float64()*(2*delta)
	return time.Duration(v * float64(time.Second))
}

// persist upserts the item; a storage failure leaves the item in its
// pre-failure phase so the next run picks it up where it stopped.
func (e *generationEngine) persist(ctx context.Context, item *types.SectionItem) error {
	if err := e.sectionRepo.Upsert(ctx, nil, item); err != nil {
		return &GenerationError{TermID: item.TermID, ColumnID: item.ColumnID, Phase: item.ProcessingPhase, Err: fmt.Errorf("persist section item: %w", err)}
	}
	return nil
}

func (e *generationEngine) markFailed(ctx context.Context, item *types.SectionItem, phase string, cause error) error {
	item.ProcessingPhase = types.PhaseFailed
	item.Error = cause.Error()
	if err := e.sectionRepo.Upsert(ctx, nil, item); err != nil {
		e.log.Error("Failed to persist failed item", "term_id", item.TermID, "column_id", item.ColumnID, "error", err)
	}
	return &GenerationError{TermID: item.TermID, ColumnID: item.ColumnID, Phase: phase, Err: cause}
}

// completionBudget gives the model headroom over the column's estimate.
func completionBudget(col taxonomy.ColumnDefinition) int {
	return col.EstimatedTokens * 2
}

var scorePattern = regexp.MustCompile(`(?i)"?score"?\s*[:=]\s*([0-9]{1,2})`)

type evaluationPayload struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// parseEvaluation extracts the {"score": n, "feedback": ...} object the
// evaluative prompts request. Falls back to a score pattern scan when the
// model wrapped the JSON in prose.
func parseEvaluation(text string) (int, string, error) {
	trimmed := strings.TrimSpace(text)

	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start >= 0 && end > start {
		var payload evaluationPayload
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &payload); err == nil && payload.Score != 0 {
			score := int(payload.Score)
			if score < 1 || score > 10 {
				return 0, "", fmt.Errorf("evaluation score %d out of range [1,10]", score)
			}
			return score, strings.TrimSpace(payload.Feedback), nil
		}
	}

	if m := scorePattern.FindStringSubmatch(trimmed); m != nil {
		score, err := strconv.Atoi(m[1])
		if err == nil && score >= 1 && score <= 10 {
			return score, trimmed, nil
		}
		return 0, "", fmt.Errorf("evaluation score %q out of range [1,10]", m[1])
	}

	return 0, "", fmt.Errorf("no evaluation score found in response")
}

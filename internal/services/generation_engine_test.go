package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/termforge/glossary-backend/internal/db"
	"github.com/termforge/glossary-backend/internal/logger"
	"github.com/termforge/glossary-backend/internal/prompts"
	"github.com/termforge/glossary-backend/internal/repos"
	"github.com/termforge/glossary-backend/internal/taxonomy"
	"github.com/termforge/glossary-backend/internal/types"
)

const scoredOK = `{"score": 9, "feedback": "accurate and readable"}`

// pipelineEnv wires the engine against an in-memory store, shared by the
// engine and orchestrator tests.
type pipelineEnv struct {
	db          *gorm.DB
	log         *logger.Logger
	registry    *taxonomy.Registry
	promptStore *prompts.Store
	termRepo    repos.TermRepo
	sectionRepo repos.SectionItemRepo
	jobRepo     repos.BatchJobRepo
	callLogRepo repos.LLMCallLogRepo
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()

	gormDB, err := db.NewSQLiteMemory()
	if err != nil {
		t.Fatalf("NewSQLiteMemory() error: %v", err)
	}
	baseLog, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New() error: %v", err)
	}
	registry, err := taxonomy.Load()
	if err != nil {
		t.Fatalf("taxonomy.Load() error: %v", err)
	}
	promptStore, err := prompts.NewStore(registry)
	if err != nil {
		t.Fatalf("prompts.NewStore() error: %v", err)
	}
	return &pipelineEnv{
		db:          gormDB,
		log:         baseLog,
		registry:    registry,
		promptStore: promptStore,
		termRepo:    repos.NewTermRepo(gormDB, baseLog),
		sectionRepo: repos.NewSectionItemRepo(gormDB, baseLog),
		jobRepo:     repos.NewBatchJobRepo(gormDB, baseLog),
		callLogRepo: repos.NewLLMCallLogRepo(gormDB, baseLog),
	}
}

// newEngine builds an engine with near-zero backoff so retry tests run fast.
func (env *pipelineEnv) newEngine(t *testing.T, llm LLMClient) GenerationEngine {
	t.Helper()
	engine := NewGenerationEngine(env.db, env.log, env.registry, env.promptStore, llm, env.termRepo, env.sectionRepo)
	impl := engine.(*generationEngine)
	impl.retryBackoffBase = time.Millisecond
	impl.retryBackoffCap = 5 * time.Millisecond
	return engine
}

func (env *pipelineEnv) seedTerm(t *testing.T, name, slug string) uuid.UUID {
	t.Helper()
	term := &types.Term{
		ID:       uuid.New(),
		Name:     name,
		Slug:     slug,
		ShortDef: name + " is a test term.",
	}
	if _, err := env.termRepo.Create(context.Background(), nil, []*types.Term{term}); err != nil {
		t.Fatalf("seed term %s: %v", name, err)
	}
	return term.ID
}

func (env *pipelineEnv) newTracker() *CostTracker {
	return NewCostTracker(env.log, env.callLogRepo)
}

func (env *pipelineEnv) loadItem(t *testing.T, termID uuid.UUID, columnID string) *types.SectionItem {
	t.Helper()
	item, err := env.sectionRepo.GetByTermAndColumn(context.Background(), nil, termID, columnID)
	if err != nil {
		t.Fatalf("load section item: %v", err)
	}
	if item == nil {
		t.Fatalf("no section item for term %s column %s", termID, columnID)
	}
	return item
}

// scriptedLLM returns its scripted results in order; running past the script
// is a test bug.
type scriptedLLM struct {
	mu     sync.Mutex
	script []scriptedResult
	calls  []CompletionRequest
}

type scriptedResult struct {
	text string
	err  error
}

func (f *scriptedLLM) Complete(_ context.Context, req CompletionRequest) (*Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, req)
	if len(f.script) == 0 {
		return nil, &PermanentLLMError{Err: fmt.Errorf("script exhausted after %d calls", len(f.calls))}
	}
	next := f.script[0]
	f.script = f.script[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &Completion{
		Text:             next.text,
		Model:            "gpt-4o-mini",
		PromptTokens:     100,
		CompletionTokens: 200,
	}, nil
}

func (f *scriptedLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func fullPipelineConfig() GenerationConfig {
	cfg := GenerationConfig{Model: "gpt-4o-mini"}
	cfg.Normalize()
	return cfg
}

func TestProcessSectionAcceptPath(t *testing.T) {
	env := newPipelineEnv(t)
	termID := env.seedTerm(t, "Gradient Descent", "gradient-descent")
	llm := &scriptedLLM{script: []scriptedResult{
		{text: "a thorough definition"},
		{text: scoredOK},
	}}
	engine := env.newEngine(t, llm)
	tracker := env.newTracker()

	item, err := engine.ProcessSection(context.Background(), termID, "introduction_definition", fullPipelineConfig(), nil, tracker)
	if err != nil {
		t.Fatalf("ProcessSection() error: %v", err)
	}

	if llm.callCount() != 2 {
		t.Errorf("llm calls = %d, want 2 (generate + evaluate, no improve)", llm.callCount())
	}
	if item.ProcessingPhase != types.PhaseFinal {
		t.Errorf("phase = %q, want %q", item.ProcessingPhase, types.PhaseFinal)
	}
	if item.ImprovedContent != "" {
		t.Errorf("ImprovedContent = %q, want empty on the accept path", item.ImprovedContent)
	}
	if item.EvaluationScore != 9 || item.QualityScore != 9 {
		t.Errorf("scores = %d/%d, want 9/9", item.EvaluationScore, item.QualityScore)
	}
	if item.FinalContent() != "a thorough definition" {
		t.Errorf("FinalContent() = %q", item.FinalContent())
	}
	if item.GenerationCost <= 0 {
		t.Error("GenerationCost not accumulated")
	}

	stored := env.loadItem(t, termID, "introduction_definition")
	if stored.ProcessingPhase != types.PhaseFinal {
		t.Errorf("stored phase = %q, want %q", stored.ProcessingPhase, types.PhaseFinal)
	}

	report := tracker.Report()
	if report.TotalCalls != 2 {
		t.Errorf("tracked calls = %d, want 2", report.TotalCalls)
	}
	if report.TotalCost <= 0 {
		t.Error("tracked cost is zero")
	}
}

func TestProcessSectionImprovePath(t *testing.T) {
	env := newPipelineEnv(t)
	termID := env.seedTerm(t, "Backpropagation", "backpropagation")
	llm := &scriptedLLM{script: []scriptedResult{
		{text: "a vague definition"},
		{text: `{"score": 4, "feedback": "too vague, add the chain rule"}`},
		{text: "a precise definition built on the chain rule"},
	}}
	engine := env.newEngine(t, llm)

	item, err := engine.ProcessSection(context.Background(), termID, "introduction_definition", fullPipelineConfig(), nil, env.newTracker())
	if err != nil {
		t.Fatalf("ProcessSection() error: %v", err)
	}

	if llm.callCount() != 3 {
		t.Errorf("llm calls = %d, want 3 (generate + evaluate + improve)", llm.callCount())
	}
	if item.ProcessingPhase != types.PhaseFinal {
		t.Errorf("phase = %q, want %q", item.ProcessingPhase, types.PhaseFinal)
	}
	if item.ImprovedContent != "a precise definition built on the chain rule" {
		t.Errorf("ImprovedContent = %q", item.ImprovedContent)
	}
	if item.FinalContent() != item.ImprovedContent {
		t.Errorf("FinalContent() = %q, want the improved content", item.FinalContent())
	}
	if item.EvaluationFeedback != "too vague, add the chain rule" {
		t.Errorf("EvaluationFeedback = %q", item.EvaluationFeedback)
	}
	// No re-evaluation: the quality score stays the pre-improve score.
	if item.QualityScore != 4 {
		t.Errorf("QualityScore = %d, want 4", item.QualityScore)
	}
}

func TestProcessSectionRetriesTransientAndLogsEveryAttempt(t *testing.T) {
	env := newPipelineEnv(t)
	termID := env.seedTerm(t, "Attention", "attention")
	llm := &scriptedLLM{script: []scriptedResult{
		{err: &TransientLLMError{Status: 429, Err: errors.New("rate limited")}},
		{err: &TransientLLMError{Status: 503, Err: errors.New("overloaded")}},
		{text: "generated on the third try"},
		{text: scoredOK},
	}}
	engine := env.newEngine(t, llm)
	tracker := env.newTracker()

	jobID := uuid.New()
	item, err := engine.ProcessSection(context.Background(), termID, "introduction_definition", fullPipelineConfig(), &jobID, tracker)
	if err != nil {
		t.Fatalf("ProcessSection() error: %v", err)
	}
	if item.ProcessingPhase != types.PhaseFinal {
		t.Errorf("phase = %q, want %q", item.ProcessingPhase, types.PhaseFinal)
	}
	if llm.callCount() != 4 {
		t.Errorf("llm calls = %d, want 4 (2 failed + 2 succeeded)", llm.callCount())
	}

	// Failed attempts are billed work: all four land in the call log.
	n, err := env.callLogRepo.CountByJob(context.Background(), nil, jobID)
	if err != nil {
		t.Fatalf("CountByJob() error: %v", err)
	}
	if n != 4 {
		t.Errorf("call log rows = %d, want 4", n)
	}
	if got := tracker.Report().TotalCalls; got != 4 {
		t.Errorf("tracked calls = %d, want 4", got)
	}
}

func TestProcessSectionPermanentErrorFailsWithoutRetry(t *testing.T) {
	env := newPipelineEnv(t)
	termID := env.seedTerm(t, "Dropout", "dropout")
	llm := &scriptedLLM{script: []scriptedResult{
		{err: &PermanentLLMError{Status: 400, Err: errors.New("bad model")}},
	}}
	engine := env.newEngine(t, llm)

	_, err := engine.ProcessSection(context.Background(), termID, "introduction_definition", fullPipelineConfig(), nil, env.newTracker())
	if err == nil {
		t.Fatal("ProcessSection() succeeded on a permanent error")
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error type = %T, want *GenerationError", err)
	}
	if genErr.Phase != "generate" {
		t.Errorf("failed phase = %q, want generate", genErr.Phase)
	}
	if llm.callCount() != 1 {
		t.Errorf("llm calls = %d, want 1 (no retry on permanent errors)", llm.callCount())
	}

	stored := env.loadItem(t, termID, "introduction_definition")
	if stored.ProcessingPhase != types.PhaseFailed {
		t.Errorf("stored phase = %q, want %q", stored.ProcessingPhase, types.PhaseFailed)
	}
	if stored.Error == "" {
		t.Error("stored item carries no error message")
	}
}

func TestProcessSectionExhaustsRetries(t *testing.T) {
	env := newPipelineEnv(t)
	termID := env.seedTerm(t, "Regularization", "regularization")
	llm := &scriptedLLM{script: []scriptedResult{
		{err: &TransientLLMError{Status: 429, Err: errors.New("rate limited")}},
		{err: &TransientLLMError{Status: 429, Err: errors.New("rate limited")}},
		{err: &TransientLLMError{Status: 429, Err: errors.New("rate limited")}},
	}}
	engine := env.newEngine(t, llm)

	cfg := fullPipelineConfig()
	cfg.MaxAttempts = 3
	_, err := engine.ProcessSection(context.Background(), termID, "introduction_definition", cfg, nil, env.newTracker())
	if err == nil {
		t.Fatal("ProcessSection() succeeded after exhausting retries")
	}
	if llm.callCount() != 3 {
		t.Errorf("llm calls = %d, want exactly MaxAttempts", llm.callCount())
	}

	stored := env.loadItem(t, termID, "introduction_definition")
	if stored.ProcessingPhase != types.PhaseFailed {
		t.Errorf("stored phase = %q, want %q", stored.ProcessingPhase, types.PhaseFailed)
	}
}

func TestProcessSectionGenerateOnlyStopsEarly(t *testing.T) {
	env := newPipelineEnv(t)
	termID := env.seedTerm(t, "Embedding", "embedding")
	llm := &scriptedLLM{script: []scriptedResult{
		{text: "generated content"},
	}}
	engine := env.newEngine(t, llm)

	cfg := fullPipelineConfig()
	cfg.Mode = ModeGenerateOnly
	item, err := engine.ProcessSection(context.Background(), termID, "introduction_definition", cfg, nil, env.newTracker())
	if err != nil {
		t.Fatalf("ProcessSection() error: %v", err)
	}

	if llm.callCount() != 1 {
		t.Errorf("llm calls = %d, want 1", llm.callCount())
	}
	if item.ProcessingPhase != types.PhaseGenerated {
		t.Errorf("phase = %q, want %q", item.ProcessingPhase, types.PhaseGenerated)
	}
	if item.QualityScore != 0 {
		t.Errorf("QualityScore = %d, want 0 for unevaluated content", item.QualityScore)
	}

	// A generate-only item never counts as final for skipExisting scans.
	finalIDs, err := env.sectionRepo.ListFinalTermIDs(context.Background(), nil, "introduction_definition")
	if err != nil {
		t.Fatalf("ListFinalTermIDs() error: %v", err)
	}
	if len(finalIDs) != 0 {
		t.Errorf("generate-only item listed as final: %v", finalIDs)
	}
}

func TestProcessSectionRepeatRunCarriesCostForward(t *testing.T) {
	env := newPipelineEnv(t)
	termID := env.seedTerm(t, "Tokenization", "tokenization")

	first := &scriptedLLM{script: []scriptedResult{{text: "v1"}, {text: scoredOK}}}
	engine := env.newEngine(t, first)
	item1, err := engine.ProcessSection(context.Background(), termID, "introduction_definition", fullPipelineConfig(), nil, env.newTracker())
	if err != nil {
		t.Fatalf("first run error: %v", err)
	}

	second := &scriptedLLM{script: []scriptedResult{{text: "v2"}, {text: scoredOK}}}
	engine = env.newEngine(t, second)
	item2, err := engine.ProcessSection(context.Background(), termID, "introduction_definition", fullPipelineConfig(), nil, env.newTracker())
	if err != nil {
		t.Fatalf("second run error: %v", err)
	}

	if item2.ID != item1.ID {
		t.Error("re-processing the same pair created a second row")
	}
	if item2.Content != "v2" {
		t.Errorf("Content = %q, want the regenerated v2", item2.Content)
	}
	if item2.GenerationCost <= item1.GenerationCost {
		t.Errorf("GenerationCost = %v, want strictly above the first run's %v", item2.GenerationCost, item1.GenerationCost)
	}
}

func TestProcessSectionUnknownColumn(t *testing.T) {
	env := newPipelineEnv(t)
	termID := env.seedTerm(t, "Perceptron", "perceptron")
	engine := env.newEngine(t, &scriptedLLM{})

	_, err := engine.ProcessSection(context.Background(), termID, "no_such_column", fullPipelineConfig(), nil, env.newTracker())
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error = %v, want *GenerationError", err)
	}
}

func TestParseEvaluation(t *testing.T) {
	cases := []struct {
		name      string
		text      string
		wantScore int
		wantErr   bool
	}{
		{name: "clean json", text: `{"score": 8, "feedback": "good"}`, wantScore: 8},
		{name: "json wrapped in prose", text: "Here is my review:\n{\"score\": 6, \"feedback\": \"meh\"}\nThanks!", wantScore: 6},
		{name: "plain score line", text: "Overall score: 7. The content is serviceable.", wantScore: 7},
		{name: "score with equals", text: "score = 10", wantScore: 10},
		{name: "score out of range", text: `{"score": 14, "feedback": "x"}`, wantErr: true},
		{name: "no score at all", text: "this content is quite good", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, _, err := parseEvaluation(tc.text)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseEvaluation(%q) succeeded with score %d", tc.text, score)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseEvaluation(%q) error: %v", tc.text, err)
			}
			if score != tc.wantScore {
				t.Errorf("score = %d, want %d", score, tc.wantScore)
			}
		})
	}
}

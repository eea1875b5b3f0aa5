package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/termforge/glossary-backend/internal/db"
	"github.com/termforge/glossary-backend/internal/logger"
	"github.com/termforge/glossary-backend/internal/prompts"
	"github.com/termforge/glossary-backend/internal/repos"
	"github.com/termforge/glossary-backend/internal/services"
	"github.com/termforge/glossary-backend/internal/taxonomy"
	"github.com/termforge/glossary-backend/internal/types"
)

// Headless trigger: runs one column batch to completion and prints the
// summary. Mirrors the HTTP batch endpoint for cron and one-off backfills.
func main() {
	_ = godotenv.Load()

	var (
		columnID     = flag.String("column", "", "column id to process (required)")
		model        = flag.String("model", "", "model override")
		mode         = flag.String("mode", services.ModeFullPipeline, "full-pipeline or generate-only")
		threshold    = flag.Int("threshold", services.DefaultQualityThreshold, "quality threshold (1-10)")
		batchSize    = flag.Int("batch-size", services.DefaultBatchSize, "work units per batch")
		delayMS      = flag.Int("delay-ms", int(services.DefaultDelayBetweenBatches/time.Millisecond), "pause between batches in ms")
		concurrency  = flag.Int("concurrency", services.DefaultConcurrency, "workers per batch")
		skipExisting = flag.Bool("skip-existing", true, "skip pairs already final")
	)
	flag.Parse()

	if *columnID == "" {
		fmt.Fprintln(os.Stderr, "usage: columnbatch -column <column-id> [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	registry, err := taxonomy.Load()
	if err != nil {
		log.Fatal("Could not load column catalog", "error", err)
	}
	promptStore, err := prompts.NewStore(registry)
	if err != nil {
		log.Fatal("Could not build prompt store", "error", err)
	}

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	termRepo := repos.NewTermRepo(thePG, log)
	sectionRepo := repos.NewSectionItemRepo(thePG, log)
	jobRepo := repos.NewBatchJobRepo(thePG, log)
	callLogRepo := repos.NewLLMCallLogRepo(thePG, log)

	llmClient, err := services.NewOpenAIClient(log)
	if err != nil {
		log.Fatal("Could not init OpenAIClient", "error", err)
	}
	statusPub, err := services.NewJobStatusPublisher(log)
	if err != nil {
		log.Fatal("Could not init job status publisher", "error", err)
	}
	engine := services.NewGenerationEngine(thePG, log, registry, promptStore, llmClient, termRepo, sectionRepo)
	orchestrator := services.NewBatchOrchestrator(thePG, log, registry, termRepo, sectionRepo, jobRepo, callLogRepo, engine, statusPub)

	cfg := services.GenerationConfig{
		Mode:                *mode,
		QualityThreshold:    *threshold,
		Model:               *model,
		BatchSize:           *batchSize,
		DelayBetweenBatches: time.Duration(*delayMS) * time.Millisecond,
		SkipExisting:        *skipExisting,
		Concurrency:         *concurrency,
	}

	ctx := context.Background()
	jobID, err := orchestrator.StartColumnBatch(ctx, *columnID, cfg)
	if err != nil {
		log.Fatal("Could not start batch", "error", err)
	}
	log.Info("Batch started", "job_id", jobID, "column_id", *columnID)

	// Poll until the job leaves running.
	var job *types.BatchJob
	for {
		time.Sleep(2 * time.Second)
		job, err = orchestrator.GetStatus(ctx, jobID)
		if err != nil {
			log.Warn("Status poll failed", "error", err)
			continue
		}
		if job.Terminal() {
			break
		}
		log.Info("Batch progress",
			"processed", job.Processed,
			"total", job.TotalItems,
			"succeeded", job.Succeeded,
			"failed", job.Failed,
		)
	}

	fmt.Printf("job %s finished: status=%s processed=%d succeeded=%d failed=%d skipped=%d cost=$%.4f\n",
		job.ID, job.Status, job.Processed, job.Succeeded, job.Failed, job.Skipped, job.TotalCost)
	if job.Status != types.JobStatusCompleted {
		os.Exit(1)
	}
}

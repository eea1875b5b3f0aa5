package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/termforge/glossary-backend/internal/db"
	"github.com/termforge/glossary-backend/internal/handlers"
	"github.com/termforge/glossary-backend/internal/logger"
	"github.com/termforge/glossary-backend/internal/prompts"
	"github.com/termforge/glossary-backend/internal/repos"
	"github.com/termforge/glossary-backend/internal/server"
	"github.com/termforge/glossary-backend/internal/services"
	"github.com/termforge/glossary-backend/internal/taxonomy"
	"github.com/termforge/glossary-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Column catalog and prompt store: a broken catalog or template must
	// never reach the point of accepting work.
	registry, err := taxonomy.Load()
	if err != nil {
		log.Error("Could not load column catalog", "error", err)
		os.Exit(1)
	}
	promptStore, err := prompts.NewStore(registry)
	if err != nil {
		log.Error("Could not build prompt store", "error", err)
		os.Exit(1)
	}
	log.Info("Column catalog loaded", "columns", registry.Len())

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	termRepo := repos.NewTermRepo(thePG, log)
	sectionRepo := repos.NewSectionItemRepo(thePG, log)
	jobRepo := repos.NewBatchJobRepo(thePG, log)
	callLogRepo := repos.NewLLMCallLogRepo(thePG, log)

	// Services
	log.Info("Setting up services from main...")
	llmClient, err := services.NewOpenAIClient(log)
	if err != nil {
		log.Error("Could not init OpenAIClient", "error", err)
		os.Exit(1)
	}
	statusPub, err := services.NewJobStatusPublisher(log)
	if err != nil {
		log.Error("Could not init job status publisher", "error", err)
		os.Exit(1)
	}
	engine := services.NewGenerationEngine(thePG, log, registry, promptStore, llmClient, termRepo, sectionRepo)
	orchestrator := services.NewBatchOrchestrator(thePG, log, registry, termRepo, sectionRepo, jobRepo, callLogRepo, engine, statusPub)

	// Handlers
	log.Info("Setting up handlers from main...")
	generationHandler := handlers.NewGenerationHandler(log, engine, callLogRepo)
	batchHandler := handlers.NewBatchHandler(log, orchestrator)

	// Router
	router := server.NewRouter(server.RouterConfig{
		GenerationHandler: generationHandler,
		BatchHandler:      batchHandler,
		AllowAllOrigins:   utils.GetEnvAsBool("CORS_ALLOW_ALL", false, log),
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

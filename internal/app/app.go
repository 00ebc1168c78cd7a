// Package app wires repositories, services and workers from configuration.
// Both the HTTP server and the command line tool build on it.
package app

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/alimgiray/ideabase/internal/handlers"
	"github.com/alimgiray/ideabase/internal/middleware"
	"github.com/alimgiray/ideabase/internal/models"
	"github.com/alimgiray/ideabase/internal/repositories"
	"github.com/alimgiray/ideabase/internal/services"
	"github.com/alimgiray/ideabase/internal/workers"
	"github.com/alimgiray/ideabase/pkg/config"
	"github.com/alimgiray/ideabase/pkg/database"
	"github.com/alimgiray/ideabase/pkg/llm"
	"github.com/alimgiray/ideabase/pkg/logger"
	"github.com/gin-gonic/gin"
)

type App struct {
	Config *config.Config
	DB     *sql.DB

	Projects *repositories.ProjectRepository
	Insights *repositories.InsightRepository
	Jobs     *repositories.JobRepository

	JobService     *services.JobService
	ProjectService *services.ProjectService
	ExportService  *services.ExportService
	Scheduler      *services.SchedulerService
	Orchestrator   *services.Orchestrator
	Engine         *services.AnalysisEngine
}

// New opens the database and builds every component
func New(cfg *config.Config) (*App, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		DB:       db,
		Projects: repositories.NewProjectRepository(db),
		Insights: repositories.NewInsightRepository(db),
		Jobs:     repositories.NewJobRepository(db),
	}

	a.JobService = services.NewJobService(a.Jobs, a.Insights, a.Projects)
	a.ProjectService = services.NewProjectService(a.Projects, a.Insights, services.ListingConfig{
		MaxTotalResults: cfg.Limits.MaxTotalResults,
		MaxPageSize:     cfg.Limits.MaxPageSize,
		DefaultPageSize: cfg.Limits.DefaultPageSize,
	})
	a.ExportService = services.NewExportService(a.Projects, a.Insights)
	a.Scheduler = services.NewSchedulerService(a.JobService, a.Projects, services.SchedulerConfig{
		IntervalHours: cfg.Scraper.IntervalHours,
		Hour:          cfg.Scraper.Hour,
		LockPath:      cfg.Scraper.LockPath,
	})

	var enricher services.Enricher
	if cfg.GitHub.Enrich {
		metadata, err := services.NewGitHubMetadataService(cfg.GitHub.Token, "")
		if err != nil {
			db.Close()
			return nil, err
		}
		enricher = metadata
	}

	feed := services.NewTrendingFeed(cfg.GitHub.TrendingBaseURL, cfg.GitHub.Token, cfg.ScrapeTimeout())
	a.Orchestrator = services.NewOrchestrator(feed, a.Projects, a.JobService, enricher, services.OrchestratorConfig{
		Languages:        cfg.Scraper.Languages,
		InsightLanguages: cfg.AI.Languages,
		TimeRange:        models.TimeRange(cfg.Scraper.TimeRange),
		Concurrency:      cfg.Scraper.Concurrency,
		FetchTimeout:     cfg.ScrapeTimeout(),
		RunTimeout:       cfg.ScrapeRunTimeout(),
	})

	if cfg.RequireAI() == nil {
		client := llm.NewClient(llm.Config{
			APIKey:         cfg.AI.APIKey,
			BaseURL:        cfg.AI.BaseURL,
			Model:          cfg.AI.Model,
			MaxTokens:      cfg.AI.MaxTokens,
			TimeoutSeconds: cfg.AI.TimeoutSeconds,
		},
			llm.WithRetryMaxAttempts(cfg.AI.RetryAttempts),
			llm.WithRetryBackoff(time.Duration(cfg.AI.RetryBaseMS)*time.Millisecond, time.Duration(cfg.AI.RetryMaxMS)*time.Millisecond),
		)
		a.Engine = services.NewAnalysisEngine(a.Insights, client, client.Model(), cfg.AITimeout())
	} else {
		logger.Warn("OPENAI_API_KEY is not set, analysis is disabled")
	}

	return a, nil
}

// Workers builds the worker manager. Analysis workers are only started when
// the generative backend is configured.
func (a *App) Workers() *workers.WorkerManager {
	var analyzer workers.Analyzer
	if a.Engine != nil {
		analyzer = a.Engine
	}
	return workers.NewWorkerManager(workers.ManagerConfig{
		AnalysisWorkers: a.Config.Workers.Analysis,
		ScrapeWorkers:   a.Config.Workers.Scrape,
		PollInterval:    a.Config.WorkerPollInterval(),
	}, a.Jobs, a.Projects, analyzer, a.Orchestrator, a.JobService)
}

// Router builds the gin engine with every route mounted
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	handlers.SetupRoutes(router, handlers.Routes{
		Project:    handlers.NewProjectHandler(a.ProjectService, a.Config.AI.DefaultLanguage),
		Admin:      handlers.NewAdminHandler(a.JobService, a.ProjectService, a.ExportService, a.Config.AI.Languages),
		Health:     handlers.NewHealthHandler(a.DB),
		NotFound:   handlers.NewNotFoundHandler(),
		AdminToken: a.Config.Admin.Token,
	})
	return router
}

// Close releases the database
func (a *App) Close() error {
	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

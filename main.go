package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/crestonhq/researchd/internal/activities"
	"github.com/crestonhq/researchd/internal/config"
	"github.com/crestonhq/researchd/internal/db"
	"github.com/crestonhq/researchd/internal/documents"
	"github.com/crestonhq/researchd/internal/health"
	"github.com/crestonhq/researchd/internal/httpapi"
	"github.com/crestonhq/researchd/internal/llm"
	"github.com/crestonhq/researchd/internal/pricing"
	"github.com/crestonhq/researchd/internal/research"
	"github.com/crestonhq/researchd/internal/statuscache"
	temporallog "github.com/crestonhq/researchd/internal/temporal"
	"github.com/crestonhq/researchd/internal/tracing"
	"github.com/crestonhq/researchd/internal/workflows"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	if err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
	}, logger); err != nil {
		logger.Warn("Tracing initialization failed, continuing without it", zap.Error(err))
	}

	dbClient, err := db.NewClient(&db.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		SSLMode:  cfg.Postgres.SSLMode,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer dbClient.Close()

	// Status cache is optional; the database stays the source of truth
	statusCache, err := statuscache.New(cfg.Redis.Addr, cfg.Redis.Password, logger)
	if err != nil {
		logger.Warn("Redis unavailable, status served from Postgres only", zap.Error(err))
		statusCache = nil
	} else {
		defer statusCache.Close()
	}

	pricingTable, err := pricing.LoadTable(cfg.Pricing.Path)
	if err != nil {
		logger.Warn("Pricing table unavailable, costs default to zero",
			zap.String("path", cfg.Pricing.Path), zap.Error(err))
		pricingTable = pricing.NewTable(nil)
	} else {
		stop := make(chan struct{})
		defer close(stop)
		if err := pricingTable.Watch(cfg.Pricing.Path, logger, stop); err != nil {
			logger.Warn("Pricing hot reload disabled", zap.Error(err))
		}
	}

	var engine research.Engine
	if httpEngine, err := research.NewHTTPEngine(research.EngineConfig{
		BaseURL: cfg.Engine.BaseURL,
		Timeout: time.Duration(cfg.Engine.TimeoutSeconds) * time.Second,
	}); err != nil {
		logger.Warn("Research engine not configured, sessions will fail fast", zap.Error(err))
	} else {
		engine = httpEngine
	}
	adapter := research.NewAdapter(engine, cfg.Research.DefaultModel, logger)

	llmClient := llm.NewClient(llm.Config{
		BaseURL:      cfg.LLM.BaseURL,
		DefaultModel: cfg.LLM.DefaultModel,
		Timeout:      time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	summarizer := documents.NewSummarizer(llmClient, logger)
	extractor := documents.NewFileExtractor()

	researchActivities := activities.NewActivities(dbClient, adapter, statusCache, pricingTable, logger)
	documentActivities := activities.NewDocumentActivities(dbClient, extractor, summarizer, cfg.Research.SummaryMaxLength, logger)

	tClient := dialTemporal(cfg.Temporal.HostPort, cfg.Temporal.Namespace, logger)
	defer tClient.Close()

	wk := worker.New(tClient, cfg.Temporal.TaskQueue, worker.Options{})
	wk.RegisterWorkflowWithOptions(workflows.ResearchWorkflow, workflow.RegisterOptions{Name: httpapi.ResearchWorkflowName})
	wk.RegisterWorkflowWithOptions(workflows.DocumentWorkflow, workflow.RegisterOptions{Name: httpapi.DocumentWorkflowName})
	wk.RegisterActivityWithOptions(researchActivities.MarkSessionRunning, activity.RegisterOptions{Name: workflows.ActivityMarkSessionRunning})
	wk.RegisterActivityWithOptions(researchActivities.FetchResearchContext, activity.RegisterOptions{Name: workflows.ActivityFetchResearchContext})
	wk.RegisterActivityWithOptions(researchActivities.ExecuteResearch, activity.RegisterOptions{Name: workflows.ActivityExecuteResearch})
	wk.RegisterActivityWithOptions(researchActivities.PersistResearchResults, activity.RegisterOptions{Name: workflows.ActivityPersistResearchResults})
	wk.RegisterActivityWithOptions(researchActivities.MarkSessionFailed, activity.RegisterOptions{Name: workflows.ActivityMarkSessionFailed})
	wk.RegisterActivityWithOptions(documentActivities.ProcessDocument, activity.RegisterOptions{Name: workflows.ActivityProcessDocument})

	go func() {
		logger.Info("Temporal worker started", zap.String("task_queue", cfg.Temporal.TaskQueue))
		if err := wk.Run(worker.InterruptCh()); err != nil {
			logger.Error("Temporal worker exited with error", zap.Error(err))
		}
	}()

	healthManager := health.NewManager(logger)
	healthManager.Register(health.NewPostgresChecker(dbClient.DB()))
	if statusCache != nil {
		healthManager.Register(health.NewRedisChecker(statusCache.Client()))
	}
	healthManager.Register(health.NewEngineChecker(cfg.Engine.BaseURL))

	apiMux := http.NewServeMux()
	handler := httpapi.NewResearchHandler(tClient, dbClient, statusCache, httpapi.ResearchHandlerConfig{
		TaskQueue:             cfg.Temporal.TaskQueue,
		UploadDir:             cfg.Storage.UploadDir,
		RateLimit:             rate.Limit(cfg.Server.RateLimitRPS),
		RateBurst:             cfg.Server.RateLimitBurst,
		RetryAttempts:         cfg.Research.MaxAttempts,
		RetryBaseDelaySeconds: cfg.Research.BaseDelaySeconds,
	}, logger)
	handler.RegisterRoutes(apiMux)
	healthManager.RegisterRoutes(apiMux)

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      apiMux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	go func() {
		logger.Info("HTTP API listening", zap.String("address", apiServer.Addr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP API server failed", zap.Error(err))
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: metricsMux,
	}
	go func() {
		logger.Info("Metrics server listening", zap.String("address", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP API shutdown failed", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown failed", zap.Error(err))
	}
	wk.Stop()
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.Error("Tracing shutdown failed", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}

// dialTemporal blocks until the Temporal frontend accepts a connection.
// The service cannot do useful work without it, so retry indefinitely.
func dialTemporal(hostPort, namespace string, logger *zap.Logger) client.Client {
	for i := 1; i <= 60; i++ {
		c, err := net.DialTimeout("tcp", hostPort, 2*time.Second)
		if err == nil {
			_ = c.Close()
			break
		}
		logger.Warn("Waiting for Temporal TCP endpoint", zap.String("host", hostPort), zap.Int("attempt", i))
		time.Sleep(time.Second)
	}

	for attempt := 1; ; attempt++ {
		tClient, err := client.Dial(client.Options{
			HostPort:  hostPort,
			Namespace: namespace,
			Logger:    temporallog.NewZapAdapter(logger),
		})
		if err == nil {
			return tClient
		}
		delay := time.Duration(attempt) * time.Second
		if delay > 15*time.Second {
			delay = 15 * time.Second
		}
		logger.Warn("Temporal not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("sleep", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"github.com/luminalab/mindloom/pkg/aggregator"
	"github.com/luminalab/mindloom/pkg/ai"
	"github.com/luminalab/mindloom/pkg/analysis"
	"github.com/luminalab/mindloom/pkg/api"
	"github.com/luminalab/mindloom/pkg/config"
	"github.com/luminalab/mindloom/pkg/db"
	"github.com/luminalab/mindloom/pkg/evolution"
	"github.com/luminalab/mindloom/pkg/logging"
	"github.com/luminalab/mindloom/pkg/sources"
	"github.com/luminalab/mindloom/pkg/sources/email"
	"github.com/luminalab/mindloom/pkg/sources/meetings"
	"github.com/luminalab/mindloom/pkg/sources/notes"
	"github.com/luminalab/mindloom/pkg/sources/screenshots"
)

func main() {
	logger := log.NewWithOptions(os.Stdout, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Level:           log.DebugLevel,
		TimeFormat:      time.Kitchen,
	})
	factory := logging.NewFactory(logger)

	envs, err := config.LoadConfig(true)
	if err != nil {
		factory.WithError(logger, err).Fatal("Failed to load config")
	}
	logger.Info("Using database path", "path", envs.DBPath)

	store, err := db.NewStore(envs.DBPath, factory.ForDatabase("store"))
	if err != nil {
		factory.WithError(logger, err).Fatal("Unable to open database")
	}
	defer store.Close()

	var nc *nats.Conn
	if envs.NatsURL != "" {
		nc, err = nats.Connect(envs.NatsURL)
		if err != nil {
			logger.Warn("NATS unavailable, progress events disabled", "error", err)
		} else {
			defer nc.Close()
		}
	}

	aiService := ai.NewOpenAIService(
		factory.ForAI("completions"),
		envs.CompletionsAPIKey,
		envs.CompletionsAPIURL,
		envs.CompletionsModel,
	)

	var adapters []sources.Adapter
	adapters = append(adapters, screenshots.New(store, factory.ForSource("screenshots")))
	if envs.NotesDirPath != "" {
		adapters = append(adapters, notes.New(envs.NotesDirPath, factory.ForSource("notes")))
	}
	if envs.MboxPath != "" {
		adapters = append(adapters, email.New(envs.MboxPath, factory.ForSource("email")))
	}
	if envs.FirefliesAPIKey != "" {
		adapters = append(adapters, meetings.New(envs.FirefliesAPIKey, envs.FirefliesAPIURL, factory.ForSource("meetings")))
	}

	extractor := analysis.NewExtractor(factory.ForProcessor("extractor"), aiService, envs.CompletionsModel)
	agg := aggregator.New(factory.ForComponent("aggregator"), extractor, adapters...)

	batch := screenshots.NewBatchProcessor(
		store,
		ai.NewOpenAIService(factory.ForAI("vision"), envs.CompletionsAPIKey, envs.CompletionsAPIURL, envs.VisionModel),
		factory.ForProcessor("screenshots"),
		nc,
		envs.ScreenshotsDir,
	)

	appCtx, appCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer appCancel()

	if envs.OutputPath != "" {
		go runEvolution(appCtx, factory, envs, aiService, store, agg)
	}

	server := api.NewServer(factory.ForServer("http"), agg, batch)
	httpServer := &http.Server{
		Addr:    ":" + envs.HTTPPort,
		Handler: server.Handler(),
	}

	go func() {
		logger.Info("HTTP server listening", "port", envs.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server stopped", "error", err)
		}
	}()

	<-appCtx.Done()
	logger.Info("Shutting down")

	batch.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
}

// runEvolution replays the full timeline through the monthly insight
// pipeline and writes mermaid reports under the output directory.
func runEvolution(ctx context.Context, factory *logging.Factory, envs *config.Config, aiService ai.Completion, store *db.Store, agg *aggregator.Aggregator) {
	logger := factory.ForProcessor("evolution")

	result, err := agg.Aggregate(ctx, time.Time{}, time.Now())
	if err != nil {
		logger.Error("Initial aggregation failed", "error", err)
		return
	}

	processor := evolution.NewProcessor(logger, aiService, store)
	months, final, err := processor.Run(ctx, result.Items)
	if err != nil {
		logger.Error("Evolution processing failed", "error", err)
		return
	}
	if len(months) == 0 {
		logger.Info("No items to process, skipping reports")
		return
	}

	if err := evolution.WriteReports(envs.OutputPath, months, final); err != nil {
		logger.Error("Failed to write reports", "error", err)
		return
	}
	logger.Info("Reports written", "path", envs.OutputPath, "months", len(months))
}

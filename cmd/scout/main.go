package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/scout/internal/api"
	"github.com/MikeSquared-Agency/scout/internal/checkpoint"
	"github.com/MikeSquared-Agency/scout/internal/config"
	"github.com/MikeSquared-Agency/scout/internal/hermes"
	"github.com/MikeSquared-Agency/scout/internal/openai"
	"github.com/MikeSquared-Agency/scout/internal/research"
	"github.com/MikeSquared-Agency/scout/internal/scraper"
	"github.com/MikeSquared-Agency/scout/internal/slack"
	"github.com/MikeSquared-Agency/scout/internal/store"
	"github.com/MikeSquared-Agency/scout/internal/tavily"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("scout starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := research.Deps{
		Fetcher: scraper.NewFetcher(cfg.FetchTimeout, cfg.UserAgent),
		Threads: checkpoint.NewMemory(cfg.ThreadTTL),
	}

	// Model and search are required to research; without them the API still
	// serves health and status.
	if cfg.OpenAIAPIKey != "" {
		deps.LLM = openai.NewClient(cfg.OpenAIAPIKey, cfg.Model, cfg.OpenAIBaseURL, cfg.LLMTimeout)
		slog.Info("openai client ready", "model", cfg.Model)
	} else {
		slog.Warn("OPENAI_API_KEY not set")
	}
	if cfg.TavilyAPIKey != "" {
		deps.Search = tavily.NewClient(cfg.TavilyAPIKey, cfg.TavilyURL, cfg.SearchTimeout)
		slog.Info("tavily client ready")
	} else {
		slog.Warn("TAVILY_API_KEY not set")
	}

	// Report archive (optional)
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		deps.Archive = db
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, reports will not be archived")
	}

	// NATS/Hermes (optional)
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		var err error
		hermesClient, err = hermes.NewClient(cfg.NatsURL, cfg.NatsToken, hermes.Options{
			Queue:       cfg.NatsQueue,
			MaxInFlight: cfg.MaxInFlight,
		}, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer hermesClient.Close()
		deps.Events = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	// Slack poster (optional)
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		deps.Notifier = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured, reports will not be posted")
	}

	svc, err := research.NewService(deps, research.Options{
		CompactThreshold: cfg.CompactThreshold,
		CompactKeep:      cfg.CompactKeep,
		MaxSteps:         cfg.MaxSteps,
		StepTimeout:      cfg.StepTimeout,
	}, slog.Default())
	if err != nil {
		slog.Error("failed to build research service", "error", err)
		os.Exit(1)
	}

	if hermesClient != nil {
		if err := hermesClient.Subscribe(hermes.SubjectResearchRequested, svc.HandleResearchRequested); err != nil {
			slog.Error("failed to subscribe to research requests", "error", err)
			os.Exit(1)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, svc, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("scout ready", "port", cfg.Port, "configured", svc.Configured())

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown error", "error", err)
	}
	cancel()
	slog.Info("scout stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

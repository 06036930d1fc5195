// MPT session server: a streaming chat API that guides a client through a
// staged therapy session.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ashureev/mpt-session/internal/api"
	"github.com/ashureev/mpt-session/internal/catalog"
	"github.com/ashureev/mpt-session/internal/chat"
	"github.com/ashureev/mpt-session/internal/config"
	"github.com/ashureev/mpt-session/internal/llm"
	"github.com/ashureev/mpt-session/internal/middleware"
	"github.com/ashureev/mpt-session/internal/session"
	"github.com/ashureev/mpt-session/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

//nolint:funlen // Startup wiring is intentionally sequential to keep dependency setup explicit.
func run(cfg *config.Config) error {
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "log_level", cfg.LogLevel)

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	slog.Info("Catalog loaded",
		"path", cfg.CatalogPath,
		"scenarios", len(cat.Scenarios),
		"scripts", len(cat.Scripts),
		"practices", len(cat.Practices))

	var archive store.Archive
	if cfg.Archive.Enabled {
		db, err := store.NewSQLite(cfg.Archive.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				slog.Error("Failed to close archive", "error", closeErr)
			}
		}()
		archive = db
	} else {
		slog.Info("Session archive disabled")
	}

	reg := session.NewRegistry(session.NewMemoryStore(), cat, session.Options{
		MaxSessions: cfg.Session.MaxSessions,
	})
	if archive != nil {
		reg.OnEvict(session.ArchiveOnEvict(archive, session.DefaultArchiveTimeout))
	}
	conns := api.NewConnManager()
	reg.OnEvict(conns.OnEvict)

	var gen llm.Generator = llm.Disabled{}
	if cfg.GenerationEnabled() {
		gen = llm.NewOpenAIClient(llm.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			TopP:        cfg.LLM.TopP,
			Timeout:     cfg.LLM.Timeout,
		})
		slog.Info("Generation backend configured", "base_url", cfg.LLM.BaseURL, "model", cfg.LLM.Model)
	} else {
		slog.Warn("LLM_API_KEY not set, chat turns will fail with 502")
	}

	limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)
	origins := allowedOrigins(cfg)

	handler := api.NewHandler(api.Deps{
		Chat:           chat.NewService(reg, gen),
		Catalog:        cat,
		Archive:        archive,
		Conns:          conns,
		Limiter:        limiter,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		AllowedOrigins: origins,
		IsDev:          cfg.IsDevelopment(),
	})

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(origins))

	handler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	// SSE streams need no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return reg.RunTTLWorker(gctx, cfg.Session.SweepInterval, cfg.Session.TTL)
	})

	g.Go(func() error {
		return limiter.Run(gctx)
	})

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	slog.Info("Live sessions drained", "count", reg.Drain(drainCtx))
	conns.Wait()
	return nil
}

// allowedOrigins is "*" in development and the frontend origin otherwise.
func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() {
		return []string{"*"}
	}
	return []string{strings.TrimRight(cfg.FrontendURL, "/")}
}

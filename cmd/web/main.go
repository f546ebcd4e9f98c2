package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"leakage-dashboard/internal/config"
	"leakage-dashboard/internal/errors"
	"leakage-dashboard/internal/leakage"
	"leakage-dashboard/internal/middleware"
	"leakage-dashboard/internal/observability"
	"leakage-dashboard/internal/server"
	"leakage-dashboard/internal/services"
	"leakage-dashboard/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	cacheMaxAge   = "public, max-age=300"
)

// handleDashboard renders the home page; overview counts arrive over SSE.
func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func leakagePageHandler(analytics *services.Analytics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := services.PageBySlug(r.PathValue("domain"))
		if err != nil {
			http.NotFound(w, r)
			return
		}

		bounds, err := analytics.Bounds(page.Rule)
		if err != nil {
			if stderrors.Is(err, services.ErrNotLoaded) {
				err = errors.ServiceUnavailable("Dataset is not loaded")
			}
			errors.WriteError(w, logger, err, observability.GetRequestID(r.Context()))
			return
		}

		component, err := templates.LeakagePage(page, bounds)
		if err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := component.Render(ctx, w); err != nil {
			logger.Error("render leakage page", "error", err, "domain", page.Slug())
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	analytics := services.NewAnalytics(
		services.WithLogger(logger),
		services.WithDashboardConfig(cfg.Dashboard),
		services.WithLoader(leakage.NewLoader(cfg.Dataset.Workers)),
	)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Dataset.LoadTimeout)
	defer cancel()

	if err := analytics.LoadFromCSV(ctx, cfg.Dataset.Path); err != nil {
		logger.Error("failed to load dataset", "error", err, "path", cfg.Dataset.Path)
		os.Exit(1)
	}

	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
		Leakage:   leakagePageHandler(analytics, logger),
	}

	srv := server.NewServer(analytics, logger, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	handler := middlewareChain(srv)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook("analytics", func(ctx context.Context) error {
		logger.Info("shutting down analytics service", "stats", analytics.Stats())
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}

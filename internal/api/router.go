package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"loan-engine/internal/api/handler"
	mw "loan-engine/internal/api/middleware"
	"loan-engine/internal/config"
	"loan-engine/internal/domain/borrower"
	"loan-engine/internal/domain/loan"

	_ "loan-engine/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// SetupRouter wires every route. ctx bounds background work started by the
// middleware.
func SetupRouter(ctx context.Context, loanService loan.LoanService, borrowerService borrower.BorrowerService, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(ctx, router, cfg, logger)
	setupMetricsEndpoint(router, cfg, logger)
	setupAuthRoutes(router, cfg, logger)
	setupBorrowerRoutes(router, cfg, borrowerService, logger)
	setupLoanRoutes(router, cfg, loanService, logger)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	setupSwaggerEndpoint(router, logger)

	return router
}

func setupMiddleware(ctx context.Context, router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(rateLimiter(ctx, cfg.Server.RateLimit, logger))
	router.Use(mw.MetricsMiddleware())
}

// rateLimiter uses Redis when a URL is configured and an in-process limiter
// otherwise.
func rateLimiter(ctx context.Context, cfg config.RateLimitConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if !cfg.Enabled || cfg.RedisURL == "" {
		return mw.NewRateLimiterMiddleware(ctx, cfg, logger).Middleware
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("Invalid Redis URL for rate limiting, falling back to in-process limiter", "error", err)
		return mw.NewRateLimiterMiddleware(ctx, cfg, logger).Middleware
	}
	client := redis.NewClient(opts)
	go func() {
		<-ctx.Done()
		client.Close()
	}()
	logger.Info("Rate limiting through Redis", "addr", opts.Addr, "rps", cfg.RPS)
	return mw.NewRedisRateLimiter(cfg, client, logger).Middleware
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

func setupAuthRoutes(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	authHandler := handler.NewAuthHandler(cfg.Server.Auth, logger)
	router.Route("/auth", func(r chi.Router) {
		r.Post("/token", authHandler.GenerateBearerToken)
	})
}

func setupBorrowerRoutes(router *chi.Mux, cfg *config.Config, svc borrower.BorrowerService, logger *slog.Logger) {
	h := handler.NewBorrowerHandler(svc, logger)

	router.Route("/borrowers", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", h.CreateBorrower)
		r.Route("/{borrowerID}", func(r chi.Router) {
			r.Get("/", h.GetBorrower)
			r.Put("/salary-day", h.UpdateSalaryDay)
		})
	})
}

func setupLoanRoutes(router *chi.Mux, cfg *config.Config, svc loan.LoanService, logger *slog.Logger) {
	loanHandler := handler.NewLoanHandler(svc, logger)

	router.Route("/loans", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", loanHandler.CreateLoan)
		r.Route("/{loanID}", func(r chi.Router) {
			r.Get("/", loanHandler.GetLoan)
			r.Put("/plan", loanHandler.AttachPlan)
			r.Get("/figures", loanHandler.GetFigures)
			r.Post("/process", loanHandler.ProcessLoan)
			r.Post("/extensions", loanHandler.ExtendLoan)
		})
	})

	router.With(mw.AuthMiddleware(cfg.Server.Auth, logger)).Post("/quotes", loanHandler.Quote)
}

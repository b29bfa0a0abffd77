package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lead-intake/internal/audit"
	"lead-intake/internal/auth"
	"lead-intake/internal/cache"
	"lead-intake/internal/config"
	"lead-intake/internal/httpapi"
	"lead-intake/internal/leads"
	"lead-intake/internal/metrics"
	"lead-intake/migrations"
	"lead-intake/pkg/logger"
	"lead-intake/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A missing .env is fine; the environment may already be populated.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error(".env load failed", "err", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var authManager *auth.Manager
	if cfg.AuthEnabled() {
		if authManager, err = auth.NewManager(cfg.Auth); err != nil {
			log.Error("auth init failed", "err", err)
			os.Exit(1)
		}
	} else {
		log.Warn("JWT_SECRET not set; lead routes are unauthenticated and audit endpoints are disabled")
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.Pool{MaxConns: cfg.DB.MaxConns})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.DB.AutoMigrate {
		applied, err := utils.Migrate(rootCtx, db, migrations.FS)
		if err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		log.Info("migrations applied", "versions", applied)

		parts, err := audit.NewRetention(db, cfg.AuditRetention()).EnsurePartitions(rootCtx, time.Now())
		if err != nil {
			// Rows fall into api_logs_default until the maintenance job runs.
			log.Warn("audit partitions not ensured", "err", err)
		} else {
			log.Info("audit partitions ensured", "partitions", parts)
		}
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	leadSvc := leads.NewService(
		leads.NewPostgresRepo(db),
		cache.NewRedis(rdb, ""),
		leads.Options{
			RateLimitWindow: cfg.Intake.RateLimitWindow,
			ListCacheTTL:    cfg.Intake.ListCacheTTL,
			MaxListLimit:    cfg.Intake.MaxListLimit,
			Metrics:         m,
		},
	)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db), audit.Options{
		WriteTimeout: cfg.Audit.WriteTimeout,
		Retention:    cfg.AuditRetention(),
		Metrics:      m,
	})

	var limiter *httpapi.LimiterStore
	if cfg.RateLimit.RPS > 0 {
		limiter = httpapi.NewLimiterStore(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		limiter.StartJanitor(rootCtx)
	}

	// Gin router
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.App.TrustedProxies); err != nil {
		log.Error("trusted proxies invalid", "err", err)
		os.Exit(1)
	}
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		db:       db,
		rdb:      rdb,
		registry: reg,
		api: httpapi.Deps{
			Handlers: httpapi.Handlers{Leads: leadSvc, Audit: auditSvc, Production: cfg.IsProduction()},
			Recorder: auditSvc,
			Linker:   leadSvc,
			Metrics:  m,
			Auth:     authManager,
			Limiter:  limiter,
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

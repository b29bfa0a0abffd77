// Command maintenance runs the audit retention job once: it ensures the
// monthly api_logs partitions exist and prunes records past retention.
// Schedule it daily (cron, Kubernetes CronJob).
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lead-intake/internal/audit"
	"lead-intake/internal/config"
	"lead-intake/pkg/logger"
	"lead-intake/pkg/utils"

	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error(".env load failed", "err", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env).With("job", "audit_retention")
	ctx = logger.With(ctx, log)

	db, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.Pool{MaxConns: 2})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	ret := audit.NewRetention(db, cfg.AuditRetention())
	now := time.Now()

	parts, err := ret.EnsurePartitions(ctx, now)
	if err != nil {
		log.Error("ensure partitions failed", "err", err)
		os.Exit(1)
	}
	log.Info("partitions ensured", "partitions", parts)

	res, err := ret.Prune(ctx, now)
	if err != nil {
		log.Error("prune failed", "cutoff", res.Cutoff, "err", err)
		os.Exit(1)
	}
}

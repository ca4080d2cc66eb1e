package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arosnov/schedhook/config"
	"github.com/arosnov/schedhook/internal/clock"
	"github.com/arosnov/schedhook/internal/executor"
	"github.com/arosnov/schedhook/internal/health"
	httptransport "github.com/arosnov/schedhook/internal/http"
	"github.com/arosnov/schedhook/internal/http/handler"
	"github.com/arosnov/schedhook/internal/infrastructure/postgres"
	ctxlog "github.com/arosnov/schedhook/internal/log"
	"github.com/arosnov/schedhook/internal/metrics"
	"github.com/arosnov/schedhook/internal/scheduler"
	"github.com/arosnov/schedhook/internal/usecase"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	logger.Info("db connected")

	clk, err := clock.New(cfg.Timezone)
	if err != nil {
		stop()
		log.Fatalf("timezone: %v", err)
	}

	metrics.Register()
	metrics.ProcessStartTime.Set(float64(time.Now().Unix()))
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	targetRepo := postgres.NewTargetRepository(pool)
	scheduleRepo := postgres.NewScheduleRepository(pool)
	runRepo := postgres.NewRunRepository(pool)
	attemptRepo := postgres.NewAttemptRepository(pool)

	exec := executor.New(runRepo, attemptRepo, clk, logger, executor.Config{
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        time.Duration(cfg.RetryDelaySeconds) * time.Second,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
	})
	execPool := executor.NewPool(exec, cfg.MaxConcurrentJobs, logger)

	sched := scheduler.New(
		scheduleRepo,
		runRepo,
		targetRepo,
		execPool,
		clk,
		logger,
		time.Duration(cfg.JobMisfireGraceSeconds)*time.Second,
	)
	go sched.Run(ctx)

	if err := scheduler.Recover(ctx, sched, runRepo, scheduleRepo, logger); err != nil {
		log.Fatalf("recovery: %v", err)
	}

	targetUsecase := usecase.NewTargetUsecase(targetRepo, scheduleRepo, sched, cfg.DefaultTimeoutSeconds, cfg.MaxTimeoutSeconds)
	scheduleUsecase := usecase.NewScheduleUsecase(scheduleRepo, targetRepo, sched, clk)
	runUsecase := usecase.NewRunUsecase(runRepo, attemptRepo)

	targetHandler := handler.NewTargetHandler(targetUsecase, logger)
	scheduleHandler := handler.NewScheduleHandler(scheduleUsecase, logger)
	runHandler := handler.NewRunHandler(runUsecase, logger)

	apiSrv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, targetHandler, scheduleHandler, runHandler, []byte(cfg.JWTSecret)),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("api server started", "port", cfg.Port)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown", "error", err)
	}
	<-sched.Stopped()
	execPool.Close()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("scheduler shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}

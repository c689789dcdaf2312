package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/pollen-vision/internal/bootstrap"
	"github.com/kirillkom/pollen-vision/internal/config"
	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/scheduler"
	"github.com/kirillkom/pollen-vision/internal/observability/logging"
	"github.com/kirillkom/pollen-vision/internal/observability/metrics"
)

const (
	serviceName   = "worker"
	backupTimeout = 2 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Telemetry{
		Observer: workerMetrics.AnalysisMetrics,
		Hooks:    workerMetrics.ResilienceHooks(),
		Progress: func(p domain.BatchProgress) {
			workerMetrics.RecordBatchItem(serviceName)
			logger.Debug("batch progress", "batch_id", p.BatchID, "processed", p.Processed, "total", p.Total, "filename", p.Filename)
		},
		OnDeliveryLag: func(lag time.Duration) {
			workerMetrics.ObserveQueueLag(serviceName, lag)
		},
	})
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("worker subscribed", "subject", cfg.NATSSubject)
		return app.Queue.SubscribeBatchSubmitted(gctx, func(handlerCtx context.Context, batchID string) error {
			processCtx, cancel := context.WithTimeout(handlerCtx, cfg.BatchTimeout)
			defer cancel()

			workerMetrics.StartBatch()
			started := time.Now()
			err := app.ProcessUC.ProcessByID(processCtx, batchID)
			workerMetrics.FinishBatch(serviceName, time.Since(started), err)
			return err
		})
	})

	if cfg.BackupSchedule != "" {
		backups, err := scheduler.NewBackupScheduler(cfg.BackupSchedule, app.BackupUC, backupTimeout, logger)
		if err != nil {
			logger.Error("invalid backup schedule", "schedule", cfg.BackupSchedule, "error", err)
			os.Exit(1)
		}
		backups.OnResult(func(_ string, err error) {
			workerMetrics.RecordBackup(serviceName, err)
		})
		g.Go(func() error {
			logger.Info("history backups scheduled", "schedule", cfg.BackupSchedule, "next", backups.Next(time.Now()))
			backups.Run(gctx)
			return nil
		})
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

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

	"github.com/kirillkom/campus-notice-rag/internal/bootstrap"
	"github.com/kirillkom/campus-notice-rag/internal/config"
	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
	"github.com/kirillkom/campus-notice-rag/internal/core/ports"
	"github.com/kirillkom/campus-notice-rag/internal/core/usecase"
	"github.com/kirillkom/campus-notice-rag/internal/observability/logging"
	"github.com/kirillkom/campus-notice-rag/internal/observability/metrics"
)

const (
	service      = "worker"
	indexTimeout = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.New(os.Stdout, service, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:    logger,
		RetryHook: workerMetrics.RecordUpstreamRetry,
	})
	if err != nil {
		logger.Error("bootstrap_failed", logging.Err(err))
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	handler := noticeHandler(app.Indexer, app.DeadLetters, workerMetrics, logger)

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	if err := app.Queue.SubscribeNotices(ctx, handler); err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

// noticeHandler indexes one notice. Failures are parked in the dead-letter
// store; the handler only returns an error when parking fails too.
func noticeHandler(
	indexer ports.NoticeIndexer,
	deadLetters *usecase.DeadLetterUseCase,
	workerMetrics *metrics.WorkerMetrics,
	logger *slog.Logger,
) func(context.Context, domain.Document) error {
	return func(ctx context.Context, doc domain.Document) error {
		if !doc.SubmittedAt.IsZero() {
			workerMetrics.ObserveQueueLag(time.Since(doc.SubmittedAt))
		}

		workerMetrics.StartNotice()
		started := time.Now()
		indexCtx, cancel := context.WithTimeout(ctx, indexTimeout)
		err := indexer.IndexNotice(indexCtx, doc)
		cancel()
		workerMetrics.FinishNotice(time.Since(started), err)

		if err == nil {
			logger.Info("notice_indexed", "doc_id", doc.ID, "duration_ms", time.Since(started).Milliseconds())
			return nil
		}
		if domain.IsKind(err, domain.ErrInvalidInput) {
			logger.Warn("notice_rejected", "doc_id", doc.ID, logging.Err(err))
			return nil
		}

		if parkErr := deadLetters.Park(ctx, doc, err); parkErr != nil {
			return errors.Join(err, parkErr)
		}
		workerMetrics.RecordDeadLetter()
		return nil
	}
}

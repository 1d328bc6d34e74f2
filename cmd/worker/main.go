package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/coaching-kb/internal/bootstrap"
	"github.com/kirillkom/coaching-kb/internal/config"
	"github.com/kirillkom/coaching-kb/internal/core/domain"
	"github.com/kirillkom/coaching-kb/internal/observability/logging"
	"github.com/kirillkom/coaching-kb/internal/observability/metrics"
)

const processTimeout = 5 * time.Minute

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		PipelineObserver:   workerMetrics,
		ResilienceObserver: workerMetrics,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
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
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
		return app.Queue.SubscribeDocumentIngested(gctx, func(handlerCtx context.Context, documentID string) error {
			if _, run, err := app.KnowledgeUC.GetDocument(handlerCtx, documentID); err == nil && run != nil && run.Status == domain.StatusUploaded {
				workerMetrics.ObserveQueueLag("worker", time.Since(run.UpdatedAt))
			}

			processCtx, cancel := context.WithTimeout(handlerCtx, processTimeout)
			defer cancel()

			workerMetrics.StartDocument()
			started := time.Now()
			err := app.ProcessUC.ProcessByID(processCtx, documentID)
			workerMetrics.FinishDocument("worker", time.Since(started), err)
			return err
		})
	})

	if cfg.SuggestionStreamEnabled && app.Suggestions != nil {
		g.Go(func() error {
			app.Dedup.RunEviction(gctx, 0)
			return nil
		})
		g.Go(func() error {
			slog.Info("suggestion_stream_subscribed", "subject", cfg.NATSSuggestionSubject)
			return app.Suggestions.SubscribeSuggestions(gctx, app.Dedup.Forward(app.Suggestions))
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("worker_stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkazantsev/invoice-auditor/internal/bootstrap"
	"github.com/mkazantsev/invoice-auditor/internal/config"
	"github.com/mkazantsev/invoice-auditor/internal/observability/logging"
	"github.com/mkazantsev/invoice-auditor/internal/observability/metrics"
)

const serviceName = "invoice-auditor-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		log.Printf("worker metrics listening on :%s", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("worker metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	log.Printf("worker subscribed to %s", cfg.NATSSubject)
	err = app.Queue.SubscribeInvoiceReceived(ctx, func(handlerCtx context.Context, recordID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		if record, lookupErr := app.Repo.GetByID(processCtx, recordID); lookupErr == nil {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(record.CreatedAt))
		}

		workerMetrics.StartRecord()
		start := time.Now()
		processErr := app.ProcessUC.ProcessByID(processCtx, recordID)
		workerMetrics.FinishRecord(serviceName, time.Since(start), processErr)
		return processErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

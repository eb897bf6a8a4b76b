package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/payalraghuvanshi/transaction-webhook-service/config"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/db/clickhouse"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/db/sqldb"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/metrics"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/pipeline"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/rabbitmq"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := cfg.NewLogger()

	database, err := sqldb.NewDatabase(cfg.SQL(), log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	queue, err := rabbitmq.NewQueue(cfg.Queue(cfg.Concurrency), log)
	if err != nil {
		log.Fatalf("Failed to connect to rabbitmq: %v", err)
	}
	defer queue.Close()

	opts := pipeline.Options{FinalizeDelay: cfg.FinalizeDelay}
	if chCfg, ok := cfg.ClickHouse(); ok {
		events, err := clickhouse.NewDatabase(chCfg, log)
		if err != nil {
			log.Fatalf("Failed to connect to clickhouse: %v", err)
		}
		defer events.Close()
		opts.Events = events
	}

	finalizer := pipeline.NewFinalizer(database, log, opts)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.MetricsPort),
		Handler:           metrics.NewMux(log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	consume := func(ctx context.Context) error {
		return finalizer.Run(ctx, queue)
	}

	if err := run(context.Background(), log, srv, consume, quit, queue.Closed()); err != nil {
		log.Fatalf("Worker error: %v", err)
	}

	log.Info("Worker stopped")
}

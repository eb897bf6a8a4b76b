// cmd/api/main.go

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
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/api"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/db/clickhouse"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/db/sqldb"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/pipeline"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/rabbitmq"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := cfg.NewLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := sqldb.NewDatabase(cfg.SQL(), log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if cfg.DBAutoMigrate {
		if err := database.Migrate(); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	queue, err := rabbitmq.NewQueue(cfg.Queue(0), log)
	if err != nil {
		log.Fatalf("Failed to connect to rabbitmq: %v", err)
	}
	defer queue.Close()

	opts := pipeline.Options{
		FinalizeDelay:  cfg.FinalizeDelay,
		PublishTimeout: cfg.PublishTimeout,
	}
	if chCfg, ok := cfg.ClickHouse(); ok {
		events, err := clickhouse.NewDatabase(chCfg, log)
		if err != nil {
			log.Fatalf("Failed to connect to clickhouse: %v", err)
		}
		defer events.Close()
		if err := events.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate clickhouse: %v", err)
		}
		opts.Events = events
	}

	ingestor := pipeline.NewIngestor(database, queue, log, opts)
	query := pipeline.NewQuery(database, log)
	router := api.NewRouter(ingestor, query, log)

	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.API_PORT),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Infof("API server listening on port %s", cfg.API_PORT)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g.Go(func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-quit:
			log.Infof("Received shutdown signal: %v", sig)
		case amqpErr := <-queue.Closed():
			log.Errorf("RabbitMQ connection closed: %v", amqpErr)
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatalf("API server error: %v", err)
	}

	log.Info("API server stopped")
}

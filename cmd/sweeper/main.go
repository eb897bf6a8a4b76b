package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/payalraghuvanshi/transaction-webhook-service/config"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/db/sqldb"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/pipeline"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/rabbitmq"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadSweeperConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := cfg.NewLogger()

	database, err := sqldb.NewDatabase(cfg.SQL(), log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	queue, err := rabbitmq.NewQueue(cfg.Queue(0), log)
	if err != nil {
		log.Fatalf("Failed to connect to rabbitmq: %v", err)
	}
	defer queue.Close()

	sweeper := pipeline.NewSweeper(database, queue, log, pipeline.Options{
		FinalizeDelay: cfg.FinalizeDelay,
	}, cfg.SweepGrace, cfg.SweepBatch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-quit:
			log.Info("Shutting down sweeper...")
		case amqpErr := <-queue.Closed():
			log.Errorf("RabbitMQ connection closed: %v", amqpErr)
		}
		cancel()
	}()

	if err := sweeper.Run(ctx, cfg.SweepInterval); err != nil {
		log.Fatalf("Sweeper error: %v", err)
	}
}

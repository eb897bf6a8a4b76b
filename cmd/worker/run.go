package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// run serves metrics and consumes tasks until a signal arrives, the broker connection drops, or either
// of them fails. The metrics server is shut down on every path so the process can exit.
func run(ctx context.Context, log *logrus.Logger, srv *http.Server, consume func(context.Context) error, quit <-chan os.Signal, closed <-chan *amqp.Error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("Metrics listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return consume(ctx)
	})

	g.Go(func() error {
		var closedErr error
		select {
		case <-ctx.Done():
		case sig := <-quit:
			log.Infof("Received shutdown signal: %v", sig)
		case amqpErr := <-closed:
			// Unacked deliveries go back to the queue; a supervisor restarts the worker.
			closedErr = fmt.Errorf("rabbitmq connection closed: %v", amqpErr)
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return closedErr
	})

	return g.Wait()
}

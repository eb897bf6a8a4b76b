package main

import (
	"fmt"

	"github.com/payalraghuvanshi/transaction-webhook-service/internal/rabbitmq"
	"github.com/spf13/cobra"
)

func openQueue() (*rabbitmq.Queue, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, err
	}
	return rabbitmq.NewQueue(cfg.Queue(0), log)
}

func deadLettersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dead-letters",
		Short: "Show the number of dead-lettered finalization tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := openQueue()
			if err != nil {
				return err
			}
			defer queue.Close()

			n, err := queue.DeadLetters()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", n)
			return nil
		},
	}
}

func redriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redrive",
		Short: "Move dead-lettered finalization tasks back to the work queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			queue, err := openQueue()
			if err != nil {
				return err
			}
			defer queue.Close()

			moved, err := queue.Redrive(cmd.Context(), limit)
			fmt.Fprintf(cmd.OutOrStdout(), "redriven: %d\n", moved)
			return err
		},
	}

	cmd.Flags().IntP("limit", "n", 0, "Maximum tasks to move (0 moves all)")
	return cmd
}

package main

import (
	"fmt"

	"github.com/payalraghuvanshi/transaction-webhook-service/internal/db/clickhouse"
	"github.com/spf13/cobra"
)

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events [transaction_id]",
		Short: "Show the recorded status history of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			chCfg, ok := cfg.ClickHouse()
			if !ok {
				return fmt.Errorf("event log not configured: set CH_HOSTS")
			}

			events, err := clickhouse.NewDatabase(chCfg, log)
			if err != nil {
				return err
			}
			defer events.Close()

			history, err := events.Events(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, ev := range history {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s %s\n",
					ev.OccurredAt.Format("2006-01-02T15:04:05.000Z07:00"), ev.Status, ev.Amount, ev.Currency)
			}
			return nil
		},
	}
}

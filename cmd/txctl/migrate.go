package main

import (
	"fmt"

	"github.com/payalraghuvanshi/transaction-webhook-service/internal/db/clickhouse"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the transactions table and, when configured, the ClickHouse event table",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cfg, log, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", cfg.DBDriver)

			chCfg, ok := cfg.ClickHouse()
			if !ok {
				return nil
			}
			events, err := clickhouse.NewDatabase(chCfg, log)
			if err != nil {
				return err
			}
			defer events.Close()

			if err := events.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated clickhouse event log")
			return nil
		},
	}
}

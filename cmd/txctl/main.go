// txctl is the operator CLI for the transaction webhook service.
package main

import (
	"fmt"
	"os"

	"github.com/payalraghuvanshi/transaction-webhook-service/config"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/db/sqldb"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "txctl",
		Short:         "Inspect transactions and operate the finalization queue",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(getCmd())
	root.AddCommand(listCmd())
	root.AddCommand(eventsCmd())
	root.AddCommand(deadLettersCmd())
	root.AddCommand(redriveCmd())
	root.AddCommand(migrateCmd())

	return root
}

// setup loads the shared configuration and a logger writing to stderr.
func setup() (*config.BaseConfig, *logrus.Logger, error) {
	cfg, err := config.LoadBase()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := cfg.NewLogger()
	log.SetOutput(os.Stderr)
	return cfg, log, nil
}

func openDatabase() (*sqldb.Database, *config.BaseConfig, *logrus.Logger, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := sqldb.NewDatabase(cfg.SQL(), log)
	if err != nil {
		return nil, nil, nil, err
	}
	return db, cfg, log, nil
}

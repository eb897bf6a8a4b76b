package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/payalraghuvanshi/transaction-webhook-service/internal/models"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/pipeline"
	"github.com/spf13/cobra"
)

func getCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [transaction_id]",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, log, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			tx, err := pipeline.NewQuery(db, log).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			return printTransactions(cmd.OutOrStdout(), []models.Transaction{*tx}, asJSON)
		},
	}

	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := filterFromFlags(cmd)
			if err != nil {
				return err
			}

			db, _, log, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			txs, err := pipeline.NewQuery(db, log).List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			return printTransactions(cmd.OutOrStdout(), txs, asJSON)
		},
	}

	cmd.Flags().StringP("status", "s", "", "Filter by status (PROCESSING, PROCESSED)")
	cmd.Flags().String("after", "", "Only transactions created at or after this RFC3339 time")
	cmd.Flags().String("before", "", "Only transactions created at or before this RFC3339 time")
	cmd.Flags().IntP("limit", "n", pipeline.DefaultListLimit, "Maximum results")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	return cmd
}

func filterFromFlags(cmd *cobra.Command) (models.Filter, error) {
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	filter := models.Filter{Status: models.Status(status), Limit: limit}

	for flag, dst := range map[string]*time.Time{"after": &filter.CreatedAfter, "before": &filter.CreatedBefore} {
		raw, _ := cmd.Flags().GetString(flag)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("invalid --%s: %w", flag, err)
		}
		*dst = t.UTC()
	}

	return filter, nil
}

func printTransactions(out io.Writer, txs []models.Transaction, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(txs)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRANSACTION_ID\tSTATUS\tAMOUNT\tCURRENCY\tCREATED_AT\tPROCESSED_AT")
	for _, tx := range txs {
		processed := "-"
		if tx.ProcessedAt != nil {
			processed = tx.ProcessedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.TransactionID,
			tx.Status,
			tx.Amount.StringFixed(models.AmountScale),
			tx.Currency,
			tx.CreatedAt.Format(time.RFC3339),
			processed,
		)
	}
	return w.Flush()
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"IRIS-Agents/internal/wallet"
	"IRIS-Agents/sdk/go/iris"
)

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().String("wallet", "", "only show timelines submitted by this wallet")
	logsCmd.Flags().Int("limit", 20, "maximum number of timelines")
	logsCmd.Flags().Int("offset", 0, "number of timelines to skip")
}

var logsCmd = &cobra.Command{
	Use:   "logs [id]",
	Short: "Browse archived timelines",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			record, err := client.GetLog(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get log: %w", err)
			}
			fmt.Fprintf(out, "%s  %s  %s\n\n", record.ID, formatTime(record.Timestamp), orDash(record.Wallet))
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tTITLE\tDETAIL")
			for _, e := range record.Logs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Status, e.Title, truncate(e.Detail, 80))
			}
			return w.Flush()
		}

		owner, _ := cmd.Flags().GetString("wallet")
		owner = wallet.Normalize(owner)
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		records, err := client.ListLogs(cmd.Context(), iris.LogQuery{Wallet: owner, Limit: limit, Offset: offset})
		if err != nil {
			return fmt.Errorf("list logs: %w", err)
		}
		if len(records) == 0 {
			fmt.Fprintln(out, "No archived timelines.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tWALLET\tENTRIES\tRESPONSE")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.ID, formatTime(r.Timestamp), orDash(r.Wallet), len(r.Logs), truncate(responseOf(r), 50))
		}
		return w.Flush()
	},
}

func responseOf(record iris.Log) string {
	for i := len(record.Logs) - 1; i >= 0; i-- {
		if record.Logs[i].Status == "response" {
			return record.Logs[i].Detail
		}
	}
	return "-"
}

package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"IRIS-Agents/internal/bootstrap"
	"IRIS-Agents/internal/registry"
	"IRIS-Agents/sdk/go/iris"
)

func init() {
	rootCmd.AddCommand(agentsCmd)
	agentsCmd.Flags().Bool("watch", false, "open the registry from config and print the list on every change")
}

var agentsCmd = &cobra.Command{
	Use:   "agents [search]",
	Short: "List registered agents, optionally filtered by name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		search := ""
		if len(args) == 1 {
			search = args[0]
		}
		watch, _ := cmd.Flags().GetBool("watch")
		if watch {
			return watchAgents(cmd, search)
		}

		client, err := apiClient()
		if err != nil {
			return err
		}
		agents, err := client.ListAgents(cmd.Context(), search)
		if err != nil {
			return fmt.Errorf("list agents: %w", err)
		}
		if len(agents) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No agents found.")
			return nil
		}
		return printAgents(cmd.OutOrStdout(), agents)
	},
}

func watchAgents(cmd *cobra.Command, search string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := bootstrap.Prepare(cfg); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := bootstrap.OpenRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer reg.Close()
	if reg.Notifier != nil && reg.Refresher != nil {
		go func() { _ = reg.Notifier.Run(ctx, reg.Refresher) }()
	}

	updates, err := reg.Store.Watch(ctx)
	if err != nil {
		return err
	}
	for list := range updates {
		matched := registry.Search(list, search)
		out := make([]iris.Agent, 0, len(matched))
		for _, a := range matched {
			out = append(out, iris.Agent{ID: a.ID, Name: a.Name, Description: a.Description, Address: a.Address})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "--- %d agents ---\n", len(out))
		if err := printAgents(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	}
	return nil
}

func printAgents(out io.Writer, agents []iris.Agent) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tADDRESS\tDESCRIPTION")
	for _, a := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.ID, a.Name, orDash(a.Address), truncate(a.Description, 60))
	}
	return w.Flush()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

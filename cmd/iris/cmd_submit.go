package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"IRIS-Agents/internal/archive"
	"IRIS-Agents/internal/bootstrap"
	"IRIS-Agents/internal/config"
	"IRIS-Agents/internal/workflow"
)

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().String("wallet", "", "submitter identity, usually a wallet address")
	submitCmd.Flags().Bool("no-archive", false, "do not archive the finished timeline")
}

var submitCmd = &cobra.Command{
	Use:   "submit <text>",
	Short: "Send a request and follow the agent timeline until the response arrives",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		walletAddr, _ := cmd.Flags().GetString("wallet")
		noArchive, _ := cmd.Flags().GetBool("no-archive")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := bootstrap.Prepare(cfg); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ingestor, err := bootstrap.NewIngestor(cfg)
		if err != nil {
			return err
		}

		printer := newProgressPrinter(cmd.OutOrStdout())
		opts := []workflow.Option{
			workflow.WithObserver(printer.Observe),
			workflow.WithStaleTimeout(cfg.Events.StaleAgentAfter()),
		}
		if !noArchive {
			archiver, closeFn, err := cliArchiver(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeFn()
			opts = append(opts, workflow.WithArchiver(archiver))
		}

		controller := workflow.NewController(ingestor, opts...)
		run, err := controller.Submit(ctx, strings.Join(args, " "), walletAddr)
		if err != nil {
			return err
		}
		// ctx 取消时连接随之关闭，Run 随后结束。
		<-run.Done()
		return run.Err()
	},
}

// cliArchiver 为命令行进程选择归档方式。非共享队列没有消费者，改为同步写入。
func cliArchiver(ctx context.Context, cfg *config.Config) (archive.Archiver, func(), error) {
	store, err := bootstrap.OpenArchiveStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if !bootstrap.SharedQueue(cfg) {
		return archive.NewDirectArchiver(store), func() { _ = store.Close() }, nil
	}
	queue, err := bootstrap.OpenArchiveQueue(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return bootstrap.NewArchiver(store, queue), func() {
		if queue != nil {
			_ = queue.Close()
		}
		_ = store.Close()
	}, nil
}

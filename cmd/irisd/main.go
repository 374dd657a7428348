package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"IRIS-Agents/internal/api"
	"IRIS-Agents/internal/archive"
	"IRIS-Agents/internal/bootstrap"
	"IRIS-Agents/internal/config"
	"IRIS-Agents/internal/wallet"
	"IRIS-Agents/internal/web3/provider"
	"IRIS-Agents/pkg/logger"
)

// main 是 IRIS 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("irisd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("IRIS_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "iris.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := bootstrap.Prepare(cfg); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("irisd")

	store, err := bootstrap.OpenArchiveStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// 进程内队列没有来自其他进程的生产者，只有共享队列才需要消费。
	var queue archive.Queue
	if bootstrap.SharedQueue(cfg) {
		queue, err = bootstrap.OpenArchiveQueue(ctx, cfg)
		if err != nil {
			return err
		}
		defer queue.Close()
	} else {
		lg.Info("归档由提交进程直接写入存储", slog.String("queue", cfg.Archive.Queue.Driver))
	}

	agents, err := bootstrap.OpenRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer agents.Close()

	var opts []api.Option
	if cfg.Web3.RPCURL != "" || cfg.Web3.ChainConfig != "" {
		chains, err := provider.NewRegistry(ctx, cfg.Web3)
		if err != nil {
			return err
		}
		defer chains.Close()
		client, err := chains.DefaultClient()
		if err != nil {
			return err
		}
		opts = append(opts, api.WithWalletPanel(wallet.NewPanel(client)))
		lg.Info("钱包面板已启用", slog.String("chain", chains.DefaultChain()))
	}

	g, gctx := errgroup.WithContext(ctx)

	if queue != nil {
		worker := archive.NewWorker(store, queue,
			archive.WithWorkerCount(cfg.Archive.Queue.Workers),
			archive.WithAlerter(bootstrap.NewAlerter(cfg)),
		)
		g.Go(func() error { return worker.Start(gctx) })
	}
	if agents.Notifier != nil && agents.Refresher != nil {
		g.Go(func() error { return agents.Notifier.Run(gctx, agents.Refresher) })
	}

	server := api.NewServer(cfg.Server.Address, store, agents.Store, opts...)
	g.Go(func() error { return server.Start(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	lg.Info("irisd 已退出")
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bollar/config"
	"bollar/core/statetx"
	"bollar/native/cdp"
	"bollar/native/oracle"
	"bollar/observability/logging"
	"bollar/rpc"
	"bollar/rpc/modules"
	"bollar/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("BOLLAR_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("bollard", env, cfg.Node.LogFile)

	db, err := storage.NewLevelDB(cfg.Node.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	registry := cdp.NewRegistry(db)
	engine := cdp.NewEngine(cfg.Risk)
	engine.SetState(registry)

	priceOracle := oracle.New(oracle.Config{
		MinConfidencePct: cfg.Oracle.MinConfidencePct,
		MaxChangePct:     cfg.Oracle.MaxChangePct,
		TTL:              cfg.Oracle.TTL(),
	})

	txmgr := statetx.NewManager(registry, cfg.StateTx.HistoryCap)
	cdpModule := modules.NewCDPModule(engine, registry, priceOracle, txmgr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Without a feed endpoint the price is driven manually via oracle_update.
	if endpoint := strings.TrimSpace(cfg.Oracle.FeedEndpoint); endpoint != "" {
		feed := oracle.NewCoinGeckoFeed(nil, endpoint, cfg.Oracle.FeedConfidencePct)
		poller := oracle.NewPoller(priceOracle, feed, cfg.Oracle.PollInterval(), logger)
		go poller.Run(ctx)
	}

	server := rpc.NewServer(cdpModule, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Node.RPCAddress)
	}()

	logger.Info("bollard started",
		slog.String("rpc", cfg.Node.RPCAddress),
		slog.String("dataDir", cfg.Node.DataDir))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("rpc server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

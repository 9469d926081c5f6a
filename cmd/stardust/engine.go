package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raykavin/stardust/api"
	"github.com/raykavin/stardust/config"
	"github.com/raykavin/stardust/core"
	"github.com/raykavin/stardust/engine"
	"github.com/raykavin/stardust/exchange"
	"github.com/raykavin/stardust/feed"
	"github.com/raykavin/stardust/fetcher"
	"github.com/raykavin/stardust/logger"
	"github.com/raykavin/stardust/notification"
	"github.com/raykavin/stardust/storage"
	"github.com/raykavin/stardust/strategies"
	"github.com/raykavin/stardust/strategy"
	"github.com/raykavin/stardust/trader"
)

const (
	minuteBusSize  = 256
	adviceBusSize  = 64
	commandBusSize = 64
)

func buildEngineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engine",
		Short: "Run the live trading engine and the HTTP API",
		RunE:  runEngine,
	}
}

// setup loads the configuration and opens the shared dependencies.
func setup() (*config.Config, core.Logger, *storage.SQLStorage, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := logger.New(cfg.LogLevel, true)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := storage.FromFile(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, log, store, nil
}

// newExchange builds the exchange adapter for the configured network. The
// ledger adapter plugs in behind core.Exchange; without one configured the
// engine runs against the in-memory simulation.
func newExchange(cfg *config.Config, log core.Logger) core.Exchange {
	network := exchange.Resolve(cfg.Network.Name, cfg.Network.HorizonURL, cfg.Network.Passphrase)
	if cfg.Network.Name != "simulated" {
		log.Warnf("no exchange adapter for network %q (%s), using the in-memory simulation",
			cfg.Network.Name, network.HorizonURL)
	}
	return exchange.NewSimulated()
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, log, store, err := setup()
	if err != nil {
		return err
	}
	defer store.Close()

	ex := newExchange(cfg, log)

	registry := strategy.NewRegistry()
	strategies.RegisterAll(registry)

	minuteBus := make(chan core.Candle, minuteBusSize)
	adviceBus := make(chan core.TradeAdvice, adviceBusSize)
	commandBus := make(chan core.Command, commandBusSize)

	fanout := feed.NewFanout(log)
	controller := engine.New(fanout, registry, store, adviceBus, log)
	fetch := fetcher.New(ex, log,
		fetcher.WithPollInterval(cfg.Fetcher.PollInterval),
		fetcher.WithFetchLimit(cfg.Fetcher.FetchLimit),
		fetcher.WithPairFilter(fanout.Subscribed),
	)

	traderOpts := []trader.Option{trader.WithWorkers(cfg.Trader.Workers)}
	if cfg.Telegram.Enabled {
		notifier, err := notification.NewTelegram(cfg.Telegram.Token, cfg.Telegram.UserID, log)
		if err != nil {
			return fmt.Errorf("telegram notifier: %w", err)
		}
		traderOpts = append(traderOpts, trader.WithNotifier(notifier))
	}
	executor := trader.New(ex, store, commandBus, cfg.User.Account, log, traderOpts...)

	profile := core.UserProfile{UserID: cfg.User.ID, Account: cfg.User.Account}
	server := api.NewServer(store, commandBus, profile, cfg.User.Token, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go fanout.Run(ctx, minuteBus)
	go controller.Run(ctx, commandBus)
	go executor.Run(ctx, adviceBus)
	go func() {
		if err := fetch.Run(ctx, minuteBus); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("fetcher stopped")
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	return server.Run(ctx, addr)
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raykavin/stardust/backtest"
	"github.com/raykavin/stardust/strategies"
	"github.com/raykavin/stardust/strategy"
)

var backtestID int64

func buildBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run the backtest queue, or one request by id",
		RunE:  runBacktest,
	}
	cmd.Flags().Int64VarP(&backtestID, "id", "i", 0, "Execute a single backtest request and print its summary")
	return cmd
}

func runBacktest(cmd *cobra.Command, args []string) error {
	_, log, store, err := setup()
	if err != nil {
		return err
	}
	defer store.Close()

	registry := strategy.NewRegistry()
	strategies.RegisterAll(registry)

	runner := backtest.NewRunner(store, store, registry, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if backtestID > 0 {
		request, err := store.Backtest(backtestID)
		if err != nil {
			return err
		}
		if err := runner.Execute(ctx, request); err != nil {
			return err
		}

		trades, err := store.BacktestTrades(backtestID)
		if err != nil {
			return err
		}
		backtest.Summarize(backtestID, trades).Print(os.Stdout)
		return nil
	}

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

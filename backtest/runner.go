// Package backtest replays archived candles through the strategy contract
// and records the simulated trades.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/raykavin/stardust/core"
	"github.com/raykavin/stardust/strategy"
)

const (
	defaultPollInterval = 5 * time.Second
	pageSize            = 100
	writeRetries        = 3
)

// Runner polls the backtest queue and executes requests in state NEW.
type Runner struct {
	storage    core.Storage
	candles    core.CandleStore
	strategies *strategy.Registry
	log        core.Logger

	pollInterval time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithPollInterval overrides the queue poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) { r.pollInterval = d }
}

// NewRunner builds a backtest runner.
func NewRunner(storage core.Storage, candles core.CandleStore, strategies *strategy.Registry, log core.Logger, opts ...Option) *Runner {
	r := &Runner{
		storage:      storage,
		candles:      candles,
		strategies:   strategies,
		log:          log,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls for pending requests until cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		pending, err := r.storage.PendingBacktests()
		if err != nil {
			r.log.WithError(err).Error("backtest: polling queue")
			continue
		}

		for _, request := range pending {
			if err := r.Execute(ctx, request); err != nil {
				r.log.WithError(err).Errorf("backtest %d failed", request.ID)
			}
		}
	}
}

// Execute runs one request to completion, transitioning its status to
// RUNNING and finally FINISHED or ERROR.
func (r *Runner) Execute(ctx context.Context, request core.BacktestRequest) error {
	if err := r.storage.UpdateBacktestStatus(request.ID, core.BacktestRunning); err != nil {
		return err
	}

	if err := r.replay(ctx, request); err != nil {
		if sErr := r.storage.UpdateBacktestStatus(request.ID, core.BacktestError); sErr != nil {
			r.log.WithError(sErr).Errorf("backtest %d: persisting error status", request.ID)
		}
		return err
	}

	if err := r.storage.UpdateBacktestStatus(request.ID, core.BacktestFinished); err != nil {
		return err
	}
	r.log.Infof("backtest %d finished", request.ID)
	return nil
}

// replay drives the strategy synchronously through the candle pages.
// It applies the same sequencing rules as the live trader: duplicate
// consecutive advice is skipped, as is SELL before any BUY. Sizing uses a
// unit base lot.
func (r *Runner) replay(ctx context.Context, request core.BacktestRequest) error {
	strat, err := r.strategies.Create(request.StrategyName)
	if err != nil {
		return err
	}

	worker, err := strategy.NewWorker(request.ID, strat, request.Parameters, r.log)
	if err != nil {
		return err
	}

	var (
		lastAdvice core.Advice
		lastBought float64
		bought     bool
		token      int64
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := r.candles.Candles(core.CandleQuery{
			Pair:       request.Pair,
			From:       request.Start,
			To:         request.End,
			Resolution: request.Resolution,
			PageSize:   pageSize,
			PageToken:  token,
		})
		if err != nil {
			return fmt.Errorf("fetching candles: %w", err)
		}

		for _, candle := range page.Candles {
			advice := worker.Step(candle)
			if advice == nil {
				continue
			}
			if *advice == lastAdvice {
				continue
			}
			if *advice == core.AdviceSell && !bought {
				continue
			}
			lastAdvice = *advice

			record := core.TradeRecord{
				Time:       candle.Time,
				BacktestID: request.ID,
				Advice:     *advice,
			}
			if *advice == core.AdviceBuy {
				lastBought = candle.Close
				bought = true
				record.SoldAsset = request.Pair.Base.String()
				record.SoldAmount = 1
				record.BoughtAsset = request.Pair.Counter.String()
				record.BoughtAmount = lastBought
			} else {
				record.SoldAsset = request.Pair.Counter.String()
				record.SoldAmount = lastBought
				record.BoughtAsset = request.Pair.Base.String()
				record.BoughtAmount = lastBought / candle.Close
			}

			if err := r.saveTrade(&record); err != nil {
				return fmt.Errorf("recording trade: %w", err)
			}
		}

		if len(page.Candles) < pageSize {
			return nil
		}
		token = page.NextPageToken
	}
}

func (r *Runner) saveTrade(record *core.TradeRecord) error {
	var err error
	for attempt := 0; attempt < writeRetries; attempt++ {
		if err = r.storage.SaveTrade(record); err == nil {
			return nil
		}
	}
	return err
}

// Package importer backfills the candle archive from the exchange trade
// history. It checkpoints its cursor and in-progress candles so a restart
// resumes where it left off.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"github.com/schollz/progressbar/v3"

	"github.com/raykavin/stardust/core"
	"github.com/raykavin/stardust/fetcher"
)

// State keys persisted between pages.
const (
	KeyLastHandledTrade   = "LAST_HANDLED_TRADE"
	KeyUnprocessedCandles = "UNPROCESSED_CANDLES"
)

const (
	defaultFetchLimit   = 200
	defaultIdleInterval = 30 * time.Second
	writeRetries        = 3
)

// Importer streams the full trade history into the candle archive.
type Importer struct {
	exchange core.Exchange
	candles  core.CandleStore
	state    core.StateStore
	log      core.Logger

	fetchLimit   int
	idleInterval time.Duration
	interactive  bool
	retry        *backoff.Backoff
}

// Option configures an Importer.
type Option func(*Importer)

// WithFetchLimit overrides the trade page size.
func WithFetchLimit(limit int) Option {
	return func(i *Importer) { i.fetchLimit = limit }
}

// WithProgressBar enables the interactive progress bar.
func WithProgressBar() Option {
	return func(i *Importer) { i.interactive = true }
}

// New builds an Importer.
func New(exchange core.Exchange, candles core.CandleStore, state core.StateStore, log core.Logger, opts ...Option) *Importer {
	imp := &Importer{
		exchange:     exchange,
		candles:      candles,
		state:        state,
		log:          log,
		fetchLimit:   defaultFetchLimit,
		idleInterval: defaultIdleInterval,
		retry: &backoff.Backoff{
			Min:    time.Second,
			Max:    2 * time.Minute,
			Factor: 2,
			Jitter: true,
		},
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Run imports trades until the context is cancelled. When the history tail
// is reached it keeps polling at the idle interval.
func (i *Importer) Run(ctx context.Context) error {
	agg := fetcher.NewAggregator()
	cursor, err := i.restore(agg)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if i.interactive {
		bar = progressbar.Default(-1, "importing trades")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rows, err := i.exchange.Trades(ctx, cursor, i.fetchLimit)
		if err != nil {
			i.log.WithError(err).Warn("importer: trade page failed, backing off")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(i.retry.Duration()):
			}
			continue
		}
		i.retry.Reset()

		if len(rows) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(i.idleInterval):
			}
			continue
		}

		var closed []core.Candle
		for _, row := range rows {
			if candle, ok := agg.Fold(row); ok {
				closed = append(closed, candle)
			}
			cursor = row.PagingToken
		}

		if err := i.checkpoint(agg, closed, cursor); err != nil {
			return err
		}

		if bar != nil {
			_ = bar.Add(len(rows))
		}
	}
}

// restore loads the saved cursor and reopens the in-progress candles.
// A fresh state store starts the import from the beginning of history.
func (i *Importer) restore(agg *fetcher.Aggregator) (string, error) {
	cursor, err := i.state.Get(KeyLastHandledTrade)
	if err != nil {
		i.log.Info("importer: no saved cursor, starting from the beginning")
		return "", nil
	}

	raw, err := i.state.Get(KeyUnprocessedCandles)
	if err == nil && raw != "" {
		unprocessed := make(map[string]core.Candle)
		if err := json.Unmarshal([]byte(raw), &unprocessed); err != nil {
			return "", fmt.Errorf("importer: decoding saved candles: %w", err)
		}
		agg.Restore(unprocessed)
	}

	i.log.Infof("importer: resuming from cursor %s", cursor)
	return cursor, nil
}

// checkpoint writes the closed candles, then the cursor and the open
// candles in one state transaction.
func (i *Importer) checkpoint(agg *fetcher.Aggregator, closed []core.Candle, cursor string) error {
	var err error
	for attempt := 0; attempt < writeRetries; attempt++ {
		if err = i.candles.SaveCandles(closed); err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("importer: saving candles: %w", err)
	}

	unprocessed, err := json.Marshal(agg.InProgress())
	if err != nil {
		return fmt.Errorf("importer: encoding open candles: %w", err)
	}

	err = i.state.SetAll(map[string]string{
		KeyLastHandledTrade:   cursor,
		KeyUnprocessedCandles: string(unprocessed),
	})
	if err != nil {
		return fmt.Errorf("importer: saving state: %w", err)
	}
	return nil
}

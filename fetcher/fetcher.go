// Package fetcher polls the exchange trade stream and turns it into a
// stream of closed one-minute candles.
package fetcher

import (
	"context"
	"time"

	"github.com/jpillora/backoff"

	"github.com/raykavin/stardust/core"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultFetchLimit   = 200
)

// Fetcher pulls recent trades after a saved cursor and emits every candle
// the aggregator closes. The cursor only advances once a page of rows has
// been folded, so a failed poll is simply retried next tick.
type Fetcher struct {
	exchange     core.Exchange
	agg          *Aggregator
	log          core.Logger
	pollInterval time.Duration
	fetchLimit   int
	cursor       string
	watch        func(pairKey string) bool
	retry        *backoff.Backoff
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithPollInterval overrides the default 10s poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(f *Fetcher) { f.pollInterval = d }
}

// WithFetchLimit overrides the per-poll trade page size.
func WithFetchLimit(limit int) Option {
	return func(f *Fetcher) { f.fetchLimit = limit }
}

// WithCursor starts the fetcher from a known paging token instead of the
// stream tail.
func WithCursor(cursor string) Option {
	return func(f *Fetcher) { f.cursor = cursor }
}

// WithPairFilter restricts aggregation to pairs the filter accepts.
// Trades for other pairs still advance the cursor but build no candle.
func WithPairFilter(watch func(pairKey string) bool) Option {
	return func(f *Fetcher) { f.watch = watch }
}

// New creates a Fetcher over the given exchange.
func New(exchange core.Exchange, log core.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		exchange:     exchange,
		agg:          NewAggregator(),
		log:          log,
		pollInterval: defaultPollInterval,
		fetchLimit:   defaultFetchLimit,
		retry: &backoff.Backoff{
			Min:    time.Second,
			Max:    time.Minute,
			Factor: 2,
			Jitter: true,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run polls until the context is cancelled, sending every closed minute
// candle on the sink. The first poll without a cursor starts from the
// newest trade.
func (f *Fetcher) Run(ctx context.Context, sink chan<- core.Candle) error {
	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if f.cursor == "" {
			cursor, err := f.exchange.LastTradeCursor(ctx)
			if err != nil {
				f.logFetchError(ctx, err)
				continue
			}
			f.cursor = cursor
			continue
		}

		rows, err := f.exchange.Trades(ctx, f.cursor, f.fetchLimit)
		if err != nil {
			f.logFetchError(ctx, err)
			continue
		}
		f.retry.Reset()

		for _, row := range rows {
			if f.watch == nil || f.watch(row.PairKey()) {
				if closed, ok := f.agg.Fold(row); ok {
					select {
					case sink <- closed:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
			f.cursor = row.PagingToken
		}
	}
}

// logFetchError logs the failure and backs off briefly so a flapping
// exchange does not flood the log.
func (f *Fetcher) logFetchError(ctx context.Context, err error) {
	f.log.WithError(err).Warn("fetcher: trade poll failed, retrying")
	select {
	case <-ctx.Done():
	case <-time.After(f.retry.Duration()):
	}
}

package fetcher

import (
	"time"

	"github.com/raykavin/stardust/core"
)

// Aggregator folds a trade stream into per-pair in-progress minute candles.
// A candle closes when a trade for its pair arrives in a later minute.
type Aggregator struct {
	inProgress map[string]*core.Candle
}

// NewAggregator creates an aggregator with no in-progress candles.
func NewAggregator() *Aggregator {
	return &Aggregator{inProgress: make(map[string]*core.Candle)}
}

// Fold consumes one trade row and returns the candle it closed, if any.
func (a *Aggregator) Fold(row core.TradeRow) (core.Candle, bool) {
	key := row.PairKey()
	bucket := row.LedgerCloseTime.UTC().Truncate(time.Minute)

	candle, ok := a.inProgress[key]
	if !ok {
		a.startCandle(key, bucket, row)
		return core.Candle{}, false
	}

	if core.SameBucket(candle.Time, row.LedgerCloseTime, core.Resolution1m) {
		candle.AddTrade(row.Price(), row.BaseAmount, row.CounterAmount)
		return core.Candle{}, false
	}

	closed := *candle
	a.startCandle(key, bucket, row)
	return closed, true
}

func (a *Aggregator) startCandle(key string, bucket time.Time, row core.TradeRow) {
	candle := &core.Candle{Pair: key, Time: bucket}
	candle.AddTrade(row.Price(), row.BaseAmount, row.CounterAmount)
	a.inProgress[key] = candle
}

// InProgress snapshots the open candles, keyed by pair. The importer
// persists this map to survive restarts.
func (a *Aggregator) InProgress() map[string]core.Candle {
	snapshot := make(map[string]core.Candle, len(a.inProgress))
	for key, candle := range a.inProgress {
		snapshot[key] = *candle
	}
	return snapshot
}

// Restore replaces the open candles with a previously persisted snapshot.
func (a *Aggregator) Restore(candles map[string]core.Candle) {
	a.inProgress = make(map[string]*core.Candle, len(candles))
	for key, candle := range candles {
		c := candle
		a.inProgress[key] = &c
	}
}

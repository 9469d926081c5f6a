package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/stardust/core"
	"github.com/raykavin/stardust/exchange"
	"github.com/raykavin/stardust/logger"
)

var testPair = core.TradingPair{
	Base:    core.NativeAsset(),
	Counter: core.Asset{Code: "USDC", Issuer: "GISSUER"},
}

func testLogger(t *testing.T) core.Logger {
	t.Helper()
	log, err := logger.New("error", false)
	require.NoError(t, err)
	return log
}

func tradeAt(ts time.Time, priceN, priceD int64, baseAmount float64) core.TradeRow {
	return core.TradeRow{
		BaseAsset:       testPair.Base,
		CounterAsset:    testPair.Counter,
		PriceN:          priceN,
		PriceD:          priceD,
		BaseAmount:      baseAmount,
		CounterAmount:   baseAmount * float64(priceN) / float64(priceD),
		LedgerCloseTime: ts,
	}
}

func TestAggregatorClosesOnMinuteBoundary(t *testing.T) {
	minute := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	agg := NewAggregator()

	_, closed := agg.Fold(tradeAt(minute, 1, 10, 100))
	require.False(t, closed)
	_, closed = agg.Fold(tradeAt(minute.Add(30*time.Second), 3, 25, 50))
	require.False(t, closed)
	_, closed = agg.Fold(tradeAt(minute.Add(59*time.Second), 11, 100, 200))
	require.False(t, closed)

	candle, closed := agg.Fold(tradeAt(minute.Add(61*time.Second), 13, 100, 10))
	require.True(t, closed)

	assert.Equal(t, testPair.Key(), candle.Pair)
	assert.True(t, candle.Time.Equal(minute))
	assert.InDelta(t, 0.10, candle.Open, 1e-9)
	assert.InDelta(t, 0.12, candle.High, 1e-9)
	assert.InDelta(t, 0.10, candle.Low, 1e-9)
	assert.InDelta(t, 0.11, candle.Close, 1e-9)
	assert.InDelta(t, 350, candle.BaseVolume, 1e-9)
	assert.Equal(t, 3, candle.TradeCount)

	// The trade past the boundary opened the next minute.
	open := agg.InProgress()
	require.Len(t, open, 1)
	assert.InDelta(t, 0.13, open[testPair.Key()].Open, 1e-9)
}

func TestAggregatorSnapshotRestore(t *testing.T) {
	minute := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	agg := NewAggregator()
	agg.Fold(tradeAt(minute, 1, 10, 100))
	snapshot := agg.InProgress()

	restored := NewAggregator()
	restored.Restore(snapshot)

	candle, closed := restored.Fold(tradeAt(minute.Add(90*time.Second), 3, 25, 50))
	require.True(t, closed)
	assert.InDelta(t, 0.10, candle.Open, 1e-9)
	assert.Equal(t, 1, candle.TradeCount)
}

func TestFetcherEmitsClosedMinute(t *testing.T) {
	minute := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	ex := exchange.NewSimulated()
	ex.AddTrades(
		tradeAt(minute, 1, 10, 100),
		tradeAt(minute.Add(30*time.Second), 3, 25, 50),
		tradeAt(minute.Add(59*time.Second), 11, 100, 200),
		tradeAt(minute.Add(61*time.Second), 13, 100, 10),
	)

	f := New(ex, testLogger(t),
		WithPollInterval(10*time.Millisecond),
		WithCursor("0"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := make(chan core.Candle, 4)
	go func() { _ = f.Run(ctx, sink) }()

	select {
	case candle := <-sink:
		assert.True(t, candle.Time.Equal(minute))
		assert.InDelta(t, 0.10, candle.Open, 1e-9)
		assert.InDelta(t, 0.12, candle.High, 1e-9)
		assert.InDelta(t, 0.10, candle.Low, 1e-9)
		assert.InDelta(t, 0.11, candle.Close, 1e-9)
		assert.InDelta(t, 350, candle.BaseVolume, 1e-9)
	case <-time.After(5 * time.Second):
		t.Fatal("no candle emitted")
	}
}

func TestFetcherSkipsUnwatchedPairs(t *testing.T) {
	minute := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	otherPair := core.TradingPair{
		Base:    core.Asset{Code: "BTC", Issuer: "GBTC"},
		Counter: testPair.Counter,
	}

	otherAt := func(ts time.Time) core.TradeRow {
		row := tradeAt(ts, 1, 10, 100)
		row.BaseAsset = otherPair.Base
		return row
	}

	ex := exchange.NewSimulated()
	ex.AddTrades(
		otherAt(minute),
		tradeAt(minute.Add(10*time.Second), 1, 10, 100),
		tradeAt(minute.Add(61*time.Second), 3, 25, 50),
		otherAt(minute.Add(70*time.Second)),
	)

	f := New(ex, testLogger(t),
		WithPollInterval(10*time.Millisecond),
		WithCursor("0"),
		WithPairFilter(func(pairKey string) bool { return pairKey == testPair.Key() }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := make(chan core.Candle, 4)
	go func() { _ = f.Run(ctx, sink) }()

	select {
	case candle := <-sink:
		assert.Equal(t, testPair.Key(), candle.Pair)
		assert.Equal(t, 1, candle.TradeCount)
	case <-time.After(5 * time.Second):
		t.Fatal("no candle emitted")
	}

	// The unwatched pair crossed a minute boundary too, but none of its
	// trades were folded into a candle.
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, sink)
}

func TestFetcherStartsFromStreamTail(t *testing.T) {
	minute := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	ex := exchange.NewSimulated()
	ex.AddTrades(tradeAt(minute.Add(-time.Hour), 1, 10, 100))

	f := New(ex, testLogger(t), WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := make(chan core.Candle, 4)
	go func() { _ = f.Run(ctx, sink) }()

	// Give the first poll time to record the tail cursor, then append.
	time.Sleep(100 * time.Millisecond)
	ex.AddTrades(
		tradeAt(minute, 1, 10, 100),
		tradeAt(minute.Add(61*time.Second), 3, 25, 50),
	)

	select {
	case candle := <-sink:
		// The historical trade before the tail is not replayed.
		assert.True(t, candle.Time.Equal(minute))
		assert.Equal(t, 1, candle.TradeCount)
	case <-time.After(5 * time.Second):
		t.Fatal("no candle emitted")
	}
}

func TestFetcherRetriesAfterFailure(t *testing.T) {
	minute := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	ex := exchange.NewSimulated()
	ex.SetFailFetch(true)
	ex.AddTrades(
		tradeAt(minute, 1, 10, 100),
		tradeAt(minute.Add(61*time.Second), 3, 25, 50),
	)

	f := New(ex, testLogger(t),
		WithPollInterval(10*time.Millisecond),
		WithCursor("0"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := make(chan core.Candle, 4)
	go func() { _ = f.Run(ctx, sink) }()

	time.Sleep(50 * time.Millisecond)
	ex.SetFailFetch(false)

	select {
	case candle := <-sink:
		assert.True(t, candle.Time.Equal(minute))
	case <-time.After(10 * time.Second):
		t.Fatal("fetcher never recovered")
	}
}

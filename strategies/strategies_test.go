package strategies

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/stardust/core"
	"github.com/raykavin/stardust/logger"
	"github.com/raykavin/stardust/strategy"
)

func testLogger(t *testing.T) core.Logger {
	t.Helper()
	log, err := logger.New("error", false)
	require.NoError(t, err)
	return log
}

func candleAt(minute int, close float64) core.Candle {
	c := core.Candle{
		Pair: "XLM_native_USDC_GISSUER",
		Time: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(minute) * time.Minute),
	}
	c.AddTrade(close, 10, 1)
	return c
}

func TestRegisterAll(t *testing.T) {
	registry := strategy.NewRegistry()
	RegisterAll(registry)

	for _, name := range []string{"macd_threshold", "alternator"} {
		strat, err := registry.Create(name)
		require.NoError(t, err)
		assert.Equal(t, name, strat.Name())
	}

	_, err := registry.Create("nope")
	require.ErrorIs(t, err, core.ErrUnknownStrategy)
}

func TestAlternatorAlternates(t *testing.T) {
	worker, err := strategy.NewWorker(1, NewAlternator(), map[string]float64{"interval": 2}, testLogger(t))
	require.NoError(t, err)

	var advices []core.Advice
	for i := 0; i < 8; i++ {
		if advice := worker.Step(candleAt(i, float64(i+1))); advice != nil {
			advices = append(advices, *advice)
		}
	}

	assert.Equal(t, []core.Advice{
		core.AdviceBuy, core.AdviceSell, core.AdviceBuy, core.AdviceSell,
	}, advices)
}

func TestMACDThresholdNeedsWarmup(t *testing.T) {
	worker, err := strategy.NewWorker(1, NewMACDThreshold(), nil, testLogger(t))
	require.NoError(t, err)

	// Well inside the MACD warm-up window no advice can be produced.
	for i := 0; i < 20; i++ {
		assert.Nil(t, worker.Step(candleAt(i, 100)))
	}
}

func TestMACDThresholdSignals(t *testing.T) {
	params := map[string]float64{
		"fast":           3,
		"slow":           6,
		"signal":         2,
		"threshold_up":   0.5,
		"threshold_down": -0.5,
		"stickiness":     1,
	}
	worker, err := strategy.NewWorker(1, NewMACDThreshold(), params, testLogger(t))
	require.NoError(t, err)

	var advices []core.Advice
	minute := 0
	step := func(close float64) {
		if advice := worker.Step(candleAt(minute, close)); advice != nil {
			advices = append(advices, *advice)
		}
		minute++
	}

	// Flat warm-up, then a strong ramp up and a strong drop.
	for i := 0; i < 10; i++ {
		step(100)
	}
	for i := 0; i < 10; i++ {
		step(100 + 5*float64(i+1))
	}
	for i := 0; i < 15; i++ {
		step(150 - 8*float64(i+1))
	}

	require.NotEmpty(t, advices)
	assert.Equal(t, core.AdviceBuy, advices[0])
	assert.Contains(t, advices, core.AdviceSell)

	// Consecutive duplicates are filtered by the strategy itself.
	for i := 1; i < len(advices); i++ {
		assert.NotEqual(t, advices[i-1], advices[i])
	}
}

func TestEMACrossSignals(t *testing.T) {
	params := map[string]float64{"fast": 3, "slow": 6}
	worker, err := strategy.NewWorker(1, NewEMACross(), params, testLogger(t))
	require.NoError(t, err)

	var advices []core.Advice
	minute := 0
	step := func(close float64) {
		if advice := worker.Step(candleAt(minute, close)); advice != nil {
			advices = append(advices, *advice)
		}
		minute++
	}

	// A downtrend pins the fast average below the slow one, then a sharp
	// rally crosses it above, and a second drop crosses back under.
	for i := 0; i < 12; i++ {
		step(100 - 2*float64(i))
	}
	for i := 0; i < 8; i++ {
		step(78 + 10*float64(i+1))
	}
	for i := 0; i < 8; i++ {
		step(158 - 20*float64(i+1))
	}

	require.GreaterOrEqual(t, len(advices), 2)
	assert.Equal(t, core.AdviceBuy, advices[0])
	assert.Equal(t, core.AdviceSell, advices[1])
}

func TestParamOr(t *testing.T) {
	params := map[string]float64{"set": 1.5}
	assert.Equal(t, 1.5, paramOr(params, "set", 9))
	assert.Equal(t, 9.0, paramOr(params, "missing", 9))
	assert.False(t, math.IsNaN(paramOr(nil, "missing", 0)))
}

package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/stardust/core"
)

func series(closes ...float64) OHLCV {
	data := OHLCV{
		Open:   make([]float64, len(closes)),
		High:   make([]float64, len(closes)),
		Low:    make([]float64, len(closes)),
		Close:  append([]float64(nil), closes...),
		Volume: make([]float64, len(closes)),
	}
	for i, c := range closes {
		data.Open[i] = c
		data.High[i] = c + 1
		data.Low[i] = c - 1
		data.Volume[i] = 100
	}
	return data
}

func TestComputeUnknownIndicator(t *testing.T) {
	_, err := Compute("NOPE", series(1, 2, 3), nil)
	require.ErrorIs(t, err, core.ErrUnknownIndicator)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("SMA", map[string]float64{"period": 14}))
	require.NoError(t, Validate("MACD", nil))

	err := Validate("SMA", map[string]float64{"period": 500})
	require.ErrorIs(t, err, core.ErrIndicatorParams)

	err = Validate("NOPE", nil)
	require.ErrorIs(t, err, core.ErrUnknownIndicator)
}

func TestSMAWarmupAndValue(t *testing.T) {
	out, err := Compute("SMA", series(1, 2, 3, 4, 5, 6), map[string]float64{"period": 5})
	require.NoError(t, err)

	values := out["value"]
	require.Len(t, values, 6)
	for i := 0; i < 4; i++ {
		assert.True(t, math.IsNaN(values[i]), "index %d", i)
	}
	assert.InDelta(t, 3, values[4], 1e-9)
	assert.InDelta(t, 4, values[5], 1e-9)
}

func TestSMAPeriodTooLong(t *testing.T) {
	_, err := Compute("SMA", series(1, 2, 3), map[string]float64{"period": 5})
	require.ErrorIs(t, err, core.ErrIndicatorParams)
}

func TestMACDOutputs(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	out, err := Compute("MACD", series(closes...), map[string]float64{
		"fast": 3, "slow": 6, "signal": 2,
	})
	require.NoError(t, err)

	for _, name := range []string{"macd", "signal", "hist"} {
		require.Contains(t, out, name)
		require.Len(t, out[name], 60)
	}

	assert.True(t, math.IsNaN(out["macd"][4]))
	assert.False(t, math.IsNaN(out["macd"][5]))
	assert.True(t, math.IsNaN(out["signal"][5]))
	assert.False(t, math.IsNaN(out["signal"][6]))

	// A steady ramp keeps the fast average above the slow one.
	assert.Greater(t, out["macd"][59], 0.0)
}

func TestMACDBadParams(t *testing.T) {
	_, err := Compute("MACD", series(1, 2, 3, 4, 5), map[string]float64{"fast": 10, "slow": 5})
	require.ErrorIs(t, err, core.ErrIndicatorParams)
}

func TestBBandsOutputs(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i%5)
	}

	out, err := Compute("BBANDS", series(closes...), map[string]float64{"period": 10})
	require.NoError(t, err)

	last := len(closes) - 1
	assert.Greater(t, out["upper"][last], out["middle"][last])
	assert.Greater(t, out["middle"][last], out["lower"][last])
}

func TestStochOutputsBounded(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/4)
	}

	out, err := Compute("STOCH", series(closes...), nil)
	require.NoError(t, err)

	last := len(closes) - 1
	assert.GreaterOrEqual(t, out["k"][last], 0.0)
	assert.LessOrEqual(t, out["k"][last], 100.0)
	assert.GreaterOrEqual(t, out["d"][last], 0.0)
	assert.LessOrEqual(t, out["d"][last], 100.0)
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "SMA")
	assert.Contains(t, names, "MACD")
	assert.Contains(t, names, "RSI")
}

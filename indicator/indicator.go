// Package indicator exposes a registry of technical indicators computed
// over OHLCV arrays. Every output vector has the same length as the input;
// positions inside the warm-up window hold NaN.
package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/raykavin/stardust/core"
)

// OHLCV holds the column arrays an indicator computes over.
type OHLCV struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// Len returns the number of rows.
func (d OHLCV) Len() int {
	return len(d.Close)
}

// ComputeFunc computes one indicator type, returning named output vectors.
type ComputeFunc func(data OHLCV, params map[string]float64) (map[string][]float64, error)

var registry = map[string]ComputeFunc{
	"SMA":    computeSMA,
	"EMA":    computeEMA,
	"WMA":    computeWMA,
	"RSI":    computeRSI,
	"MACD":   computeMACD,
	"BBANDS": computeBBands,
	"ATR":    computeATR,
	"ADX":    computeADX,
	"STOCH":  computeStoch,
	"OBV":    computeOBV,
	"MFI":    computeMFI,
}

// Names lists the registered indicator types.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// Compute runs the named indicator over the data.
func Compute(name string, data OHLCV, params map[string]float64) (map[string][]float64, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownIndicator, name)
	}
	return fn(data, params)
}

// Validate checks that the indicator type exists and that the parameters
// work over a synthetic 100-point series.
func Validate(name string, params map[string]float64) error {
	fn, ok := registry[name]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownIndicator, name)
	}

	synthetic := syntheticOHLCV(100)
	if _, err := fn(synthetic, params); err != nil {
		return err
	}
	return nil
}

// syntheticOHLCV builds a deterministic n-point series for validation runs.
func syntheticOHLCV(n int) OHLCV {
	data := OHLCV{
		Open:   make([]float64, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		base := 100.0 + 10.0*math.Sin(float64(i)/7.0)
		data.Open[i] = base
		data.Close[i] = base + 0.5*math.Cos(float64(i)/3.0)
		data.High[i] = math.Max(data.Open[i], data.Close[i]) + 1
		data.Low[i] = math.Min(data.Open[i], data.Close[i]) - 1
		data.Volume[i] = 1000 + 50*float64(i%10)
	}
	return data
}

func intParam(params map[string]float64, key string, def int) int {
	if v, ok := params[key]; ok {
		return int(v)
	}
	return def
}

func floatParam(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}

// nanify overwrites the first lookback positions with NaN so that the
// warm-up window is distinguishable from a real zero.
func nanify(out []float64, lookback int) []float64 {
	if lookback > len(out) {
		lookback = len(out)
	}
	for i := 0; i < lookback; i++ {
		out[i] = math.NaN()
	}
	return out
}

func checkPeriod(data OHLCV, period int) error {
	if period < 2 || period > data.Len() {
		return fmt.Errorf("%w: period %d over %d points", core.ErrIndicatorParams, period, data.Len())
	}
	return nil
}

func computeSMA(data OHLCV, params map[string]float64) (map[string][]float64, error) {
	period := intParam(params, "period", 14)
	if err := checkPeriod(data, period); err != nil {
		return nil, err
	}
	return map[string][]float64{
		"value": nanify(talib.Sma(data.Close, period), period-1),
	}, nil
}

func computeEMA(data OHLCV, params map[string]float64) (map[string][]float64, error) {
	period := intParam(params, "period", 14)
	if err := checkPeriod(data, period); err != nil {
		return nil, err
	}
	return map[string][]float64{
		"value": nanify(talib.Ema(data.Close, period), period-1),
	}, nil
}

func computeWMA(data OHLCV, params map[string]float64) (map[string][]float64, error) {
	period := intParam(params, "period", 14)
	if err := checkPeriod(data, period); err != nil {
		return nil, err
	}
	return map[string][]float64{
		"value": nanify(talib.Wma(data.Close, period), period-1),
	}, nil
}

func computeRSI(data OHLCV, params map[string]float64) (map[string][]float64, error) {
	period := intParam(params, "period", 14)
	if err := checkPeriod(data, period); err != nil {
		return nil, err
	}
	return map[string][]float64{
		"value": nanify(talib.Rsi(data.Close, period), period),
	}, nil
}

func computeMACD(data OHLCV, params map[string]float64) (map[string][]float64, error) {
	fast := intParam(params, "fast", 12)
	slow := intParam(params, "slow", 26)
	signal := intParam(params, "signal", 9)
	if fast < 2 || slow <= fast || signal < 1 {
		return nil, fmt.Errorf("%w: macd fast=%d slow=%d signal=%d", core.ErrIndicatorParams, fast, slow, signal)
	}
	if slow+signal > data.Len() {
		return nil, fmt.Errorf("%w: macd needs %d points, have %d", core.ErrIndicatorParams, slow+signal, data.Len())
	}

	macd, sig, hist := talib.Macd(data.Close, fast, slow, signal)
	return map[string][]float64{
		"macd":   nanify(macd, slow-1),
		"signal": nanify(sig, slow+signal-2),
		"hist":   nanify(hist, slow+signal-2),
	}, nil
}

func computeBBands(data OHLCV, params map[string]float64) (map[string][]float64, error) {
	period := intParam(params, "period", 20)
	dev := floatParam(params, "deviation", 2.0)
	if err := checkPeriod(data, period); err != nil {
		return nil, err
	}

	upper, middle, lower := talib.BBands(data.Close, period, dev, dev, talib.SMA)
	return map[string][]float64{
		"upper":  nanify(upper, period-1),
		"middle": nanify(middle, period-1),
		"lower":  nanify(lower, period-1),
	}, nil
}

func computeATR(data OHLCV, params map[string]float64) (map[string][]float64, error) {
	period := intParam(params, "period", 14)
	if err := checkPeriod(data, period); err != nil {
		return nil, err
	}
	return map[string][]float64{
		"value": nanify(talib.Atr(data.High, data.Low, data.Close, period), period),
	}, nil
}

func computeADX(data OHLCV, params map[string]float64) (map[string][]float64, error) {
	period := intParam(params, "period", 14)
	if err := checkPeriod(data, period); err != nil {
		return nil, err
	}
	if 2*period > data.Len() {
		return nil, fmt.Errorf("%w: adx needs %d points, have %d", core.ErrIndicatorParams, 2*period, data.Len())
	}
	return map[string][]float64{
		"value": nanify(talib.Adx(data.High, data.Low, data.Close, period), 2*period-1),
	}, nil
}

func computeStoch(data OHLCV, params map[string]float64) (map[string][]float64, error) {
	fastK := intParam(params, "fast_k", 5)
	slowK := intParam(params, "slow_k", 3)
	slowD := intParam(params, "slow_d", 3)
	if fastK < 1 || slowK < 1 || slowD < 1 {
		return nil, fmt.Errorf("%w: stoch fast_k=%d slow_k=%d slow_d=%d", core.ErrIndicatorParams, fastK, slowK, slowD)
	}
	lookback := fastK + slowK + slowD - 3
	if lookback >= data.Len() {
		return nil, fmt.Errorf("%w: stoch needs %d points, have %d", core.ErrIndicatorParams, lookback+1, data.Len())
	}

	k, d := talib.Stoch(data.High, data.Low, data.Close, fastK, slowK, talib.SMA, slowD, talib.SMA)
	return map[string][]float64{
		"k": nanify(k, lookback),
		"d": nanify(d, lookback),
	}, nil
}

func computeOBV(data OHLCV, params map[string]float64) (map[string][]float64, error) {
	if data.Len() == 0 {
		return nil, fmt.Errorf("%w: obv over empty series", core.ErrIndicatorParams)
	}
	return map[string][]float64{
		"value": talib.Obv(data.Close, data.Volume),
	}, nil
}

func computeMFI(data OHLCV, params map[string]float64) (map[string][]float64, error) {
	period := intParam(params, "period", 14)
	if err := checkPeriod(data, period); err != nil {
		return nil, err
	}
	return map[string][]float64{
		"value": nanify(talib.Mfi(data.High, data.Low, data.Close, data.Volume, period), period),
	}, nil
}

// Package strategies contains the concrete strategies shipped with the
// engine and registers them under their wire names.
package strategies

import (
	"github.com/raykavin/stardust/core"
	"github.com/raykavin/stardust/strategy"
)

// MACDThreshold trades on the MACD line crossing fixed thresholds. The
// signal must hold for `stickiness` consecutive candles before advice is
// emitted, which filters single-candle spikes.
type MACDThreshold struct {
	ctx strategy.Context

	thresholdUp   float64
	thresholdDown float64
	stickiness    int

	upStreak   int
	downStreak int
	lastAdvice core.Advice
}

func NewMACDThreshold() strategy.Strategy {
	return &MACDThreshold{}
}

func (s *MACDThreshold) Name() string {
	return "macd_threshold"
}

func (s *MACDThreshold) Init(ctx strategy.Context, params map[string]float64) error {
	s.ctx = ctx

	s.thresholdUp = paramOr(params, "threshold_up", 0.025)
	s.thresholdDown = paramOr(params, "threshold_down", -0.025)
	s.stickiness = int(paramOr(params, "stickiness", 1))
	if s.stickiness < 1 {
		s.stickiness = 1
	}

	return ctx.AddIndicator("macd", "MACD", map[string]float64{
		"fast":   paramOr(params, "fast", 12),
		"slow":   paramOr(params, "slow", 26),
		"signal": paramOr(params, "signal", 9),
	})
}

func (s *MACDThreshold) OnCandle(candle core.Candle) {}

func (s *MACDThreshold) Execute(values strategy.Values) {
	macd := values["macd"]["macd"]
	if macd == nil {
		return
	}

	switch {
	case *macd > s.thresholdUp:
		s.upStreak++
		s.downStreak = 0
	case *macd < s.thresholdDown:
		s.downStreak++
		s.upStreak = 0
	default:
		s.upStreak = 0
		s.downStreak = 0
	}

	if s.upStreak >= s.stickiness && s.lastAdvice != core.AdviceBuy {
		s.lastAdvice = core.AdviceBuy
		s.ctx.Buy()
		return
	}

	if s.downStreak >= s.stickiness && s.lastAdvice != core.AdviceSell {
		s.lastAdvice = core.AdviceSell
		s.ctx.Sell()
	}
}

func paramOr(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}

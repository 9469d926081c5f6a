package strategies

import (
	"github.com/raykavin/stardust/core"
	"github.com/raykavin/stardust/strategy"
)

// EMACross trades the crossover of a fast EMA over a slow EMA: a cross
// above buys, a cross below sells.
type EMACross struct {
	ctx strategy.Context

	fast core.Series[float64]
	slow core.Series[float64]
}

func NewEMACross() strategy.Strategy {
	return &EMACross{}
}

func (s *EMACross) Name() string {
	return "ema_cross"
}

func (s *EMACross) Init(ctx strategy.Context, params map[string]float64) error {
	s.ctx = ctx

	err := ctx.AddIndicator("fast", "EMA", map[string]float64{
		"period": paramOr(params, "fast", 9),
	})
	if err != nil {
		return err
	}
	return ctx.AddIndicator("slow", "EMA", map[string]float64{
		"period": paramOr(params, "slow", 21),
	})
}

func (s *EMACross) OnCandle(candle core.Candle) {}

func (s *EMACross) Execute(values strategy.Values) {
	fast := values["fast"]["value"]
	slow := values["slow"]["value"]
	if fast == nil || slow == nil {
		return
	}

	s.fast = append(s.fast, *fast)
	s.slow = append(s.slow, *slow)
	if s.fast.Length() < 2 {
		return
	}

	if s.fast.Crossover(s.slow) {
		s.ctx.Buy()
		return
	}
	if s.fast.Crossunder(s.slow) {
		s.ctx.Sell()
	}
}

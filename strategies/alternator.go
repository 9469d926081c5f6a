package strategies

import (
	"github.com/raykavin/stardust/core"
	"github.com/raykavin/stardust/strategy"
)

// Alternator emits BUY and SELL alternately every N candles. It carries no
// indicators and exists for wiring checks and backtest smoke runs.
type Alternator struct {
	ctx      strategy.Context
	interval int
	seen     int
	last     core.Advice
}

func NewAlternator() strategy.Strategy {
	return &Alternator{}
}

func (s *Alternator) Name() string {
	return "alternator"
}

func (s *Alternator) Init(ctx strategy.Context, params map[string]float64) error {
	s.ctx = ctx
	s.interval = int(paramOr(params, "interval", 100))
	if s.interval < 1 {
		s.interval = 1
	}
	return nil
}

func (s *Alternator) OnCandle(candle core.Candle) {
	s.seen++
}

func (s *Alternator) Execute(values strategy.Values) {
	if s.seen%s.interval != 0 {
		return
	}

	if s.last == core.AdviceBuy {
		s.last = core.AdviceSell
		s.ctx.Sell()
		return
	}

	s.last = core.AdviceBuy
	s.ctx.Buy()
}

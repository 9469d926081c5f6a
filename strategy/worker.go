package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/raykavin/stardust/core"
	"github.com/raykavin/stardust/indicator"
)

const loopSleep = time.Second

// indicatorSpec is one registered indicator: its type and parameters.
type indicatorSpec struct {
	name       string
	typ        string
	parameters map[string]float64
}

// Worker drives one strategy instance for one deployment. It owns the
// OHLCV history, recomputes registered indicators on every new candle and
// publishes the advice the strategy sets.
type Worker struct {
	deploymentID int64
	strategy     Strategy
	log          core.Logger

	history    indicator.OHLCV
	times      []time.Time
	indicators []indicatorSpec
	values     Values

	lastCandle core.Candle
	advice     *core.Advice
}

// NewWorker builds the worker and runs the strategy's Init hook. An Init
// failure (unknown indicator, bad parameters) is returned to the caller
// and must terminate the deployment.
func NewWorker(deploymentID int64, strat Strategy, params map[string]float64, log core.Logger) (*Worker, error) {
	w := &Worker{
		deploymentID: deploymentID,
		strategy:     strat,
		log:          log.WithField("deployment", deploymentID).WithField("strategy", strat.Name()),
		values:       make(Values),
	}
	if err := strat.Init(w, params); err != nil {
		return nil, fmt.Errorf("strategy %s init: %w", strat.Name(), err)
	}
	return w, nil
}

// AddIndicator implements Context.
func (w *Worker) AddIndicator(name, indicatorType string, params map[string]float64) error {
	if err := indicator.Validate(indicatorType, params); err != nil {
		return err
	}
	w.indicators = append(w.indicators, indicatorSpec{
		name:       name,
		typ:        indicatorType,
		parameters: params,
	})
	w.values[name] = make(map[string]*float64)
	return nil
}

// Buy implements Context.
func (w *Worker) Buy() {
	advice := core.AdviceBuy
	w.advice = &advice
}

// Sell implements Context.
func (w *Worker) Sell() {
	advice := core.AdviceSell
	w.advice = &advice
}

// Logger implements Context.
func (w *Worker) Logger() core.Logger {
	return w.log
}

// Step ingests one candle and runs the execute hook once, returning the
// advice the strategy set, if any. The backtester replays history through
// Step, so a backtest invokes execute exactly once per candle.
func (w *Worker) Step(candle core.Candle) *core.Advice {
	if !w.ingest(candle) {
		return nil
	}
	return w.execute()
}

// ingest appends the candle to the history, recomputes the indicators and
// runs the on_candle hook. Candles not newer than the last processed one
// are ignored, so the history stays strictly ordered.
func (w *Worker) ingest(candle core.Candle) bool {
	if !w.lastCandle.Time.IsZero() && !candle.Time.After(w.lastCandle.Time) {
		return false
	}

	w.history.Open = append(w.history.Open, candle.Open)
	w.history.High = append(w.history.High, candle.High)
	w.history.Low = append(w.history.Low, candle.Low)
	w.history.Close = append(w.history.Close, candle.Close)
	w.history.Volume = append(w.history.Volume, candle.BaseVolume)
	w.times = append(w.times, candle.Time)

	w.recompute()

	w.safeHook("on_candle", func() { w.strategy.OnCandle(candle) })
	w.lastCandle = candle
	return true
}

// execute runs the strategy's execute hook over the current indicator
// values and returns the advice it set. Hook panics are logged and
// swallowed.
func (w *Worker) execute() *core.Advice {
	w.advice = nil
	w.safeHook("execute", func() { w.strategy.Execute(w.values) })
	return w.advice
}

// recompute runs every registered indicator over the full history and
// stores the last value of each output vector, nil while NaN.
func (w *Worker) recompute() {
	for _, spec := range w.indicators {
		outputs, err := indicator.Compute(spec.typ, w.history, spec.parameters)
		if err != nil {
			// Too little history yet; leave the previous values in place.
			w.log.WithError(err).Debugf("indicator %s not ready", spec.name)
			continue
		}
		for output, vector := range outputs {
			if len(vector) == 0 {
				continue
			}
			last := vector[len(vector)-1]
			if math.IsNaN(last) {
				w.values[spec.name][output] = nil
				continue
			}
			v := last
			w.values[spec.name][output] = &v
		}
	}
}

// safeHook runs a strategy hook, catching panics so a broken strategy
// cannot kill the worker.
func (w *Worker) safeHook(name string, hook func()) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Errorf("strategy hook %s panicked: %v", name, r)
		}
	}()
	hook()
}

// Run consumes the candle input until cancelled, publishing advice on the
// output channel. Each pass drains one queued candle if there is one, then
// runs the execute hook. The hook runs with or without a new candle, so
// time-driven strategies keep ticking between candles.
func (w *Worker) Run(ctx context.Context, input <-chan core.Candle, output chan<- core.Advice) {
	for {
		select {
		case <-ctx.Done():
			return
		case candle := <-input:
			w.ingest(candle)
		default:
		}

		if advice := w.execute(); advice != nil {
			select {
			case output <- *advice:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(loopSleep):
		}
	}
}

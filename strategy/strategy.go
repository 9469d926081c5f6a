// Package strategy holds the strategy contract and the per-deployment
// worker that drives concrete strategies with candles.
package strategy

import (
	"fmt"
	"sync"

	"github.com/raykavin/stardust/core"
)

// Values carries the last computed value of every registered indicator,
// keyed by local indicator name then output name. A nil value means the
// indicator is still inside its warm-up window.
type Values map[string]map[string]*float64

// Context is the capability set a strategy receives: indicator
// registration during Init and advice helpers during Execute.
type Context interface {
	// AddIndicator registers an indicator under a local name. The type and
	// parameters are validated immediately; a failure is fatal for the
	// deployment.
	AddIndicator(name, indicatorType string, params map[string]float64) error
	// Buy and Sell set the advice slot published after Execute returns.
	Buy()
	Sell()
	Logger() core.Logger
}

// Strategy is the fixed contract every concrete strategy implements.
// The surrounding worker owns history tracking, indicator recomputation
// and advice delivery; strategies only decide.
type Strategy interface {
	Name() string
	// Init registers indicators and reads parameters. Errors are fatal.
	Init(ctx Context, params map[string]float64) error
	// OnCandle is invoked once per new candle, before Execute.
	OnCandle(candle core.Candle)
	// Execute inspects the freshly computed indicator values and may call
	// ctx.Buy or ctx.Sell.
	Execute(values Values)
}

// Factory builds a fresh strategy instance.
type Factory func() Strategy

// Registry maps strategy names to factories. Concrete strategies register
// themselves at startup.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given name, replacing any previous one.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create instantiates the named strategy.
func (r *Registry) Create(name string) (Strategy, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownStrategy, name)
	}
	return factory(), nil
}

// Names lists the registered strategy names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

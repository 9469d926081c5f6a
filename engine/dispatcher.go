package engine

import (
	"context"

	"github.com/raykavin/stardust/core"
)

// Dispatcher tags raw strategy advice with its deployment context and
// forwards it on the global advice bus. It keeps the strategy oblivious to
// deployment identity.
type Dispatcher struct {
	profile    core.UserProfile
	deployment core.Deployment
	pair       core.TradingPair
	log        core.Logger
}

// NewDispatcher builds the shim for one deployment.
func NewDispatcher(profile core.UserProfile, deployment core.Deployment, pair core.TradingPair, log core.Logger) *Dispatcher {
	return &Dispatcher{
		profile:    profile,
		deployment: deployment,
		pair:       pair,
		log:        log,
	}
}

// Run forwards advice until cancelled.
func (d *Dispatcher) Run(ctx context.Context, in <-chan core.Advice, out chan<- core.TradeAdvice) {
	for {
		select {
		case <-ctx.Done():
			return
		case advice := <-in:
			tagged := core.TradeAdvice{
				Profile:      d.profile,
				DeploymentID: d.deployment.ID,
				Pair:         d.pair,
				Advice:       advice,
				Amount:       d.deployment.Amount,
				NumCycles:    d.deployment.NumCycles,
			}
			select {
			case out <- tagged:
				d.log.Debugf("dispatched %s advice for deployment %d", advice, d.deployment.ID)
			case <-ctx.Done():
				return
			}
		}
	}
}

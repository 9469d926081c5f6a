// Package engine owns the deployment registry and processes deploy and
// teardown commands. The command loop is single-consumer; every mutation
// of the registry and of the fan-out subscriptions happens here, so
// subscribers are added before their worker starts and removed before it
// is cancelled.
package engine

import (
	"context"

	"github.com/raykavin/stardust/core"
	"github.com/raykavin/stardust/feed"
	"github.com/raykavin/stardust/strategy"
)

const candleSinkSize = 64

// handle is the controller's record of one live deployment.
type handle struct {
	deployment core.Deployment
	pairKey    string
	cancel     context.CancelFunc
	candleSink chan core.Candle
	adviceOut  chan core.Advice
}

// Controller wires and tears down the worker/dispatcher pair of each
// deployment.
type Controller struct {
	fanout     *feed.Fanout
	strategies *strategy.Registry
	storage    core.Storage
	adviceBus  chan<- core.TradeAdvice
	log        core.Logger

	deployments map[int64]*handle
}

// New creates a controller with an empty deployment registry.
func New(fanout *feed.Fanout, strategies *strategy.Registry, storage core.Storage, adviceBus chan<- core.TradeAdvice, log core.Logger) *Controller {
	return &Controller{
		fanout:      fanout,
		strategies:  strategies,
		storage:     storage,
		adviceBus:   adviceBus,
		log:         log,
		deployments: make(map[int64]*handle),
	}
}

// Running reports whether the deployment is currently wired.
func (c *Controller) Running(deploymentID int64) bool {
	_, ok := c.deployments[deploymentID]
	return ok
}

// Run processes commands in arrival order until cancelled. On exit every
// live deployment is torn down with status STOPPED.
func (c *Controller) Run(ctx context.Context, commands <-chan core.Command) {
	for {
		select {
		case <-ctx.Done():
			for id := range c.deployments {
				c.teardown(id, core.DeploymentStopped, nil)
			}
			return
		case cmd := <-commands:
			c.handle(ctx, cmd)
		}
	}
}

func (c *Controller) handle(ctx context.Context, cmd core.Command) {
	switch cmd.Type {
	case core.CommandDeploy:
		c.deploy(ctx, cmd.Profile, cmd.Deployment)
	case core.CommandUndeploy:
		c.teardown(cmd.DeploymentID, core.DeploymentStopped, nil)
	case core.CommandDone:
		c.teardown(cmd.DeploymentID, core.DeploymentFinished, nil)
	case core.CommandStop:
		c.teardown(cmd.DeploymentID, core.DeploymentError, cmd.Err)
	default:
		c.log.Warnf("engine: unknown command type %q", cmd.Type)
	}
}

// deploy wires the candle sink, instantiates the strategy and spawns the
// worker and dispatcher. A strategy instantiation failure unwinds the sink
// and marks the deployment ERROR.
func (c *Controller) deploy(ctx context.Context, profile core.UserProfile, deployment core.Deployment) {
	if _, ok := c.deployments[deployment.ID]; ok {
		c.log.Warnf("engine: deployment %d already running", deployment.ID)
		return
	}

	algo, err := c.storage.Algo(deployment.UserID, deployment.AlgoName)
	if err != nil {
		c.log.WithError(err).Errorf("engine: deploy %d: algo lookup failed", deployment.ID)
		c.setStatus(deployment.ID, core.DeploymentError)
		return
	}

	candleSink := make(chan core.Candle, candleSinkSize)
	adviceOut := make(chan core.Advice, 1)
	pairKey := algo.Pair.Key()

	c.fanout.Subscribe(pairKey, feed.Subscription{
		DeploymentID: deployment.ID,
		Resolution:   algo.Resolution,
		Sink:         candleSink,
	})

	strat, err := c.strategies.Create(algo.StrategyName)
	if err == nil {
		var worker *strategy.Worker
		worker, err = strategy.NewWorker(deployment.ID, strat, algo.Parameters, c.log)
		if err == nil {
			dctx, cancel := context.WithCancel(ctx)
			c.deployments[deployment.ID] = &handle{
				deployment: deployment,
				pairKey:    pairKey,
				cancel:     cancel,
				candleSink: candleSink,
				adviceOut:  adviceOut,
			}
			c.setStatus(deployment.ID, core.DeploymentRunning)

			dispatcher := NewDispatcher(profile, deployment, algo.Pair, c.log)
			go worker.Run(dctx, candleSink, adviceOut)
			go dispatcher.Run(dctx, adviceOut, c.adviceBus)

			c.log.Infof("engine: deployment %d running (%s on %s %s)",
				deployment.ID, algo.StrategyName, pairKey, algo.Resolution)
			return
		}
	}

	c.fanout.Unsubscribe(pairKey, deployment.ID)
	c.log.WithError(err).Errorf("engine: deploy %d failed", deployment.ID)
	c.setStatus(deployment.ID, core.DeploymentError)
}

// teardown unsubscribes the sink first so no further candle is enqueued,
// then cancels the worker and dispatcher and persists the final status.
func (c *Controller) teardown(deploymentID int64, status core.DeploymentStatus, cause error) {
	h, ok := c.deployments[deploymentID]
	if !ok {
		c.log.Warnf("engine: teardown of unknown deployment %d", deploymentID)
		return
	}

	c.fanout.Unsubscribe(h.pairKey, deploymentID)
	h.cancel()
	delete(c.deployments, deploymentID)

	if cause != nil {
		c.log.WithError(cause).Errorf("engine: deployment %d stopped with error", deploymentID)
	}
	c.setStatus(deploymentID, status)
	c.log.Infof("engine: deployment %d -> %s", deploymentID, status)
}

func (c *Controller) setStatus(deploymentID int64, status core.DeploymentStatus) {
	if err := c.storage.UpdateDeploymentStatus(deploymentID, status); err != nil {
		c.log.WithError(err).Errorf("engine: persisting status %s for deployment %d", status, deploymentID)
	}
}

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/stardust/core"
	"github.com/raykavin/stardust/feed"
	"github.com/raykavin/stardust/logger"
	"github.com/raykavin/stardust/storage"
	"github.com/raykavin/stardust/strategies"
	"github.com/raykavin/stardust/strategy"
)

var (
	testPair = core.TradingPair{
		Base:    core.NativeAsset(),
		Counter: core.Asset{Code: "USDC", Issuer: "GISSUER"},
	}
	testProfile = core.UserProfile{UserID: "user-1", Account: "GTRADER"}
)

func testLogger(t *testing.T) core.Logger {
	t.Helper()
	log, err := logger.New("error", false)
	require.NoError(t, err)
	return log
}

// rig is a live controller with its buses, running against a real store
// and fan-out.
type rig struct {
	store     *storage.SQLStorage
	fanout    *feed.Fanout
	minuteBus chan core.Candle
	adviceBus chan core.TradeAdvice
	commands  chan core.Command
}

func newRig(t *testing.T) *rig {
	t.Helper()

	store, err := storage.FromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	registry := strategy.NewRegistry()
	strategies.RegisterAll(registry)

	r := &rig{
		store:     store,
		fanout:    feed.NewFanout(testLogger(t)),
		minuteBus: make(chan core.Candle, 16),
		adviceBus: make(chan core.TradeAdvice, 16),
		commands:  make(chan core.Command, 16),
	}

	controller := New(r.fanout, registry, store, r.adviceBus, testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go r.fanout.Run(ctx, r.minuteBus)
	go controller.Run(ctx, r.commands)

	return r
}

func (r *rig) createAlgo(t *testing.T, strategyName string) {
	t.Helper()
	require.NoError(t, r.store.CreateAlgo(core.Algo{
		Name:         "mine",
		UserID:       testProfile.UserID,
		Pair:         testPair,
		Resolution:   core.Resolution1m,
		StrategyName: strategyName,
		Parameters:   map[string]float64{"interval": 1},
	}))
}

func (r *rig) createDeployment(t *testing.T) core.Deployment {
	t.Helper()
	deployment := core.Deployment{
		UserID:    testProfile.UserID,
		AlgoName:  "mine",
		Amount:    100,
		NumCycles: 2,
		Status:    core.DeploymentNew,
	}
	require.NoError(t, r.store.CreateDeployment(&deployment))
	return deployment
}

func (r *rig) waitStatus(t *testing.T, id int64, want core.DeploymentStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		deployment, err := r.store.Deployment(id)
		return err == nil && deployment.Status == want
	}, 5*time.Second, 20*time.Millisecond, "waiting for status %s", want)
}

func minuteCandle(minute int, price float64) core.Candle {
	c := core.Candle{
		Pair: testPair.Key(),
		Time: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(minute) * time.Minute),
	}
	c.AddTrade(price, 10, 1)
	return c
}

func TestDeployProducesAdvice(t *testing.T) {
	r := newRig(t)
	r.createAlgo(t, "alternator")
	deployment := r.createDeployment(t)

	r.commands <- core.Command{Type: core.CommandDeploy, Profile: testProfile, Deployment: deployment}
	r.waitStatus(t, deployment.ID, core.DeploymentRunning)

	r.minuteBus <- minuteCandle(0, 1)

	select {
	case tagged := <-r.adviceBus:
		assert.Equal(t, deployment.ID, tagged.DeploymentID)
		assert.Equal(t, core.AdviceBuy, tagged.Advice)
		assert.Equal(t, testPair, tagged.Pair)
		assert.Equal(t, testProfile, tagged.Profile)
		assert.InDelta(t, 100, tagged.Amount, 1e-9)
		assert.Equal(t, 2, tagged.NumCycles)
	case <-time.After(5 * time.Second):
		t.Fatal("no advice dispatched")
	}

	r.commands <- core.Command{Type: core.CommandUndeploy, DeploymentID: deployment.ID}
	r.waitStatus(t, deployment.ID, core.DeploymentStopped)
}

func TestDeployUnknownStrategyFails(t *testing.T) {
	r := newRig(t)
	r.createAlgo(t, "nope")
	deployment := r.createDeployment(t)

	r.commands <- core.Command{Type: core.CommandDeploy, Profile: testProfile, Deployment: deployment}
	r.waitStatus(t, deployment.ID, core.DeploymentError)
}

func TestDeployMissingAlgoFails(t *testing.T) {
	r := newRig(t)
	deployment := r.createDeployment(t)

	r.commands <- core.Command{Type: core.CommandDeploy, Profile: testProfile, Deployment: deployment}
	r.waitStatus(t, deployment.ID, core.DeploymentError)
}

func TestDoneAndStopCommands(t *testing.T) {
	r := newRig(t)
	r.createAlgo(t, "alternator")

	first := r.createDeployment(t)
	r.commands <- core.Command{Type: core.CommandDeploy, Profile: testProfile, Deployment: first}
	r.waitStatus(t, first.ID, core.DeploymentRunning)

	r.commands <- core.Command{Type: core.CommandDone, DeploymentID: first.ID}
	r.waitStatus(t, first.ID, core.DeploymentFinished)

	second := r.createDeployment(t)
	r.commands <- core.Command{Type: core.CommandDeploy, Profile: testProfile, Deployment: second}
	r.waitStatus(t, second.ID, core.DeploymentRunning)

	r.commands <- core.Command{
		Type:         core.CommandStop,
		DeploymentID: second.ID,
		Err:          errors.New("exchange rejected offer"),
	}
	r.waitStatus(t, second.ID, core.DeploymentError)
}

func TestDispatcherTagsAdvice(t *testing.T) {
	deployment := core.Deployment{ID: 9, Amount: 250, NumCycles: 3}
	d := NewDispatcher(testProfile, deployment, testPair, testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan core.Advice, 1)
	out := make(chan core.TradeAdvice, 1)
	go d.Run(ctx, in, out)

	in <- core.AdviceSell

	select {
	case tagged := <-out:
		assert.Equal(t, int64(9), tagged.DeploymentID)
		assert.Equal(t, core.AdviceSell, tagged.Advice)
		assert.InDelta(t, 250, tagged.Amount, 1e-9)
		assert.Equal(t, 3, tagged.NumCycles)
		assert.Equal(t, testProfile, tagged.Profile)
	case <-time.After(time.Second):
		t.Fatal("advice not forwarded")
	}
}

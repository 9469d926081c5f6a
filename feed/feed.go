// Package feed fans the minute-candle stream out to per-deployment sinks,
// merging minute candles into coarser resolutions on the way.
package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/StudioSol/set"
	"github.com/samber/lo"

	"github.com/raykavin/stardust/core"
)

// Subscription binds one deployment sink to a (pair, resolution) stream.
type Subscription struct {
	DeploymentID int64
	Resolution   core.Resolution
	Sink         chan core.Candle
}

// Fanout routes minute candles to subscribed deployments. Candles at 1m are
// forwarded unchanged; coarser resolutions share one in-progress aggregate
// per (pair, resolution), emitted when the next bucket begins.
type Fanout struct {
	pairs      *set.LinkedHashSetString
	subs       map[string][]Subscription
	aggregates map[string]*core.Candle
	log        core.Logger
	mu         sync.RWMutex
}

// NewFanout creates an empty fan-out registry.
func NewFanout(log core.Logger) *Fanout {
	return &Fanout{
		pairs:      set.NewLinkedHashSetString(),
		subs:       make(map[string][]Subscription),
		aggregates: make(map[string]*core.Candle),
		log:        log,
	}
}

// aggregateKey builds the in-progress aggregate key for a pair and resolution.
func aggregateKey(pairKey string, resolution core.Resolution) string {
	return fmt.Sprintf("%s--%s", pairKey, resolution)
}

// Subscribed reports whether any deployment currently watches the pair.
// The fetcher uses it to skip aggregating pairs nobody listens to.
func (f *Fanout) Subscribed(pairKey string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pairs.InArray(pairKey)
}

// Subscribe registers a deployment sink under the pair key.
func (f *Fanout) Subscribe(pairKey string, sub Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pairs.Add(pairKey)
	f.subs[pairKey] = append(f.subs[pairKey], sub)
}

// Unsubscribe removes the deployment's sink. When the last subscription at a
// (pair, resolution) goes away its in-progress aggregate is discarded.
func (f *Fanout) Unsubscribe(pairKey string, deploymentID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var removed []Subscription
	f.subs[pairKey] = lo.Filter(f.subs[pairKey], func(s Subscription, _ int) bool {
		if s.DeploymentID == deploymentID {
			removed = append(removed, s)
			return false
		}
		return true
	})

	for _, gone := range removed {
		remaining := lo.CountBy(f.subs[pairKey], func(s Subscription) bool {
			return s.Resolution == gone.Resolution
		})
		if remaining == 0 {
			delete(f.aggregates, aggregateKey(pairKey, gone.Resolution))
		}
	}

	if len(f.subs[pairKey]) == 0 {
		delete(f.subs, pairKey)
		f.pairs.Remove(pairKey)
	}
}

// Run consumes the minute-candle source until the context is cancelled.
func (f *Fanout) Run(ctx context.Context, source <-chan core.Candle) {
	for {
		select {
		case <-ctx.Done():
			return
		case candle, ok := <-source:
			if !ok {
				return
			}
			f.process(candle)
		}
	}
}

// process routes one minute candle to every subscription of its pair.
func (f *Fanout) process(candle core.Candle) {
	f.mu.Lock()
	defer f.mu.Unlock()

	subs := f.subs[candle.Pair]
	if len(subs) == 0 {
		return
	}

	// Resolutions are handled once each; every sink at that resolution
	// receives the same emitted aggregate.
	done := make(map[core.Resolution]bool)

	for _, sub := range subs {
		if done[sub.Resolution] {
			continue
		}
		done[sub.Resolution] = true

		if sub.Resolution == core.Resolution1m {
			f.publish(candle.Pair, sub.Resolution, candle)
			continue
		}

		key := aggregateKey(candle.Pair, sub.Resolution)
		agg, ok := f.aggregates[key]
		if !ok {
			fresh := candle
			f.aggregates[key] = &fresh
			continue
		}

		if core.SameBucket(agg.Time, candle.Time, sub.Resolution) {
			agg.Merge(candle)
			continue
		}

		closed := *agg
		fresh := candle
		f.aggregates[key] = &fresh
		f.publish(candle.Pair, sub.Resolution, closed)
	}
}

// publish delivers a closed candle to every sink at (pair, resolution).
// Sends never block; a full sink drops the candle with a warning.
func (f *Fanout) publish(pairKey string, resolution core.Resolution, candle core.Candle) {
	for _, sub := range f.subs[pairKey] {
		if sub.Resolution != resolution {
			continue
		}
		select {
		case sub.Sink <- candle:
		default:
			f.log.Warnf("feed: dropping %s candle for deployment %d, sink full",
				resolution, sub.DeploymentID)
		}
	}
}

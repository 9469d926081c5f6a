package trader

import (
	"sync"

	"github.com/raykavin/stardust/core"
)

// TradeContext tracks one deployment's progress between advices. It lives
// only in memory; a restart loses it while the recorded trades stay
// durable.
type TradeContext struct {
	mu sync.Mutex

	first      core.Advice
	last       core.Advice
	cycles     int
	done       bool
	buyAmount  float64
	sellAmount float64
}

// contextMap is the registry of live trade contexts. A short global lock
// guards insertion so two concurrent first-advices cannot both create a
// context; each context then guards itself.
type contextMap struct {
	mu       sync.Mutex
	contexts map[int64]*TradeContext
}

func newContextMap() *contextMap {
	return &contextMap{contexts: make(map[int64]*TradeContext)}
}

// acquire returns the deployment's context, creating it from the first
// advice when absent. The second return reports whether it was created by
// this call.
func (m *contextMap) acquire(deploymentID int64, first core.Advice, amount float64) (*TradeContext, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tc, ok := m.contexts[deploymentID]; ok {
		return tc, false
	}

	tc := &TradeContext{
		first:     first,
		last:      first,
		buyAmount: amount,
	}
	m.contexts[deploymentID] = tc
	return tc, true
}

// get returns the context without creating one.
func (m *contextMap) get(deploymentID int64) (*TradeContext, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tc, ok := m.contexts[deploymentID]
	return tc, ok
}

// markDone flags a terminated deployment's context. The context stays in
// the map so advice still queued on the bus resolves to done instead of
// re-creating state and trading past the budget.
func (m *contextMap) markDone(deploymentID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tc, ok := m.contexts[deploymentID]; ok {
		tc.mu.Lock()
		tc.done = true
		tc.mu.Unlock()
	}
}

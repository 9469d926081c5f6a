// Package trader executes trade advice against the exchange while
// enforcing per-deployment sequencing and cycle invariants.
package trader

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/raykavin/stardust/core"
)

const (
	defaultWorkers = 4
	reapInterval   = 5 * time.Second
	writeRetries   = 3
)

// Outcome classifies the handling of one advice.
type Outcome int

const (
	// OutcomeCont means the advice was ignored or executed; the
	// deployment keeps running.
	OutcomeCont Outcome = iota
	// OutcomeDone means the cycle budget is exhausted.
	OutcomeDone
	// OutcomeError means execution failed and the deployment must stop.
	OutcomeError
)

// result is one finished execution, reaped periodically by the scheduler.
type result struct {
	deploymentID int64
	outcome      Outcome
	err          error
}

// Trader consumes the advice bus. The loop itself is a thin scheduler: it
// submits work to a fixed pool and periodically converts finished DONE and
// ERROR outcomes into engine commands.
type Trader struct {
	exchange core.Exchange
	storage  core.Storage
	notifier core.Notifier
	commands chan<- core.Command
	log      core.Logger

	account  string
	workers  int
	contexts *contextMap
}

// Option configures a Trader.
type Option func(*Trader)

// WithWorkers sets the execution pool size.
func WithWorkers(n int) Option {
	return func(t *Trader) { t.workers = n }
}

// WithNotifier attaches a notifier for executed trades and errors.
func WithNotifier(n core.Notifier) Option {
	return func(t *Trader) { t.notifier = n }
}

// New builds a Trader trading from the given exchange account.
func New(exchange core.Exchange, storage core.Storage, commands chan<- core.Command, account string, log core.Logger, opts ...Option) *Trader {
	t := &Trader{
		exchange: exchange,
		storage:  storage,
		commands: commands,
		log:      log,
		account:  account,
		workers:  defaultWorkers,
		contexts: newContextMap(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run schedules advice onto the worker pool until cancelled.
func (t *Trader) Run(ctx context.Context, advice <-chan core.TradeAdvice) {
	jobs := make(chan core.TradeAdvice)
	results := make(chan result, t.workers*4)

	for i := 0; i < t.workers; i++ {
		go t.worker(ctx, jobs, results)
	}

	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case a := <-advice:
			select {
			case jobs <- a:
			case <-ctx.Done():
				return
			}
		case <-ticker.C:
			t.reap(ctx, results)
		}
	}
}

func (t *Trader) worker(ctx context.Context, jobs <-chan core.TradeAdvice, results chan<- result) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-jobs:
			outcome, err := t.Execute(ctx, a)
			select {
			case results <- result{deploymentID: a.DeploymentID, outcome: outcome, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// reap drains finished executions and converts terminal outcomes into
// engine commands.
func (t *Trader) reap(ctx context.Context, results <-chan result) {
	for {
		select {
		case r := <-results:
			switch r.outcome {
			case OutcomeDone:
				t.contexts.markDone(r.deploymentID)
				t.send(ctx, core.Command{Type: core.CommandDone, DeploymentID: r.deploymentID})
			case OutcomeError:
				t.contexts.markDone(r.deploymentID)
				t.notifyError(r.err)
				t.send(ctx, core.Command{Type: core.CommandStop, DeploymentID: r.deploymentID, Err: r.err})
			}
		default:
			return
		}
	}
}

func (t *Trader) send(ctx context.Context, cmd core.Command) {
	select {
	case t.commands <- cmd:
	case <-ctx.Done():
	}
}

// seqDecision is the outcome of the sequencing rules for one advice.
type seqDecision int

const (
	seqExecute seqDecision = iota
	seqSkip
	seqDone
)

// Execute handles one advice end to end: sequencing, offer placement,
// settlement and the trade record.
func (t *Trader) Execute(ctx context.Context, a core.TradeAdvice) (Outcome, error) {
	tc, decision := t.sequence(a)
	switch decision {
	case seqSkip:
		return OutcomeCont, nil
	case seqDone:
		return OutcomeDone, nil
	}

	sellAsset, buyAsset, amount := t.direction(a, tc)
	if math.Floor(amount) == 0 {
		return OutcomeError, fmt.Errorf("deployment %d: ran out of fund", a.DeploymentID)
	}

	sold, bought, err := t.placeAndSettle(ctx, sellAsset, buyAsset, amount)
	if err != nil {
		return OutcomeError, fmt.Errorf("deployment %d: %w", a.DeploymentID, err)
	}

	tc.mu.Lock()
	if a.Advice == core.AdviceBuy {
		tc.buyAmount -= sold
		tc.sellAmount += bought
	} else {
		tc.sellAmount -= sold
		tc.buyAmount += bought
	}
	tc.mu.Unlock()

	record := core.TradeRecord{
		Time:         time.Now().UTC(),
		DeploymentID: a.DeploymentID,
		Advice:       a.Advice,
		SoldAsset:    sellAsset.String(),
		SoldAmount:   sold,
		BoughtAsset:  buyAsset.String(),
		BoughtAmount: bought,
	}
	if err := t.saveTrade(&record); err != nil {
		// The on-chain side already executed; the lost record is an error.
		return OutcomeError, fmt.Errorf("deployment %d: recording trade: %w", a.DeploymentID, err)
	}

	if t.notifier != nil {
		t.notifier.OnTrade(record)
	}

	return OutcomeCont, nil
}

// sequence applies context creation and the sequencing and cycle rules.
// The first BUY for a deployment creates the context and executes
// directly; everything after goes through the duplicate and cycle checks.
func (t *Trader) sequence(a core.TradeAdvice) (*TradeContext, seqDecision) {
	tc, ok := t.contexts.get(a.DeploymentID)
	if !ok {
		if a.Advice == core.AdviceSell {
			t.log.Warnf("trader: deployment %d sell advice without prior buy", a.DeploymentID)
			return nil, seqSkip
		}
		var created bool
		tc, created = t.contexts.acquire(a.DeploymentID, a.Advice, a.Amount)
		if created {
			return tc, seqExecute
		}
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.done || tc.cycles >= a.NumCycles {
		return tc, seqDone
	}
	if tc.last == a.Advice {
		t.log.Debugf("trader: deployment %d duplicate %s advice ignored", a.DeploymentID, a.Advice)
		return tc, seqSkip
	}
	if a.Advice != tc.first {
		tc.cycles++
	}
	tc.last = a.Advice

	return tc, seqExecute
}

// direction maps the advice to the offer legs and the amount to spend.
func (t *Trader) direction(a core.TradeAdvice, tc *TradeContext) (sell, buy core.Asset, amount float64) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if a.Advice == core.AdviceBuy {
		return a.Pair.Base, a.Pair.Counter, tc.buyAmount
	}
	return a.Pair.Counter, a.Pair.Base, tc.sellAmount
}

// placeAndSettle submits one offer at the top bid, cancels any residue and
// sums the matched amounts from the transaction effects.
func (t *Trader) placeAndSettle(ctx context.Context, sellAsset, buyAsset core.Asset, amount float64) (sold, bought float64, err error) {
	book, err := t.exchange.OrderBook(ctx, sellAsset, buyAsset)
	if err != nil {
		return 0, 0, fmt.Errorf("fetching order book: %w", err)
	}
	top, err := book.TopBid()
	if err != nil {
		return 0, 0, err
	}

	res, err := t.exchange.SubmitOffer(ctx, t.account, sellAsset, buyAsset, amount, top.Price)
	if err != nil {
		return 0, 0, fmt.Errorf("submitting offer: %w", err)
	}

	// Cancel the residue if the offer is still partially open. Partial
	// fills are the norm; a not-found cancel is fine.
	offers, err := t.exchange.AccountOffers(ctx, t.account)
	if err == nil {
		for _, offer := range offers {
			if offer.ID == res.OfferID {
				if cErr := t.exchange.CancelOffer(ctx, t.account, offer.ID, sellAsset, buyAsset); cErr != nil {
					t.log.WithError(cErr).Warnf("trader: cancelling residue offer %d", offer.ID)
				}
				break
			}
		}
	}

	effects, err := t.exchange.TxEffects(ctx, res.TxID)
	if err != nil {
		return 0, 0, fmt.Errorf("fetching effects: %w", err)
	}
	for _, effect := range effects {
		if effect.Type != core.EffectTrade || effect.Account != t.account {
			continue
		}
		sold += effect.SoldAmount
		bought += effect.BoughtAmount
	}

	return sold, bought, nil
}

func (t *Trader) saveTrade(record *core.TradeRecord) error {
	var err error
	for attempt := 0; attempt < writeRetries; attempt++ {
		if err = t.storage.SaveTrade(record); err == nil {
			return nil
		}
	}
	return err
}

func (t *Trader) notifyError(err error) {
	if t.notifier != nil && err != nil {
		t.notifier.OnError(err)
	}
}

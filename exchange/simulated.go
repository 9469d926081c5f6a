package exchange

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/raykavin/stardust/core"
)

// Simulated is an in-memory exchange. Trades, order books and effects are
// seeded by the caller; submitted offers fill fully against the top bid
// and report one matching trade effect.
type Simulated struct {
	mu sync.Mutex

	trades      []core.TradeRow
	books       map[string]core.OrderBook
	offers      map[string][]core.Offer
	effects     map[string][]core.TxEffect
	nextOfferID int64
	nextTxID    int64
	failFetch   bool
}

// NewSimulated creates an empty simulated exchange.
func NewSimulated() *Simulated {
	return &Simulated{
		books:   make(map[string]core.OrderBook),
		offers:  make(map[string][]core.Offer),
		effects: make(map[string][]core.TxEffect),
	}
}

// AddTrades appends rows to the trade stream. Paging tokens are assigned
// from the stream position when empty.
func (s *Simulated) AddTrades(rows ...core.TradeRow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		if row.PagingToken == "" {
			row.PagingToken = strconv.Itoa(len(s.trades) + 1)
		}
		s.trades = append(s.trades, row)
	}
}

// SetOrderBook seeds the bid side for a selling/buying pair.
func (s *Simulated) SetOrderBook(selling, buying core.Asset, book core.OrderBook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[bookKey(selling, buying)] = book
}

func bookKey(selling, buying core.Asset) string {
	return selling.String() + "/" + buying.String()
}

// SetFailFetch makes every subsequent trade fetch fail, for retry-path
// tests.
func (s *Simulated) SetFailFetch(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFetch = fail
}

// LastTradeCursor implements core.Exchange.
func (s *Simulated) LastTradeCursor(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.trades) == 0 {
		return "0", nil
	}
	return s.trades[len(s.trades)-1].PagingToken, nil
}

// Trades implements core.Exchange. Rows strictly after the cursor are
// returned oldest first.
func (s *Simulated) Trades(ctx context.Context, cursor string, limit int) ([]core.TradeRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failFetch {
		return nil, fmt.Errorf("simulated exchange: fetch disabled")
	}

	start := 0
	if cursor != "" {
		for idx, row := range s.trades {
			if row.PagingToken == cursor {
				start = idx + 1
				break
			}
		}
	}

	end := start + limit
	if end > len(s.trades) {
		end = len(s.trades)
	}
	if start >= end {
		return nil, nil
	}

	page := make([]core.TradeRow, end-start)
	copy(page, s.trades[start:end])
	return page, nil
}

// OrderBook implements core.Exchange.
func (s *Simulated) OrderBook(ctx context.Context, selling, buying core.Asset) (core.OrderBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books[bookKey(selling, buying)], nil
}

// SubmitOffer implements core.Exchange. The offer fills completely at the
// top bid and leaves no residue.
func (s *Simulated) SubmitOffer(ctx context.Context, account string, selling, buying core.Asset, amount, price float64) (core.OfferResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book := s.books[bookKey(selling, buying)]
	if len(book.Bids) == 0 {
		return core.OfferResult{}, core.ErrEmptyOrderBook
	}

	s.nextOfferID++
	s.nextTxID++
	result := core.OfferResult{
		TxID:    strconv.FormatInt(s.nextTxID, 10),
		OfferID: s.nextOfferID,
	}

	s.effects[result.TxID] = []core.TxEffect{{
		Type:         core.EffectTrade,
		Account:      account,
		SoldAmount:   amount,
		BoughtAmount: amount * price,
		OfferID:      result.OfferID,
	}}
	return result, nil
}

// CancelOffer implements core.Exchange. Unknown offers are not an error.
func (s *Simulated) CancelOffer(ctx context.Context, account string, offerID int64, selling, buying core.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.offers[account][:0]
	for _, offer := range s.offers[account] {
		if offer.ID != offerID {
			remaining = append(remaining, offer)
		}
	}
	s.offers[account] = remaining
	return nil
}

// TxEffects implements core.Exchange.
func (s *Simulated) TxEffects(ctx context.Context, txID string) ([]core.TxEffect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	effects, ok := s.effects[txID]
	if !ok {
		return nil, core.ErrTradeNotIngested
	}
	return effects, nil
}

// AccountOffers implements core.Exchange.
func (s *Simulated) AccountOffers(ctx context.Context, account string) ([]core.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Offer(nil), s.offers[account]...), nil
}

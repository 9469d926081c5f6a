package core

import (
	"context"
	"time"
)

// TradeRow is one executed trade as reported by the exchange stream.
type TradeRow struct {
	BaseAsset       Asset
	CounterAsset    Asset
	PriceN          int64
	PriceD          int64
	BaseAmount      float64
	CounterAmount   float64
	LedgerCloseTime time.Time
	PagingToken     string
}

// Price derives the trade price from its rational representation.
func (r TradeRow) Price() float64 {
	return float64(r.PriceN) / float64(r.PriceD)
}

// PairKey returns the trading pair key of the row's assets.
func (r TradeRow) PairKey() string {
	return TradingPair{Base: r.BaseAsset, Counter: r.CounterAsset}.Key()
}

// Bid is one resting buy offer in an order book.
type Bid struct {
	Amount float64
	Price  float64
}

// OrderBook holds the bid side of the book for one asset pair,
// best price first.
type OrderBook struct {
	Bids []Bid
}

// TopBid returns the best bid, or ErrEmptyOrderBook when the book is empty.
func (ob OrderBook) TopBid() (Bid, error) {
	if len(ob.Bids) == 0 {
		return Bid{}, ErrEmptyOrderBook
	}
	return ob.Bids[0], nil
}

// TxEffect is one exchange-reported consequence of a submitted transaction.
type TxEffect struct {
	Type         string
	Account      string
	SoldAmount   float64
	BoughtAmount float64
	OfferID      int64
}

// EffectTrade is the effect type reported for a matched trade.
const EffectTrade = "trade"

// Offer is a resting offer owned by an account.
type Offer struct {
	ID      int64
	Selling Asset
	Buying  Asset
	Amount  float64
	Price   float64
}

// OfferResult is the outcome of a submitted offer transaction.
type OfferResult struct {
	TxID    string
	OfferID int64
}

// Exchange abstracts the ledger: the trade stream consumed by the candle
// aggregator and the offer operations used by the trader.
type Exchange interface {
	// LastTradeCursor returns the paging token of the newest trade.
	LastTradeCursor(ctx context.Context) (string, error)
	// Trades returns up to limit trades strictly after cursor, oldest first.
	Trades(ctx context.Context, cursor string, limit int) ([]TradeRow, error)
	// OrderBook fetches the bid side for selling/buying, best price first.
	OrderBook(ctx context.Context, selling, buying Asset) (OrderBook, error)
	// SubmitOffer places a single offer at the given price and submits it.
	SubmitOffer(ctx context.Context, account string, selling, buying Asset, amount, price float64) (OfferResult, error)
	// CancelOffer removes a resting offer. Cancelling an offer that no
	// longer exists is not an error.
	CancelOffer(ctx context.Context, account string, offerID int64, selling, buying Asset) error
	// TxEffects returns the effects of an ingested transaction.
	TxEffects(ctx context.Context, txID string) ([]TxEffect, error)
	// AccountOffers lists the account's resting offers.
	AccountOffers(ctx context.Context, account string) ([]Offer, error)
}

// Storage is the relational store for algos, deployments, backtests
// and trade records.
type Storage interface {
	CreateAlgo(a Algo) error
	Algo(userID, name string) (Algo, error)
	Algos(userID string) ([]Algo, error)
	DeleteAlgo(userID, name string) error

	CreateDeployment(d *Deployment) error
	Deployment(id int64) (Deployment, error)
	Deployments(userID string) ([]Deployment, error)
	UpdateDeploymentStatus(id int64, status DeploymentStatus) error

	CreateBacktest(b *BacktestRequest) error
	Backtest(id int64) (BacktestRequest, error)
	Backtests(userID string) ([]BacktestRequest, error)
	PendingBacktests() ([]BacktestRequest, error)
	UpdateBacktestStatus(id int64, status BacktestStatus) error

	SaveTrade(t *TradeRecord) error
	DeploymentTrades(deploymentID int64) ([]TradeRecord, error)
	BacktestTrades(backtestID int64) ([]TradeRecord, error)
}

// CandleQuery selects a page of archived candles.
type CandleQuery struct {
	Pair       TradingPair
	From       time.Time
	To         time.Time
	Resolution Resolution
	PageSize   int
	PageToken  int64
}

// CandlePage is one page of candles plus the token selecting the next page.
// NextPageToken is the max archive row id contributing to the page.
type CandlePage struct {
	Candles       []Candle
	NextPageToken int64
}

// CandleStore is the minute-grain candle archive with on-the-fly
// re-aggregation to coarser resolutions.
type CandleStore interface {
	SaveCandles(candles []Candle) error
	Candles(q CandleQuery) (CandlePage, error)
}

// StateStore is a small durable key/value store used by the importer to
// survive restarts.
type StateStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	// SetAll writes every pair in a single transaction.
	SetAll(values map[string]string) error
	Close() error
}

// Notifier pushes trade executions and deployment errors to the user.
type Notifier interface {
	OnTrade(t TradeRecord)
	OnError(err error)
}

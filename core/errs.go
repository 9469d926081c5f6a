package core

import "errors"

var (
	ErrInvalidPairKey     = errors.New("invalid trading pair key")
	ErrInvalidResolution  = errors.New("invalid candle resolution")
	ErrUnknownStrategy    = errors.New("unknown strategy")
	ErrUnknownIndicator   = errors.New("unknown indicator")
	ErrIndicatorParams    = errors.New("invalid indicator parameters")
	ErrDeploymentNotFound = errors.New("deployment not found")
	ErrAlgoNotFound       = errors.New("algo not found")
	ErrBacktestNotFound   = errors.New("backtest not found")
	ErrEmptyOrderBook     = errors.New("order book has no bids")
	ErrTradeNotIngested   = errors.New("trade transaction not ingested")
	ErrStateKeyNotFound   = errors.New("state key not found")
)

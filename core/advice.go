package core

// Advice is a strategy's trade signal.
type Advice string

const (
	AdviceBuy  Advice = "BUY"
	AdviceSell Advice = "SELL"
)

// TradeAdvice is a raw strategy advice tagged with its deployment context,
// ready to be executed by the trader.
type TradeAdvice struct {
	Profile      UserProfile
	DeploymentID int64
	Pair         TradingPair
	Advice       Advice
	Amount       float64
	NumCycles    int
}

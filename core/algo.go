package core

import "time"

// UserProfile identifies the owner of algos, deployments and backtests.
// Rows in the store are tagged with the user id.
type UserProfile struct {
	UserID  string
	Account string
}

// Algo is an immutable user-defined strategy template.
type Algo struct {
	Name         string
	UserID       string
	Pair         TradingPair
	Resolution   Resolution
	StrategyName string

	// Parameters is the strategy parameter map, persisted as JSON.
	Parameters map[string]float64
}

// DeploymentStatus is the lifecycle state of a deployment.
type DeploymentStatus string

const (
	DeploymentNew      DeploymentStatus = "NEW"
	DeploymentRunning  DeploymentStatus = "RUNNING"
	DeploymentFinished DeploymentStatus = "FINISHED"
	DeploymentStopped  DeploymentStatus = "STOPPED"
	DeploymentError    DeploymentStatus = "ERROR"
)

// Deployment is a running instance of an Algo.
type Deployment struct {
	ID        int64
	UserID    string
	AlgoName  string
	Amount    float64
	NumCycles int
	Status    DeploymentStatus
}

// BacktestStatus is the lifecycle state of a backtest request.
// Transitions are monotone: NEW → RUNNING → {FINISHED, ERROR}.
type BacktestStatus string

const (
	BacktestNew      BacktestStatus = "NEW"
	BacktestRunning  BacktestStatus = "RUNNING"
	BacktestFinished BacktestStatus = "FINISHED"
	BacktestError    BacktestStatus = "ERROR"
)

// BacktestRequest snapshots an algo together with the window to replay.
type BacktestRequest struct {
	ID           int64
	UserID       string
	AlgoName     string
	Pair         TradingPair
	Resolution   Resolution
	StrategyName string
	Parameters   map[string]float64
	Start        time.Time
	End          time.Time
	Status       BacktestStatus
}

// TradeRecord is one executed (or simulated) trade. Append-only.
// Exactly one of DeploymentID / BacktestID is set.
type TradeRecord struct {
	ID           int64
	Time         time.Time
	DeploymentID int64
	BacktestID   int64
	Advice       Advice
	SoldAsset    string
	SoldAmount   float64
	BoughtAsset  string
	BoughtAmount float64
}

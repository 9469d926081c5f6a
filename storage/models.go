package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/raykavin/stardust/core"
)

// AlgoModel is the persisted form of core.Algo.
type AlgoModel struct {
	ID           int64  `gorm:"primaryKey"`
	UserID       string `gorm:"column:userid;uniqueIndex:idx_algos_user_name"`
	AlgoName     string `gorm:"column:algoname;uniqueIndex:idx_algos_user_name"`
	TradePair    string `gorm:"column:tradepair"`
	CandleSize   string `gorm:"column:candlesize"`
	StrategyName string `gorm:"column:strategyname"`
	Parameters   string `gorm:"column:parameters"`
}

func (AlgoModel) TableName() string { return "algos" }

func (m AlgoModel) toCore() (core.Algo, error) {
	pair, err := core.ParsePairKey(m.TradePair)
	if err != nil {
		return core.Algo{}, err
	}

	params := make(map[string]float64)
	if m.Parameters != "" {
		if err := json.Unmarshal([]byte(m.Parameters), &params); err != nil {
			return core.Algo{}, fmt.Errorf("algo %s parameters: %w", m.AlgoName, err)
		}
	}

	return core.Algo{
		Name:         m.AlgoName,
		UserID:       m.UserID,
		Pair:         pair,
		Resolution:   core.Resolution(m.CandleSize),
		StrategyName: m.StrategyName,
		Parameters:   params,
	}, nil
}

func algoModel(a core.Algo) (AlgoModel, error) {
	params, err := json.Marshal(a.Parameters)
	if err != nil {
		return AlgoModel{}, fmt.Errorf("algo %s parameters: %w", a.Name, err)
	}

	return AlgoModel{
		UserID:       a.UserID,
		AlgoName:     a.Name,
		TradePair:    a.Pair.Key(),
		CandleSize:   string(a.Resolution),
		StrategyName: a.StrategyName,
		Parameters:   string(params),
	}, nil
}

// DeploymentModel is the persisted form of core.Deployment.
type DeploymentModel struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    string `gorm:"column:userid;index"`
	AlgoName  string `gorm:"column:algoname"`
	Amount    float64
	NumCycles int
	Status    string `gorm:"index"`
}

func (DeploymentModel) TableName() string { return "deployed_algos" }

func (m DeploymentModel) toCore() core.Deployment {
	return core.Deployment{
		ID:        m.ID,
		UserID:    m.UserID,
		AlgoName:  m.AlgoName,
		Amount:    m.Amount,
		NumCycles: m.NumCycles,
		Status:    core.DeploymentStatus(m.Status),
	}
}

// TradeModel is one executed trade of a live deployment.
type TradeModel struct {
	ID           int64     `gorm:"primaryKey"`
	Ts           time.Time `gorm:"column:ts"`
	DeploymentID int64     `gorm:"index"`
	Advice       string
	SoldAsset    string
	SoldAmount   float64
	BoughtAsset  string
	BoughtAmount float64
}

func (TradeModel) TableName() string { return "trades" }

// BacktestTradeModel is one simulated trade of a backtest run.
type BacktestTradeModel struct {
	ID           int64     `gorm:"primaryKey"`
	Ts           time.Time `gorm:"column:ts"`
	BacktestID   int64     `gorm:"index"`
	Advice       string
	SoldAsset    string
	SoldAmount   float64
	BoughtAsset  string
	BoughtAmount float64
}

func (BacktestTradeModel) TableName() string { return "backtest_trades" }

// BacktestModel is the persisted form of core.BacktestRequest. It snapshots
// the algo so a later algo deletion cannot break a queued request.
type BacktestModel struct {
	ID           int64     `gorm:"primaryKey"`
	UserID       string    `gorm:"column:userid;index"`
	AlgoName     string    `gorm:"column:algoname"`
	StartTs      time.Time `gorm:"column:start_ts"`
	EndTs        time.Time `gorm:"column:end_ts"`
	TradePair    string    `gorm:"column:tradepair"`
	CandleSize   string    `gorm:"column:candlesize"`
	StrategyName string    `gorm:"column:strategyname"`
	Parameters   string    `gorm:"column:parameters"`
	Status       string    `gorm:"index"`
}

func (BacktestModel) TableName() string { return "backtest_request" }

func (m BacktestModel) toCore() (core.BacktestRequest, error) {
	pair, err := core.ParsePairKey(m.TradePair)
	if err != nil {
		return core.BacktestRequest{}, err
	}

	params := make(map[string]float64)
	if m.Parameters != "" {
		if err := json.Unmarshal([]byte(m.Parameters), &params); err != nil {
			return core.BacktestRequest{}, fmt.Errorf("backtest %d parameters: %w", m.ID, err)
		}
	}

	return core.BacktestRequest{
		ID:           m.ID,
		UserID:       m.UserID,
		AlgoName:     m.AlgoName,
		Pair:         pair,
		Resolution:   core.Resolution(m.CandleSize),
		StrategyName: m.StrategyName,
		Parameters:   params,
		Start:        m.StartTs,
		End:          m.EndTs,
		Status:       core.BacktestStatus(m.Status),
	}, nil
}

// CandleRow is one archived minute candle with precomputed bucket columns
// that the re-aggregating query layer groups on.
type CandleRow struct {
	ID            int64     `gorm:"primaryKey"`
	TradePair     string    `gorm:"column:trade_pair;index:idx_ohlcv_pair_ts"`
	Ts            time.Time `gorm:"column:ts;index:idx_ohlcv_pair_ts"`
	Year          int       `gorm:"column:year"`
	Month         int       `gorm:"column:month"`
	Week          int       `gorm:"column:week"`
	Day           int       `gorm:"column:day"`
	Hour4         int       `gorm:"column:hour4"`
	Hour          int       `gorm:"column:hour"`
	Minute15      int       `gorm:"column:minute15"`
	Minute5       int       `gorm:"column:minute5"`
	Minute        int       `gorm:"column:minute"`
	Open          float64   `gorm:"column:open"`
	High          float64   `gorm:"column:high"`
	Low           float64   `gorm:"column:low"`
	Close         float64   `gorm:"column:close"`
	BaseVolume    float64   `gorm:"column:base_volume"`
	CounterVolume float64   `gorm:"column:counter_volume"`
	TradeCount    int       `gorm:"column:trade_count"`
}

func (CandleRow) TableName() string { return "sdex_ohlcv" }

func candleRow(c core.Candle) CandleRow {
	b := core.BucketsOf(c.Time)
	return CandleRow{
		TradePair:     c.Pair,
		Ts:            c.Time.UTC(),
		Year:          b.Year,
		Month:         b.Month,
		Week:          b.Week,
		Day:           b.Day,
		Hour4:         b.Hour4,
		Hour:          b.Hour,
		Minute15:      b.Minute15,
		Minute5:       b.Minute5,
		Minute:        b.Minute,
		Open:          c.Open,
		High:          c.High,
		Low:           c.Low,
		Close:         c.Close,
		BaseVolume:    c.BaseVolume,
		CounterVolume: c.CounterVolume,
		TradeCount:    c.TradeCount,
	}
}

func (r CandleRow) toCore() core.Candle {
	return core.Candle{
		Pair:          r.TradePair,
		Time:          r.Ts,
		Open:          r.Open,
		High:          r.High,
		Low:           r.Low,
		Close:         r.Close,
		BaseVolume:    r.BaseVolume,
		CounterVolume: r.CounterVolume,
		TradeCount:    r.TradeCount,
	}
}

// Package storage persists algos, deployments, backtests and trades in a
// relational store, keeps the minute-candle archive with a re-aggregating
// query layer, and holds the importer's durable state in buntdb.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/raykavin/stardust/core"
)

// SQLStorage implements core.Storage and core.CandleStore over one GORM
// database.
type SQLStorage struct {
	db *gorm.DB
}

// FromSQL opens a storage over the given dialect and runs migrations.
func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (*SQLStorage, error) {
	if len(opts) == 0 {
		opts = append(opts, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	}

	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	err = db.AutoMigrate(
		&AlgoModel{},
		&DeploymentModel{},
		&TradeModel{},
		&BacktestTradeModel{},
		&BacktestModel{},
		&CandleRow{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{db: db}, nil
}

// FromFile opens a sqlite-backed storage at the given path.
func FromFile(path string) (*SQLStorage, error) {
	return FromSQL(sqlite.Open(path))
}

// FromMemory opens an in-memory sqlite storage, used by tests. Each call
// gets its own database.
func FromMemory() (*SQLStorage, error) {
	name := atomic.AddInt64(&memoryDBSeq, 1)
	return FromSQL(sqlite.Open(fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", name)))
}

var memoryDBSeq int64

// Close closes the underlying database connection.
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// CreateAlgo stores a new algo. A (user, name) collision is an error.
func (s *SQLStorage) CreateAlgo(a core.Algo) error {
	model, err := algoModel(a)
	if err != nil {
		return err
	}
	if result := s.db.Create(&model); result.Error != nil {
		return fmt.Errorf("failed to create algo: %w", result.Error)
	}
	return nil
}

// Algo fetches one algo by owner and name.
func (s *SQLStorage) Algo(userID, name string) (core.Algo, error) {
	var model AlgoModel
	result := s.db.Where("userid = ? AND algoname = ?", userID, name).First(&model)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return core.Algo{}, core.ErrAlgoNotFound
	}
	if result.Error != nil {
		return core.Algo{}, fmt.Errorf("failed to fetch algo: %w", result.Error)
	}
	return model.toCore()
}

// Algos lists the user's algos.
func (s *SQLStorage) Algos(userID string) ([]core.Algo, error) {
	var models []AlgoModel
	if result := s.db.Where("userid = ?", userID).Find(&models); result.Error != nil {
		return nil, fmt.Errorf("failed to fetch algos: %w", result.Error)
	}

	algos := make([]core.Algo, 0, len(models))
	for _, model := range models {
		algo, err := model.toCore()
		if err != nil {
			return nil, err
		}
		algos = append(algos, algo)
	}
	return algos, nil
}

// DeleteAlgo removes one algo by owner and name.
func (s *SQLStorage) DeleteAlgo(userID, name string) error {
	result := s.db.Where("userid = ? AND algoname = ?", userID, name).Delete(&AlgoModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete algo: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return core.ErrAlgoNotFound
	}
	return nil
}

// CreateDeployment stores a new deployment and fills in its id.
func (s *SQLStorage) CreateDeployment(d *core.Deployment) error {
	model := DeploymentModel{
		UserID:    d.UserID,
		AlgoName:  d.AlgoName,
		Amount:    d.Amount,
		NumCycles: d.NumCycles,
		Status:    string(d.Status),
	}
	if result := s.db.Create(&model); result.Error != nil {
		return fmt.Errorf("failed to create deployment: %w", result.Error)
	}
	d.ID = model.ID
	return nil
}

// Deployment fetches one deployment by id.
func (s *SQLStorage) Deployment(id int64) (core.Deployment, error) {
	var model DeploymentModel
	result := s.db.First(&model, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return core.Deployment{}, core.ErrDeploymentNotFound
	}
	if result.Error != nil {
		return core.Deployment{}, fmt.Errorf("failed to fetch deployment: %w", result.Error)
	}
	return model.toCore(), nil
}

// Deployments lists the user's deployments.
func (s *SQLStorage) Deployments(userID string) ([]core.Deployment, error) {
	var models []DeploymentModel
	if result := s.db.Where("userid = ?", userID).Find(&models); result.Error != nil {
		return nil, fmt.Errorf("failed to fetch deployments: %w", result.Error)
	}
	return lo.Map(models, func(m DeploymentModel, _ int) core.Deployment {
		return m.toCore()
	}), nil
}

// UpdateDeploymentStatus transitions a deployment's status.
func (s *SQLStorage) UpdateDeploymentStatus(id int64, status core.DeploymentStatus) error {
	result := s.db.Model(&DeploymentModel{}).Where("id = ?", id).Update("status", string(status))
	if result.Error != nil {
		return fmt.Errorf("failed to update deployment status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return core.ErrDeploymentNotFound
	}
	return nil
}

// CreateBacktest stores a new request and fills in its id.
func (s *SQLStorage) CreateBacktest(b *core.BacktestRequest) error {
	params, err := json.Marshal(b.Parameters)
	if err != nil {
		return fmt.Errorf("backtest parameters: %w", err)
	}

	model := BacktestModel{
		UserID:       b.UserID,
		AlgoName:     b.AlgoName,
		StartTs:      b.Start.UTC(),
		EndTs:        b.End.UTC(),
		TradePair:    b.Pair.Key(),
		CandleSize:   string(b.Resolution),
		StrategyName: b.StrategyName,
		Parameters:   string(params),
		Status:       string(b.Status),
	}
	if result := s.db.Create(&model); result.Error != nil {
		return fmt.Errorf("failed to create backtest: %w", result.Error)
	}
	b.ID = model.ID
	return nil
}

// Backtest fetches one backtest request by id.
func (s *SQLStorage) Backtest(id int64) (core.BacktestRequest, error) {
	var model BacktestModel
	result := s.db.First(&model, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return core.BacktestRequest{}, core.ErrBacktestNotFound
	}
	if result.Error != nil {
		return core.BacktestRequest{}, fmt.Errorf("failed to fetch backtest: %w", result.Error)
	}
	return model.toCore()
}

// Backtests lists the user's backtest requests.
func (s *SQLStorage) Backtests(userID string) ([]core.BacktestRequest, error) {
	var models []BacktestModel
	if result := s.db.Where("userid = ?", userID).Find(&models); result.Error != nil {
		return nil, fmt.Errorf("failed to fetch backtests: %w", result.Error)
	}

	requests := make([]core.BacktestRequest, 0, len(models))
	for _, model := range models {
		request, err := model.toCore()
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, nil
}

// PendingBacktests lists every request still in state NEW, oldest first.
func (s *SQLStorage) PendingBacktests() ([]core.BacktestRequest, error) {
	var models []BacktestModel
	result := s.db.Where("status = ?", string(core.BacktestNew)).Order("id asc").Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to fetch pending backtests: %w", result.Error)
	}

	requests := make([]core.BacktestRequest, 0, len(models))
	for _, model := range models {
		request, err := model.toCore()
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, nil
}

// UpdateBacktestStatus transitions a backtest's status.
func (s *SQLStorage) UpdateBacktestStatus(id int64, status core.BacktestStatus) error {
	result := s.db.Model(&BacktestModel{}).Where("id = ?", id).Update("status", string(status))
	if result.Error != nil {
		return fmt.Errorf("failed to update backtest status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return core.ErrBacktestNotFound
	}
	return nil
}

// SaveTrade appends a trade record. Deployment trades and backtest trades
// land in separate tables.
func (s *SQLStorage) SaveTrade(t *core.TradeRecord) error {
	if t.BacktestID != 0 {
		model := BacktestTradeModel{
			Ts:           t.Time.UTC(),
			BacktestID:   t.BacktestID,
			Advice:       string(t.Advice),
			SoldAsset:    t.SoldAsset,
			SoldAmount:   t.SoldAmount,
			BoughtAsset:  t.BoughtAsset,
			BoughtAmount: t.BoughtAmount,
		}
		if result := s.db.Create(&model); result.Error != nil {
			return fmt.Errorf("failed to save backtest trade: %w", result.Error)
		}
		t.ID = model.ID
		return nil
	}

	model := TradeModel{
		Ts:           t.Time.UTC(),
		DeploymentID: t.DeploymentID,
		Advice:       string(t.Advice),
		SoldAsset:    t.SoldAsset,
		SoldAmount:   t.SoldAmount,
		BoughtAsset:  t.BoughtAsset,
		BoughtAmount: t.BoughtAmount,
	}
	if result := s.db.Create(&model); result.Error != nil {
		return fmt.Errorf("failed to save trade: %w", result.Error)
	}
	t.ID = model.ID
	return nil
}

// DeploymentTrades lists the trades of one deployment, oldest first.
func (s *SQLStorage) DeploymentTrades(deploymentID int64) ([]core.TradeRecord, error) {
	var models []TradeModel
	result := s.db.Where("deployment_id = ?", deploymentID).Order("id asc").Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", result.Error)
	}
	return lo.Map(models, func(m TradeModel, _ int) core.TradeRecord {
		return core.TradeRecord{
			ID:           m.ID,
			Time:         m.Ts,
			DeploymentID: m.DeploymentID,
			Advice:       core.Advice(m.Advice),
			SoldAsset:    m.SoldAsset,
			SoldAmount:   m.SoldAmount,
			BoughtAsset:  m.BoughtAsset,
			BoughtAmount: m.BoughtAmount,
		}
	}), nil
}

// BacktestTrades lists the simulated trades of one backtest, oldest first.
func (s *SQLStorage) BacktestTrades(backtestID int64) ([]core.TradeRecord, error) {
	var models []BacktestTradeModel
	result := s.db.Where("backtest_id = ?", backtestID).Order("id asc").Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to fetch backtest trades: %w", result.Error)
	}
	return lo.Map(models, func(m BacktestTradeModel, _ int) core.TradeRecord {
		return core.TradeRecord{
			ID:           m.ID,
			Time:         m.Ts,
			BacktestID:   m.BacktestID,
			Advice:       core.Advice(m.Advice),
			SoldAsset:    m.SoldAsset,
			SoldAmount:   m.SoldAmount,
			BoughtAsset:  m.BoughtAsset,
			BoughtAmount: m.BoughtAmount,
		}
	}), nil
}

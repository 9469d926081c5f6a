package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/raykavin/stardust/core"
)

const defaultCandlePageSize = 100

// groupColumns maps each coarse resolution to the precomputed bucket
// columns the aggregation groups on.
var groupColumns = map[core.Resolution][]string{
	core.Resolution5m:  {"year", "month", "day", "hour", "minute5"},
	core.Resolution15m: {"year", "month", "day", "hour", "minute15"},
	core.Resolution1h:  {"year", "month", "day", "hour"},
	core.Resolution4h:  {"year", "month", "day", "hour4"},
	core.Resolution1d:  {"year", "month", "day"},
	core.Resolution1w:  {"year", "month", "week"},
}

// SaveCandles batch-inserts minute candles into the archive.
func (s *SQLStorage) SaveCandles(candles []core.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	rows := make([]CandleRow, 0, len(candles))
	for _, candle := range candles {
		rows = append(rows, candleRow(candle))
	}

	if result := s.db.Create(&rows); result.Error != nil {
		return fmt.Errorf("failed to save candles: %w", result.Error)
	}
	return nil
}

// Candles returns one ordered page of candles. Minute-grain queries return
// the raw rows; coarser resolutions aggregate on the fly over the bucket
// columns. The next page token is the largest archive row id contributing
// to the page.
func (s *SQLStorage) Candles(q core.CandleQuery) (core.CandlePage, error) {
	resolution := q.Resolution
	if resolution == "" {
		resolution = core.Resolution1m
	}
	if !resolution.IsValid() {
		return core.CandlePage{}, fmt.Errorf("%w: %q", core.ErrInvalidResolution, q.Resolution)
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = defaultCandlePageSize
	}

	from := q.From
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	to := q.To
	if to.IsZero() {
		to = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	if resolution == core.Resolution1m {
		return s.rawCandles(q.Pair.Key(), from, to, q.PageToken, pageSize)
	}
	return s.aggregatedCandles(q.Pair.Key(), from, to, q.PageToken, pageSize, resolution)
}

func (s *SQLStorage) rawCandles(pairKey string, from, to time.Time, token int64, pageSize int) (core.CandlePage, error) {
	var rows []CandleRow
	result := s.db.
		Where("trade_pair = ? AND ts >= ? AND ts <= ? AND id > ?", pairKey, from, to, token).
		Order("ts asc").
		Limit(pageSize).
		Find(&rows)
	if result.Error != nil {
		return core.CandlePage{}, fmt.Errorf("failed to fetch candles: %w", result.Error)
	}

	page := core.CandlePage{NextPageToken: token}
	for _, row := range rows {
		page.Candles = append(page.Candles, row.toCore())
		if row.ID > page.NextPageToken {
			page.NextPageToken = row.ID
		}
	}
	return page, nil
}

// aggRow is one grouped bucket scanned from the aggregation query.
type aggRow struct {
	Ts            time.Time
	Open          float64
	High          float64
	Low           float64
	Close         float64
	BaseVolume    float64
	CounterVolume float64
	TradeCount    int
	MaxID         int64
}

func (s *SQLStorage) aggregatedCandles(pairKey string, from, to time.Time, token int64, pageSize int, resolution core.Resolution) (core.CandlePage, error) {
	cols := groupColumns[resolution]
	groupBy := "s." + strings.Join(cols, ", s.")

	var corr []string
	for _, col := range cols {
		corr = append(corr, fmt.Sprintf("i.%s = s.%s", col, col))
	}
	sameBucket := strings.Join(corr, " AND ")

	// The correlated subqueries pick the open of the earliest and the
	// close of the latest row of each bucket within the selected set.
	query := fmt.Sprintf(`
SELECT
  MIN(s.ts) AS ts,
  (SELECT i.open FROM sdex_ohlcv i
     WHERE i.trade_pair = s.trade_pair AND %[1]s
       AND i.ts >= @from AND i.ts <= @to AND i.id > @token
     ORDER BY i.ts ASC LIMIT 1) AS open,
  MAX(s.high) AS high,
  MIN(s.low) AS low,
  (SELECT i.close FROM sdex_ohlcv i
     WHERE i.trade_pair = s.trade_pair AND %[1]s
       AND i.ts >= @from AND i.ts <= @to AND i.id > @token
     ORDER BY i.ts DESC LIMIT 1) AS close,
  SUM(s.base_volume) AS base_volume,
  SUM(s.counter_volume) AS counter_volume,
  SUM(s.trade_count) AS trade_count,
  MAX(s.id) AS max_id
FROM sdex_ohlcv s
WHERE s.trade_pair = @pair AND s.ts >= @from AND s.ts <= @to AND s.id > @token
GROUP BY %[2]s
ORDER BY ts ASC
LIMIT @limit`, sameBucket, groupBy)

	var rows []aggRow
	result := s.db.Raw(query,
		sql.Named("pair", pairKey),
		sql.Named("from", from),
		sql.Named("to", to),
		sql.Named("token", token),
		sql.Named("limit", pageSize),
	).Scan(&rows)
	if result.Error != nil {
		return core.CandlePage{}, fmt.Errorf("failed to aggregate candles: %w", result.Error)
	}

	page := core.CandlePage{NextPageToken: token}
	for _, row := range rows {
		page.Candles = append(page.Candles, core.Candle{
			Pair:          pairKey,
			Time:          row.Ts,
			Open:          row.Open,
			High:          row.High,
			Low:           row.Low,
			Close:         row.Close,
			BaseVolume:    row.BaseVolume,
			CounterVolume: row.CounterVolume,
			TradeCount:    row.TradeCount,
		})
		if row.MaxID > page.NextPageToken {
			page.NextPageToken = row.MaxID
		}
	}
	return page, nil
}

package core

import (
	"fmt"
	"time"
)

// Candle is an OHLCV aggregate of the trades of one pair over one bucket.
// Time is the truncated start of the bucket, in UTC.
type Candle struct {
	Pair  string
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64

	// Volume traded, denominated in the base and counter asset respectively.
	BaseVolume    float64
	CounterVolume float64

	TradeCount int
}

// IsEmpty reports whether the candle aggregates no trades.
func (c Candle) IsEmpty() bool {
	return c.TradeCount == 0
}

// AddTrade folds one trade into the candle. The first trade sets the open;
// every trade moves the close and stretches the high/low range.
func (c *Candle) AddTrade(price, baseAmount, counterAmount float64) {
	if c.TradeCount == 0 {
		c.Open = price
		c.High = price
		c.Low = price
	}
	if price > c.High {
		c.High = price
	}
	if price < c.Low {
		c.Low = price
	}
	c.Close = price
	c.BaseVolume += baseAmount
	c.CounterVolume += counterAmount
	c.TradeCount++
}

// Merge folds a later candle into this one, producing the aggregate of both.
// The receiver keeps its open and time; the argument supplies the close.
func (c *Candle) Merge(next Candle) {
	if next.IsEmpty() {
		return
	}
	if c.IsEmpty() {
		*c = next
		return
	}
	if next.High > c.High {
		c.High = next.High
	}
	if next.Low < c.Low {
		c.Low = next.Low
	}
	c.Close = next.Close
	c.BaseVolume += next.BaseVolume
	c.CounterVolume += next.CounterVolume
	c.TradeCount += next.TradeCount
}

func (c Candle) String() string {
	return fmt.Sprintf("[%s] %s | O:%f H:%f L:%f C:%f V:%f",
		c.Time.Format(time.RFC3339), c.Pair, c.Open, c.High, c.Low, c.Close, c.BaseVolume)
}

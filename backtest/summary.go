package backtest

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"gonum.org/v1/gonum/stat"

	"github.com/raykavin/stardust/core"
)

// Summary collects statistics over the simulated trades of one backtest.
type Summary struct {
	BacktestID int64
	Trades     int
	Cycles     int

	// Returns holds one per-cycle return: base units recovered by the
	// SELL minus the unit lot spent by the preceding BUY.
	Returns []float64
}

// Summarize folds the trade records of one backtest into a Summary.
// Trades are expected oldest first, as BacktestTrades returns them.
func Summarize(backtestID int64, trades []core.TradeRecord) Summary {
	s := Summary{BacktestID: backtestID, Trades: len(trades)}

	var pendingBuy bool
	for _, trade := range trades {
		switch trade.Advice {
		case core.AdviceBuy:
			pendingBuy = true
		case core.AdviceSell:
			if !pendingBuy {
				continue
			}
			pendingBuy = false
			s.Cycles++
			s.Returns = append(s.Returns, trade.BoughtAmount-1)
		}
	}
	return s
}

// TotalReturn sums the per-cycle returns.
func (s Summary) TotalReturn() float64 {
	var total float64
	for _, r := range s.Returns {
		total += r
	}
	return total
}

// String renders the summary as a text table followed by a histogram of
// the per-cycle returns.
func (s Summary) String() string {
	out := &strings.Builder{}

	mean, std := 0.0, 0.0
	if len(s.Returns) > 0 {
		mean = stat.Mean(s.Returns, nil)
		std = stat.StdDev(s.Returns, nil)
	}

	table := tablewriter.NewWriter(out)
	data := [][]string{
		{"Backtest", strconv.FormatInt(s.BacktestID, 10)},
		{"Trades", strconv.Itoa(s.Trades)},
		{"Cycles", strconv.Itoa(s.Cycles)},
		{"Mean return", fmt.Sprintf("%.6f", mean)},
		{"Std dev", fmt.Sprintf("%.6f", std)},
		{"Total return", fmt.Sprintf("%.6f", s.TotalReturn())},
	}
	table.AppendBulk(data)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.Render()

	if len(s.Returns) > 1 {
		out.WriteString("\nCycle returns:\n")
		hist := histogram.Hist(10, s.Returns)
		if err := histogram.Fprint(out, hist, histogram.Linear(40)); err != nil {
			fmt.Fprintf(out, "histogram unavailable: %v\n", err)
		}
	}

	return out.String()
}

// Print writes the summary to w.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintln(w, s.String())
}

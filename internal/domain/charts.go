package domain

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// HeatmapPoint is one cell of the correlation heatmap; X and Y index Tickers
type HeatmapPoint struct {
	X int     `json:"x"`
	Y int     `json:"y"`
	V float64 `json:"v"`
}

// ChartBundle holds the analytics derived from an allocation
type ChartBundle struct {
	Dates         []string       `json:"dates"`
	Equity        []float64      `json:"equity"`
	Drawdown      []float64      `json:"drawdown"`
	SectorLabels  []string       `json:"sector_labels"`
	SectorWeights []float64      `json:"sector_weights"`
	Tickers       []string       `json:"tickers"`
	HeatmapPoints []HeatmapPoint `json:"heatmap_data_points,omitempty"`
	Correlation   [][]float64    `json:"stock_corr,omitempty"`
}

// EquityPoints zips dates with equity values
func (b *ChartBundle) EquityPoints() []Point {
	return Series{Dates: b.Dates, Values: b.Equity}.Points()
}

// DrawdownPoints zips dates with drawdown values
func (b *ChartBundle) DrawdownPoints() []Point {
	return Series{Dates: b.Dates, Values: b.Drawdown}.Points()
}

// SectorMap returns the sector weights keyed by label
func (b *ChartBundle) SectorMap() map[string]float64 {
	n := min(len(b.SectorLabels), len(b.SectorWeights))
	out := make(map[string]float64, n)
	for i := 0; i < n; i++ {
		out[b.SectorLabels[i]] += b.SectorWeights[i]
	}
	return out
}

// Heatmap returns the heatmap points, deriving them from the correlation
// matrix when the backend sent only the matrix.
func (b *ChartBundle) Heatmap() []HeatmapPoint {
	if len(b.HeatmapPoints) > 0 || len(b.Correlation) == 0 {
		return b.HeatmapPoints
	}
	out := make([]HeatmapPoint, 0, len(b.Correlation)*len(b.Correlation))
	for y, row := range b.Correlation {
		for x, v := range row {
			out = append(out, HeatmapPoint{X: x, Y: y, V: v})
		}
	}
	return out
}

// ValidateAgainst checks the bundle is consistent and keyed to a subset
// of the allocation's tickers.
func (b *ChartBundle) ValidateAgainst(a Allocation) error {
	var errs []error
	held := a.TickerSet()
	for _, t := range b.Tickers {
		if _, ok := held[t]; !ok {
			errs = append(errs, fmt.Errorf("ticker %s is not part of the allocation", t))
		}
	}
	if len(b.Equity) != len(b.Dates) || len(b.Drawdown) != len(b.Dates) {
		errs = append(errs, fmt.Errorf("series length mismatch: %d dates, %d equity, %d drawdown",
			len(b.Dates), len(b.Equity), len(b.Drawdown)))
	}
	if len(b.SectorLabels) != len(b.SectorWeights) {
		errs = append(errs, fmt.Errorf("%d sector labels for %d weights", len(b.SectorLabels), len(b.SectorWeights)))
	}
	if n := len(b.Correlation); n > 0 {
		if n != len(b.Tickers) {
			errs = append(errs, fmt.Errorf("correlation matrix has %d rows for %d tickers", n, len(b.Tickers)))
		}
		for i, row := range b.Correlation {
			if len(row) != n {
				errs = append(errs, fmt.Errorf("correlation row %d has %d columns", i, len(row)))
				break
			}
		}
	}
	for _, p := range b.HeatmapPoints {
		if p.X < 0 || p.Y < 0 || p.X >= len(b.Tickers) || p.Y >= len(b.Tickers) {
			errs = append(errs, fmt.Errorf("heatmap point (%d,%d) outside %d tickers", p.X, p.Y, len(b.Tickers)))
			break
		}
	}
	if len(b.SectorWeights) > 0 && floats.Min(b.SectorWeights) < 0 {
		errs = append(errs, errors.New("negative sector weight"))
	}
	return errors.Join(errs...)
}

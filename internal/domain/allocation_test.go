package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSharesFor(t *testing.T) {
	tests := []struct {
		name      string
		allocated float64
		price     float64
		expected  int64
	}{
		{name: "exact", allocated: 1000, price: 100, expected: 10},
		{name: "floors", allocated: 1099.99, price: 100, expected: 10},
		{name: "binary float edge", allocated: 0.3, price: 0.1, expected: 3},
		{name: "less than one share", allocated: 50, price: 100, expected: 0},
		{name: "zero price", allocated: 50, price: 0, expected: 0},
		{name: "nothing allocated", allocated: 0, price: 10, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SharesFor(tt.allocated, tt.price))
		})
	}
}

func TestAllocation_Validate(t *testing.T) {
	valid := Allocation{Stocks: []Position{
		{Ticker: "AAA", Weight: 0.6, Allocated: 6000, Shares: 60, Price: 100},
		{Ticker: "BBB", Weight: 0.4, Allocated: 3990, Shares: 79, Price: 50.5},
	}}
	assert.NoError(t, valid.Validate())
	assert.InDelta(t, 1.0, valid.TotalWeight(), 1e-9)
	assert.InDelta(t, 9990.0, valid.Invested(), 1e-9)

	tests := []struct {
		name  string
		alloc Allocation
	}{
		{name: "weights exceed one", alloc: Allocation{Stocks: []Position{
			{Ticker: "AAA", Weight: 0.7, Allocated: 700, Shares: 7, Price: 100},
			{Ticker: "BBB", Weight: 0.5, Allocated: 500, Shares: 5, Price: 100},
		}}},
		{name: "negative allocated", alloc: Allocation{Stocks: []Position{
			{Ticker: "AAA", Weight: 0.1, Allocated: -1, Shares: 0, Price: 100},
		}}},
		{name: "wrong shares", alloc: Allocation{Stocks: []Position{
			{Ticker: "AAA", Weight: 0.1, Allocated: 1000, Shares: 11, Price: 100},
		}}},
		{name: "zero price", alloc: Allocation{Stocks: []Position{
			{Ticker: "AAA", Weight: 0.1, Allocated: 1000, Shares: 0, Price: 0},
		}}},
		{name: "duplicate ticker", alloc: Allocation{Stocks: []Position{
			{Ticker: "AAA", Weight: 0.1, Allocated: 100, Shares: 1, Price: 100},
			{Ticker: "AAA", Weight: 0.1, Allocated: 100, Shares: 1, Price: 100},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.alloc.Validate())
		})
	}
}

func TestAllocation_TickersKeepOrder(t *testing.T) {
	a := Allocation{Stocks: []Position{{Ticker: "BBB"}, {Ticker: "AAA"}}}
	assert.Equal(t, []string{"BBB", "AAA"}, a.Tickers())
	assert.False(t, a.IsEmpty())
	assert.True(t, Allocation{}.IsEmpty())
}

func TestJoinPositions(t *testing.T) {
	a := Allocation{Stocks: []Position{{Ticker: "AAA", Weight: 1}, {Ticker: "CCC"}}}
	views := JoinPositions(a, Tickers{"AAA": {Company: "Alpha", Sector: "Tech"}})

	assert.Len(t, views, 2)
	assert.Equal(t, "Alpha", views[0].Company)
	assert.Equal(t, 1.0, views[0].Weight)
	assert.Empty(t, views[1].Company)
}

func TestChartBundle_ValidateAgainst(t *testing.T) {
	alloc := Allocation{Stocks: []Position{{Ticker: "AAA"}, {Ticker: "BBB"}}}

	bundle := ChartBundle{
		Dates:         []string{"2024-01-01", "2024-01-02"},
		Equity:        []float64{1, 1.1},
		Drawdown:      []float64{0, 0},
		SectorLabels:  []string{"Tech"},
		SectorWeights: []float64{1},
		Tickers:       []string{"AAA", "BBB"},
		Correlation:   [][]float64{{1, 0.3}, {0.3, 1}},
	}
	assert.NoError(t, bundle.ValidateAgainst(alloc))

	foreign := bundle
	foreign.Tickers = []string{"AAA", "ZZZ"}
	assert.Error(t, foreign.ValidateAgainst(alloc))

	ragged := bundle
	ragged.Equity = []float64{1}
	assert.Error(t, ragged.ValidateAgainst(alloc))
}

func TestChartBundle_HeatmapFromMatrix(t *testing.T) {
	bundle := ChartBundle{
		Tickers:     []string{"AAA", "BBB"},
		Correlation: [][]float64{{1, 0.3}, {0.3, 1}},
	}

	points := bundle.Heatmap()
	assert.Len(t, points, 4)
	assert.Contains(t, points, HeatmapPoint{X: 1, Y: 0, V: 0.3})

	explicit := ChartBundle{HeatmapPoints: []HeatmapPoint{{X: 0, Y: 0, V: 1}}}
	assert.Len(t, explicit.Heatmap(), 1)
}

func TestChartBundle_SectorMap(t *testing.T) {
	bundle := ChartBundle{SectorLabels: []string{"Tech", "Energy"}, SectorWeights: []float64{0.7, 0.3}}
	assert.Equal(t, map[string]float64{"Tech": 0.7, "Energy": 0.3}, bundle.SectorMap())
}

package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
)

// weightTolerance absorbs float rounding in backend weights
const weightTolerance = 1e-6

// Position is one ticker's share of an allocation
type Position struct {
	Ticker    string  `json:"ticker"`
	Weight    float64 `json:"weight"`
	Allocated float64 `json:"allocated"`
	Shares    int64   `json:"shares"`
	Price     float64 `json:"price"`
}

// Allocation is an ordered set of positions
type Allocation struct {
	Stocks          []Position `json:"stocks"`
	TotalCapital    float64    `json:"total_capital,omitempty"`
	LeftoverCapital float64    `json:"leftover_capital,omitempty"`
}

// IsEmpty reports whether the allocation holds no positions
func (a Allocation) IsEmpty() bool {
	return len(a.Stocks) == 0
}

// Tickers returns the position tickers in allocation order
func (a Allocation) Tickers() []string {
	out := make([]string, 0, len(a.Stocks))
	for _, p := range a.Stocks {
		out = append(out, p.Ticker)
	}
	return out
}

// TickerSet returns the position tickers as a set
func (a Allocation) TickerSet() map[string]struct{} {
	out := make(map[string]struct{}, len(a.Stocks))
	for _, p := range a.Stocks {
		out[p.Ticker] = struct{}{}
	}
	return out
}

// TotalWeight sums position weights
func (a Allocation) TotalWeight() float64 {
	weights := make([]float64, len(a.Stocks))
	for i, p := range a.Stocks {
		weights[i] = p.Weight
	}
	return floats.Sum(weights)
}

// Invested sums allocated capital
func (a Allocation) Invested() float64 {
	allocated := make([]float64, len(a.Stocks))
	for i, p := range a.Stocks {
		allocated[i] = p.Allocated
	}
	return floats.Sum(allocated)
}

// Validate checks the allocation invariants: weights in [0,1] summing to
// at most 1, non-negative allocated capital, positive prices, and share
// counts equal to floor(allocated / price).
func (a Allocation) Validate() error {
	var errs []error
	seen := make(map[string]struct{}, len(a.Stocks))
	for _, p := range a.Stocks {
		if p.Ticker == "" {
			errs = append(errs, errors.New("position without ticker"))
			continue
		}
		if _, dup := seen[p.Ticker]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate position", p.Ticker))
		}
		seen[p.Ticker] = struct{}{}
		if p.Weight < 0 || p.Weight > 1+weightTolerance {
			errs = append(errs, fmt.Errorf("%s: weight %v outside [0, 1]", p.Ticker, p.Weight))
		}
		if p.Allocated < 0 {
			errs = append(errs, fmt.Errorf("%s: negative allocated capital %v", p.Ticker, p.Allocated))
		}
		if p.Price <= 0 {
			errs = append(errs, fmt.Errorf("%s: price must be positive, got %v", p.Ticker, p.Price))
			continue
		}
		if want := SharesFor(p.Allocated, p.Price); p.Shares != want {
			errs = append(errs, fmt.Errorf("%s: shares %d, expected %d", p.Ticker, p.Shares, want))
		}
	}
	if total := a.TotalWeight(); total > 1+weightTolerance {
		errs = append(errs, fmt.Errorf("weights sum to %v, exceeding 1", total))
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy
func (a Allocation) Clone() Allocation {
	out := a
	if a.Stocks != nil {
		out.Stocks = make([]Position, len(a.Stocks))
		copy(out.Stocks, a.Stocks)
	}
	return out
}

// SharesFor returns floor(allocated / price) computed in decimal
// arithmetic, or 0 for a non-positive price.
func SharesFor(allocated, price float64) int64 {
	if price <= 0 || allocated <= 0 {
		return 0
	}
	q := decimal.NewFromFloat(allocated).Div(decimal.NewFromFloat(price))
	return q.Floor().IntPart()
}

// PositionView joins a position with its ticker metadata for display
type PositionView struct {
	Position
	Company string `json:"company,omitempty"`
	Sector  string `json:"sector,omitempty"`
}

// JoinPositions pairs every position with its metadata, in allocation order
func JoinPositions(a Allocation, tickers Tickers) []PositionView {
	out := make([]PositionView, 0, len(a.Stocks))
	for _, p := range a.Stocks {
		meta := tickers[p.Ticker]
		out = append(out, PositionView{Position: p, Company: meta.Company, Sector: meta.Sector})
	}
	return out
}

// Package domain provides core domain models and types.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SessionParameters are the user inputs of an optimization run
type SessionParameters struct {
	Model     string `json:"model"`
	RiskModel string `json:"risk_model"`
	// Capital is the explicitly chosen capital; 0 means the default applies
	Capital      float64 `json:"capital,omitempty"`
	SnapshotDate Date    `json:"snapshot_date"`
}

// Ready reports whether both model ids are set
func (p SessionParameters) Ready() bool {
	return strings.TrimSpace(p.Model) != "" && strings.TrimSpace(p.RiskModel) != ""
}

// EffectiveCapital returns the explicit capital or fallback
func (p SessionParameters) EffectiveCapital(fallback float64) float64 {
	if p.Capital > 0 {
		return p.Capital
	}
	return fallback
}

// OptimizationResult is the backend's answer to an optimize request
type OptimizationResult struct {
	Allocation    Allocation         `json:"allocation"`
	Stats         Statistics         `json:"stats"`
	EquityCurve   Series             `json:"equity_curve"`
	SectorWeights map[string]float64 `json:"sector_weights,omitempty"`
	Tickers       Tickers            `json:"tickers"`
}

// Clone returns a deep copy
func (r *OptimizationResult) Clone() *OptimizationResult {
	if r == nil {
		return nil
	}
	out := &OptimizationResult{
		Allocation:  r.Allocation.Clone(),
		Stats:       r.Stats.Clone(),
		EquityCurve: r.EquityCurve.Clone(),
		Tickers:     r.Tickers.Clone(),
	}
	if r.SectorWeights != nil {
		out.SectorWeights = make(map[string]float64, len(r.SectorWeights))
		for k, v := range r.SectorWeights {
			out.SectorWeights[k] = v
		}
	}
	return out
}

// PortfolioRecord is a saved portfolio as stored by the backend
type PortfolioRecord struct {
	ID         string     `json:"id,omitempty"`
	Name       string     `json:"name"`
	CreatedAt  Timestamp  `json:"created_at"`
	EndDate    Date       `json:"end_date"`
	Capital    float64    `json:"capital"`
	Allocation Allocation `json:"allocation"`
	Stats      Statistics `json:"stats,omitempty"`
	Model      string     `json:"model"`
	RiskModel  string     `json:"optimizer"`
	Notes      string     `json:"notes,omitempty"`
	Tickers    Tickers    `json:"tickers,omitempty"`
}

// UnmarshalJSON accepts the document-store "_id" and the "risk_model" spelling
func (r *PortfolioRecord) UnmarshalJSON(data []byte) error {
	type plain PortfolioRecord
	aux := struct {
		*plain
		DocumentID  string `json:"_id"`
		RiskModelID string `json:"risk_model"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = aux.DocumentID
	}
	if r.RiskModel == "" {
		r.RiskModel = aux.RiskModelID
	}
	return nil
}

// Clone returns a deep copy
func (r *PortfolioRecord) Clone() *PortfolioRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Allocation = r.Allocation.Clone()
	out.Stats = r.Stats.Clone()
	out.Tickers = r.Tickers.Clone()
	return &out
}

// CadenceType is the schedule of a reminder
type CadenceType string

const (
	CadenceDaily     CadenceType = "daily"
	CadenceWeekly    CadenceType = "weekly"
	CadenceQuarterly CadenceType = "quarterly"
)

// Cadences lists every cadence in display order
func Cadences() []CadenceType {
	return []CadenceType{CadenceDaily, CadenceWeekly, CadenceQuarterly}
}

// ParseCadence validates a cadence name
func ParseCadence(s string) (CadenceType, error) {
	c := CadenceType(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CadenceDaily, CadenceWeekly, CadenceQuarterly:
		return c, nil
	}
	return "", fmt.Errorf("unknown cadence %q", s)
}

// Reminder is a scheduled nudge to review a portfolio
type Reminder struct {
	ID          string      `json:"id"`
	PortfolioID string      `json:"portfolio_id"`
	Type        CadenceType `json:"type"`
	JobID       string      `json:"job_id,omitempty"`
	Active      bool        `json:"active"`
	CreatedAt   Timestamp   `json:"created_at"`
	UpdatedAt   Timestamp   `json:"updated_at"`
}

// UnmarshalJSON accepts either "id" or "_id"
func (r *Reminder) UnmarshalJSON(data []byte) error {
	type plain Reminder
	aux := struct {
		*plain
		DocumentID string `json:"_id"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = aux.DocumentID
	}
	return nil
}

// ReduceReminders keys reminders by cadence. Later entries win.
func ReduceReminders(list []Reminder) map[CadenceType]Reminder {
	out := make(map[CadenceType]Reminder, len(list))
	for _, r := range list {
		out[r.Type] = r
	}
	return out
}

// RebalanceParams are the inputs of a rebalance request.
// Zero Capital or AsOf means "use the backend default".
type RebalanceParams struct {
	Method  string  `json:"method"`
	Capital float64 `json:"capital,omitempty"`
	AsOf    Date    `json:"as_of"`
}

// RebalanceProposal is a candidate allocation awaiting accept or cancel
type RebalanceProposal struct {
	Allocation Allocation      `json:"allocation"`
	Params     RebalanceParams `json:"params"`
}

// Clone returns a deep copy
func (p *RebalanceProposal) Clone() *RebalanceProposal {
	if p == nil {
		return nil
	}
	out := *p
	out.Allocation = p.Allocation.Clone()
	return &out
}

// UserSettings holds notification contact details
type UserSettings struct {
	ID         int       `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Email      string    `json:"email"`
	UpdatedAt  Timestamp `json:"updated_at"`
}

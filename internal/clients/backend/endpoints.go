package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aristath/folio/internal/domain"
)

// OptimizeRequest is the body of POST /optimize.
// EndDate and Capital are omitted when unset.
type OptimizeRequest struct {
	Model     string  `json:"model"`
	RiskModel string  `json:"risk_model"`
	EndDate   string  `json:"end_date,omitempty"`
	Capital   float64 `json:"capital,omitempty"`
}

// NewOptimizeRequest builds the request for the given session parameters.
// Capital is only sent when explicitly chosen.
func NewOptimizeRequest(p domain.SessionParameters) OptimizeRequest {
	req := OptimizeRequest{
		Model:     p.Model,
		RiskModel: p.RiskModel,
		EndDate:   p.SnapshotDate.String(),
	}
	if p.Capital > 0 {
		req.Capital = p.Capital
	}
	return req
}

// ChartRequest is the body of POST /stats/charts
type ChartRequest struct {
	Stocks  []domain.Position `json:"stocks"`
	Tickers domain.Tickers    `json:"tickers"`
	EndDate string            `json:"end_date,omitempty"`
}

// PortfolioUpdate is the partial record sent by PUT /portfolios/{id}
type PortfolioUpdate struct {
	Allocation domain.Allocation `json:"allocation"`
	Capital    float64           `json:"capital,omitempty"`
	EndDate    string            `json:"end_date,omitempty"`
}

// RebalanceRequest is the body of POST /portfolios/{id}/rebalance
type RebalanceRequest struct {
	RiskModel string  `json:"risk_model"`
	Capital   float64 `json:"capital,omitempty"`
	AsOf      string  `json:"as_of,omitempty"`
}

// NewRebalanceRequest builds the request for the given parameters
func NewRebalanceRequest(p domain.RebalanceParams) RebalanceRequest {
	return RebalanceRequest{
		RiskModel: p.Method,
		Capital:   p.Capital,
		AsOf:      p.AsOf.String(),
	}
}

// UserUpdate is the body of PUT /user
type UserUpdate struct {
	TelegramID int64  `json:"telegram_id"`
	Email      string `json:"email"`
}

type rebalanceResponse struct {
	Allocation domain.Allocation `json:"allocation"`
}

type reminderUpdate struct {
	Active bool `json:"active"`
}

// ListModels returns the stock-picking model ids in backend order
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.do(ctx, http.MethodGet, "/model/pickers", nil, &ids, "Failed to fetch pickers"); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListRiskModels returns the risk model ids in backend order
func (c *Client) ListRiskModels(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.do(ctx, http.MethodGet, "/risk/models", nil, &ids, "Failed to fetch risk models"); err != nil {
		return nil, err
	}
	return ids, nil
}

// Optimize requests an optimized allocation
func (c *Client) Optimize(ctx context.Context, req OptimizeRequest) (*domain.OptimizationResult, error) {
	var result domain.OptimizationResult
	if err := c.do(ctx, http.MethodPost, "/optimize", req, &result, "Optimization failed"); err != nil {
		return nil, err
	}
	return &result, nil
}

// ChartData requests the analytics bundle for an allocation
func (c *Client) ChartData(ctx context.Context, req ChartRequest) (*domain.ChartBundle, error) {
	var bundle domain.ChartBundle
	if err := c.do(ctx, http.MethodPost, "/stats/charts", req, &bundle, "Failed to load chart data"); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// SavePortfolio stores a new portfolio record and returns it with its id
func (c *Client) SavePortfolio(ctx context.Context, rec *domain.PortfolioRecord) (*domain.PortfolioRecord, error) {
	var saved domain.PortfolioRecord
	if err := c.do(ctx, http.MethodPost, "/portfolios", rec, &saved, "Failed to save portfolio"); err != nil {
		return nil, err
	}
	return &saved, nil
}

// ListPortfolios returns every saved portfolio
func (c *Client) ListPortfolios(ctx context.Context) ([]domain.PortfolioRecord, error) {
	var list []domain.PortfolioRecord
	if err := c.do(ctx, http.MethodGet, "/portfolios", nil, &list, "Failed to fetch portfolios"); err != nil {
		return nil, err
	}
	return list, nil
}

// GetPortfolio returns one portfolio record
func (c *Client) GetPortfolio(ctx context.Context, id string) (*domain.PortfolioRecord, error) {
	var rec domain.PortfolioRecord
	path := fmt.Sprintf("/portfolios/%s", escape(id))
	if err := c.do(ctx, http.MethodGet, path, nil, &rec, "Failed to fetch portfolio"); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdatePortfolio applies a partial update and returns the stored record
func (c *Client) UpdatePortfolio(ctx context.Context, id string, update PortfolioUpdate) (*domain.PortfolioRecord, error) {
	var rec domain.PortfolioRecord
	path := fmt.Sprintf("/portfolios/%s", escape(id))
	if err := c.do(ctx, http.MethodPut, path, update, &rec, "Failed to update portfolio"); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeletePortfolio removes a portfolio
func (c *Client) DeletePortfolio(ctx context.Context, id string) error {
	path := fmt.Sprintf("/portfolios/%s", escape(id))
	return c.do(ctx, http.MethodDelete, path, nil, nil, "Failed to delete portfolio")
}

// Rebalance requests a candidate allocation for an existing portfolio
func (c *Client) Rebalance(ctx context.Context, id string, req RebalanceRequest) (*domain.Allocation, error) {
	var resp rebalanceResponse
	path := fmt.Sprintf("/portfolios/%s/rebalance", escape(id))
	if err := c.do(ctx, http.MethodPost, path, req, &resp, "Rebalance failed"); err != nil {
		return nil, err
	}
	return &resp.Allocation, nil
}

// ListReminders returns the reminders of a portfolio
func (c *Client) ListReminders(ctx context.Context, portfolioID string) ([]domain.Reminder, error) {
	var list []domain.Reminder
	path := fmt.Sprintf("/portfolios/%s/reminders", escape(portfolioID))
	if err := c.do(ctx, http.MethodGet, path, nil, &list, "Failed to fetch reminders"); err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateReminder sets a reminder's active flag
func (c *Client) UpdateReminder(ctx context.Context, portfolioID, reminderID string, active bool) (*domain.Reminder, error) {
	var r domain.Reminder
	path := fmt.Sprintf("/portfolios/%s/reminders/%s", escape(portfolioID), escape(reminderID))
	if err := c.do(ctx, http.MethodPut, path, reminderUpdate{Active: active}, &r, "Failed to update reminder"); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetUser returns the notification settings
func (c *Client) GetUser(ctx context.Context) (*domain.UserSettings, error) {
	var u domain.UserSettings
	if err := c.do(ctx, http.MethodGet, "/user", nil, &u, "Failed to fetch user settings"); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser saves the notification settings
func (c *Client) UpdateUser(ctx context.Context, update UserUpdate) (*domain.UserSettings, error) {
	var u domain.UserSettings
	if err := c.do(ctx, http.MethodPut, "/user", update, &u, "Failed to save settings"); err != nil {
		return nil, err
	}
	return &u, nil
}

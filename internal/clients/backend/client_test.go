package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, zerolog.Nop())
}

func TestNewOptimizeRequest_OmitsUnsetFields(t *testing.T) {
	req := NewOptimizeRequest(domain.SessionParameters{Model: "max_sharpe", RiskModel: "sample_cov"})

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"max_sharpe","risk_model":"sample_cov"}`, string(data))
}

func TestNewOptimizeRequest_IncludesExplicitFields(t *testing.T) {
	req := NewOptimizeRequest(domain.SessionParameters{
		Model:        "momentum",
		RiskModel:    "ledoit_wolf",
		Capital:      25000,
		SnapshotDate: domain.MustParseDate("2024-06-28"),
	})

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"momentum","risk_model":"ledoit_wolf","capital":25000,"end_date":"2024-06-28"}`, string(data))
}

func TestClient_ListModelsKeepsOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/model/pickers", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`["zeta","alpha","mid"]`))
	})

	ids, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, ids)
}

func TestClient_OptimizeSendsBodyAndDecodesResult(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/optimize", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"model":"max_sharpe","risk_model":"sample_cov"}`, string(body))

		_, _ = w.Write([]byte(`{
			"allocation": {"stocks": [{"ticker":"AAA","weight":0.5,"allocated":5000,"shares":50,"price":100}],
			               "total_capital": 5000, "leftover_capital": 5000},
			"stats": {"Sharpe": "1.10"},
			"equity_curve": {"dates": ["2024-01-01"], "values": [1.0]},
			"sector_weights": {"Tech": 0.5},
			"tickers": {"AAA": {"company": "Alpha", "sector": "Tech", "price": 100}}
		}`))
	})

	result, err := client.Optimize(context.Background(), OptimizeRequest{Model: "max_sharpe", RiskModel: "sample_cov"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{"AAA"}, result.Allocation.Tickers())
	assert.Equal(t, 5000.0, result.Allocation.LeftoverCapital)
	assert.Equal(t, "Alpha", result.Tickers["AAA"].Company)
	assert.Equal(t, "1.10", result.Stats["Sharpe"].String())
	assert.Len(t, result.EquityCurve.Points(), 1)
}

func TestClient_ErrorDetailUsedVerbatim(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Unknown model"}`))
	})

	_, err := client.Optimize(context.Background(), OptimizeRequest{Model: "x", RiskModel: "y"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "/optimize", apiErr.Endpoint)
	assert.Equal(t, "Unknown model", err.Error())
	assert.Equal(t, "Unknown model", ErrorMessage(err))
	assert.True(t, IsNotFound(err))
}

func TestClient_ErrorWithoutBodyFallsBack(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Optimize(context.Background(), OptimizeRequest{Model: "x", RiskModel: "y"})
	require.Error(t, err)
	assert.Equal(t, "Optimization failed", ErrorMessage(err))
}

func TestDetailMessage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "string detail", raw: `{"detail":"No tickers selected by model"}`, want: "No tickers selected by model"},
		{name: "validation list", raw: `{"detail":[{"msg":"field required"},{"msg":"value is not a valid float"}]}`, want: "field required; value is not a valid float"},
		{name: "empty body", raw: ``, want: "fallback"},
		{name: "html body", raw: `<html>bad gateway</html>`, want: "fallback"},
		{name: "no detail key", raw: `{"error":"x"}`, want: "fallback"},
		{name: "empty detail", raw: `{"detail":""}`, want: "fallback"},
		{name: "object detail", raw: `{"detail":{"code":7}}`, want: `{"code":7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detailMessage([]byte(tt.raw), "fallback"))
		})
	}
}

func TestClient_RebalanceAndUpdatePortfolio(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/portfolios/p 1/rebalance":
			assert.JSONEq(t, `{"risk_model":"hrp","capital":5000,"as_of":"2024-01-31"}`, string(body))
			_, _ = w.Write([]byte(`{"allocation":{"stocks":[{"ticker":"BBB","weight":1,"allocated":5000,"shares":10,"price":500}]}}`))
		case r.Method == http.MethodPut && r.URL.Path == "/portfolios/p 1":
			assert.JSONEq(t, `{"allocation":{"stocks":[{"ticker":"BBB","weight":1,"allocated":5000,"shares":10,"price":500}]},"capital":5000,"end_date":"2024-01-31"}`, string(body))
			_, _ = w.Write([]byte(`{"_id":"p 1","name":"Growth","capital":5000,"end_date":"2024-01-31","allocation":{"stocks":[{"ticker":"BBB","weight":1,"allocated":5000,"shares":10,"price":500}]}}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	})

	params := domain.RebalanceParams{Method: "hrp", Capital: 5000, AsOf: domain.MustParseDate("2024-01-31")}
	alloc, err := client.Rebalance(context.Background(), "p 1", NewRebalanceRequest(params))
	require.NoError(t, err)
	require.Len(t, alloc.Stocks, 1)

	rec, err := client.UpdatePortfolio(context.Background(), "p 1", PortfolioUpdate{
		Allocation: *alloc,
		Capital:    5000,
		EndDate:    "2024-01-31",
	})
	require.NoError(t, err)
	assert.Equal(t, "p 1", rec.ID)
	assert.Equal(t, "2024-01-31", rec.EndDate.String())
}

func TestClient_UpdateReminder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/portfolios/p1/reminders/r2", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"active":true}`, string(body))
		_, _ = w.Write([]byte(`{"_id":"r2","portfolio_id":"p1","type":"weekly","active":true,"job_id":"j"}`))
	})

	r, err := client.UpdateReminder(context.Background(), "p1", "r2", true)
	require.NoError(t, err)
	assert.Equal(t, "r2", r.ID)
	assert.True(t, r.Active)
}

func TestClient_DeletePortfolioNoContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, client.DeletePortfolio(context.Background(), "p1"))
}

func TestClient_UpdateUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"telegram_id":12345,"email":"a@b.c"}`, string(body))
		_, _ = w.Write([]byte(`{"id":0,"telegram_id":12345,"email":"a@b.c","updated_at":"2024-01-01T00:00:00.000001"}`))
	})

	u, err := client.UpdateUser(context.Background(), UserUpdate{TelegramID: 12345, Email: "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, int64(12345), u.TelegramID)
	assert.False(t, u.UpdatedAt.IsZero())
}

func TestClient_TransportErrorWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(url, zerolog.Nop())
	_, err := client.ListRiskModels(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "failed to fetch risk models")
}

func TestClient_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.ListModels(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWithRateLimit(t *testing.T) {
	c := NewClient("", zerolog.Nop(), WithRateLimit(0, 0))
	assert.Equal(t, DefaultBaseURL, c.BaseURL())

	c = NewClient("http://x/", zerolog.Nop(), WithRateLimit(2, 0), WithTimeout(time.Second))
	assert.Equal(t, "http://x", c.BaseURL())
	assert.Equal(t, 1, c.limiter.Burst())
	assert.Equal(t, time.Second, c.httpClient.Timeout)
}

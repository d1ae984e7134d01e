package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/charts"
	"github.com/aristath/folio/internal/modules/optimization"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSaver struct {
	name string
	err  error
}

func (s *stubSaver) Save(_ context.Context, name, notes string) (*domain.PortfolioRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.name = name
	return &domain.PortfolioRecord{ID: "p1", Name: name, Notes: notes}, nil
}

func backendServer(t *testing.T, optimizeStatus int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		switch r.URL.Path {
		case "/optimize":
			if optimizeStatus != http.StatusOK {
				w.WriteHeader(optimizeStatus)
				_, _ = w.Write([]byte(`{"detail":"Not enough price history"}`))
				return
			}
			_, _ = w.Write([]byte(`{"allocation":{"stocks":[{"ticker":"AAA","weight":1,"allocated":10000,"shares":100,"price":100}]},
				"stats":{"Sharpe":1.1},"tickers":{"AAA":{"company":"Alpha","sector":"Tech"}}}`))
		case "/stats/charts":
			_, _ = w.Write([]byte(`{"dates":[],"equity":[],"drawdown":[],"tickers":["AAA"],"stock_corr":[[1]]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupRouter(t *testing.T, optimizeStatus int, saver Saver) (*chi.Mux, *optimization.Session) {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	client := backend.NewClient(backendServer(t, optimizeStatus).URL, logger)
	session := optimization.NewSession(client, charts.NewDeriver("session", client, nil, logger), nil, logger)
	t.Cleanup(session.Wait)

	router := chi.NewRouter()
	NewHandler(session, saver, logger).RegisterRoutes(router)
	return router, session
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, reader))
	return w
}

func TestHandleUpdateSession(t *testing.T) {
	router, session := setupRouter(t, http.StatusOK, &stubSaver{})

	w := do(router, "PUT", "/session/", `{"model":"max_sharpe","risk_model":"sample_cov","capital":25000,"snapshot_date":"2024-03-28"}`)
	require.Equal(t, http.StatusOK, w.Code)

	params := session.Parameters()
	assert.Equal(t, "max_sharpe", params.Model)
	assert.Equal(t, 25000.0, params.Capital)
	assert.Equal(t, "2024-03-28", params.SnapshotDate.String())

	w = do(router, "PUT", "/session/", `{"snapshot_date":""}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, session.Parameters().SnapshotDate.IsZero())
	assert.Equal(t, "sample_cov", session.Parameters().RiskModel)

	assert.Equal(t, http.StatusBadRequest, do(router, "PUT", "/session/", `{"capital":-1}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, "PUT", "/session/", `{"snapshot_date":"yesterday"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, "PUT", "/session/", `not json`).Code)
}

func TestHandleOptimize(t *testing.T) {
	router, _ := setupRouter(t, http.StatusOK, &stubSaver{})

	w := do(router, "POST", "/session/optimize?wait=true", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.Equal(t, http.StatusOK, do(router, "PUT", "/session/", `{"model":"max_sharpe","risk_model":"sample_cov"}`).Code)

	w = do(router, "POST", "/session/optimize?wait=true", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap optimization.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Equal(t, optimization.StateSucceeded, snap.State)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, "Alpha", snap.Positions[0].Company)
}

func TestHandleOptimize_BackendFailure(t *testing.T) {
	router, _ := setupRouter(t, http.StatusUnprocessableEntity, &stubSaver{})
	require.Equal(t, http.StatusOK, do(router, "PUT", "/session/", `{"model":"max_sharpe","risk_model":"sample_cov"}`).Code)

	w := do(router, "POST", "/session/optimize?wait=true", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Not enough price history")

	w = do(router, "GET", "/session/", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap optimization.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Equal(t, optimization.StateFailed, snap.State)
	assert.Nil(t, snap.Result)
}

func TestHandleSave(t *testing.T) {
	saver := &stubSaver{}
	router, _ := setupRouter(t, http.StatusOK, saver)

	w := do(router, "POST", "/session/save", `{"name":"Growth","notes":"q1"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Growth", saver.name)
	assert.True(t, strings.Contains(w.Body.String(), `"id":"p1"`))

	saver.err = portfolio.ErrNoResult
	assert.Equal(t, http.StatusBadRequest, do(router, "POST", "/session/save", `{"name":"Growth"}`).Code)

	saver.err = &backend.APIError{StatusCode: 500, Message: "Failed to save portfolio"}
	w = do(router, "POST", "/session/save", `{"name":"Growth"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to save portfolio")
}

func TestHandleDiscardResult(t *testing.T) {
	router, session := setupRouter(t, http.StatusOK, &stubSaver{})
	require.Equal(t, http.StatusOK, do(router, "PUT", "/session/", `{"model":"max_sharpe","risk_model":"sample_cov"}`).Code)
	require.Equal(t, http.StatusOK, do(router, "POST", "/session/optimize?wait=true", "").Code)
	require.NotNil(t, session.Result())

	assert.Equal(t, http.StatusNoContent, do(router, "DELETE", "/session/result", "").Code)
	assert.Nil(t, session.Result())
}

func TestRegisterRoutes(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	handler := NewHandler(optimization.NewSession(nil, nil, nil, logger), nil, logger)

	assert.NotPanics(t, func() {
		handler.RegisterRoutes(chi.NewRouter())
	})
}

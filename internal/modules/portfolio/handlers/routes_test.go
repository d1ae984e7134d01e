package handlers

import (
	"net/http"
	"testing"

	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRoutes(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	handler := NewHandler(nil, portfolio.NewDetails(nil, nil, nil, logger), logger)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	var got []string
	require.NoError(t, chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		got = append(got, method+" "+route)
		return nil
	}))

	assert.ElementsMatch(t, []string{
		"GET /portfolios/",
		"GET /portfolios/{id}/",
		"DELETE /portfolios/{id}/",
		"DELETE /portfolios/{id}/view",
		"POST /portfolios/{id}/rebalance",
		"POST /portfolios/{id}/rebalance/accept",
		"POST /portfolios/{id}/rebalance/cancel",
		"POST /portfolios/{id}/reminders/{cadence}/toggle",
		"DELETE /portfolios/{id}/reminders/{cadence}/error",
	}, got)
}

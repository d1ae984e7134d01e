package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/modules/settings"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (*chi.Mux, *[]string) {
	t.Helper()
	var puts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodPut {
			body, _ := io.ReadAll(r.Body)
			puts = append(puts, string(body))
			_, _ = w.Write(body)
			return
		}
		_, _ = w.Write([]byte(`{"id":1,"telegram_id":42,"email":"user@example.com","updated_at":"2024-05-01T08:00:00.123456"}`))
	}))
	t.Cleanup(srv.Close)

	logger := zerolog.New(nil).Level(zerolog.Disabled)
	svc := settings.NewService(backend.NewClient(srv.URL, logger), nil, nil, logger)

	router := chi.NewRouter()
	NewHandler(svc, logger).RegisterRoutes(router)
	return router, &puts
}

func TestHandleGet(t *testing.T) {
	router, _ := setupRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/settings", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var view settings.View
	require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
	assert.Equal(t, int64(42), view.Settings.TelegramID)
	assert.False(t, view.Stale)
}

func TestHandleUpdate(t *testing.T) {
	router, puts := setupRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("PUT", "/settings", bytes.NewBufferString(`{"telegram_id":0,"email":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, *puts)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("PUT", "/settings", bytes.NewBufferString(`{"telegram_id":7,"email":"a@b.c"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, *puts, 1)
	assert.JSONEq(t, `{"telegram_id":7,"email":"a@b.c"}`, (*puts)[0])
}

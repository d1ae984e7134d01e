package cli

import (
	"bytes"
	"context"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/di"
)

const recordJSON = `{
	"_id": "p1", "name": "Growth", "created_at": "2024-02-01T10:00:00Z",
	"end_date": "2024-01-31", "capital": 10000, "model": "max_sharpe", "optimizer": "sample_cov",
	"allocation": {"stocks": [
		{"ticker":"AAA","weight":0.6,"allocated":6000,"shares":60,"price":100},
		{"ticker":"BBB","weight":0.4,"allocated":4000,"shares":80,"price":50}]},
	"tickers": {"AAA": {"company":"Alpha","sector":"Tech"}, "BBB": {"company":"Beta","sector":"Energy"}}
}`

const chartsJSON = `{"dates":["2024-01-30","2024-01-31"],"equity":[10000,10100],"drawdown":[0,-0.01],
	"sector_labels":["Tech","Energy"],"sector_weights":[0.6,0.4],"tickers":["AAA","BBB"]}`

type fakeBackend struct {
	mu       sync.Mutex
	requests []string
}

func (f *fakeBackend) record(r *http.Request) string {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path+" "+string(body))
	return string(body)
}

func (f *fakeBackend) seen(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.requests {
		if strings.HasPrefix(r, prefix) {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeBackend) handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/model/pickers", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["max_sharpe","min_volatility"]`))
	})
	r.Get("/risk/models", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["sample_cov","hrp"]`))
	})
	r.Post("/optimize", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		_, _ = w.Write([]byte(`{"allocation":{"stocks":[
			{"ticker":"AAA","weight":0.6,"allocated":6000,"shares":60,"price":100},
			{"ticker":"BBB","weight":0.4,"allocated":4000,"shares":80,"price":50}]},
			"stats":{"Sharpe":1.4},
			"tickers":{"AAA":{"company":"Alpha","sector":"Tech"},"BBB":{"company":"Beta","sector":"Energy"}}}`))
	})
	r.Post("/stats/charts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartsJSON))
	})
	r.Post("/portfolios", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		_, _ = w.Write([]byte(recordJSON))
	})
	r.Get("/portfolios", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[` + recordJSON + `]`))
	})
	r.Get("/portfolios/p1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(recordJSON))
	})
	r.Get("/portfolios/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Portfolio not found"}`))
	})
	r.Get("/portfolios/{id}/reminders", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"_id":"r-w","portfolio_id":"p1","type":"weekly","active":false}]`))
	})
	r.Put("/portfolios/p1/reminders/r-w", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		_, _ = w.Write([]byte(`{"_id":"r-w","portfolio_id":"p1","type":"weekly","active":true}`))
	})
	r.Post("/portfolios/p1/rebalance", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		_, _ = w.Write([]byte(`{"allocation":{"stocks":[
			{"ticker":"AAA","weight":1,"allocated":10000,"shares":100,"price":100}]}}`))
	})
	r.Put("/portfolios/p1", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		_, _ = w.Write([]byte(recordJSON))
	})
	r.Get("/user", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"telegram_id":42,"email":"old@example.com"}`))
	})
	r.Put("/user", func(w http.ResponseWriter, r *http.Request) {
		body := f.record(r)
		_, _ = w.Write([]byte(`{"id":1,` + strings.TrimPrefix(body, "{")))
	})
	return r
}

type harness struct {
	app     *App
	out     *bytes.Buffer
	errw    *bytes.Buffer
	backend *fakeBackend
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fb := &fakeBackend{}
	srv := httptest.NewServer(fb.handler())
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Backend.URL = srv.URL

	h := &harness{out: &bytes.Buffer{}, errw: &bytes.Buffer{}, backend: fb}
	wire := func(ctx context.Context) (*di.Container, error) {
		c, _, err := di.Wire(ctx, cfg, zerolog.Nop())
		return c, err
	}
	h.app = NewApp(wire, h.out, h.errw, WithPlainOutput())
	t.Cleanup(h.app.Close)
	return h
}

func (h *harness) run(t *testing.T, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet("folio", flag.ContinueOnError)
	commander := subcommands.NewCommander(fs, "folio")
	Register(commander, h.app)
	require.NoError(t, fs.Parse(args))
	return commander.Execute(context.Background())
}

func TestModelsCommand(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "models"))
	assert.Contains(t, h.out.String(), "- `min_volatility`")
	assert.Contains(t, h.out.String(), "- `hrp`")
}

func TestOptimizeCommand_SavesResult(t *testing.T) {
	h := newHarness(t)
	status := h.run(t, "optimize", "-m", "max_sharpe", "-r", "sample_cov", "-save", "Growth", "-notes", "first")
	require.Equal(t, subcommands.ExitSuccess, status, h.errw.String())

	out := h.out.String()
	assert.Contains(t, out, "# Optimization: max_sharpe / sample_cov")
	assert.Contains(t, out, "| AAA | Alpha | Tech | 60.00% |")
	assert.Contains(t, out, "| Sharpe | 1.4 |")
	assert.Contains(t, out, "Max drawdown: -1.00%")
	assert.Contains(t, out, "Saved **Growth** as `p1`")

	optimize := h.backend.seen("POST /optimize")
	require.Len(t, optimize, 1)
	assert.JSONEq(t, `{"model":"max_sharpe","risk_model":"sample_cov"}`, strings.TrimPrefix(optimize[0], "POST /optimize "))
	assert.Len(t, h.backend.seen("POST /portfolios "), 1)
}

func TestOptimizeCommand_UnknownModel(t *testing.T) {
	h := newHarness(t)
	status := h.run(t, "optimize", "-m", "nope", "-r", "sample_cov")
	assert.Equal(t, subcommands.ExitUsageError, status)
	assert.Contains(t, h.errw.String(), "unknown model")
	assert.Empty(t, h.backend.seen("POST /optimize"))
}

func TestOptimizeCommand_MissingFlags(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, subcommands.ExitUsageError, h.run(t, "optimize", "-m", "max_sharpe"))
}

func TestPortfoliosCommand(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "portfolios"))
	assert.Contains(t, h.out.String(), "| p1 | Growth | max_sharpe | sample_cov | 10000.00 | 2024-01-31 | 2 |")
}

func TestShowCommand(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "show", "p1"))
	out := h.out.String()
	assert.Contains(t, out, "# Growth")
	assert.Contains(t, out, "## Allocation (current)")
	assert.Contains(t, out, "- weekly: off")

	h.errw.Reset()
	assert.Equal(t, subcommands.ExitFailure, h.run(t, "show", "missing"))
	assert.Contains(t, h.errw.String(), "Portfolio not found")

	assert.Equal(t, subcommands.ExitUsageError, h.run(t, "show"))
}

func TestRebalanceCommand(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "rebalance", "-method", "hrp", "p1"))
	assert.Contains(t, h.out.String(), "## Allocation (proposed)")
	require.Len(t, h.backend.seen("POST /portfolios/p1/rebalance"), 1)
	assert.Contains(t, h.backend.seen("POST /portfolios/p1/rebalance")[0], `"risk_model":"hrp"`)
	assert.Empty(t, h.backend.seen("PUT /portfolios/p1 "))
}

func TestRebalanceCommand_Accept(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "rebalance", "-accept", "p1"))

	puts := h.backend.seen("PUT /portfolios/p1 ")
	require.Len(t, puts, 1)
	assert.Contains(t, puts[0], `"ticker":"AAA"`)
	assert.Contains(t, h.out.String(), "## Allocation (current)")
}

func TestRemindCommand(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "remind", "p1", "weekly"))
	assert.Contains(t, h.out.String(), "- weekly: on")
	require.Len(t, h.backend.seen("PUT /portfolios/p1/reminders/r-w"), 1)

	assert.Equal(t, subcommands.ExitUsageError, h.run(t, "remind", "p1", "hourly"))
	assert.Equal(t, subcommands.ExitFailure, h.run(t, "remind", "p1", "daily"))
}

func TestSettingsCommand(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "settings"))
	assert.Contains(t, h.out.String(), "- Telegram: 42\n- Email: old@example.com")
	assert.Empty(t, h.backend.seen("PUT /user"))

	h.out.Reset()
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "settings", "-email", "new@example.com"))
	puts := h.backend.seen("PUT /user")
	require.Len(t, puts, 1)
	assert.Contains(t, puts[0], `"telegram_id":42`)
	assert.Contains(t, puts[0], `"email":"new@example.com"`)
	assert.Contains(t, h.out.String(), "- Email: new@example.com")

	assert.Equal(t, subcommands.ExitUsageError, h.run(t, "settings", "-email", "not-an-email"))
}

func TestHistoryCommand(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "history", "-n", "5"))
	assert.Contains(t, h.out.String(), "# Activity")
}

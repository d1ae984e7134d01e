// Package charts derives the analytics bundle (equity, drawdown, sectors,
// correlation) for an allocation through the backend.
package charts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/rs/zerolog"
)

var (
	// ErrSuperseded is returned by Run when a newer call or a reset
	// replaced it before its response arrived. The response is discarded.
	ErrSuperseded = errors.New("chart derivation superseded")
	// ErrNoAllocation is returned when there is nothing to derive from
	ErrNoAllocation = errors.New("no allocation to derive charts from")
)

// Source produces chart bundles
type Source interface {
	ChartData(ctx context.Context, req backend.ChartRequest) (*domain.ChartBundle, error)
}

// State of a deriver
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Snapshot is a copy of the deriver state for presentation
type Snapshot struct {
	State      State                 `json:"state"`
	Loading    bool                  `json:"loading"`
	Bundle     *domain.ChartBundle   `json:"bundle,omitempty"`
	Heatmap    []domain.HeatmapPoint `json:"heatmap,omitempty"`
	Error      string                `json:"error,omitempty"`
	AsOf       domain.Date           `json:"as_of"`
	Generation uint64                `json:"generation"`
}

// Deriver owns the chart state of one owner (a session or a detail view).
// Its busy and error state are independent of the owner's.
type Deriver struct {
	owner  string
	source Source
	events events.Publisher
	log    zerolog.Logger
	now    func() time.Time

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	loading    bool
	bundle     *domain.ChartBundle
	errMsg     string
	asOf       domain.Date

	wg sync.WaitGroup
}

// NewDeriver creates a deriver for the named owner
func NewDeriver(owner string, source Source, publisher events.Publisher, log zerolog.Logger) *Deriver {
	return &Deriver{
		owner:  owner,
		source: source,
		events: events.OrNop(publisher),
		log:    log.With().Str("service", "charts").Str("owner", owner).Logger(),
		now:    time.Now,
	}
}

// Start supersedes any in-flight derivation and derives in the background.
// The background request outlives ctx cancellation but keeps its values.
func (d *Deriver) Start(ctx context.Context, alloc domain.Allocation, tickers domain.Tickers, asOf domain.Date) {
	runCtx, gen, req, ok := d.begin(context.WithoutCancel(ctx), alloc, tickers, asOf)
	if !ok {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.execute(runCtx, gen, alloc, req)
	}()
}

// Run supersedes any in-flight derivation and derives synchronously.
// It returns ErrSuperseded if a newer call replaced it meanwhile.
func (d *Deriver) Run(ctx context.Context, alloc domain.Allocation, tickers domain.Tickers, asOf domain.Date) error {
	runCtx, gen, req, ok := d.begin(ctx, alloc, tickers, asOf)
	if !ok {
		return ErrNoAllocation
	}
	return d.execute(runCtx, gen, alloc, req)
}

// Cancel supersedes the in-flight derivation, keeping an applied bundle
func (d *Deriver) Cancel() {
	d.mu.Lock()
	wasLoading := d.loading
	d.supersedeLocked()
	d.mu.Unlock()

	if wasLoading {
		d.publish()
	}
}

// Reset supersedes the in-flight derivation and clears bundle and error
func (d *Deriver) Reset() {
	d.mu.Lock()
	d.supersedeLocked()
	d.bundle = nil
	d.errMsg = ""
	d.asOf = domain.Date{}
	d.mu.Unlock()

	d.publish()
}

// Wait blocks until background derivations have finished
func (d *Deriver) Wait() {
	d.wg.Wait()
}

// Snapshot returns the current state
func (d *Deriver) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Deriver) snapshotLocked() Snapshot {
	s := Snapshot{
		Loading:    d.loading,
		Error:      d.errMsg,
		AsOf:       d.asOf,
		Generation: d.generation,
	}
	switch {
	case d.loading:
		s.State = StateLoading
	case d.errMsg != "":
		s.State = StateFailed
	case d.bundle != nil:
		s.State = StateReady
	default:
		s.State = StateIdle
	}
	if d.bundle != nil {
		b := *d.bundle
		s.Bundle = &b
		s.Heatmap = b.Heatmap()
	}
	return s
}

// begin registers a new generation. It returns ok=false, after clearing
// the state, when the allocation is empty.
func (d *Deriver) begin(ctx context.Context, alloc domain.Allocation, tickers domain.Tickers, asOf domain.Date) (context.Context, uint64, backend.ChartRequest, bool) {
	if alloc.IsEmpty() {
		d.Reset()
		return nil, 0, backend.ChartRequest{}, false
	}

	endDate := asOf
	if endDate.IsZero() {
		endDate = domain.NewDate(d.now())
	}
	req := backend.ChartRequest{
		Stocks:  alloc.Clone().Stocks,
		Tickers: tickers.Subset(alloc.Tickers()),
		EndDate: endDate.String(),
	}

	d.mu.Lock()
	d.supersedeLocked()
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.loading = true
	d.bundle = nil
	d.errMsg = ""
	d.asOf = asOf
	gen := d.generation
	d.mu.Unlock()

	d.log.Debug().Uint64("generation", gen).Int("positions", len(alloc.Stocks)).Msg("Deriving charts")
	d.publish()
	return runCtx, gen, req, true
}

func (d *Deriver) execute(ctx context.Context, gen uint64, alloc domain.Allocation, req backend.ChartRequest) error {
	bundle, err := d.source.ChartData(ctx, req)
	if err == nil {
		if verr := bundle.ValidateAgainst(alloc); verr != nil {
			err = fmt.Errorf("chart data does not match the allocation: %w", verr)
		}
	}

	d.mu.Lock()
	if gen != d.generation {
		d.mu.Unlock()
		d.log.Debug().Uint64("generation", gen).Msg("Discarding superseded chart response")
		return ErrSuperseded
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.loading = false
	if err != nil {
		d.errMsg = backend.ErrorMessage(err)
	} else {
		d.bundle = bundle
	}
	d.mu.Unlock()

	if err != nil {
		d.log.Warn().Err(err).Uint64("generation", gen).Msg("Chart derivation failed")
	}
	d.publish()
	return err
}

func (d *Deriver) supersedeLocked() {
	d.generation++
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.loading = false
}

func (d *Deriver) publish() {
	s := d.Snapshot()
	d.events.EmitTyped(events.ChartsStateChanged, "charts", &events.ChartsStateChangedData{
		Owner:      d.owner,
		Generation: s.Generation,
		Loading:    s.Loading,
		Ready:      s.State == StateReady,
		Error:      s.Error,
	})
}

// Package optimization holds the optimization session: the user's model
// choices, the run against the backend and its result.
package optimization

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/aristath/folio/internal/modules/charts"
	"github.com/rs/zerolog"
)

// DefaultCapital is reported when no capital was chosen
const DefaultCapital = 10000.0

var (
	// ErrMissingParameters is returned when model or risk model is unset
	ErrMissingParameters = errors.New("model and risk model are required")
	// ErrBusy is returned when an optimization is already running
	ErrBusy = errors.New("optimization already running")
	// ErrInvalidCapital is returned for a non-positive capital
	ErrInvalidCapital = errors.New("capital must be positive")
	// ErrUnknownModel is returned for an id missing from the catalog
	ErrUnknownModel = errors.New("unknown model")
)

// State of the session
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Optimizer runs optimizations remotely
type Optimizer interface {
	Optimize(ctx context.Context, req backend.OptimizeRequest) (*domain.OptimizationResult, error)
}

// ChartDeriver derives charts for the session's result
type ChartDeriver interface {
	Start(ctx context.Context, alloc domain.Allocation, tickers domain.Tickers, asOf domain.Date)
	Reset()
	Wait()
	Snapshot() charts.Snapshot
}

// Catalog answers whether ids are selectable
type Catalog interface {
	HasModel(id string) bool
	HasRiskModel(id string) bool
}

// Snapshot is a copy of the session state
type Snapshot struct {
	State      State                      `json:"state"`
	Parameters domain.SessionParameters   `json:"parameters"`
	Capital    float64                    `json:"capital"`
	Result     *domain.OptimizationResult `json:"result,omitempty"`
	Positions  []domain.PositionView      `json:"positions,omitempty"`
	Error      string                     `json:"error,omitempty"`
	Charts     charts.Snapshot            `json:"charts"`
}

// Session is the single optimization workspace
type Session struct {
	optimizer      Optimizer
	charts         ChartDeriver
	catalog        Catalog
	events         events.Publisher
	log            zerolog.Logger
	defaultCapital float64

	// chartsMu orders chart resets and starts with run transitions, so a
	// run's charts never start after a newer run has reset them
	chartsMu sync.Mutex

	mu     sync.Mutex
	params domain.SessionParameters
	state  State
	result *domain.OptimizationResult
	errMsg string
	runs   uint64

	wg sync.WaitGroup
}

// Option configures a Session
type Option func(*Session)

// WithCatalog validates model ids against a catalog
func WithCatalog(c Catalog) Option {
	return func(s *Session) { s.catalog = c }
}

// WithDefaultCapital overrides the reported default capital
func WithDefaultCapital(v float64) Option {
	return func(s *Session) {
		if v > 0 {
			s.defaultCapital = v
		}
	}
}

// NewSession creates an idle session
func NewSession(optimizer Optimizer, deriver ChartDeriver, publisher events.Publisher, log zerolog.Logger, opts ...Option) *Session {
	s := &Session{
		optimizer:      optimizer,
		charts:         deriver,
		events:         events.OrNop(publisher),
		log:            log.With().Str("service", "optimization").Logger(),
		defaultCapital: DefaultCapital,
		state:          StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetModel selects the stock-picking model
func (s *Session) SetModel(id string) error {
	id = strings.TrimSpace(id)
	if id != "" && s.catalog != nil && !s.catalog.HasModel(id) {
		return fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	s.mu.Lock()
	s.params.Model = id
	s.mu.Unlock()
	return nil
}

// SetRiskModel selects the risk model
func (s *Session) SetRiskModel(id string) error {
	id = strings.TrimSpace(id)
	if id != "" && s.catalog != nil && !s.catalog.HasRiskModel(id) {
		return fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	s.mu.Lock()
	s.params.RiskModel = id
	s.mu.Unlock()
	return nil
}

// SetCapital sets an explicit capital
func (s *Session) SetCapital(v float64) error {
	if v <= 0 {
		return ErrInvalidCapital
	}
	s.mu.Lock()
	s.params.Capital = v
	s.mu.Unlock()
	return nil
}

// SetSnapshotDate pins the optimization to a past date
func (s *Session) SetSnapshotDate(d domain.Date) {
	s.mu.Lock()
	s.params.SnapshotDate = d
	s.mu.Unlock()
}

// ClearSnapshotDate returns to "most recent available"
func (s *Session) ClearSnapshotDate() {
	s.mu.Lock()
	s.params.SnapshotDate = domain.Date{}
	s.mu.Unlock()
}

// Parameters returns the current parameters
func (s *Session) Parameters() domain.SessionParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Result returns a copy of the last successful result, or nil
func (s *Session) Result() *domain.OptimizationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result.Clone()
}

// DefaultCapital returns the capital used when none was chosen
func (s *Session) DefaultCapital() float64 {
	return s.defaultCapital
}

// Run optimizes synchronously and returns the backend error, if any
func (s *Session) Run(ctx context.Context) error {
	params, gen, err := s.begin()
	if err != nil {
		return err
	}
	return s.execute(ctx, params, gen)
}

// Start validates and dispatches the optimization in the background.
// Errors returned are the ones detected before anything is sent.
func (s *Session) Start(ctx context.Context) error {
	params, gen, err := s.begin()
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.execute(context.WithoutCancel(ctx), params, gen)
	}()
	return nil
}

// Wait blocks until background runs and their chart derivation finish
func (s *Session) Wait() {
	s.wg.Wait()
	s.charts.Wait()
}

// Discard drops the current result and its charts
func (s *Session) Discard() error {
	s.chartsMu.Lock()
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		s.chartsMu.Unlock()
		return ErrBusy
	}
	s.runs++
	s.result = nil
	s.errMsg = ""
	s.state = StateIdle
	s.mu.Unlock()

	s.charts.Reset()
	s.chartsMu.Unlock()
	s.publish()
	return nil
}

// Snapshot returns a copy of the session state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		State:      s.state,
		Parameters: s.params,
		Capital:    s.params.EffectiveCapital(s.defaultCapital),
		Result:     s.result.Clone(),
		Error:      s.errMsg,
	}
	s.mu.Unlock()

	if snap.Result != nil {
		snap.Positions = domain.JoinPositions(snap.Result.Allocation, snap.Result.Tickers)
	}
	snap.Charts = s.charts.Snapshot()
	return snap
}

func (s *Session) begin() (domain.SessionParameters, uint64, error) {
	s.chartsMu.Lock()
	s.mu.Lock()
	if !s.params.Ready() {
		s.mu.Unlock()
		s.chartsMu.Unlock()
		return domain.SessionParameters{}, 0, ErrMissingParameters
	}
	if s.state == StateRunning {
		s.mu.Unlock()
		s.chartsMu.Unlock()
		return domain.SessionParameters{}, 0, ErrBusy
	}
	s.runs++
	gen := s.runs
	s.state = StateRunning
	s.result = nil
	s.errMsg = ""
	params := s.params
	s.mu.Unlock()

	s.charts.Reset()
	s.chartsMu.Unlock()
	s.log.Info().
		Str("model", params.Model).
		Str("risk_model", params.RiskModel).
		Str("end_date", params.SnapshotDate.String()).
		Msg("Starting optimization")
	s.publish()
	return params, gen, nil
}

func (s *Session) execute(ctx context.Context, params domain.SessionParameters, gen uint64) error {
	result, err := s.optimizer.Optimize(ctx, backend.NewOptimizeRequest(params))
	if err == nil {
		if verr := result.Allocation.Validate(); verr != nil {
			s.log.Warn().Err(verr).Msg("Allocation violates allocation invariants")
		}
	}

	s.chartsMu.Lock()
	s.mu.Lock()
	if s.runs != gen {
		s.mu.Unlock()
		s.chartsMu.Unlock()
		s.log.Debug().Uint64("run", gen).Msg("Discarding superseded optimization")
		return err
	}
	if err != nil {
		s.state = StateFailed
		s.errMsg = backend.ErrorMessage(err)
	} else {
		s.state = StateSucceeded
		s.result = result
	}
	s.mu.Unlock()

	if err == nil {
		s.charts.Start(ctx, result.Allocation, result.Tickers, params.SnapshotDate)
	}
	s.chartsMu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Msg("Optimization failed")
		s.publish()
		return err
	}

	s.log.Info().Int("positions", len(result.Allocation.Stocks)).Msg("Optimization completed")
	s.publish()
	return nil
}

func (s *Session) publish() {
	s.mu.Lock()
	data := &events.SessionStateChangedData{
		State:     string(s.state),
		Model:     s.params.Model,
		RiskModel: s.params.RiskModel,
		Error:     s.errMsg,
	}
	if s.result != nil {
		data.Positions = len(s.result.Allocation.Stocks)
	}
	s.mu.Unlock()

	s.events.EmitTyped(events.SessionStateChanged, "optimization", data)
}

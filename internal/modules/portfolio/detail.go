package portfolio

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/aristath/folio/internal/modules/charts"
	"github.com/aristath/folio/internal/modules/reminders"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed in
	// the current rebalance state
	ErrInvalidTransition = errors.New("invalid rebalance transition")
	// ErrNotLoaded is returned when the portfolio record has not been loaded
	ErrNotLoaded = errors.New("portfolio not loaded")
	// ErrMethodRequired is returned when rebalancing without a method
	ErrMethodRequired = errors.New("rebalance method is required")
)

// RebalanceState of a detail view
type RebalanceState string

const (
	StateIdle        RebalanceState = "idle"
	StateRebalancing RebalanceState = "rebalancing"
	StateProposed    RebalanceState = "proposed"
	StateAccepting   RebalanceState = "accepting"
)

// Display labels of the shown allocation
const (
	LabelCurrent  = "current"
	LabelProposed = "proposed"
)

// DetailSource is the backend surface used by a detail view
type DetailSource interface {
	GetPortfolio(ctx context.Context, id string) (*domain.PortfolioRecord, error)
	ListReminders(ctx context.Context, portfolioID string) ([]domain.Reminder, error)
	ListRiskModels(ctx context.Context) ([]string, error)
	Rebalance(ctx context.Context, id string, req backend.RebalanceRequest) (*domain.Allocation, error)
	UpdatePortfolio(ctx context.Context, id string, update backend.PortfolioUpdate) (*domain.PortfolioRecord, error)
	UpdateReminder(ctx context.Context, portfolioID, reminderID string, active bool) (*domain.Reminder, error)
}

// ChartDeriver derives charts for the displayed record
type ChartDeriver interface {
	Start(ctx context.Context, alloc domain.Allocation, tickers domain.Tickers, asOf domain.Date)
	Cancel()
	Wait()
	Snapshot() charts.Snapshot
}

// DetailSnapshot is a copy of a detail view's state
type DetailSnapshot struct {
	PortfolioID  string                    `json:"portfolio_id"`
	Loading      bool                      `json:"loading"`
	Record       *domain.PortfolioRecord   `json:"record,omitempty"`
	LoadError    string                    `json:"load_error,omitempty"`
	State        RebalanceState            `json:"state"`
	Params       domain.RebalanceParams    `json:"params"`
	Methods      []string                  `json:"methods"`
	Proposal     *domain.RebalanceProposal `json:"proposal,omitempty"`
	Error        string                    `json:"error,omitempty"`
	DisplayLabel string                    `json:"display_label"`
	Display      []domain.PositionView     `json:"display"`
	Reminders    reminders.Snapshot        `json:"reminders"`
	Charts       charts.Snapshot           `json:"charts"`
}

// Detail is the controller of one open portfolio. It owns the record,
// its reminders, its charts and the rebalance workflow:
//
//	Idle --rebalance--> Rebalancing --ok--> Proposed --accept--> Accepting --ok--> Idle
//	Rebalancing --fail--> Idle;  Proposed --cancel--> Idle;  Accepting --fail--> Proposed
type Detail struct {
	id        string
	source    DetailSource
	charts    ChartDeriver
	reminders *reminders.Service
	events    events.Publisher
	log       zerolog.Logger

	mu       sync.Mutex
	loading  bool
	record   *domain.PortfolioRecord
	loadErr  string
	methods  []string
	params   domain.RebalanceParams
	state    RebalanceState
	proposal *domain.RebalanceProposal
	errMsg   string

	wg sync.WaitGroup
}

// NewDetail creates the controller of portfolio id
func NewDetail(id string, source DetailSource, deriver ChartDeriver, publisher events.Publisher, log zerolog.Logger) *Detail {
	publisher = events.OrNop(publisher)
	return &Detail{
		id:        id,
		source:    source,
		charts:    deriver,
		reminders: reminders.NewService(id, source, publisher, log),
		events:    publisher,
		log:       log.With().Str("service", "portfolio_detail").Str("portfolio_id", id).Logger(),
		state:     StateIdle,
		methods:   []string{},
	}
}

// ID returns the portfolio id
func (d *Detail) ID() string {
	return d.id
}

// Reminders returns the reminder service of this portfolio
func (d *Detail) Reminders() *reminders.Service {
	return d.reminders
}

// Load fetches the record, reminders and rebalance methods concurrently.
// Chart derivation starts as soon as the record arrives. Reminder and
// method failures are recorded but never fail the load.
func (d *Detail) Load(ctx context.Context) error {
	d.mu.Lock()
	if d.state == StateRebalancing || d.state == StateAccepting {
		d.mu.Unlock()
		return fmt.Errorf("%w: cannot reload while %s", ErrInvalidTransition, d.state)
	}
	d.loading = true
	d.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		rec, err := d.source.GetPortfolio(ctx, d.id)
		if err != nil {
			d.mu.Lock()
			d.loadErr = backend.ErrorMessage(err)
			d.mu.Unlock()
			return err
		}
		d.applyRecord(ctx, rec, true)
		return nil
	})
	g.Go(func() error {
		list, err := d.source.ListReminders(ctx, d.id)
		if err != nil {
			d.log.Warn().Err(err).Msg("Failed to load reminders")
			d.reminders.SetLoadError(err)
			return nil
		}
		d.reminders.Replace(list)
		return nil
	})
	g.Go(func() error {
		methods, err := d.source.ListRiskModels(ctx)
		if err != nil {
			d.log.Warn().Err(err).Msg("Failed to load rebalance methods")
			return nil
		}
		d.mu.Lock()
		d.methods = slices.Clone(methods)
		d.mu.Unlock()
		return nil
	})
	err := g.Wait()

	d.mu.Lock()
	d.loading = false
	name := ""
	if d.record != nil {
		name = d.record.Name
	}
	d.mu.Unlock()

	if err != nil {
		d.log.Error().Err(err).Msg("Failed to load portfolio")
	}
	d.events.EmitTyped(events.PortfolioLoaded, "portfolio", &events.PortfolioLoadedData{
		PortfolioID: d.id,
		Name:        name,
		Error:       backend.ErrorMessage(err),
	})
	return err
}

// applyRecord installs a record and derives its charts. With prefill the
// rebalance parameters are reset from the record.
func (d *Detail) applyRecord(ctx context.Context, rec *domain.PortfolioRecord, prefill bool) {
	d.mu.Lock()
	d.record = rec
	d.loadErr = ""
	if prefill {
		d.params = domain.RebalanceParams{
			Method:  rec.RiskModel,
			Capital: rec.Capital,
			AsOf:    rec.EndDate,
		}
	}
	d.mu.Unlock()

	d.charts.Start(ctx, rec.Allocation, rec.Tickers, rec.EndDate)
}

// SetParams replaces the rebalance parameters used by the next run
func (d *Detail) SetParams(params domain.RebalanceParams) {
	d.mu.Lock()
	d.params = params
	d.mu.Unlock()
}

// RunRebalance requests a proposal synchronously. Only allowed from Idle.
func (d *Detail) RunRebalance(ctx context.Context, params domain.RebalanceParams) error {
	if err := d.beginRebalance(params); err != nil {
		return err
	}
	return d.executeRebalance(ctx, params)
}

// StartRebalance validates the transition and requests the proposal in the
// background.
func (d *Detail) StartRebalance(ctx context.Context, params domain.RebalanceParams) error {
	if err := d.beginRebalance(params); err != nil {
		return err
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.executeRebalance(context.WithoutCancel(ctx), params)
	}()
	return nil
}

func (d *Detail) beginRebalance(params domain.RebalanceParams) error {
	if strings.TrimSpace(params.Method) == "" {
		return ErrMethodRequired
	}

	d.mu.Lock()
	if d.record == nil {
		d.mu.Unlock()
		return ErrNotLoaded
	}
	if d.state != StateIdle {
		from := d.state
		d.mu.Unlock()
		return fmt.Errorf("%w: cannot rebalance while %s", ErrInvalidTransition, from)
	}
	d.state = StateRebalancing
	d.params = params
	d.errMsg = ""
	d.mu.Unlock()

	d.charts.Cancel()
	d.log.Info().
		Str("method", params.Method).
		Float64("capital", params.Capital).
		Str("as_of", params.AsOf.String()).
		Msg("Rebalancing portfolio")
	d.publishTransition(StateIdle, StateRebalancing, params.Method, "")
	return nil
}

func (d *Detail) executeRebalance(ctx context.Context, params domain.RebalanceParams) error {
	alloc, err := d.source.Rebalance(ctx, d.id, backend.NewRebalanceRequest(params))
	if err == nil {
		if verr := alloc.Validate(); verr != nil {
			d.log.Warn().Err(verr).Msg("Proposed allocation violates allocation invariants")
		}
	}

	d.mu.Lock()
	if err != nil {
		d.state = StateIdle
		d.errMsg = backend.ErrorMessage(err)
	} else {
		d.state = StateProposed
		d.proposal = &domain.RebalanceProposal{Allocation: *alloc, Params: params}
	}
	d.mu.Unlock()

	if err != nil {
		d.log.Error().Err(err).Msg("Rebalance failed")
		d.publishTransition(StateRebalancing, StateIdle, params.Method, backend.ErrorMessage(err))
		return err
	}
	d.log.Info().Int("positions", len(alloc.Stocks)).Msg("Rebalance proposal ready")
	d.publishTransition(StateRebalancing, StateProposed, params.Method, "")
	return nil
}

// AcceptRebalance submits the proposal synchronously. Without a proposal
// it is a no-op and sends nothing.
func (d *Detail) AcceptRebalance(ctx context.Context) error {
	proposal, update, ok, err := d.beginAccept()
	if err != nil || !ok {
		return err
	}
	return d.executeAccept(ctx, proposal, update)
}

// StartAccept validates the transition and submits the proposal in the
// background.
func (d *Detail) StartAccept(ctx context.Context) error {
	proposal, update, ok, err := d.beginAccept()
	if err != nil || !ok {
		return err
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.executeAccept(context.WithoutCancel(ctx), proposal, update)
	}()
	return nil
}

func (d *Detail) beginAccept() (*domain.RebalanceProposal, backend.PortfolioUpdate, bool, error) {
	d.mu.Lock()
	if d.proposal == nil {
		d.mu.Unlock()
		return nil, backend.PortfolioUpdate{}, false, nil
	}
	if d.state != StateProposed {
		from := d.state
		d.mu.Unlock()
		return nil, backend.PortfolioUpdate{}, false, fmt.Errorf("%w: cannot accept while %s", ErrInvalidTransition, from)
	}

	proposal := d.proposal.Clone()
	update := backend.PortfolioUpdate{
		Allocation: proposal.Allocation,
		Capital:    proposal.Params.Capital,
		EndDate:    proposal.Params.AsOf.String(),
	}
	if update.Capital <= 0 && d.record != nil {
		update.Capital = d.record.Capital
	}
	if update.EndDate == "" && d.record != nil {
		update.EndDate = d.record.EndDate.String()
	}
	d.state = StateAccepting
	d.errMsg = ""
	d.mu.Unlock()

	d.log.Info().Int("positions", len(proposal.Allocation.Stocks)).Msg("Accepting rebalance")
	d.publishTransition(StateProposed, StateAccepting, proposal.Params.Method, "")
	return proposal, update, true, nil
}

func (d *Detail) executeAccept(ctx context.Context, proposal *domain.RebalanceProposal, update backend.PortfolioUpdate) error {
	updated, err := d.source.UpdatePortfolio(ctx, d.id, update)
	if err != nil {
		d.mu.Lock()
		d.state = StateProposed
		d.errMsg = backend.ErrorMessage(err)
		d.mu.Unlock()

		d.log.Error().Err(err).Msg("Failed to accept rebalance")
		d.publishTransition(StateAccepting, StateProposed, proposal.Params.Method, backend.ErrorMessage(err))
		return err
	}

	d.mu.Lock()
	d.record = updated
	d.loadErr = ""
	d.proposal = nil
	d.state = StateIdle
	d.mu.Unlock()

	d.charts.Start(ctx, updated.Allocation, updated.Tickers, updated.EndDate)
	d.log.Info().Msg("Rebalance accepted")
	d.publishTransition(StateAccepting, StateIdle, proposal.Params.Method, "")
	return nil
}

// CancelRebalance drops the proposal without touching the record. It is a
// no-op from Idle and rejected while a request is in flight.
func (d *Detail) CancelRebalance() error {
	d.mu.Lock()
	switch d.state {
	case StateIdle:
		d.mu.Unlock()
		return nil
	case StateProposed:
		d.proposal = nil
		d.state = StateIdle
		d.errMsg = ""
		d.mu.Unlock()
	default:
		from := d.state
		d.mu.Unlock()
		return fmt.Errorf("%w: cannot cancel while %s", ErrInvalidTransition, from)
	}

	d.log.Info().Msg("Rebalance cancelled")
	d.publishTransition(StateProposed, StateIdle, "", "")
	return nil
}

// Wait blocks until background requests and chart derivation finish
func (d *Detail) Wait() {
	d.wg.Wait()
	d.charts.Wait()
}

// Snapshot returns a copy of the detail state. The displayed allocation is
// the proposal while one exists, otherwise the record's.
func (d *Detail) Snapshot() DetailSnapshot {
	d.mu.Lock()
	snap := DetailSnapshot{
		PortfolioID:  d.id,
		Loading:      d.loading,
		Record:       d.record.Clone(),
		LoadError:    d.loadErr,
		State:        d.state,
		Params:       d.params,
		Methods:      slices.Clone(d.methods),
		Proposal:     d.proposal.Clone(),
		Error:        d.errMsg,
		DisplayLabel: LabelCurrent,
	}
	d.mu.Unlock()

	var tickers domain.Tickers
	if snap.Record != nil {
		tickers = snap.Record.Tickers
	}
	switch {
	case snap.Proposal != nil:
		snap.DisplayLabel = LabelProposed
		snap.Display = domain.JoinPositions(snap.Proposal.Allocation, tickers)
	case snap.Record != nil:
		snap.Display = domain.JoinPositions(snap.Record.Allocation, tickers)
	}
	snap.Reminders = d.reminders.Snapshot()
	snap.Charts = d.charts.Snapshot()
	return snap
}

func (d *Detail) publishTransition(from, to RebalanceState, method, errMsg string) {
	d.events.EmitTyped(events.RebalanceStateChanged, "portfolio", &events.RebalanceStateChangedData{
		PortfolioID: d.id,
		From:        string(from),
		To:          string(to),
		Method:      method,
		Error:       errMsg,
	})
}

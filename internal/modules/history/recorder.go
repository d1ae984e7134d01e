package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/aristath/folio/internal/events"
	"github.com/rs/zerolog"
)

const queueSize = 256

// Recorder journals events from the bus. Bus handlers only enqueue; a
// single goroutine writes to the database.
type Recorder struct {
	repo *Repository
	bus  *events.Bus
	log  zerolog.Logger

	queue chan Entry
	subs  []events.SubscriptionID
	done  chan struct{}
	once  sync.Once
}

// NewRecorder creates a recorder writing to repo
func NewRecorder(repo *Repository, bus *events.Bus, log zerolog.Logger) *Recorder {
	return &Recorder{
		repo:  repo,
		bus:   bus,
		log:   log.With().Str("service", "history").Logger(),
		queue: make(chan Entry, queueSize),
		done:  make(chan struct{}),
	}
}

// Start subscribes to the bus and runs the writer until Stop
func (r *Recorder) Start() {
	for _, t := range []events.EventType{
		events.SessionStateChanged,
		events.PortfolioSaved,
		events.PortfolioDeleted,
		events.RebalanceStateChanged,
		events.ReminderToggled,
		events.UserSettingsUpdated,
	} {
		r.subs = append(r.subs, r.bus.Subscribe(t, r.handle))
	}
	go r.write()
}

// Stop unsubscribes and flushes queued entries
func (r *Recorder) Stop() {
	r.once.Do(func() {
		for _, id := range r.subs {
			r.bus.Unsubscribe(id)
		}
		close(r.queue)
		<-r.done
	})
}

func (r *Recorder) write() {
	defer close(r.done)
	for e := range r.queue {
		if _, err := r.repo.Append(context.Background(), e); err != nil {
			r.log.Error().Err(err).Str("kind", e.Kind).Msg("Failed to journal event")
		}
	}
}

func (r *Recorder) handle(event *events.Event) {
	e, ok := entryFor(event)
	if !ok {
		return
	}
	select {
	case r.queue <- e:
	default:
		r.log.Warn().Str("kind", e.Kind).Msg("Journal queue full, dropping entry")
	}
}

// entryFor maps an event to a journal entry. Transitions into busy states
// are not journalled.
func entryFor(event *events.Event) (Entry, bool) {
	str := func(k string) string {
		s, _ := event.Data[k].(string)
		return s
	}
	e := Entry{
		Kind:        string(event.Type),
		PortfolioID: str("portfolio_id"),
		Payload:     event.Data,
		CreatedAt:   event.Timestamp,
	}

	switch event.Type {
	case events.SessionStateChanged:
		switch str("state") {
		case "succeeded":
			e.Summary = fmt.Sprintf("Optimized %s / %s", str("model"), str("risk_model"))
		case "failed":
			e.Summary = fmt.Sprintf("Optimization %s / %s failed: %s", str("model"), str("risk_model"), str("error"))
		default:
			return Entry{}, false
		}
	case events.PortfolioSaved:
		e.Summary = fmt.Sprintf("Saved portfolio %q", str("name"))
	case events.PortfolioDeleted:
		e.Summary = "Deleted portfolio"
	case events.RebalanceStateChanged:
		to := str("to")
		if to == "rebalancing" || to == "accepting" {
			return Entry{}, false
		}
		switch {
		case str("error") != "":
			e.Summary = fmt.Sprintf("Rebalance %s -> %s failed: %s", str("from"), to, str("error"))
		case str("from") == "accepting":
			e.Summary = "Rebalance accepted"
		case str("from") == "proposed":
			e.Summary = "Rebalance cancelled"
		default:
			e.Summary = fmt.Sprintf("Rebalance proposed (%s)", str("method"))
		}
	case events.ReminderToggled:
		state := "off"
		if active, _ := event.Data["active"].(bool); active {
			state = "on"
		}
		e.Summary = fmt.Sprintf("Turned %s reminder %s", str("cadence"), state)
	case events.UserSettingsUpdated:
		e.Summary = "Updated notification settings"
	default:
		return Entry{}, false
	}
	return e, true
}

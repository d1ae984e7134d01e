package portfolio

import (
	"sort"
	"sync"

	"github.com/aristath/folio/internal/events"
	"github.com/aristath/folio/internal/modules/charts"
	"github.com/rs/zerolog"
)

// Details keeps one detail controller per open portfolio
type Details struct {
	source      DetailSource
	chartSource charts.Source
	events      events.Publisher
	log         zerolog.Logger

	mu   sync.Mutex
	open map[string]*Detail
}

// NewDetails creates an empty registry
func NewDetails(source DetailSource, chartSource charts.Source, publisher events.Publisher, log zerolog.Logger) *Details {
	return &Details{
		source:      source,
		chartSource: chartSource,
		events:      events.OrNop(publisher),
		log:         log,
		open:        make(map[string]*Detail),
	}
}

// Open returns the controller of id, creating it on first use. The bool
// reports whether it was created.
func (r *Details) Open(id string) (*Detail, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.open[id]; ok {
		return d, false
	}
	deriver := charts.NewDeriver("portfolio:"+id, r.chartSource, r.events, r.log)
	d := NewDetail(id, r.source, deriver, r.events, r.log)
	r.open[id] = d
	return d, true
}

// Get returns the controller of id if it is open
func (r *Details) Get(id string) (*Detail, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.open[id]
	return d, ok
}

// Close forgets the controller of id and stops its chart derivation
func (r *Details) Close(id string) {
	r.mu.Lock()
	d, ok := r.open[id]
	delete(r.open, id)
	r.mu.Unlock()

	if ok {
		d.charts.Cancel()
	}
}

// IDs lists the open portfolio ids, sorted
func (r *Details) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.open))
	for id := range r.open {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Wait blocks until background work of every open controller finishes
func (r *Details) Wait() {
	r.mu.Lock()
	open := make([]*Detail, 0, len(r.open))
	for _, d := range r.open {
		open = append(open, d)
	}
	r.mu.Unlock()

	for _, d := range open {
		d.Wait()
	}
}

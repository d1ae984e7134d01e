package events

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Publisher is the emitting side of the event system
type Publisher interface {
	EmitTyped(eventType EventType, module string, data EventData)
}

// NopPublisher discards events
type NopPublisher struct{}

// EmitTyped implements Publisher
func (NopPublisher) EmitTyped(EventType, string, EventData) {}

// OrNop returns p, or a NopPublisher when p is nil
func OrNop(p Publisher) Publisher {
	if p == nil {
		return NopPublisher{}
	}
	return p
}

// Manager handles event emission and logging
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
	}
}

// Bus returns the underlying bus for subscribers
func (m *Manager) Bus() *Bus {
	return m.bus
}

// EmitTyped emits an event with typed data to the bus and logs it
func (m *Manager) EmitTyped(eventType EventType, module string, data EventData) {
	dataMap := convertEventDataToMap(data)

	m.bus.Emit(eventType, module, dataMap)

	m.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		Interface("data", dataMap).
		Msg("Event emitted")
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]any) {
	m.EmitTyped(ErrorOccurred, module, &ErrorEventData{
		Error:   err.Error(),
		Context: context,
	})
}

// convertEventDataToMap flattens typed data through its JSON form
func convertEventDataToMap(data EventData) map[string]any {
	if data == nil {
		return nil
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil
	}

	return result
}

// DecodeData converts an event's data map back into a typed value
func DecodeData(event *Event, v EventData) error {
	jsonBytes, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonBytes, v)
}

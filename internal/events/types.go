// Package events provides event management functionality.
package events

import "time"

// EventType identifies what happened
type EventType string

const (
	// ReferenceDataLoaded fires once the model catalogs have been fetched
	ReferenceDataLoaded EventType = "REFERENCE_DATA_LOADED"
	// SessionStateChanged fires on every optimization session transition
	SessionStateChanged EventType = "SESSION_STATE_CHANGED"
	// ChartsStateChanged fires when a chart derivation starts, finishes or is reset
	ChartsStateChanged EventType = "CHARTS_STATE_CHANGED"
	// PortfolioSaved fires after the backend stored a new portfolio
	PortfolioSaved EventType = "PORTFOLIO_SAVED"
	// PortfolioDeleted fires after the backend removed a portfolio
	PortfolioDeleted EventType = "PORTFOLIO_DELETED"
	// PortfolioLoaded fires when a detail view finished loading its record
	PortfolioLoaded EventType = "PORTFOLIO_LOADED"
	// RebalanceStateChanged fires on every rebalance state machine transition
	RebalanceStateChanged EventType = "REBALANCE_STATE_CHANGED"
	// ReminderToggled fires when the backend accepted a reminder toggle
	ReminderToggled EventType = "REMINDER_TOGGLED"
	// ReminderToggleFailed fires when a reminder toggle was rejected
	ReminderToggleFailed EventType = "REMINDER_TOGGLE_FAILED"
	// UserSettingsUpdated fires after notification settings were saved
	UserSettingsUpdated EventType = "USER_SETTINGS_UPDATED"
	// BackupCompleted fires after a journal backup was uploaded
	BackupCompleted EventType = "BACKUP_COMPLETED"
	// ErrorOccurred carries errors that have no scoped owner
	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// Event represents a system event with typed data
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
	Module    string         `json:"module"`
}

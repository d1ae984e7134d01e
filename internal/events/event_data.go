package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// ReferenceDataLoadedData contains data for ReferenceDataLoaded events
type ReferenceDataLoadedData struct {
	Models          int    `json:"models"`
	RiskModels      int    `json:"risk_models"`
	ModelsError     string `json:"models_error,omitempty"`
	RiskModelsError string `json:"risk_models_error,omitempty"`
}

// EventType returns the event type for ReferenceDataLoadedData
func (d *ReferenceDataLoadedData) EventType() EventType { return ReferenceDataLoaded }

// SessionStateChangedData contains data for SessionStateChanged events
type SessionStateChangedData struct {
	State     string `json:"state"`
	Model     string `json:"model,omitempty"`
	RiskModel string `json:"risk_model,omitempty"`
	Positions int    `json:"positions,omitempty"`
	Error     string `json:"error,omitempty"`
}

// EventType returns the event type for SessionStateChangedData
func (d *SessionStateChangedData) EventType() EventType { return SessionStateChanged }

// ChartsStateChangedData contains data for ChartsStateChanged events
type ChartsStateChangedData struct {
	Owner      string `json:"owner"`
	Generation uint64 `json:"generation"`
	Loading    bool   `json:"loading"`
	Ready      bool   `json:"ready"`
	Error      string `json:"error,omitempty"`
}

// EventType returns the event type for ChartsStateChangedData
func (d *ChartsStateChangedData) EventType() EventType { return ChartsStateChanged }

// PortfolioSavedData contains data for PortfolioSaved events
type PortfolioSavedData struct {
	PortfolioID string  `json:"portfolio_id"`
	Name        string  `json:"name"`
	Positions   int     `json:"positions"`
	Capital     float64 `json:"capital"`
}

// EventType returns the event type for PortfolioSavedData
func (d *PortfolioSavedData) EventType() EventType { return PortfolioSaved }

// PortfolioDeletedData contains data for PortfolioDeleted events
type PortfolioDeletedData struct {
	PortfolioID string `json:"portfolio_id"`
}

// EventType returns the event type for PortfolioDeletedData
func (d *PortfolioDeletedData) EventType() EventType { return PortfolioDeleted }

// PortfolioLoadedData contains data for PortfolioLoaded events
type PortfolioLoadedData struct {
	PortfolioID string `json:"portfolio_id"`
	Name        string `json:"name,omitempty"`
	Error       string `json:"error,omitempty"`
}

// EventType returns the event type for PortfolioLoadedData
func (d *PortfolioLoadedData) EventType() EventType { return PortfolioLoaded }

// RebalanceStateChangedData contains data for RebalanceStateChanged events
type RebalanceStateChangedData struct {
	PortfolioID string `json:"portfolio_id"`
	From        string `json:"from"`
	To          string `json:"to"`
	Method      string `json:"method,omitempty"`
	Error       string `json:"error,omitempty"`
}

// EventType returns the event type for RebalanceStateChangedData
func (d *RebalanceStateChangedData) EventType() EventType { return RebalanceStateChanged }

// ReminderToggledData contains data for ReminderToggled events
type ReminderToggledData struct {
	PortfolioID string `json:"portfolio_id"`
	Cadence     string `json:"cadence"`
	Active      bool   `json:"active"`
}

// EventType returns the event type for ReminderToggledData
func (d *ReminderToggledData) EventType() EventType { return ReminderToggled }

// ReminderToggleFailedData contains data for ReminderToggleFailed events
type ReminderToggleFailedData struct {
	PortfolioID string `json:"portfolio_id"`
	Cadence     string `json:"cadence"`
	Error       string `json:"error"`
}

// EventType returns the event type for ReminderToggleFailedData
func (d *ReminderToggleFailedData) EventType() EventType { return ReminderToggleFailed }

// UserSettingsUpdatedData contains data for UserSettingsUpdated events
type UserSettingsUpdatedData struct {
	TelegramID int64  `json:"telegram_id"`
	Email      string `json:"email"`
}

// EventType returns the event type for UserSettingsUpdatedData
func (d *UserSettingsUpdatedData) EventType() EventType { return UserSettingsUpdated }

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType { return BackupCompleted }

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string         `json:"error"`
	Context map[string]any `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType { return ErrorOccurred }

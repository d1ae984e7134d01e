package clientdata

import "time"

// TTL constants for cached backend responses.
const (
	TTLPortfolioDirectory = 24 * time.Hour
	TTLUserSettings       = 7 * 24 * time.Hour

	// StaleGrace is how long an expired entry is kept as a fallback
	StaleGrace = 30 * 24 * time.Hour
)

// Keys of single-entry tables.
const (
	KeyAll  = "all"
	KeyUser = "user"
)

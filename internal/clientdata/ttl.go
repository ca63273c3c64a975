package clientdata

import "time"

// Freshness and retention windows for cached prices.
const (
	TTLIntraday = time.Hour          // daily and digitalassets
	TTLWeekly   = 7 * 24 * time.Hour // etfs and ideas, refreshed on the first trading day of the week

	// Rows older than this are dropped by the cleanup job. Ticker rows keep
	// their last session price regardless.
	Retention = 30 * 24 * time.Hour
)

package config

// Constants defining default values for application configuration
const (
	DefaultDBPath      = "./aggregator.db"
	DefaultSourcesPath = "./sources.yaml"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	// Cron expression for the periodic import in `start` mode.
	DefaultSchedule = "0 */6 * * *"

	// Snapshot age after which the per-university book cache is stale.
	DefaultCacheTTLHours = 48

	// Timeout applied to every outbound fetch (pages, feeds, calendars,
	// Google Books). A single slow source must not stall a whole import.
	DefaultFetchTimeoutSeconds = 8

	// Upper bound on concurrent workers for multi-university book queries.
	DefaultWorkerCount = 8

	DefaultLogLevel = "debug"
)

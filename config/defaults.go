package config

import "time"

// Default runtime limits and guardrails for the InsightDeck dashboard server.
// These values are conservative and can be overridden by future configuration
// mechanisms (env, CLI, or files). They are referenced by internal/runtime.

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 32
	DefaultMaxOpenSessions       = 64

	// Payload and grid limits
	DefaultMaxUploadBytes = 20 << 20 // 20MB
	GridPageSize          = 10      // fixed page size for the data grid

	// Session lifecycle
	DefaultSessionIdleTTL       = 30 * time.Minute
	DefaultSessionCleanupPeriod = time.Minute
)

const (
	// Timeouts
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
	DefaultShutdownTimeout       = 5 * time.Second
)

// DefaultListenAddr is the HTTP bind address when no -addr flag is given.
const DefaultListenAddr = ":8080"

// ChartPalette is the fixed color cycle for categorical chart series.
// Series entry i is assigned ChartPalette[i % len(ChartPalette)].
var ChartPalette = []string{
	"#0088FE", "#00C49F", "#FFBB28", "#FF8042", "#8884D8", "#82CA9D",
}

// ExportFilename is the attachment name for filtered-grid exports.
const ExportFilename = "dashboard-export.csv"

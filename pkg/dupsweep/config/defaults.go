// Package config provides configuration management for dupsweep.
package config

// Default configuration values.
const (
	// DefaultAlgorithm is the digest algorithm used when none is configured.
	DefaultAlgorithm = "sha256"

	// DefaultChunkSize is the read buffer size per hash worker.
	DefaultChunkSize = "64KiB"

	// DefaultMinSize includes every file, empty ones too.
	DefaultMinSize = "0"

	// DefaultPath is the path scanned when none is given.
	DefaultPath = "."

	// DefaultHashWorkers of zero sizes the worker pool from the CPU count.
	DefaultHashWorkers = 0

	// DefaultQueueSize of zero sizes the queues from available memory.
	DefaultQueueSize = 0

	// DefaultOutput is the default output format.
	DefaultOutput = "pretty"

	// EnvPrefix prefixes environment overrides, e.g. DUPSWEEP_ALGORITHM.
	EnvPrefix = "DUPSWEEP"

	appName = "dupsweep"
)

// DefaultExclusions contains paths excluded from scanning by default.
// Pseudo filesystems hold no meaningful file content.
var DefaultExclusions = []string{
	"/proc",
	"/sys",
	"/dev",
}

// DefaultComponentLevels are the per-component log levels written by
// WriteDefault.
var DefaultComponentLevels = map[string]string{
	"scanner": "info",
	"walker":  "info",
	"cache":   "info",
	"cli":     "info",
}

package tuner

// Worker configuration limits.
const (
	// maxHashWorkers is the maximum number of hash workers.
	maxHashWorkers = 32

	// minHashWorkers is the minimum number of hash workers.
	minHashWorkers = 2

	// minQueueSize is the minimum queue/buffer size.
	minQueueSize = 64

	// maxQueueSize is the maximum queue/buffer size.
	maxQueueSize = 16384
)

// Memory-based queue sizing constants.
const (
	// bytesPerQueueEntry estimates memory per queued FileEntry: a path
	// string plus size, mtime and sequence number.
	bytesPerQueueEntry = 512

	// queueMemoryFraction is the fraction of available RAM to use for queues.
	queueMemoryFraction = 0.01
)

// OptimalConfig contains tuned pipeline sizes for the detected system.
type OptimalConfig struct {
	// HashWorkers is the number of goroutines reading and digesting files.
	HashWorkers int

	// QueueSize is the buffer between the walker and the hash workers.
	QueueSize int

	// ResultBuffer is the buffer between the hash workers and the collector.
	ResultBuffer int
}

// Calculate returns optimal configuration based on system resources.
//
// HashWorkers is NumCPU * 2, since digesting alternates between waiting on
// reads and burning CPU, bounded to [2, 32]. Queue sizes scale with
// available RAM.
func Calculate(resources SystemResources) OptimalConfig {
	workers := resources.CPUCores * 2
	workers = max(workers, minHashWorkers)
	workers = min(workers, maxHashWorkers)

	queueSize := calculateQueueSize(resources.AvailableRAM)

	return OptimalConfig{
		HashWorkers:  workers,
		QueueSize:    queueSize,
		ResultBuffer: queueSize,
	}
}

// CalculateWithOverrides applies user overrides to the optimal config.
// Values of 0 or less keep the calculated default. Worker overrides are
// still capped at the maximum.
func CalculateWithOverrides(resources SystemResources, workerOverride, queueOverride int) OptimalConfig {
	config := Calculate(resources)

	if workerOverride > 0 {
		config.HashWorkers = min(workerOverride, maxHashWorkers)
	}
	if queueOverride > 0 {
		config.QueueSize = queueOverride
		config.ResultBuffer = queueOverride
	}

	return config
}

// Auto detects resources and calculates a configuration, falling back to the
// defaults Detect reports when detection fails.
func Auto(workerOverride, queueOverride int) OptimalConfig {
	resources, _ := Detect()
	return CalculateWithOverrides(resources, workerOverride, queueOverride)
}

// calculateQueueSize determines queue size based on available memory.
func calculateQueueSize(availableRAM int64) int {
	queueMemory := float64(availableRAM) * queueMemoryFraction
	entries := int(queueMemory / bytesPerQueueEntry)

	// Split between the work queue and the result buffer.
	perQueue := entries / 2

	perQueue = max(perQueue, minQueueSize)
	perQueue = min(perQueue, maxQueueSize)

	return perQueue
}

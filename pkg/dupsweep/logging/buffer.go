package logging

import "sync"

// DefaultBufferSize is the default number of entries kept by a LogBuffer.
const DefaultBufferSize = 100

// LogBuffer is a fixed-size ring of recent log entries.
type LogBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	start   int // oldest entry
	count   int
}

// NewLogBuffer creates a buffer holding up to size entries.
func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &LogBuffer{entries: make([]LogEntry, size)}
}

// Add appends an entry, overwriting the oldest when full.
func (b *LogBuffer) Add(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[(b.start+b.count)%len(b.entries)] = entry
	if b.count < len(b.entries) {
		b.count++
		return
	}
	b.start = (b.start + 1) % len(b.entries)
}

// Last returns up to n of the most recent entries, oldest first.
func (b *LogBuffer) Last(n int) []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n = min(n, b.count)
	out := make([]LogEntry, n)
	offset := b.count - n
	for i := range out {
		out[i] = b.entries[(b.start+offset+i)%len(b.entries)]
	}
	return out
}

// Entries returns every buffered entry, oldest first.
func (b *LogBuffer) Entries() []LogEntry {
	return b.Last(b.Len())
}

// Len returns the number of buffered entries.
func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

package cache

import (
	"bytes"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// CacheVersion is incremented when the entry encoding or key layout changes.
// A store written with another version is dropped on open.
const CacheVersion = 1

// KeySeparator separates the algorithm from the file path in cache keys.
const KeySeparator = '\x00'

// versionKey holds the CacheVersion the store was written with. It sorts
// after every algorithm name.
var versionKey = []byte("\xffversion")

// Entry is a cached digest together with the file metadata it was computed
// for.
type Entry struct {
	Size   int64  `msgpack:"s"`
	Mtime  int64  `msgpack:"m"` // UnixNano
	Digest []byte `msgpack:"d"`
}

// Matches reports whether the entry was computed for a file with exactly
// this size and modification time.
func (e *Entry) Matches(size int64, mtime time.Time) bool {
	return e.Size == size && e.Mtime == mtime.UnixNano()
}

// Encode serializes the entry with msgpack.
func (e *Entry) Encode() ([]byte, error) {
	return msgpack.Marshal(e)
}

// Decode deserializes msgpack data into the entry.
func (e *Entry) Decode(data []byte) error {
	return msgpack.Unmarshal(data, e)
}

// MakeKey creates a cache key from an algorithm name and absolute path.
// Format: <algorithm>\x00<path>
func MakeKey(algorithm, path string) []byte {
	return []byte(algorithm + string(KeySeparator) + path)
}

// ParseKey extracts the algorithm and path from a cache key.
func ParseKey(key []byte) (algorithm, path string) {
	idx := bytes.IndexByte(key, KeySeparator)
	if idx == -1 {
		return string(key), ""
	}
	return string(key[:idx]), string(key[idx+1:])
}

// MakeKeyPrefix returns the prefix shared by every key of an algorithm.
func MakeKeyPrefix(algorithm string) []byte {
	return []byte(algorithm + string(KeySeparator))
}

// Package hasher computes content digests of files by streaming them in
// bounded chunks through a selectable hash algorithm.
package hasher

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// Supported algorithm names.
const (
	SHA256     = "sha256"
	SHA512     = "sha512"
	SHA1       = "sha1"
	MD5        = "md5"
	BLAKE2b256 = "blake2b-256"
	XXH64      = "xxh64"
	XXH3_128   = "xxh3-128"
)

// DefaultAlgorithm is used when no algorithm is configured.
const DefaultAlgorithm = SHA256

// DefaultChunkSize is the read buffer size used when none is configured.
const DefaultChunkSize = 64 * 1024

// ErrUnknownAlgorithm is returned for algorithm names that are not registered.
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// Algorithm describes a registered digest algorithm.
type Algorithm struct {
	// Name is the identifier accepted on the command line.
	Name string

	// Size is the digest length in bytes.
	Size int

	// Cryptographic reports whether the algorithm is collision resistant
	// against adversarial input.
	Cryptographic bool

	new func() hash.Hash
}

var registry = map[string]Algorithm{
	SHA256:     {Name: SHA256, Size: sha256.Size, Cryptographic: true, new: sha256.New},
	SHA512:     {Name: SHA512, Size: sha512.Size, Cryptographic: true, new: sha512.New},
	SHA1:       {Name: SHA1, Size: sha1.Size, new: sha1.New},
	MD5:        {Name: MD5, Size: md5.Size, new: md5.New},
	BLAKE2b256: {Name: BLAKE2b256, Size: blake2b.Size256, Cryptographic: true, new: newBlake2b256},
	XXH64:      {Name: XXH64, Size: 8, new: func() hash.Hash { return xxhash.New() }},
	XXH3_128:   {Name: XXH3_128, Size: 16, new: func() hash.Hash { return &xxh3128{h: xxh3.New()} }},
}

func newBlake2b256() hash.Hash {
	// An unkeyed BLAKE2b never fails to initialize.
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	return h
}

// Lookup returns the registered algorithm for name. Names are matched
// case-insensitively.
func Lookup(name string) (Algorithm, error) {
	alg, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Algorithm{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownAlgorithm, name, strings.Join(Names(), ", "))
	}
	return alg, nil
}

// Algorithms returns every registered algorithm sorted by name.
func Algorithms() []Algorithm {
	algs := make([]Algorithm, 0, len(registry))
	for _, alg := range registry {
		algs = append(algs, alg)
	}
	sort.Slice(algs, func(i, j int) bool { return algs[i].Name < algs[j].Name })
	return algs
}

// Names returns the sorted list of registered algorithm names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Hasher digests whole files. Each Hasher owns its hash state and read
// buffer, so it must not be shared between goroutines.
type Hasher struct {
	alg Algorithm
	h   hash.Hash
	buf []byte
}

// New returns a Hasher for the named algorithm. A chunkSize of zero or less
// selects DefaultChunkSize.
func New(algorithm string, chunkSize int) (*Hasher, error) {
	alg, err := Lookup(algorithm)
	if err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Hasher{
		alg: alg,
		h:   alg.new(),
		buf: make([]byte, chunkSize),
	}, nil
}

// Algorithm returns the algorithm name.
func (h *Hasher) Algorithm() string {
	return h.alg.Name
}

// HashFile streams the file at path through the hash and returns its digest
// and the number of bytes read. The file is closed before HashFile returns.
// An empty file yields the digest of empty input.
func (h *Hasher) HashFile(ctx context.Context, path string) (types.Digest, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	return h.HashReader(ctx, f)
}

// HashReader digests everything readable from r.
func (h *Hasher) HashReader(ctx context.Context, r io.Reader) (types.Digest, int64, error) {
	h.h.Reset()
	n, err := io.CopyBuffer(h.h, &chunkReader{ctx: ctx, r: r}, h.buf)
	if err != nil {
		return nil, n, err
	}
	return types.Digest(h.h.Sum(nil)), n, nil
}

// Classify maps a HashFile error to the warning kind reported for it.
func Classify(err error) types.ErrorKind {
	return types.KindOf(err, types.KindReadError)
}

// chunkReader checks for cancellation between reads. It also hides any
// io.WriterTo on the underlying file so that io.CopyBuffer reads through the
// caller's bounded buffer.
type chunkReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// xxh3128 adapts the 128-bit XXH3 variant to hash.Hash.
type xxh3128 struct {
	h *xxh3.Hasher
}

func (x *xxh3128) Write(p []byte) (int, error) { return x.h.Write(p) }
func (x *xxh3128) Reset() { x.h.Reset() }
func (x *xxh3128) Size() int { return 16 }
func (x *xxh3128) BlockSize() int { return 64 }

func (x *xxh3128) Sum(b []byte) []byte {
	sum := x.h.Sum128()
	b = binary.BigEndian.AppendUint64(b, sum.Hi)
	return binary.BigEndian.AppendUint64(b, sum.Lo)
}

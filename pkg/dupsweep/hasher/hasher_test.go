package hasher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestKnownDigests(t *testing.T) {
	dir := t.TempDir()
	hello := writeFile(t, dir, "hello", "hello")
	empty := writeFile(t, dir, "empty", "")

	tests := []struct {
		alg  string
		path string
		want string
	}{
		{SHA256, hello, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
		{SHA256, empty, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{MD5, hello, "5d41402abc4b2a76b9719d911017c592"},
		{MD5, empty, "d41d8cd98f00b204e9800998ecf8427e"},
		{SHA1, hello, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"},
	}

	for _, tt := range tests {
		t.Run(tt.alg+"/"+filepath.Base(tt.path), func(t *testing.T) {
			h, err := New(tt.alg, 0)
			require.NoError(t, err)

			digest, n, err := h.HashFile(context.Background(), tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, digest.String())

			info, err := os.Stat(tt.path)
			require.NoError(t, err)
			assert.Equal(t, info.Size(), n)
		})
	}
}

func TestEveryAlgorithm(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a", "same content")
	b := writeFile(t, dir, "b", "same content")
	c := writeFile(t, dir, "c", "other content")

	for _, alg := range Algorithms() {
		t.Run(alg.Name, func(t *testing.T) {
			h, err := New(alg.Name, 4)
			require.NoError(t, err)
			assert.Equal(t, alg.Name, h.Algorithm())

			da, _, err := h.HashFile(context.Background(), a)
			require.NoError(t, err)
			db, _, err := h.HashFile(context.Background(), b)
			require.NoError(t, err)
			dc, _, err := h.HashFile(context.Background(), c)
			require.NoError(t, err)

			assert.Len(t, da, alg.Size)
			assert.Equal(t, da, db)
			assert.NotEqual(t, da, dc)
		})
	}
}

func TestChunkSizeDoesNotChangeDigest(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "big", strings.Repeat("0123456789", 10_000))

	var digests []types.Digest
	for _, chunk := range []int{1, 7, 4096, DefaultChunkSize, 1 << 20} {
		h, err := New(SHA256, chunk)
		require.NoError(t, err)

		d, n, err := h.HashFile(context.Background(), path)
		require.NoError(t, err)
		assert.EqualValues(t, 100_000, n)
		digests = append(digests, d)
	}

	for _, d := range digests[1:] {
		assert.Equal(t, digests[0], d)
	}
}

func TestHashReaderMatchesHashFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f", "reader content")

	h, err := New(BLAKE2b256, 0)
	require.NoError(t, err)

	fromFile, _, err := h.HashFile(context.Background(), path)
	require.NoError(t, err)
	fromReader, n, err := h.HashReader(context.Background(), bytes.NewReader([]byte("reader content")))
	require.NoError(t, err)

	assert.Equal(t, fromFile, fromReader)
	assert.EqualValues(t, len("reader content"), n)
}

func TestUnknownAlgorithm(t *testing.T) {
	_, err := New("crc7", 0)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	alg, err := Lookup("  SHA256 ")
	require.NoError(t, err)
	assert.Equal(t, SHA256, alg.Name)
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	require.Len(t, names, 7)
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, DefaultAlgorithm)
}

func TestVanishedFile(t *testing.T) {
	h, err := New(SHA256, 0)
	require.NoError(t, err)

	_, _, err = h.HashFile(context.Background(), filepath.Join(t.TempDir(), "gone"))
	require.Error(t, err)
	assert.Equal(t, types.KindVanished, Classify(err))
}

func TestUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks are bypassed for root")
	}

	path := writeFile(t, t.TempDir(), "locked", "secret")
	require.NoError(t, os.Chmod(path, 0o000))

	h, err := New(SHA256, 0)
	require.NoError(t, err)

	_, _, err = h.HashFile(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, types.KindPermissionDenied, Classify(err))
}

func TestClassifyFallback(t *testing.T) {
	assert.Equal(t, types.KindReadError, Classify(errors.New("input/output error")))
}

func TestCancelledContext(t *testing.T) {
	path := writeFile(t, t.TempDir(), "f", "data")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h, err := New(SHA256, 0)
	require.NoError(t, err)

	_, _, err = h.HashFile(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func BenchmarkHashFile(b *testing.B) {
	path := filepath.Join(b.TempDir(), "blob")
	if err := os.WriteFile(path, bytes.Repeat([]byte("dupsweep"), 1<<17), 0o644); err != nil {
		b.Fatal(err)
	}

	for _, name := range Names() {
		b.Run(name, func(b *testing.B) {
			h, err := New(name, DefaultChunkSize)
			if err != nil {
				b.Fatal(err)
			}
			b.SetBytes(8 << 17)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, _, err := h.HashFile(context.Background(), path); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

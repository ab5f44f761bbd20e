package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func countBackups(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, e := range entries {
		if e.Name() != "dupsweep.log" && strings.HasPrefix(e.Name(), "dupsweep.") {
			n++
		}
	}
	return n
}

func TestRotationBySize(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRotatingWriter(filepath.Join(dir, "dupsweep.log"), RotationConfig{MaxSize: 100})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	line := []byte(strings.Repeat("x", 40) + "\n")
	for i := 0; i < 5; i++ {
		if _, err := w.Write(line); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	if got := countBackups(t, dir); got < 1 {
		t.Errorf("expected at least one backup, got %d", got)
	}

	info, err := os.Stat(filepath.Join(dir, "dupsweep.log"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() > 100 {
		t.Errorf("current log is %d bytes, over the limit", info.Size())
	}
}

func TestRotationMaxBackups(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRotatingWriter(filepath.Join(dir, "dupsweep.log"), RotationConfig{MaxSize: 10, MaxBackups: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	for i := 0; i < 6; i++ {
		if _, err := w.Write([]byte("0123456789\n")); err != nil {
			t.Fatal(err)
		}
	}

	if got := countBackups(t, dir); got != 2 {
		t.Errorf("kept %d backups, want 2", got)
	}
}

func TestRotationDaily(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRotatingWriter(filepath.Join(dir, "dupsweep.log"), RotationConfig{Daily: true})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	day := time.Date(2024, 3, 1, 23, 59, 0, 0, time.Local)
	w.now = func() time.Time { return day }
	w.opened = day

	if _, err := w.Write([]byte("before midnight\n")); err != nil {
		t.Fatal(err)
	}
	if got := countBackups(t, dir); got != 0 {
		t.Fatalf("rotated too early: %d backups", got)
	}

	day = day.Add(2 * time.Minute)
	if _, err := w.Write([]byte("after midnight\n")); err != nil {
		t.Fatal(err)
	}
	if got := countBackups(t, dir); got != 1 {
		t.Errorf("got %d backups after day change, want 1", got)
	}
}

func TestRotationPrunesOldBackups(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "dupsweep.20000101-000000.log")
	if err := os.WriteFile(old, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-60 * 24 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	w, err := NewRotatingWriter(filepath.Join(dir, "dupsweep.log"), RotationConfig{MaxAge: 30})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("expired backup was not removed")
	}
}

func TestRotationCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "dupsweep", "dupsweep.log")
	w, err := NewRotatingWriter(path, RotationConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestWriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "dupsweep.log"), RotationConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("x")); err == nil {
		t.Error("expected error writing to closed writer")
	}
}

func TestLogBuffer(t *testing.T) {
	b := NewLogBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		b.Add(LogEntry{Message: msg})
	}

	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}

	got := b.Entries()
	if got[0].Message != "b" || got[2].Message != "d" {
		t.Errorf("Entries() = %+v, want b..d", got)
	}

	last := b.Last(2)
	if len(last) != 2 || last[0].Message != "c" || last[1].Message != "d" {
		t.Errorf("Last(2) = %+v", last)
	}

	if len(b.Last(10)) != 3 {
		t.Error("Last(n) with n > Len should return everything")
	}

	if NewLogBuffer(0) == nil || len(NewLogBuffer(-1).entries) != DefaultBufferSize {
		t.Error("invalid size should fall back to DefaultBufferSize")
	}
}

package types

import (
	"errors"
	"io/fs"
	"testing"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "plain bytes", input: "1024", want: 1024},
		{name: "zero bytes", input: "0", want: 0},
		{name: "bytes with B suffix", input: "512B", want: 512},
		{name: "kilobytes", input: "64K", want: 64 * 1024},
		{name: "kilobytes with iB", input: "64KiB", want: 64 * 1024},
		{name: "megabytes lowercase", input: "4m", want: 4 * 1024 * 1024},
		{name: "gigabytes with B", input: "2GB", want: 2 * 1024 * 1024 * 1024},
		{name: "terabytes", input: "1T", want: 1024 * 1024 * 1024 * 1024},
		{name: "surrounding whitespace", input: "  100M  ", want: 100 * 1024 * 1024},
		{name: "decimal values truncated", input: "1.5K", want: 1536},

		{name: "empty string", input: "", wantErr: true},
		{name: "invalid suffix", input: "100X", wantErr: true},
		{name: "negative value", input: "-1K", wantErr: true},
		{name: "suffix only", input: "M", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSizeErrorKinds(t *testing.T) {
	if _, err := ParseSize("-5"); !errors.Is(err, ErrNegativeSize) {
		t.Errorf("expected ErrNegativeSize, got %v", err)
	}
	if _, err := ParseSize("five"); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("expected ErrInvalidSize, got %v", err)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536 * 1024, "1.5 MiB"},
		{-10, "0 B"},
	}

	for _, tt := range tests {
		if got := FormatSize(tt.input); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDigestString(t *testing.T) {
	d := Digest{0xde, 0xad, 0xbe, 0xef}
	if d.String() != "deadbeef" {
		t.Fatalf("String() = %q", d.String())
	}

	same := Digest{0xde, 0xad, 0xbe, 0xef}
	if same.Key() != d.Key() {
		t.Errorf("Key() differs for equal digests")
	}
	if (Digest{0xde, 0xad}).Key() == d.Key() {
		t.Errorf("Key() equal for different digests")
	}
}

func TestHashGroupReclaimable(t *testing.T) {
	g := HashGroup{Size: 100, Paths: []string{"a", "b", "c"}}
	if g.Count() != 3 {
		t.Errorf("Count() = %d, want 3", g.Count())
	}
	if g.Reclaimable() != 200 {
		t.Errorf("Reclaimable() = %d, want 200", g.Reclaimable())
	}

	single := HashGroup{Size: 100, Paths: []string{"a"}}
	if single.Reclaimable() != 0 {
		t.Errorf("singleton Reclaimable() = %d, want 0", single.Reclaimable())
	}
}

func TestWarningString(t *testing.T) {
	w := Warning{Path: "/x/y", Kind: KindVanished, Error: "no such file"}
	if got, want := w.String(), "/x/y: no such file (vanished)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"permission", fs.ErrPermission, KindPermissionDenied},
		{"wrapped not exist", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}, KindVanished},
		{"other", errors.New("boom"), KindReadError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err, KindReadError); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

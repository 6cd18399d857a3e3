package fingerprint

import (
	"errors"
	"testing"

	"media-fetcher/internal/assets"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		opts     []Option
		expected string
	}{
		{
			name:     "identity only",
			id:       "A1",
			expected: "asset://A1",
		},
		{
			name:     "size and mode sorted by key",
			id:       "A1",
			opts:     []Option{WithSize(assets.Size{Width: 100, Height: 50}), WithContentMode(assets.AspectFill)},
			expected: "asset://A1?height=50&mode=aspectFill&width=100",
		},
		{
			name:     "maximum size uses sentinel token",
			id:       "A1",
			opts:     []Option{WithSize(assets.MaximumSize)},
			expected: "asset://A1?size=original",
		},
		{
			name:     "explicit zero size",
			id:       "A1",
			opts:     []Option{WithSize(assets.Size{})},
			expected: "asset://A1?height=0&width=0",
		},
		{
			name:     "identifier is escaped",
			id:       "8106768B/L0/001",
			expected: "asset://8106768B%2FL0%2F001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonical(tt.id, tt.opts...)
			if err != nil {
				t.Fatalf("Canonical() error = %v", err)
			}
			if got != tt.expected {
				t.Errorf("Canonical() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestOfIsDeterministic(t *testing.T) {
	size := assets.Size{Width: 100, Height: 100}

	a, err := Of("A1", WithSize(size), WithContentMode(assets.AspectFill))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Of("A1", WithContentMode(assets.AspectFill), WithSize(size))
	if err != nil {
		t.Fatal(err)
	}
	c, _ := Of("A1", WithSize(size), WithContentMode(assets.AspectFill))

	if a != b {
		t.Errorf("option order changed the fingerprint: %d != %d", a, b)
	}
	if a != c {
		t.Errorf("repeated call changed the fingerprint: %d != %d", a, c)
	}
	if a == 0 {
		t.Error("fingerprint must never be zero")
	}
}

func TestOfDistinguishesParameters(t *testing.T) {
	sizes := []assets.Size{
		{Width: 100, Height: 100},
		{Width: 100, Height: 200},
		{Width: 200, Height: 100},
		{Width: 320, Height: 240},
		{Width: 1, Height: 1},
		{},
		assets.MaximumSize,
	}
	modes := []assets.ContentMode{assets.AspectFit, assets.AspectFill}

	seen := make(map[Fingerprint]string)
	record := func(label string, fp Fingerprint) {
		if prev, ok := seen[fp]; ok {
			t.Errorf("collision between %s and %s (%d)", prev, label, fp)
		}
		seen[fp] = label
	}

	for _, s := range sizes {
		for _, m := range modes {
			fp, err := Of("A1", WithSize(s), WithContentMode(m))
			if err != nil {
				t.Fatal(err)
			}
			record(s.String()+"/"+string(m), fp)
		}
	}

	bare, _ := Of("A1")
	record("bare", bare)
}

func TestMaximumSizeDoesNotAliasZero(t *testing.T) {
	zero, _ := Of("A1", WithSize(assets.Size{}))
	maximum, _ := Of("A1", WithSize(assets.MaximumSize))
	none, _ := Of("A1")

	if zero == maximum {
		t.Error("0x0 aliases MaximumSize")
	}
	if none == maximum || none == zero {
		t.Error("omitted size aliases an explicit size")
	}
}

func TestOfEmptyAsset(t *testing.T) {
	_, err := Of("")
	if !errors.Is(err, ErrEmptyAssetID) {
		t.Errorf("Of(\"\") error = %v, want ErrEmptyAssetID", err)
	}
}

func TestFromCanonicalNeverZero(t *testing.T) {
	for _, s := range []string{"", "asset://x", "asset://y?mode=aspectFit"} {
		if fromCanonical(s) == 0 {
			t.Errorf("fromCanonical(%q) returned 0", s)
		}
	}
}

func TestKey(t *testing.T) {
	if got := Fingerprint(255).Key(); got != "ff" {
		t.Errorf("Key() = %q, want ff", got)
	}
}

func TestStringParseRoundTrip(t *testing.T) {
	fp, err := Of("A1", WithSize(assets.Size{Width: 100, Height: 100}), WithContentMode(assets.AspectFill))
	if err != nil {
		t.Fatal(err)
	}
	got, err := Parse(fp.String())
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", fp.String(), err)
	}
	if got != fp {
		t.Errorf("Parse(String()) = %d, want %d", got, fp)
	}

	for _, bad := range []string{"", "-1", "abc", "4294967296"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", bad)
		}
	}
}

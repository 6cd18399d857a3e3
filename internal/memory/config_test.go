package memory

import (
	"math"
	"runtime/debug"
	"testing"
)

func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
}

func TestConfigureFromEnv(t *testing.T) {
	tests := []struct {
		name        string
		memoryLimit string
		ratio       string
		wantSource  string
		wantLimit   int64
		wantRatio   float64
	}{
		{"unset", "", "", "none", 0, 0},
		{"bytes with default ratio", "1073741824", "", "MEMORY_LIMIT", int64(float64(1<<30) * DefaultMemoryRatio), DefaultMemoryRatio},
		{"quantity suffix", "2Gi", "0.5", "MEMORY_LIMIT", 1 << 30, 0.5},
		{"ratio out of range", "1000", "1.5", "MEMORY_LIMIT", 750, DefaultMemoryRatio},
		{"ratio not a number", "1000", "half", "MEMORY_LIMIT", 750, DefaultMemoryRatio},
		{"invalid limit", "lots", "", "none", 0, 0},
		{"negative limit", "-5", "", "none", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreMemoryLimit(t)
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", tt.memoryLimit)
			t.Setenv("MEMORY_RATIO", tt.ratio)

			got := ConfigureFromEnv()

			if got.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", got.Source, tt.wantSource)
			}
			if got.GoMemLimit != tt.wantLimit {
				t.Errorf("GoMemLimit = %d, want %d", got.GoMemLimit, tt.wantLimit)
			}
			if got.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %v, want %v", got.Ratio, tt.wantRatio)
			}
			if got.Configured != (tt.wantSource != "none") {
				t.Errorf("Configured = %v", got.Configured)
			}
			if got.Configured && debug.SetMemoryLimit(-1) != tt.wantLimit {
				t.Errorf("runtime limit = %d, want %d", debug.SetMemoryLimit(-1), tt.wantLimit)
			}
		})
	}
}

func TestConfigureFromEnv_GOMEMLIMITWins(t *testing.T) {
	restoreMemoryLimit(t)
	debug.SetMemoryLimit(512 << 20)
	t.Setenv("GOMEMLIMIT", "512MiB")
	t.Setenv("MEMORY_LIMIT", "1073741824")

	got := ConfigureFromEnv()
	if got.Source != "GOMEMLIMIT" {
		t.Errorf("Source = %q, want GOMEMLIMIT", got.Source)
	}
	if got.GoMemLimit != 512<<20 {
		t.Errorf("GoMemLimit = %d, want %d", got.GoMemLimit, 512<<20)
	}
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1024", 1024, false},
		{" 2048 ", 2048, false},
		{"512Mi", 512 << 20, false},
		{"1.5Gi", 3 << 29, false},
		{"2G", 2e9, false},
		{"4K", 4000, false},
		{"1Ti", 1 << 40, false},
		{"", 0, true},
		{"Mi", 0, true},
		{"ten", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseByteSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseByteSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{3 << 30, "3.0 GiB"},
		{math.MaxInt64, "8.0 EiB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.HighWaterMark >= c.CriticalWaterMark {
		t.Errorf("HighWaterMark %v must be below CriticalWaterMark %v", c.HighWaterMark, c.CriticalWaterMark)
	}
	if c.CheckInterval <= 0 {
		t.Errorf("CheckInterval = %v, want > 0", c.CheckInterval)
	}
}

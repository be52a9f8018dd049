package load

import (
	"testing"
	"time"
)

func TestPhaseTableOverlapLastWins(t *testing.T) {
	table := NewPhaseTable([]PhaseEntry{
		{Start: 0, Duration: 10 * time.Second, Rate: 500, Label: "A"},
		{Start: 5 * time.Second, Duration: 10 * time.Second, Rate: 999, Label: "B"},
	})

	tests := []struct {
		elapsed time.Duration
		rate    float64
		label   string
	}{
		{0, 500, "A"},
		{4999 * time.Millisecond, 500, "A"},
		{5 * time.Second, 999, "B"}, // overlap: later declaration wins
		{9 * time.Second, 999, "B"},
		{14 * time.Second, 999, "B"},
		{15 * time.Second, 0, ""}, // past every window
	}

	for _, tt := range tests {
		if got := table.RateAt(tt.elapsed); got != tt.rate {
			t.Errorf("RateAt(%v) = %v, want %v", tt.elapsed, got, tt.rate)
		}
		label, ok := table.LabelAt(tt.elapsed)
		if tt.label == "" {
			if ok {
				t.Errorf("LabelAt(%v) = (%q, true), want no match", tt.elapsed, label)
			}
		} else if !ok || label != tt.label {
			t.Errorf("LabelAt(%v) = (%q, %v), want (%q, true)", tt.elapsed, label, ok, tt.label)
		}
	}
}

func TestPhaseTableGapIsZero(t *testing.T) {
	table := NewPhaseTable([]PhaseEntry{
		{Start: 0, Duration: 5 * time.Second, Rate: 500, Label: "warm"},
		{Start: 8 * time.Second, Duration: 5 * time.Second, Rate: 700, Label: "peak"},
	})

	tests := []struct {
		elapsed time.Duration
		rate    float64
	}{
		{4 * time.Second, 500},
		{5 * time.Second, 0}, // windows are half-open
		{6 * time.Second, 0},
		{8 * time.Second, 700},
		{12999 * time.Millisecond, 700},
		{13 * time.Second, 0},
		{-time.Second, 0},
	}

	for _, tt := range tests {
		if got := table.RateAt(tt.elapsed); got != tt.rate {
			t.Errorf("RateAt(%v) = %v, want %v", tt.elapsed, got, tt.rate)
		}
	}
}

func TestPhaseTableDerivedValues(t *testing.T) {
	table := NewPhaseTable([]PhaseEntry{
		{Start: 0, Duration: 5 * time.Second, Rate: 500, Label: "warm"},
		{Start: 5 * time.Second, Duration: 10 * time.Second, Rate: 700, Label: "peak"},
	})

	if got := table.TotalDuration(); got != 15*time.Second {
		t.Errorf("TotalDuration = %v, want 15s", got)
	}
	if got := table.InitialRate(); got != 500 {
		t.Errorf("InitialRate = %v, want 500", got)
	}
	// The table is half-open, so at exactly the total duration nothing matches.
	if got := table.FinalRate(); got != 0 {
		t.Errorf("FinalRate = %v, want 0", got)
	}
	if got := table.Len(); got != 2 {
		t.Errorf("Len = %d, want 2", got)
	}
}

func TestPhaseTableEmptyGetsDefault(t *testing.T) {
	for _, entries := range [][]PhaseEntry{nil, {}} {
		table := NewPhaseTable(entries)
		if table.Len() != 1 {
			t.Fatalf("Len = %d, want 1 default phase", table.Len())
		}
		entry := table.Entries()[0]
		if entry.Start != 0 || entry.Duration != 60*time.Second || entry.Rate != 1000 || entry.Label != DefaultPhaseLabel {
			t.Errorf("default phase = %+v", entry)
		}
	}
}

func TestParsePhases(t *testing.T) {
	table, skipped := ParsePhases("0:10000:500:warmup, 10000:20000:2000:peak, 30000:5000:300")
	if len(skipped) != 0 {
		t.Fatalf("skipped = %v, want none", skipped)
	}
	if table.Len() != 3 {
		t.Fatalf("Len = %d, want 3", table.Len())
	}

	entries := table.Entries()
	if entries[0].Label != "warmup" || entries[0].Rate != 500 || entries[0].Duration != 10*time.Second {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Start != 10*time.Second || entries[1].Rate != 2000 {
		t.Errorf("entry 1 = %+v", entries[1])
	}
	// Missing label falls back to the default.
	if entries[2].Label != DefaultPhaseLabel {
		t.Errorf("entry 2 label = %q, want %q", entries[2].Label, DefaultPhaseLabel)
	}
}

func TestParsePhasesSkipsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		entries int
		skipped []int
	}{
		{"too few fields", "0:10000, 10000:5000:700", 1, []int{0}},
		{"bad number", "0:10000:abc, 10000:5000:700", 1, []int{0}},
		{"negative value", "0:-10000:500, 10000:5000:700", 1, []int{0}},
		{"all malformed", "nope, also:nope", 1, []int{0, 1}}, // falls back to the default phase
		{"empty parts ignored", "0:10000:500, , 10000:5000:700,", 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, skipped := ParsePhases(tt.input)
			if table.Len() != tt.entries {
				t.Errorf("Len = %d, want %d", table.Len(), tt.entries)
			}
			if len(skipped) != len(tt.skipped) {
				t.Fatalf("skipped = %v, want %v", skipped, tt.skipped)
			}
			for i := range skipped {
				if skipped[i] != tt.skipped[i] {
					t.Errorf("skipped = %v, want %v", skipped, tt.skipped)
				}
			}
		})
	}
}

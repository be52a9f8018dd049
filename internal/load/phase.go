package load

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultPhaseLabel is the label assigned to phase entries that omit one,
// and to the substitute phase used when no valid entries are configured.
const DefaultPhaseLabel = "Default"

// PhaseEntry is one time window of the custom pattern: a fixed target rate
// held between Start and Start+Duration.
type PhaseEntry struct {
	Start    time.Duration
	Duration time.Duration
	Rate     float64 // ops/sec
	Label    string
}

// contains reports whether elapsed falls inside this entry's half-open
// window [Start, Start+Duration).
func (p PhaseEntry) contains(elapsed time.Duration) bool {
	return elapsed >= p.Start && elapsed < p.Start+p.Duration
}

// PhaseTable is an ordered list of phase entries. Declaration order is
// significant: when windows overlap, the last declared matching entry wins.
// Gaps between windows yield zero load rather than carrying the previous
// phase's rate forward.
type PhaseTable struct {
	entries []PhaseEntry
}

// NewPhaseTable builds a table from the given entries. An empty or nil slice
// is invalid for pacing, so it is replaced with a single default phase
// (60 seconds at 1000 ops/sec).
func NewPhaseTable(entries []PhaseEntry) PhaseTable {
	if len(entries) == 0 {
		entries = []PhaseEntry{{
			Start:    0,
			Duration: 60 * time.Second,
			Rate:     1000,
			Label:    DefaultPhaseLabel,
		}}
	}
	copied := make([]PhaseEntry, len(entries))
	copy(copied, entries)
	return PhaseTable{entries: copied}
}

// ParsePhases parses the comma-separated phase list
// "start:duration:rate:label" with start and duration in integer
// milliseconds. The label is optional. Entries with fewer than three fields
// or unparseable numbers are skipped; their positions are reported so the
// caller can warn. If nothing parses, the returned table holds the single
// default phase.
func ParsePhases(s string) (PhaseTable, []int) {
	var entries []PhaseEntry
	var skipped []int

	for i, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		entry, err := parsePhaseEntry(part)
		if err != nil {
			skipped = append(skipped, i)
			continue
		}
		entries = append(entries, entry)
	}

	return NewPhaseTable(entries), skipped
}

func parsePhaseEntry(s string) (PhaseEntry, error) {
	fields := strings.Split(s, ":")
	if len(fields) < 3 {
		return PhaseEntry{}, fmt.Errorf("phase entry %q: need start:duration:rate", s)
	}

	startMs, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return PhaseEntry{}, fmt.Errorf("phase entry %q: bad start: %w", s, err)
	}
	durationMs, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return PhaseEntry{}, fmt.Errorf("phase entry %q: bad duration: %w", s, err)
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return PhaseEntry{}, fmt.Errorf("phase entry %q: bad rate: %w", s, err)
	}
	if startMs < 0 || durationMs < 0 || rate < 0 {
		return PhaseEntry{}, fmt.Errorf("phase entry %q: negative value", s)
	}

	label := DefaultPhaseLabel
	if len(fields) > 3 && strings.TrimSpace(fields[3]) != "" {
		label = strings.TrimSpace(fields[3])
	}

	return PhaseEntry{
		Start:    time.Duration(startMs) * time.Millisecond,
		Duration: time.Duration(durationMs) * time.Millisecond,
		Rate:     rate,
		Label:    label,
	}, nil
}

// RateAt returns the target rate at the given elapsed time: the rate of the
// last declared entry whose window contains elapsed, or 0 when no entry
// matches (including elapsed < 0).
func (t PhaseTable) RateAt(elapsed time.Duration) float64 {
	if elapsed < 0 {
		return 0
	}
	rate := 0.0
	for _, entry := range t.entries {
		if entry.contains(elapsed) {
			rate = entry.Rate
		}
	}
	return rate
}

// LabelAt returns the label of the matching entry at elapsed, using the same
// last-declared-wins rule as RateAt. ok is false when no entry matches.
func (t PhaseTable) LabelAt(elapsed time.Duration) (label string, ok bool) {
	if elapsed < 0 {
		return "", false
	}
	for _, entry := range t.entries {
		if entry.contains(elapsed) {
			label = entry.Label
			ok = true
		}
	}
	return label, ok
}

// TotalDuration is the largest Start+Duration over all entries.
func (t PhaseTable) TotalDuration() time.Duration {
	var max time.Duration
	for _, entry := range t.entries {
		if end := entry.Start + entry.Duration; end > max {
			max = end
		}
	}
	return max
}

// InitialRate is the table's rate at elapsed 0.
func (t PhaseTable) InitialRate() float64 {
	return t.RateAt(0)
}

// FinalRate is the table's rate at the total duration.
func (t PhaseTable) FinalRate() float64 {
	return t.RateAt(t.TotalDuration())
}

// Len returns the number of entries.
func (t PhaseTable) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the table's entries in declaration order.
func (t PhaseTable) Entries() []PhaseEntry {
	out := make([]PhaseEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

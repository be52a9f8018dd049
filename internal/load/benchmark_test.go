package load

import (
	"testing"
	"time"
)

// BenchmarkRate measures the formula evaluation on the worker hot path.
// Workers call this on every rate poll, so it must stay allocation-free.
func BenchmarkRate(b *testing.B) {
	cfg := SimpleConfig{Initial: 1000, Final: 4000, Duration: 30 * time.Second, StepCount: 5, Frequency: 1, Base: 2}

	for _, pattern := range []Pattern{PatternLinear, PatternStep, PatternSineWave, PatternExponential} {
		b.Run(string(pattern), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = Rate(pattern, 15*time.Second, cfg)
			}
		})
	}
}

// BenchmarkControllerCurrentThroughput measures a full concurrent rate read:
// monotonic elapsed, formula evaluation, and the atomic cache store.
func BenchmarkControllerCurrentThroughput(b *testing.B) {
	c, err := NewController(PatternSineWave, SimpleConfig{
		Initial:  2000,
		Final:    6000,
		Duration: time.Hour,
	})
	if err != nil {
		b.Fatal(err)
	}
	c.Start()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = c.CurrentThroughput()
	}
}

// BenchmarkControllerCurrentThroughput_Parallel measures contention between
// workers polling the controller at once.
func BenchmarkControllerCurrentThroughput_Parallel(b *testing.B) {
	c, err := NewController(PatternLinear, SimpleConfig{
		Initial:  1000,
		Final:    3000,
		Duration: time.Hour,
	})
	if err != nil {
		b.Fatal(err)
	}
	c.Start()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = c.CurrentThroughput()
		}
	})
}

// BenchmarkPhaseTableRateAt measures the custom-pattern lookup.
func BenchmarkPhaseTableRateAt(b *testing.B) {
	entries := make([]PhaseEntry, 0, 16)
	for i := 0; i < 16; i++ {
		entries = append(entries, PhaseEntry{
			Start:    time.Duration(i) * 10 * time.Second,
			Duration: 10 * time.Second,
			Rate:     float64(100 * (i + 1)),
		})
	}
	table := NewPhaseTable(entries)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = table.RateAt(75 * time.Second)
	}
}

// Package load provides dynamic throughput control for multi-worker load
// generation: waveform evaluation, phase tables, the shared load controller,
// per-worker pacing, and run coordination.
package load

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Pattern identifies the shape of the target throughput curve over time.
type Pattern string

const (
	// PatternConstant holds the initial rate for the whole run.
	PatternConstant Pattern = "constant"

	// PatternLinear interpolates linearly from initial to final rate.
	PatternLinear Pattern = "linear"

	// PatternStep moves from initial to final in discrete plateaus.
	PatternStep Pattern = "step"

	// PatternSineWave oscillates around the midpoint of initial and final.
	PatternSineWave Pattern = "sine-wave"

	// PatternExponential grows (or decays) exponentially between the rates.
	PatternExponential Pattern = "exponential"

	// PatternCustom evaluates an explicit phase table instead of a formula.
	PatternCustom Pattern = "custom"
)

// AllPatterns lists every supported pattern. Used by validation and by the
// evaluator-coverage test.
var AllPatterns = []Pattern{
	PatternConstant,
	PatternLinear,
	PatternStep,
	PatternSineWave,
	PatternExponential,
	PatternCustom,
}

// ParsePattern parses a pattern name case-insensitively. Unknown names fall
// back to PatternConstant; ok is false so callers can warn.
func ParsePattern(s string) (p Pattern, ok bool) {
	name := Pattern(strings.ToLower(strings.TrimSpace(s)))
	switch name {
	case PatternConstant, PatternLinear, PatternStep, PatternSineWave, PatternExponential, PatternCustom:
		return name, true
	case "sinewave", "sine_wave", "sine":
		return PatternSineWave, true
	}
	return PatternConstant, false
}

// SimpleConfig parameterizes the formula-based patterns.
type SimpleConfig struct {
	// Initial is the target rate at elapsed <= 0, in ops/sec.
	Initial float64

	// Final is the target rate at elapsed >= Duration, in ops/sec.
	Final float64

	// Duration is the total length of the shaped window.
	Duration time.Duration

	// StepCount is the number of plateaus for PatternStep (default 5).
	StepCount int

	// Frequency is the number of full oscillations for PatternSineWave
	// over Duration (default 1.0).
	Frequency float64

	// Base is the exponent base for PatternExponential (default e).
	Base float64
}

// DefaultSimpleConfig returns a SimpleConfig with the documented defaults
// and a flat 1000 ops/sec over 60 seconds.
func DefaultSimpleConfig() SimpleConfig {
	return SimpleConfig{
		Initial:   1000,
		Final:     1000,
		Duration:  60 * time.Second,
		StepCount: 5,
		Frequency: 1.0,
		Base:      math.E,
	}
}

// Validate reports the first configuration value that would produce
// undefined or silently wrong pacing.
func (c SimpleConfig) Validate() error {
	if c.Initial < 0 {
		return fmt.Errorf("initial rate must be >= 0, got %v", c.Initial)
	}
	if c.Final < 0 {
		return fmt.Errorf("final rate must be >= 0, got %v", c.Final)
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration must be >= 0, got %v", c.Duration)
	}
	return nil
}

// evalFunc computes the interior value of a pattern. The elapsed<=0 and
// elapsed>=Duration clamps are applied by Rate before dispatch, so
// implementations only see 0 < elapsed < Duration.
type evalFunc func(elapsed time.Duration, cfg SimpleConfig) float64

// evaluators maps every formula-based pattern to its interior evaluator.
// PatternCustom is intentionally absent: it is evaluated against a
// PhaseTable, not a SimpleConfig. A test asserts this table covers
// AllPatterns exactly.
var evaluators = map[Pattern]evalFunc{
	PatternConstant:    evalConstant,
	PatternLinear:      evalLinear,
	PatternStep:        evalStep,
	PatternSineWave:    evalSineWave,
	PatternExponential: evalExponential,
}

// Rate evaluates the target aggregate throughput (ops/sec) for a
// formula-based pattern at the given elapsed time. It is a pure function:
// the same inputs always produce the same output.
//
// Outside the shaped window the endpoints win: elapsed <= 0 returns
// cfg.Initial and elapsed >= cfg.Duration returns cfg.Final, for every
// pattern. This means the sine wave's boundary values are exactly
// initial/final rather than the wave's value at the boundary phase.
func Rate(pattern Pattern, elapsed time.Duration, cfg SimpleConfig) float64 {
	eval, ok := evaluators[pattern]
	if !ok {
		// Unknown or custom pattern: behave as constant.
		return cfg.Initial
	}
	if elapsed <= 0 || cfg.Duration <= 0 {
		return cfg.Initial
	}
	if elapsed >= cfg.Duration {
		return cfg.Final
	}
	return eval(elapsed, cfg)
}

func evalConstant(_ time.Duration, cfg SimpleConfig) float64 {
	return cfg.Initial
}

func evalLinear(elapsed time.Duration, cfg SimpleConfig) float64 {
	progress := float64(elapsed) / float64(cfg.Duration)
	return cfg.Initial + (cfg.Final-cfg.Initial)*progress
}

func evalStep(elapsed time.Duration, cfg SimpleConfig) float64 {
	steps := cfg.StepCount
	if steps <= 1 {
		// A single plateau has no defined progress formula; treat it as
		// an immediate jump to the final rate.
		return cfg.Final
	}

	stepDuration := cfg.Duration / time.Duration(steps)
	current := int(elapsed / stepDuration)
	if current >= steps {
		current = steps - 1
	}
	progress := float64(current) / float64(steps-1)
	return cfg.Initial + (cfg.Final-cfg.Initial)*progress
}

func evalSineWave(elapsed time.Duration, cfg SimpleConfig) float64 {
	frequency := cfg.Frequency
	if frequency == 0 {
		frequency = 1.0
	}
	amplitude := (cfg.Final - cfg.Initial) / 2.0
	baseline := (cfg.Initial + cfg.Final) / 2.0
	phase := 2 * math.Pi * frequency * float64(elapsed) / float64(cfg.Duration)
	return baseline + amplitude*math.Sin(phase)
}

func evalExponential(elapsed time.Duration, cfg SimpleConfig) float64 {
	base := cfg.Base
	if base == 0 {
		base = math.E
	}
	if base == 1 {
		// base^x - 1 over base - 1 is 0/0; the limit is the linear ramp.
		return evalLinear(elapsed, cfg)
	}
	normalized := float64(elapsed) / float64(cfg.Duration)
	factor := (math.Pow(base, normalized) - 1) / (base - 1)
	return cfg.Initial + (cfg.Final-cfg.Initial)*factor
}

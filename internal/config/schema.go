// Package config provides parsing and validation of load run configuration.
package config

import (
	"math"
	"time"
)

// RunConfig is the root configuration for a load run.
//
// Example YAML:
//
//	name: "checkout ramp"
//	target:
//	  url: "https://api.example.com/checkout"
//	  method: POST
//	  body: '{"sku":"demo"}'
//	load:
//	  enabled: true
//	  pattern: linear
//	  initial: 1000
//	  final: 3000
//	  duration: 30s
//	run:
//	  threads: 4
//	  warmup: 5s
type RunConfig struct {
	// Name of the run (for reporting)
	Name string `json:"name" yaml:"name"`

	// Target describes the operation executed against the system under test
	Target TargetConfig `json:"target" yaml:"target"`

	// Load configures dynamic throughput control
	Load LoadConfig `json:"load,omitempty" yaml:"load,omitempty"`

	// Run configures the worker pool
	Run WorkersConfig `json:"run,omitempty" yaml:"run,omitempty"`
}

// TargetConfig describes the HTTP operation each worker issues.
type TargetConfig struct {
	// URL is the request URL
	URL string `json:"url" yaml:"url"`

	// Method is the HTTP method (default GET)
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	// Headers are applied to every request
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Body is the request body
	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// Timeout is the per-request timeout (default 30s)
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Check validates responses beyond the status code
	Check *CheckConfig `json:"check,omitempty" yaml:"check,omitempty"`
}

// CheckConfig defines response validation for the target.
type CheckConfig struct {
	// Path is a gjson path into the response body
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Equals is the expected value at Path
	Equals string `json:"equals,omitempty" yaml:"equals,omitempty"`

	// SchemaFile is a JSON Schema file the response body must satisfy
	SchemaFile string `json:"schemaFile,omitempty" yaml:"schemaFile,omitempty"`
}

// LoadConfig configures the dynamic load controller.
type LoadConfig struct {
	// Enabled turns dynamic control on. When false the run paces at the
	// static Rate (or unthrottled).
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Pattern is one of constant, linear, step, sine-wave, exponential,
	// custom (case-insensitive; unknown falls back to constant with a
	// warning)
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// Initial and Final are target rates in ops/sec; ignored for custom
	Initial float64 `json:"initial,omitempty" yaml:"initial,omitempty"`
	Final   float64 `json:"final,omitempty" yaml:"final,omitempty"`

	// Duration is the shaped window length; for custom it is derived from
	// the phases instead
	Duration Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// StepCount is the plateau count for step (default 5)
	StepCount int `json:"stepCount,omitempty" yaml:"stepCount,omitempty"`

	// Frequency is the oscillation count for sine-wave (default 1.0)
	Frequency float64 `json:"frequency,omitempty" yaml:"frequency,omitempty"`

	// Base is the exponent base for exponential (default e)
	Base float64 `json:"base,omitempty" yaml:"base,omitempty"`

	// Phases is the custom phase list: comma-separated
	// start:duration:rate:label quadruples with start/duration in
	// milliseconds and an optional label
	Phases string `json:"phases,omitempty" yaml:"phases,omitempty"`
}

// WorkersConfig configures the worker pool and static pacing.
type WorkersConfig struct {
	// Threads is the worker count (default 1); the aggregate rate is
	// divided evenly across them
	Threads int `json:"threads,omitempty" yaml:"threads,omitempty"`

	// Warmup is the unmetered startup window before pacing begins
	Warmup Duration `json:"warmup,omitempty" yaml:"warmup,omitempty"`

	// Operations is the static-mode total operation count (0 = unlimited;
	// ignored when dynamic control is enabled)
	Operations int64 `json:"operations,omitempty" yaml:"operations,omitempty"`

	// Rate is the static-mode aggregate target in ops/sec (0 =
	// unthrottled; ignored when dynamic control is enabled)
	Rate float64 `json:"rate,omitempty" yaml:"rate,omitempty"`

	// SpinWait busy-spins until deadlines instead of sleeping
	SpinWait bool `json:"spinWait,omitempty" yaml:"spinWait,omitempty"`
}

// ApplyDefaults fills in unset fields with their documented defaults.
func ApplyDefaults(c *RunConfig) {
	if c.Name == "" {
		c.Name = "load run"
	}
	if c.Target.Method == "" {
		c.Target.Method = "GET"
	}
	if c.Target.Timeout == 0 {
		c.Target.Timeout = Duration(30 * time.Second)
	}
	if c.Run.Threads == 0 {
		c.Run.Threads = 1
	}
	if c.Load.Pattern == "" {
		c.Load.Pattern = "constant"
	}
	if c.Load.Duration == 0 {
		c.Load.Duration = Duration(60 * time.Second)
	}
	if c.Load.StepCount == 0 {
		c.Load.StepCount = 5
	}
	if c.Load.Frequency == 0 {
		c.Load.Frequency = 1.0
	}
	if c.Load.Base == 0 {
		c.Load.Base = math.E
	}
}

// Duration is a time.Duration that unmarshals from JSON/YAML strings like
// "30s" or "1m30s".
type Duration time.Duration

// GetDuration returns the duration or a default if unset.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	if s == "" {
		*d = 0
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

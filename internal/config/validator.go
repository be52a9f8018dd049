package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate validates the entire run configuration.
//
// Configuration that would produce silently wrong pacing (negative rates or
// durations, zero threads) fails here, before any worker starts.
//
// Returns nil if valid, or a ValidationErrors containing all problems found.
func (c *RunConfig) Validate() error {
	errs := &ValidationErrors{}

	validateTarget(&c.Target, errs)
	validateLoad(&c.Load, errs)
	validateWorkers(&c.Run, errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateTarget(t *TargetConfig, errs *ValidationErrors) {
	if t.URL == "" {
		errs.Add("target.url", "target URL is required")
		return
	}

	parsed, err := url.Parse(t.URL)
	if err != nil {
		errs.Add("target.url", fmt.Sprintf("invalid URL: %v", err))
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errs.Add("target.url", fmt.Sprintf("unsupported scheme: %s", parsed.Scheme))
	}

	if t.Timeout < 0 {
		errs.Add("target.timeout", "timeout must be >= 0")
	}

	if t.Check != nil {
		if t.Check.Path == "" && t.Check.SchemaFile == "" {
			errs.Add("target.check", "check requires a path or a schemaFile")
		}
		if t.Check.Equals != "" && t.Check.Path == "" {
			errs.Add("target.check.equals", "equals requires a path")
		}
	}
}

func validateLoad(l *LoadConfig, errs *ValidationErrors) {
	if l.Initial < 0 {
		errs.Add("load.initial", "initial rate must be >= 0")
	}
	if l.Final < 0 {
		errs.Add("load.final", "final rate must be >= 0")
	}
	if l.Duration < 0 {
		errs.Add("load.duration", "duration must be >= 0")
	}
	if l.StepCount < 0 {
		errs.Add("load.stepCount", "stepCount must be >= 0")
	}
	if l.Frequency < 0 {
		errs.Add("load.frequency", "frequency must be >= 0")
	}
	if l.Base < 0 {
		errs.Add("load.base", "base must be >= 0")
	}
}

func validateWorkers(w *WorkersConfig, errs *ValidationErrors) {
	if w.Threads < 0 {
		errs.Add("run.threads", "threads must be >= 0")
	}
	if w.Warmup < 0 {
		errs.Add("run.warmup", "warmup must be >= 0")
	}
	if w.Operations < 0 {
		errs.Add("run.operations", "operations must be >= 0")
	}
	if w.Rate < 0 {
		errs.Add("run.rate", "rate must be >= 0")
	}
}

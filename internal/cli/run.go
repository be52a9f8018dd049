package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loadshape/loadshape/internal/config"
	"github.com/loadshape/loadshape/internal/load"
	"github.com/loadshape/loadshape/internal/metrics"
	"github.com/loadshape/loadshape/internal/output"
	"github.com/loadshape/loadshape/internal/workload"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test against an HTTP target",
	Long: `Execute a load run with either a static rate or a dynamic load shape.

Config file mode:
  loadshape run --config run.yaml

Quick CLI mode:
  loadshape run --url https://api.example.com/health \
    --pattern linear --initial 1000 --final 3000 \
    --shape-duration 30s --threads 4

Custom phase mode:
  loadshape run --url https://api.example.com/health \
    --pattern custom \
    --phases "0:10000:500:warm,10000:20000:2000:peak" \
    --threads 4`,
	Run: func(cmd *cobra.Command, args []string) {
		runLoadTest(cmd, args)
	},
}

func init() {
	runCmd.Flags().String("config", "", "Run configuration file (YAML or JSON)")
	runCmd.Flags().String("url", "", "Target URL (quick mode)")
	runCmd.Flags().String("method", "GET", "HTTP method")
	runCmd.Flags().String("body", "", "Request body")

	runCmd.Flags().String("pattern", "constant", "Load pattern: constant, linear, step, sine-wave, exponential, custom")
	runCmd.Flags().Float64("initial", 1000, "Initial target rate in ops/sec")
	runCmd.Flags().Float64("final", 1000, "Final target rate in ops/sec")
	runCmd.Flags().String("shape-duration", "60s", "Length of the shaped window")
	runCmd.Flags().Int("step-count", 5, "Plateau count for the step pattern")
	runCmd.Flags().Float64("frequency", 1.0, "Oscillation count for the sine-wave pattern")
	runCmd.Flags().Float64("base", 0, "Exponent base for the exponential pattern (0 = e)")
	runCmd.Flags().String("phases", "", "Custom phases: start:duration:rate:label,... (ms)")

	runCmd.Flags().Int("threads", 1, "Worker count")
	runCmd.Flags().String("warmup", "0s", "Unmetered warmup window")
	runCmd.Flags().Int64("operations", 0, "Static-mode operation count (0 = unlimited)")
	runCmd.Flags().Float64("rate", 0, "Static-mode aggregate rate in ops/sec (0 = unthrottled)")
	runCmd.Flags().Bool("static", false, "Disable dynamic control even when a pattern is given")
	runCmd.Flags().Bool("spin", false, "Busy-spin until deadlines for sub-millisecond precision")

	runCmd.Flags().Bool("quiet", false, "Suppress progress output")
	runCmd.Flags().Bool("no-color", false, "Disable colored output")
	runCmd.Flags().Bool("json", false, "Print the final snapshot as JSON")
}

func runLoadTest(cmd *cobra.Command, _ []string) {
	cfg, err := buildRunConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	noColor, _ := cmd.Flags().GetBool("no-color")
	jsonOut, _ := cmd.Flags().GetBool("json")

	console := output.NewConsole(output.ConsoleConfig{
		RunName: cfg.Name,
		NoColor: noColor,
		Quiet:   quiet,
	})

	controller, err := buildController(cfg, console)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	op, err := workload.NewHTTPOperation(cfg.Target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	engine := metrics.NewEngine()
	coordinator := load.NewCoordinator(load.RunConfig{
		Threads:    cfg.Run.Threads,
		OpCount:    cfg.Run.Operations,
		TargetRate: cfg.Run.Rate,
		Warmup:     cfg.Run.Warmup.GetDuration(0),
		SpinWait:   cfg.Run.SpinWait,
	}, op, controller, engine)
	coordinator.OnPacingStart = engine.Reset

	runID := uuid.NewString()[:8]
	console.PrintHeader(runID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cooperative stop on interrupt; in-flight operations finish.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		coordinator.Stop()
	}()

	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		runErr = coordinator.Run(ctx)
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

progressLoop:
	for {
		select {
		case <-done:
			break progressLoop
		case <-ticker.C:
			console.PrintProgress(coordinator.Stats(), engine.GetSnapshot())
		}
	}

	snapshot := engine.GetSnapshot()
	console.PrintSummary(snapshot, runErr)

	if jsonOut {
		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err == nil {
			fmt.Println(string(data))
		}
	}

	if runErr != nil {
		os.Exit(1)
	}
}

// buildRunConfig loads the config file or assembles a config from flags.
func buildRunConfig(cmd *cobra.Command) (*config.RunConfig, error) {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		return config.Load(configFile)
	}

	url, _ := cmd.Flags().GetString("url")
	if url == "" {
		return nil, fmt.Errorf("either --config or --url is required")
	}

	method, _ := cmd.Flags().GetString("method")
	body, _ := cmd.Flags().GetString("body")

	pattern, _ := cmd.Flags().GetString("pattern")
	initial, _ := cmd.Flags().GetFloat64("initial")
	final, _ := cmd.Flags().GetFloat64("final")
	shapeDuration, _ := cmd.Flags().GetString("shape-duration")
	stepCount, _ := cmd.Flags().GetInt("step-count")
	frequency, _ := cmd.Flags().GetFloat64("frequency")
	base, _ := cmd.Flags().GetFloat64("base")
	phases, _ := cmd.Flags().GetString("phases")

	threads, _ := cmd.Flags().GetInt("threads")
	warmup, _ := cmd.Flags().GetString("warmup")
	operations, _ := cmd.Flags().GetInt64("operations")
	rate, _ := cmd.Flags().GetFloat64("rate")
	static, _ := cmd.Flags().GetBool("static")
	spin, _ := cmd.Flags().GetBool("spin")

	shapeDur, err := time.ParseDuration(shapeDuration)
	if err != nil {
		return nil, fmt.Errorf("invalid --shape-duration: %w", err)
	}
	warmupDur, err := time.ParseDuration(warmup)
	if err != nil {
		return nil, fmt.Errorf("invalid --warmup: %w", err)
	}

	cfg := &config.RunConfig{
		Name: "loadshape run",
		Target: config.TargetConfig{
			URL:    url,
			Method: method,
			Body:   body,
		},
		Load: config.LoadConfig{
			Enabled:   !static,
			Pattern:   pattern,
			Initial:   initial,
			Final:     final,
			Duration:  config.Duration(shapeDur),
			StepCount: stepCount,
			Frequency: frequency,
			Base:      base,
			Phases:    phases,
		},
		Run: config.WorkersConfig{
			Threads:    threads,
			Warmup:     config.Duration(warmupDur),
			Operations: operations,
			Rate:       rate,
			SpinWait:   spin,
		},
	}
	return cfg, nil
}

// buildController constructs the load controller from the config, or
// returns nil when dynamic control is disabled. Unknown pattern names fall
// back to constant with a warning; skipped phase entries are warned about
// individually.
func buildController(cfg *config.RunConfig, console *output.Console) (*load.Controller, error) {
	if !cfg.Load.Enabled {
		return nil, nil
	}

	pattern, ok := load.ParsePattern(cfg.Load.Pattern)
	if !ok {
		console.Warnf("unknown load pattern %q, using constant", cfg.Load.Pattern)
	}

	if pattern == load.PatternCustom {
		table, skipped := load.ParsePhases(cfg.Load.Phases)
		for _, idx := range skipped {
			console.Warnf("skipping malformed phase entry %d in %q", idx, cfg.Load.Phases)
		}
		if strings.TrimSpace(cfg.Load.Phases) == "" {
			console.Warnf("no custom phases defined, using default phase")
		}
		return load.NewCustomController(table)
	}

	return load.NewController(pattern, load.SimpleConfig{
		Initial:   cfg.Load.Initial,
		Final:     cfg.Load.Final,
		Duration:  cfg.Load.Duration.GetDuration(60 * time.Second),
		StepCount: cfg.Load.StepCount,
		Frequency: cfg.Load.Frequency,
		Base:      cfg.Load.Base,
	})
}

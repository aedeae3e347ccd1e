// Package main provides the browserdiag command: it drives a browser page
// through the diagnostic orchestrator and batch executor, prints structure
// and performance reports, and optionally serves Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/microsoft/playwright-mcp-sub003/pkg/batch"
	"github.com/microsoft/playwright-mcp-sub003/pkg/config"
	"github.com/microsoft/playwright-mcp-sub003/pkg/diagnostics"
	"github.com/microsoft/playwright-mcp-sub003/pkg/engine"
	"github.com/microsoft/playwright-mcp-sub003/pkg/logging"
	"github.com/microsoft/playwright-mcp-sub003/pkg/tools"
)

const version = "0.1.0"

// Options holds the command line configuration.
type Options struct {
	ConfigPath  string
	URL         string
	BatchPath   string
	MetricsAddr string
	Headed      bool
	HealthCheck bool
	ShowVersion bool
}

func main() {
	opts := parseFlags()

	if opts.ShowVersion {
		fmt.Printf("browserdiag v%s\n", version)
		return
	}

	if err := opts.validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		cancel()
		log.Fatalf("browserdiag: %v", err)
	}
}

func parseFlags() *Options {
	opts := &Options{}

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to YAML configuration file (optional)")
	flag.StringVar(&opts.URL, "url", "", "URL to navigate to before running diagnostics")
	flag.StringVar(&opts.BatchPath, "batch", "", "Path to a YAML batch file of tool steps to execute")
	flag.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on (e.g. :9090)")
	flag.BoolVar(&opts.Headed, "headed", false, "Run the browser with a visible window")
	flag.BoolVar(&opts.HealthCheck, "health", true, "Print a health report after diagnostics")
	flag.BoolVar(&opts.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "browserdiag - browser diagnostics and batch execution\n\n")
		fmt.Fprintf(os.Stderr, "Usage: browserdiag [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  browserdiag -url https://example.com\n")
		fmt.Fprintf(os.Stderr, "  browserdiag -url https://example.com -batch steps.yaml\n")
		fmt.Fprintf(os.Stderr, "  browserdiag -config diag.yaml -metrics-addr :9090\n")
	}

	flag.Parse()
	return opts
}

func (o *Options) validate() error {
	if o.URL == "" && o.BatchPath == "" {
		return fmt.Errorf("nothing to do: provide -url and/or -batch")
	}
	if o.BatchPath != "" {
		if _, err := os.Stat(o.BatchPath); err != nil {
			return fmt.Errorf("batch file: %w", err)
		}
	}
	return nil
}

func run(ctx context.Context, opts *Options) error {
	logger, err := logging.NewLogger("browserdiag")
	if err != nil {
		logger = logging.Discard("browserdiag")
	}
	defer logger.Close()

	cfg, err := config.LoadFile(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	manager, err := config.NewManager(cfg, logger)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := diagnostics.NewMetrics(registry)
	if opts.MetricsAddr != "" {
		go serveMetrics(opts.MetricsAddr, registry, logger)
	}

	runner := engine.NewRunner()
	if err := runner.Initialize(); err != nil {
		return fmt.Errorf("starting browser runtime: %w", err)
	}
	defer runner.Shutdown()

	eng, err := runner.NewPageEngine(engine.LaunchOptions{Headless: !opts.Headed})
	if err != nil {
		return fmt.Errorf("launching page: %w", err)
	}
	defer eng.Dispose(context.WithoutCancel(ctx))

	orch := diagnostics.NewOrchestrator(eng, manager, logger, metrics)
	if err := orch.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing diagnostics: %w", err)
	}
	defer orch.Dispose(context.WithoutCancel(ctx))

	if opts.URL != "" {
		if err := eng.Navigate(ctx, opts.URL); err != nil {
			return fmt.Errorf("navigating to %s: %w", opts.URL, err)
		}
		result := orch.RunAnalysis(ctx)
		if err := printJSON("analysis", result); err != nil {
			return err
		}
	}

	if opts.BatchPath != "" {
		if err := runBatch(ctx, opts.BatchPath, eng, manager, orch, metrics, logger); err != nil {
			return err
		}
	}

	if opts.HealthCheck {
		if err := printJSON("health", orch.PerformHealthCheck()); err != nil {
			return err
		}
	}
	return nil
}

// batchFile is the on-disk shape of a -batch input.
type batchFile struct {
	Expectation map[string]interface{} `yaml:"expectation"`
	Steps       []batch.Step           `yaml:"steps"`
}

func runBatch(ctx context.Context, path string, eng engine.Engine, manager *config.Manager, orch *diagnostics.Orchestrator, metrics *diagnostics.Metrics, logger *logging.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading batch file: %w", err)
	}
	var file batchFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing batch file: %w", err)
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry); err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	executor := batch.NewExecutor(registry, tools.NewTextSinkFactory(), manager, orch.Enrichment(), metrics, logger)
	result, err := executor.Execute(ctx, tools.NewContext(eng), file.Steps, file.Expectation)
	if err != nil {
		return fmt.Errorf("batch rejected: %w", err)
	}
	return printJSON("batch", result)
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Infof("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorf("metrics server: %v", err)
	}
}

func printJSON(label string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s report: %w", label, err)
	}
	fmt.Printf("--- %s ---\n%s\n", label, data)
	return nil
}

// Package main provides the harness command: it loads layered configuration,
// runs the built-in smoke class once per requested browser and writes a JSON
// report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entrhq/harness/pkg/browser"
	"github.com/entrhq/harness/pkg/capture"
	"github.com/entrhq/harness/pkg/config"
	"github.com/entrhq/harness/pkg/lifecycle"
	"github.com/entrhq/harness/pkg/logging"
)

const version = "0.1.0"

// errTestsFailed is returned when the run completed but not every test passed.
var errTestsFailed = errors.New("tests failed")

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigDir   string
	Env         string
	Parallelism int
	Browsers    string
	Run         string
	Skip        string
	OutputDir   string
	MetricsAddr string
	Headless    bool
	ShowVersion bool

	// headlessSet records an explicit -headless, which beats the headless key
	headlessSet bool
}

// launcherFunc builds the browser launcher once headless mode is resolved.
type launcherFunc func(headless bool) browser.Launcher

func main() {
	cfg := parseFlags(os.Args[1:])

	if cfg.ShowVersion {
		fmt.Printf("harness v%s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pw *browser.PlaywrightLauncher
	err := run(ctx, cfg, func(headless bool) browser.Launcher {
		pw = browser.NewPlaywrightLauncher(browser.PlaywrightOptions{Headless: headless})
		return pw
	}, os.Stdout)
	if pw != nil {
		if serr := pw.Shutdown(); serr != nil {
			log.Printf("driver shutdown failed: %v", serr)
		}
	}
	if err != nil {
		log.Printf("harness: %v", err)
		stop()
		os.Exit(1)
	}
}

// parseFlags parses command line flags
func parseFlags(args []string) *CLIConfig {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet("harness", flag.ExitOnError)

	fs.StringVar(&cfg.ConfigDir, "config", "config", "Directory holding config.yaml and <env>.yaml")
	fs.StringVar(&cfg.Env, "env", "", "Environment layer to load (default $HARNESS_ENV or dev)")
	fs.IntVar(&cfg.Parallelism, "parallel", 1, "Number of classes to run concurrently")
	fs.StringVar(&cfg.Browsers, "browsers", "", "Comma-separated browsers to run on (default: browser key)")
	fs.StringVar(&cfg.Run, "run", "", "Comma-separated glob patterns of tests to run")
	fs.StringVar(&cfg.Skip, "skip", "", "Comma-separated glob patterns of tests to skip")
	fs.StringVar(&cfg.OutputDir, "output", "harness-output", "Directory for the report and failure artifacts")
	fs.StringVar(&cfg.MetricsAddr, "metrics", "", "Serve Prometheus metrics on this address while running")
	fs.BoolVar(&cfg.Headless, "headless", true, "Run local browsers headless")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "harness - browser smoke runner\n\n")
		fmt.Fprintf(os.Stderr, "Usage: harness [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  harness -env qa\n")
		fmt.Fprintf(os.Stderr, "  harness -env qa -browsers chrome,firefox -parallel 2\n")
	}

	_ = fs.Parse(args)
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "headless" {
			cfg.headlessSet = true
		}
	})
	return cfg
}

// run executes the smoke classes and writes the report.
func run(ctx context.Context, cfg *CLIConfig, newLauncher launcherFunc, out io.Writer) error {
	p, err := config.Load(cfg.ConfigDir, cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(p)
	if err != nil {
		return err
	}
	defer logger.Close()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, logger)
		defer srv.Close()
	}

	filter, err := lifecycle.NewFilter(splitList(cfg.Run), splitList(cfg.Skip))
	if err != nil {
		return fmt.Errorf("invalid test filter: %w", err)
	}

	sink, err := capture.DirSinkFromConfig(p, filepath.Join(cfg.OutputDir, "artifacts"))
	if err != nil {
		return err
	}
	if perr := sink.Parameter("Env", p.Env()); perr != nil {
		logger.Warnf("failed to record env parameter: %v", perr)
	}

	headless := cfg.Headless
	if !cfg.headlessSet {
		headless = config.Bool(p, config.KeyHeadless, headless)
	}

	registry := browser.NewRegistry(browser.NewFactory(newLauncher(headless), logger.Named("browser")), logger.Named("registry"))
	defer func() {
		if cerr := registry.CloseAll(); cerr != nil {
			logger.Warnf("closing leftover sessions: %v", cerr)
		}
	}()

	orch, err := lifecycle.NewOrchestrator(registry, p,
		capture.NewCapturer(sink, logger.Named("capture"), capture.Options{}), logger.Named("lifecycle"))
	if err != nil {
		return err
	}

	browsers := splitList(cfg.Browsers)
	if len(browsers) == 0 {
		browsers = []string{config.String(p, config.KeyBrowser, config.DefaultBrowser)}
	}
	classes := make([]lifecycle.Class, 0, len(browsers))
	for _, name := range browsers {
		classes = append(classes, smokeClass(name))
	}

	logger.Infof("env=%s browsers=%s parallel=%d", p.Env(), strings.Join(browsers, ","), cfg.Parallelism)
	report := orch.Run(ctx, classes, lifecycle.RunOptions{Parallelism: cfg.Parallelism, Filter: filter})
	report.Env = p.Env()

	path, err := lifecycle.WriteReport(cfg.OutputDir, report)
	if err != nil {
		return err
	}

	s := report.Summary
	fmt.Fprintf(out, "%d passed, %d failed, %d skipped (%d attempts) in %s\n",
		s.Passed, s.Failed, s.Skipped, s.Attempts, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "report: %s\n", path)

	if !s.OK() {
		return errTestsFailed
	}
	return nil
}

// newLogger opens the run log under log.file.path and applies log.level.
func newLogger(p config.Provider) (*logging.Logger, error) {
	if dir := config.String(p, config.KeyLogFilePath, ""); dir != "" {
		if err := logging.SetLogDirectory(dir); err != nil {
			return nil, fmt.Errorf("failed to set log directory: %w", err)
		}
	}

	logger, err := logging.NewLogger("harness")
	if err != nil {
		log.Printf("file logging unavailable: %v", err)
	}

	if raw := config.String(p, config.KeyLogLevel, ""); raw != "" {
		level, lerr := logging.ParseLevel(raw)
		if lerr != nil {
			return nil, fmt.Errorf("invalid %s: %w", config.KeyLogLevel, lerr)
		}
		logger.SetLevel(level)
	}
	return logger, nil
}

func serveMetrics(addr string, logger *logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warnf("metrics server stopped: %v", err)
		}
	}()
	return srv
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Package cli implements the flowmaps-data command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/flowmaps/flowmaps-data/internal/config"
	"github.com/flowmaps/flowmaps-data/internal/domain"
	"github.com/flowmaps/flowmaps-data/internal/fetch"
	"github.com/flowmaps/flowmaps-data/internal/logger"
	"github.com/flowmaps/flowmaps-data/internal/metrics"
	"github.com/flowmaps/flowmaps-data/internal/query"
	"github.com/flowmaps/flowmaps-data/internal/transport/eve"
	"github.com/flowmaps/flowmaps-data/internal/usecase/covid"
	"github.com/flowmaps/flowmaps-data/internal/usecase/dataset"
	"github.com/flowmaps/flowmaps-data/internal/usecase/layer"
	"github.com/flowmaps/flowmaps-data/internal/usecase/mobility"
	"github.com/flowmaps/flowmaps-data/internal/usecase/population"
	"github.com/flowmaps/flowmaps-data/internal/usecase/risk"
	"github.com/flowmaps/flowmaps-data/internal/usecase/zone"
	"github.com/flowmaps/flowmaps-data/internal/version"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// globalOptions are the root persistent flags.
type globalOptions struct {
	configPath  string
	baseURL     string
	logLevel    string
	quiet       bool
	timeout     time.Duration
	pageSize    int
	metricsFile string
	printURL    bool
}

// app is the composition root of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	opts   globalOptions

	logger   *zap.Logger
	registry *prometheus.Registry
	textfile string
	cancel   context.CancelFunc

	layers     *layer.Service
	covid      *covid.Service
	datasets   *dataset.Service
	mobility   *mobility.Service
	zones      *zone.Service
	population *population.Service
	risk       *risk.Service
}

// Run executes one command line and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr, logger: zap.NewNop()}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.finish()
	if err != nil {
		a.logger.Debug("command failed", zap.Error(err))
		color.New(color.FgRed, color.Bold).Fprintf(stderr, "Error: %v\n", err)
		return ExitCode(err)
	}
	return ExitOK
}

// ExitCode maps an error to a process exit status: bad parameters and
// unsupported formats exit with usage status, everything else with 1.
func ExitCode(err error) int {
	var ue *usageError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &ue),
		errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrUnsupportedFormat):
		return ExitUsage
	default:
		return ExitError
	}
}

// usageError marks command line mistakes detected by flag parsing.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "flowmaps-data",
		Short: "Download COVID-19, population, layer and mobility data from the FlowMaps API",
		Long: `flowmaps-data queries the FlowMaps REST API, pages through results,
joins case, population and mobility data where needed, and writes CSV, JSON
or Parquet files.

Examples:
  flowmaps-data layers list
  flowmaps-data layers describe --layer cnig_provincias --provenance
  flowmaps-data covid19 download --ev ES.covid_cpro --output-file out.csv
  flowmaps-data daily_mobility download --source-layer cnig_provincias --target-layer cnig_provincias \
      --start-date 2020-10-10 --end-date 2020-10-16 --output-file out.csv
  flowmaps-data zone_movements download --layer mitma_mov --start-date 2020-10-10 --output-file out.parquet --output-format parquet
  flowmaps-data risk download --source-layer cnig_provincias --target-layer cnig_provincias \
      --ev ES.covid_cpro --date 2020-10-10 --output-file risk.csv`,
		Version:           version.String(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.opts.configPath, "config", "", "YAML config file (default: config/<ENV>.yaml when present)")
	pf.StringVar(&a.opts.baseURL, "base-url", "", "API base URL (default "+config.DefaultBaseURL+")")
	pf.StringVar(&a.opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVarP(&a.opts.quiet, "quiet", "q", false, "do not log download progress")
	pf.DurationVar(&a.opts.timeout, "timeout", 0, "abort the command after this long (0 = no limit)")
	pf.IntVar(&a.opts.pageSize, "page-size", 0, "documents requested per page")
	pf.StringVar(&a.opts.metricsFile, "metrics-file", "", "write request metrics to this Prometheus textfile on exit")
	pf.BoolVar(&a.opts.printURL, "print-url", false, "print the URL of every API query")

	root.AddCommand(
		a.layersCommand(),
		a.covidCommand(),
		a.datasetsCommand(),
		a.hourlyCommand(),
		a.dailyCommand(),
		a.zoneCommand(),
		a.populationCommand(),
		a.riskCommand(),
	)
	return root
}

// setup loads configuration and wires the services for the command about
// to run.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	env := config.GetEnv()
	cfg, err := config.Load(env, a.opts.configPath)
	if err != nil {
		return err
	}
	if err := a.override(cmd.Flags(), &cfg); err != nil {
		return err
	}

	lg, err := logger.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return err
	}
	lg, _ = logger.WithRunID(lg)
	a.logger = lg

	loc, err := query.LoadLocation(cfg.TimeZone)
	if err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.textfile = cfg.Metrics.TextfilePath
	m, err := metrics.NewFetch(a.registry)
	if err != nil {
		return err
	}

	client, err := eve.NewClient(eve.Config{
		BaseURL:           cfg.API.BaseURL,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Logger:            lg,
		Metrics:           m,
	})
	if err != nil {
		return err
	}
	f := fetch.New(client, cfg.API.PageSize).WithMetrics(m)
	if cfg.ProgressEnabled() {
		f.WithProgress(fetch.NewLogProgress(lg, clockwork.NewRealClock(), cfg.ProgressInterval()))
	}
	if a.opts.printURL {
		f.WithRequestEcho(a.stdout)
	}

	b := query.NewBuilder(loc)
	a.layers = layer.New(f, b)
	a.covid = covid.New(f, b)
	a.datasets = dataset.New(f, b)
	a.mobility = mobility.New(f, b)
	a.zones = zone.New(f, b)
	a.population = population.New(f, b)
	a.risk = risk.New(f, b)

	ctx := logger.ContextWithLogger(cmd.Context(), lg)
	if t := cfg.Timeout(); t > 0 {
		ctx, a.cancel = context.WithTimeout(ctx, t)
	}
	cmd.SetContext(ctx)

	lg.Debug("command started",
		zap.String("command", cmd.CommandPath()),
		zap.String("version", version.Version),
		zap.String("env", env),
		zap.String("base_url", client.BaseURL()),
		zap.Int("page_size", f.PageSize()),
		zap.String("time_zone", loc.String()),
	)
	return nil
}

// override applies explicitly set flags on top of the loaded configuration.
func (a *app) override(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed("base-url") {
		cfg.API.BaseURL = strings.TrimRight(a.opts.baseURL, "/")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.opts.logLevel
	}
	if flags.Changed("timeout") {
		cfg.API.TimeoutSec = int(a.opts.timeout.Round(time.Second) / time.Second)
		if a.opts.timeout > 0 && cfg.API.TimeoutSec == 0 {
			cfg.API.TimeoutSec = 1
		}
	}
	if flags.Changed("page-size") {
		if a.opts.pageSize <= 0 {
			return &usageError{err: fmt.Errorf("--page-size must be positive, got %d", a.opts.pageSize)}
		}
		cfg.API.PageSize = a.opts.pageSize
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.TextfilePath = a.opts.metricsFile
	}
	if a.opts.quiet {
		disabled := false
		cfg.Progress.Enabled = &disabled
	}
	if err := cfg.Validate(); err != nil {
		return &usageError{err: err}
	}
	return nil
}

// finish releases per-invocation resources and dumps metrics.
func (a *app) finish() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.registry != nil {
		if err := metrics.WriteTextfile(a.registry, a.textfile); err != nil {
			a.logger.Warn("metrics not written", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// Package monitor orchestrates query execution: it drives the platform
// clients, caches raw results, downloads screenshots, assembles and renders
// reports, writes IOC artifacts and records each run in the history ledger.
package monitor

import (
	"errors"
	"time"

	"github.com/MalasadaTech/masq-monitor/internal/config"
	"github.com/MalasadaTech/masq-monitor/internal/extensions"
	"github.com/MalasadaTech/masq-monitor/internal/history"
	"github.com/MalasadaTech/masq-monitor/internal/ioc"
	"github.com/MalasadaTech/masq-monitor/internal/logger"
	"github.com/MalasadaTech/masq-monitor/internal/metrics"
	"github.com/MalasadaTech/masq-monitor/internal/platform"
	"github.com/MalasadaTech/masq-monitor/internal/report"
	"github.com/MalasadaTech/masq-monitor/internal/storage"
)

// Sentinel errors surfaced by the monitor.
var (
	ErrNilConfig       = errors.New("config is required")
	ErrUnknownRunDir   = errors.New("run directory does not match any configured query or group")
	ErrNoCachedResults = errors.New("run directory has no cached results")
)

// runDirStampLayout names run directories output/<name>_<stamp>.
const runDirStampLayout = "20060102_150405"

// ClientFactory builds the client for a platform identifier. Injected so
// tests and offline commands can substitute stubs for the live APIs.
type ClientFactory func(platformName string) (platform.Client, error)

// Monitor wires the pipeline together. All collaborators beyond the config
// and client factory are optional; absent ones are skipped.
type Monitor struct {
	cfg        *config.Config
	log        logger.Interface
	clients    ClientFactory
	assembler  *report.Assembler
	renderer   *report.Renderer
	iocWriter  *ioc.Writer
	history    *history.RunRepository
	metrics    *metrics.Metrics
	store      *storage.ResultStore
	extensions *extensions.Runner
	now        func() time.Time
}

// Options configures a Monitor.
type Options struct {
	Config  *config.Config
	Logger  logger.Interface
	Clients ClientFactory
	// History records completed runs when set.
	History *history.RunRepository
	// Metrics receives run/record/IOC counters when set.
	Metrics *metrics.Metrics
	// Store indexes normalized records when set.
	Store *storage.ResultStore
	// Extensions run after each query run, detached from it.
	Extensions *extensions.Runner
	// Now overrides the clock (tests).
	Now func() time.Time
}

// New builds a Monitor.
func New(opts Options) (*Monitor, error) {
	if opts.Config == nil {
		return nil, ErrNilConfig
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOp()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Clients == nil {
		opts.Clients = func(platformName string) (platform.Client, error) {
			return platform.New(platformName, platform.Options{Logger: opts.Logger})
		}
	}

	renderer, err := report.NewRenderer(report.NewRegistry(), opts.Logger)
	if err != nil {
		return nil, err
	}

	return &Monitor{
		cfg:        opts.Config,
		log:        opts.Logger.WithComponent("monitor"),
		clients:    opts.Clients,
		assembler:  report.NewAssembler(opts.Config, opts.Logger),
		renderer:   renderer,
		iocWriter:  ioc.NewWriter(opts.Logger),
		history:    opts.History,
		metrics:    opts.Metrics,
		store:      opts.Store,
		extensions: opts.Extensions,
		now:        opts.Now,
	}, nil
}

// RunOptions tweaks a single invocation.
type RunOptions struct {
	// TLPLevel optionally overrides the report level; invalid values fall
	// through the usual default chain.
	TLPLevel string
	// Days limits results to the last N days. Zero uses the global default;
	// negative disables the date filter entirely.
	Days int
	// SkipScreenshots disables screenshot downloads for urlscan runs.
	SkipScreenshots bool
}

// since resolves the search window start for a run beginning at started.
func (m *Monitor) since(opts RunOptions, started time.Time) time.Time {
	days := opts.Days
	if days == 0 {
		days = m.cfg.DefaultDays
	}
	if days <= 0 {
		return time.Time{}
	}
	return started.AddDate(0, 0, -days)
}

// Result describes one completed run.
type Result struct {
	Name        string
	RunDir      string
	ReportPath  string
	Report      *report.Report
	IOCs        *ioc.Set
	RecordCount int
}

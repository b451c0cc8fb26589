package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"iptv-check/work/checker"
	"iptv-check/work/client"
	"iptv-check/work/config"
	"iptv-check/work/database"
	"iptv-check/work/logger"
	"iptv-check/work/media"
	"iptv-check/work/metrics"
	"iptv-check/work/report"
	"iptv-check/work/types"
)

var (
	Version = "v0.1.0" // default version
)

const (
	exitOK        = 0
	exitInput     = 1
	exitSetup     = 2
	exitInterrupt = 130

	defaultConfigPath = "iptv_checker_config.json"
)

// options holds the raw command-line values. Only flags the user actually
// set override the config file.
type options struct {
	configPath string
	dbPath     string
	debug      bool
	debugLog   string

	file     string
	database bool
	recheck  string

	output      string
	workers     int
	timeout     int
	ocr         bool
	noSkip      bool
	logFormat   string
	rate        int
	statusAddr  string
	metricsFile string
	obfuscate   bool
	include     string
	exclude     string
	liveOnly    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and maps the outcome to an exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err != nil {
		fmt.Fprintf(stderr, "[!] %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, types.ErrInterrupted):
		return exitInterrupt
	case types.IsSetupError(err):
		return exitSetup
	default:
		return exitInput
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "iptv-check",
		Short: "Validate IPTV M3U playlists",
		Long: `Check every stream of an M3U playlist and write the working ones to a
new playlist, keeping their original metadata.

Examples:
  # Check a local playlist with 10 workers
  iptv-check -f channels.m3u

  # Check a remote playlist with on-screen error detection
  iptv-check -f http://example.com/list.m3u --ocr -w 5

  # Check every playlist stored with 'iptv-check links add'
  iptv-check -d

  # Remove dead channels from an existing playlist in place
  iptv-check -r updated.m3u`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, stdout)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", defaultConfigPath, "configuration file")
	pf.StringVar(&opts.dbPath, "links-db", "", "link database path (overrides the config file)")
	pf.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	pf.StringVar(&opts.debugLog, "debug-log", "", "write diagnostic logs to this file instead of stderr")

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "playlist file path or URL to check")
	f.BoolVarP(&opts.database, "database", "d", false, "check every playlist stored in the link database")
	f.StringVarP(&opts.recheck, "recheck", "r", "", "recheck an existing output playlist in place")
	cmd.MarkFlagsMutuallyExclusive("file", "database", "recheck")
	cmd.MarkFlagsOneRequired("file", "database", "recheck")

	f.StringVarP(&opts.output, "output", "o", config.DefaultOutput, "output playlist")
	f.IntVarP(&opts.workers, "workers", "w", config.DefaultWorkers,
		fmt.Sprintf("parallel checks (%d-%d)", config.MinWorkers, config.MaxWorkers))
	f.IntVarP(&opts.timeout, "timeout", "t", 5, "capture time per stream in seconds")
	f.BoolVar(&opts.ocr, "ocr", false, "detect on-screen error messages (needs tesseract)")
	f.BoolVar(&opts.noSkip, "no-skip", false, "recheck streams already in the output")
	f.StringVar(&opts.logFormat, "log-format", "name", "show channels by \"name\" or \"url\"")
	f.IntVar(&opts.rate, "rate", 0, "max checks started per second, 0 for no limit")
	f.StringVar(&opts.statusAddr, "status-addr", "", "serve live status and metrics on this address, e.g. :9090")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file at the end of the run")
	f.BoolVar(&opts.obfuscate, "obfuscate-urls", false, "hide URL paths and queries in logs")
	f.StringVar(&opts.include, "include", "", "only check channels whose name or group matches this regex")
	f.StringVar(&opts.exclude, "exclude", "", "skip channels whose name or group matches this regex")
	f.BoolVar(&opts.liveOnly, "live-only", false, "skip series and VOD entries")

	cmd.AddCommand(newLinksCmd(opts, stdout), newHistoryCmd(opts, stdout), newInitConfigCmd(stdout))
	return cmd
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.LoadConfig(opts.configPath)

	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}

	if changed("output") {
		cfg.Output = opts.output
	}
	if changed("workers") {
		cfg.Workers = opts.workers
	}
	if changed("timeout") {
		cfg.Timeout = time.Duration(opts.timeout) * time.Second
	}
	if changed("ocr") {
		cfg.OCR = opts.ocr
	}
	if changed("no-skip") {
		cfg.NoSkip = opts.noSkip
	}
	if changed("log-format") {
		cfg.LogFormat = opts.logFormat
	}
	if changed("rate") {
		cfg.RateLimit = opts.rate
	}
	if changed("status-addr") {
		cfg.StatusAddr = opts.statusAddr
	}
	if changed("metrics-file") {
		cfg.MetricsFile = opts.metricsFile
	}
	if changed("obfuscate-urls") {
		cfg.ObfuscateUrls = opts.obfuscate
	}
	if changed("include") {
		cfg.Include = opts.include
	}
	if changed("exclude") {
		cfg.Exclude = opts.exclude
	}
	if changed("live-only") {
		cfg.LiveOnly = opts.liveOnly
	}
	if opts.dbPath != "" {
		cfg.DatabasePath = opts.dbPath
	}
	if opts.debug {
		cfg.Debug = true
	}
	if opts.debugLog != "" {
		cfg.DebugLogPath = opts.debugLog
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging routes diagnostics to stderr or the debug log file. The
// returned func closes the file.
func setupLogging(cfg *config.Config) (func(), error) {
	level := "WARN"
	if cfg.Debug {
		level = "DEBUG"
	}

	if cfg.DebugLogPath == "" {
		logger.SetLogLevel(level)
		logger.SetOutput(os.Stderr)
		return func() {}, nil
	}

	f, err := os.OpenFile(cfg.DebugLogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open debug log: %w", err)
	}
	logger.SetLogLevel("DEBUG")
	logger.SetOutput(f)
	return func() {
		logger.SetOutput(os.Stderr)
		f.Close()
	}, nil
}

func runCheck(cmd *cobra.Command, opts *options, stdout io.Writer) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	printer := report.NewPrinter(stdout, cfg.LogFormat, cfg.ObfuscateUrls)
	printer.Infof("IPTV-Check %s", Version)

	tools, err := media.LookupTools(cfg)
	if err != nil {
		return err
	}

	req := checker.Request{Mode: checker.ModeFile, Input: opts.file}
	switch {
	case opts.database:
		req = checker.Request{Mode: checker.ModeDatabase}
	case opts.recheck != "":
		req = checker.Request{Mode: checker.ModeRecheck, Input: opts.recheck}
	}

	deps := checker.ToolDeps(tools)
	deps.Fetcher = client.NewHeaderSettingClient(cfg)
	deps.Metrics = metrics.New()
	deps.Printer = printer

	db, err := database.Open(cfg.DatabasePath)
	switch {
	case err != nil && req.Mode == checker.ModeDatabase:
		return types.NewInputError(cfg.DatabasePath, err)
	case err != nil:
		logger.Warn("[MAIN] Run history disabled: %v", err)
	default:
		logger.Debug("[MAIN] Run history in %s", db.Path())
		deps.DB = db
		defer db.Close()
	}

	logger.Debug("[MAIN] workers=%d timeout=%s ocr=%v output=%s rate=%d", cfg.Workers, cfg.Timeout, cfg.OCR, cfg.Output, cfg.RateLimit)

	c := checker.New(cfg, deps)

	if cfg.StatusAddr != "" {
		srv := startStatusServer(cfg.StatusAddr, &statusServer{checker: c, metrics: deps.Metrics, db: deps.DB})
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = c.Run(ctx, req)
	if errors.Is(err, types.ErrInterrupted) {
		printer.Warnf("Interrupted. Stopped all checks and removed temporary files.")
	}
	return err
}

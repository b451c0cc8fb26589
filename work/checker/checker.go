package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"iptv-check/work/cache"
	"iptv-check/work/classifier"
	"iptv-check/work/config"
	"iptv-check/work/database"
	"iptv-check/work/filter"
	"iptv-check/work/logger"
	"iptv-check/work/media"
	"iptv-check/work/metrics"
	"iptv-check/work/parser"
	"iptv-check/work/probe"
	"iptv-check/work/report"
	"iptv-check/work/scheduler"
	"iptv-check/work/skipfilter"
	"iptv-check/work/source"
	"iptv-check/work/types"
	"iptv-check/work/writer"
)

const (
	staleArtifactAge  = time.Hour
	offlineRetention  = 30 * 24 * time.Hour
	variantCacheSize  = 1000
	variantCacheTTL   = time.Hour
	historyWarnFormat = "{checker - Run} failed to record run history: %v"
)

// Mode selects where the playlist comes from and where results go.
type Mode string

const (
	ModeFile     Mode = "file"     // a local path or URL, results appended to the output
	ModeDatabase Mode = "database" // every stored link, results appended to the output
	ModeRecheck  Mode = "recheck"  // an existing output, rewritten in place
)

// Request describes one run.
type Request struct {
	Mode  Mode
	Input string // path or URL for ModeFile, output path for ModeRecheck
}

// Fetcher downloads playlists and manifests.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Deps are the collaborators of a run. Only Capturer is required; Sampler
// and Recognizer are required with OCR.
type Deps struct {
	Capturer   media.Capturer
	Sampler    media.FrameSampler
	Recognizer media.Recognizer
	Analyzer   media.Analyzer
	Resolver   media.URLResolver
	Fetcher    Fetcher
	DB         *database.DB
	Metrics    *metrics.Recorder
	Printer    *report.Printer
}

// ToolDeps fills the external program collaborators from ts, leaving the
// interfaces nil for programs that are not available.
func ToolDeps(ts *media.Toolset) Deps {
	var d Deps
	if ts == nil {
		return d
	}
	if ts.FFmpeg != nil {
		d.Capturer = ts.FFmpeg
		d.Sampler = ts.FFmpeg
	}
	if ts.FFprobe != nil {
		d.Analyzer = ts.FFprobe
	}
	if ts.Tesseract != nil {
		d.Recognizer = ts.Tesseract
	}
	if ts.YtDlp != nil {
		d.Resolver = ts.YtDlp
	}
	return d
}

// State is the lifecycle stage reported by Status.
type State string

const (
	StateIdle        State = "idle"
	StateLoading     State = "loading"
	StateRunning     State = "running"
	StateFinished    State = "finished"
	StateInterrupted State = "interrupted"
	StateFailed      State = "failed"
)

// Status is a snapshot of the current run for the status server.
type Status struct {
	RunID     string    `json:"run_id,omitempty"`
	Source    string    `json:"source,omitempty"`
	Mode      Mode      `json:"mode,omitempty"`
	State     State     `json:"state"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Online    int64     `json:"online"`
	Skipped   int       `json:"skipped"`
	scheduler.Stats
}

// Checker validates playlists.
type Checker struct {
	cfg    *config.Config
	deps   Deps
	online *xsync.Counter

	mu     sync.RWMutex
	status Status
	sched  *scheduler.Scheduler
}

// New creates a Checker.
func New(cfg *config.Config, deps Deps) *Checker {
	if deps.Printer == nil {
		deps.Printer = report.NewPrinter(io.Discard, cfg.LogFormat, cfg.ObfuscateUrls)
	}
	return &Checker{
		cfg:    cfg,
		deps:   deps,
		online: xsync.NewCounter(),
		status: Status{State: StateIdle},
	}
}

// Run validates the playlist selected by req. It returns an InputError when
// the playlist cannot be loaded, a SetupError when a required collaborator
// is missing, and an error wrapping types.ErrInterrupted when ctx is
// cancelled. Online entries written before an interrupt stay in the output
// for file and database modes.
//
// Parameters:
//   - ctx: cancelled on SIGINT/SIGTERM by the CLI
//   - req: the mode and, for file and recheck modes, the input location
//
// Returns:
//   - *report.Summary: the tally printed at the end of the run
//   - error: InputError, SetupError, types.ErrInterrupted or a write error
func (c *Checker) Run(ctx context.Context, req Request) (*report.Summary, error) {
	// collaborators and selection patterns are checked before any I/O
	pipeline, err := c.buildPipeline()
	if err != nil {
		return nil, err
	}

	selection, err := filter.New(filter.Options{
		Include:  c.cfg.Include,
		Exclude:  c.cfg.Exclude,
		LiveOnly: c.cfg.LiveOnly,
	})
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	started := time.Now()
	logger.SetRun(runID)
	defer logger.SetRun("")
	c.setStatus(func(s *Status) {
		*s = Status{RunID: runID, Mode: req.Mode, State: StateLoading, StartedAt: started}
	})
	c.online.Reset()

	// artifacts left by a killed run
	media.CleanupStale(c.cfg.TempDir, staleArtifactAge)

	src, err := c.load(ctx, req)
	if err != nil {
		c.setState(StateFailed)
		return nil, err
	}

	// parse once; the dialect is fixed for the whole input
	_, records, err := parser.ParseWithBase(src.Text, src.BaseURL)
	if err != nil {
		c.setState(StateFailed)
		return nil, types.NewInputError(src.Name, err)
	}
	parsed := len(records)

	outputPath := c.cfg.Output
	if req.Mode == ModeRecheck {
		outputPath = req.Input
	}

	skipped := 0
	if req.Mode != ModeRecheck && !c.cfg.NoSkip {
		set, err := skipfilter.Load(outputPath)
		if err != nil {
			logger.Warn("{checker - Run} skip filter disabled: %v", err)
		} else {
			records, skipped = set.Filter(records)
		}
	}

	// A recheck rewrites the whole file, so every entry in it is probed.
	filtered := 0
	if req.Mode != ModeRecheck {
		records, filtered = selection.Apply(records)
	}

	c.deps.Metrics.SetChannels("parsed", parsed)
	c.deps.Metrics.SetChannels("skipped", skipped)
	c.deps.Metrics.SetChannels("filtered", filtered)
	c.deps.Metrics.SetChannels("dispatched", len(records))

	// recheck stages into a part file; other modes append in place
	var out *writer.Writer
	if req.Mode == ModeRecheck {
		out = writer.NewStaged(outputPath)
	} else {
		out = writer.New(outputPath)
	}

	var uncheckable *writer.Writer
	if c.cfg.UncheckablePath != "" {
		uncheckable = writer.NewFresh(c.cfg.UncheckablePath)
	}

	if c.deps.DB != nil {
		if err := c.deps.DB.StartRun(runID, src.Name, string(req.Mode), started); err != nil {
			logger.Warn(historyWarnFormat, err)
		}
	}

	summary := &report.Summary{
		RunID:      runID,
		Source:     src.Name,
		OutputPath: out.Path(),
		Total:      len(records),
		Skipped:    skipped,
		Filtered:   filtered,
		Recheck:    req.Mode == ModeRecheck,
	}

	sched := scheduler.New(pipeline, scheduler.Options{
		Workers:   c.cfg.Workers,
		RateLimit: c.cfg.RateLimit,
		Metrics:   c.deps.Metrics,
		OnProgress: func(ev types.Progress) {
			if ev.Classification == types.Online {
				c.online.Inc()
			}
			c.deps.Printer.Progress(ev)
		},
		OnResult: func(res types.ProbeResult) error {
			return c.record(runID, res, out, uncheckable, summary)
		},
	})

	c.mu.Lock()
	c.sched = sched
	c.status.Source = src.Name
	c.status.Skipped = skipped
	c.status.State = StateRunning
	c.mu.Unlock()

	if skipped > 0 {
		c.deps.Printer.Infof("Skipping %d channels already in %s", skipped, outputPath)
	}
	if filtered > 0 {
		c.deps.Printer.Infof("Excluding %d channels by name, group or content type", filtered)
	}
	c.deps.Printer.Infof("Checking %d channels with %d workers", len(records), c.cfg.Workers)

	// blocks until every record is checked or ctx is cancelled
	results, runErr := sched.Run(ctx, records)
	if runErr != nil {
		state, status := StateFailed, database.RunStatusFailed
		if errors.Is(runErr, types.ErrInterrupted) {
			state, status = StateInterrupted, database.RunStatusInterrupted
		}
		c.setState(state)

		if err := out.Abort(); err != nil {
			logger.Warn("{checker - Run} %v", err)
		}
		if uncheckable != nil {
			uncheckable.Abort()
		}
		c.finishHistory(runID, summary, status)
		return nil, runErr
	}

	for _, res := range results {
		if res.IsOnline() {
			summary.Online++
		}
	}

	if err := out.Commit(); err != nil {
		c.setState(StateFailed)
		c.finishHistory(runID, summary, database.RunStatusFailed)
		return nil, err
	}
	if uncheckable != nil {
		if err := uncheckable.Commit(); err != nil {
			logger.Warn("{checker - Run} %v", err)
		}
	}
	summary.OutputExists = out.Written() > 0

	c.deps.Metrics.SetChannels("online", summary.Online)
	c.finishHistory(runID, summary, database.RunStatusCompleted)
	if c.cfg.MetricsFile != "" {
		if err := c.deps.Metrics.WriteTextfile(c.cfg.MetricsFile); err != nil {
			logger.Warn("{checker - Run} failed to write metrics file: %v", err)
		}
	}

	c.setState(StateFinished)
	c.deps.Printer.Summary(*summary)
	logger.Info("[RUN] %s finished in %s: %d online of %d", runID, time.Since(started).Round(time.Second), summary.Online, summary.Total)
	return summary, nil
}

// Status returns a snapshot of the current or last run.
func (c *Checker) Status() Status {
	c.mu.RLock()
	status := c.status
	sched := c.sched
	c.mu.RUnlock()

	if sched != nil {
		status.Stats = sched.Stats()
	}
	status.Online = c.online.Value()
	return status
}

func (c *Checker) buildPipeline() (*Pipeline, error) {
	if c.deps.Capturer == nil {
		return nil, &types.SetupError{Missing: []string{"ffmpeg"}, Hint: "install ffmpeg and make sure it is on PATH"}
	}

	var cls *classifier.Classifier
	if c.cfg.OCR {
		var missing []string
		if c.deps.Sampler == nil {
			missing = append(missing, "ffmpeg")
		}
		if c.deps.Recognizer == nil {
			missing = append(missing, "tesseract")
		}
		if len(missing) > 0 {
			return nil, &types.SetupError{Missing: missing, Hint: "OCR needs ffmpeg and tesseract on PATH"}
		}
		cls = classifier.New(c.deps.Sampler, c.deps.Recognizer, c.deps.Analyzer, c.cfg.OCROffset)
	}

	var fetcher probe.Fetcher
	if c.deps.Fetcher != nil {
		fetcher = c.deps.Fetcher
	}

	engine := probe.NewEngine(c.deps.Capturer, fetcher, c.deps.Resolver, cache.NewCache(variantCacheSize, variantCacheTTL), probe.Options{
		TempDir:         c.cfg.TempDir,
		MinCaptureBytes: c.cfg.MinCaptureBytes,
		ObfuscateURLs:   c.cfg.ObfuscateUrls,
	})
	return NewPipeline(engine, cls, c.cfg.Timeout, c.cfg.ObfuscateUrls), nil
}

func (c *Checker) load(ctx context.Context, req Request) (*source.Source, error) {
	var links source.LinkStore
	if c.deps.DB != nil {
		links = c.deps.DB
	}
	loader := source.NewLoader(c.deps.Fetcher, links, c.cfg.RateLimit)
	loader.OnLinkFailure = func(f source.LinkFailure) {
		c.deps.Printer.Warnf("Failed to download '%s': %v", f.Name, f.Err)
	}

	switch req.Mode {
	case ModeFile:
		c.deps.Printer.Infof("Loading: %s", req.Input)
		return loader.FromPath(ctx, req.Input)
	case ModeRecheck:
		if source.IsRemote(req.Input) {
			return nil, types.NewInputError(req.Input, errors.New("recheck needs a local playlist"))
		}
		c.deps.Printer.Infof("Rechecking: %s", req.Input)
		return loader.FromPath(ctx, req.Input)
	case ModeDatabase:
		c.deps.Printer.Infof("Loading all playlists from the database...")
		return loader.FromDatabase(ctx)
	default:
		return nil, types.NewInputError(req.Input, fmt.Errorf("unknown mode %q", req.Mode))
	}
}

// record is the result sink. It runs on a single goroutine, in input
// order.
func (c *Checker) record(runID string, res types.ProbeResult, out, uncheckable *writer.Writer, summary *report.Summary) error {
	if res.IsOnline() {
		return out.Append(res.Channel)
	}

	if uncheckable != nil && writer.IsUncheckable(res.Channel.URL) {
		if err := uncheckable.Append(res.Channel); err != nil {
			logger.Warn("{checker - record} %v", err)
		} else {
			summary.Uncheckable++
			c.deps.Metrics.UncheckableAdded()
		}
	}

	if c.deps.DB != nil {
		name := parser.DisplayName(res.Channel)
		if err := c.deps.DB.MarkStreamOffline(runID, res.Channel.URL, name, res.Classification.Label(), res.Reason); err != nil {
			logger.Warn("{checker - record} %v", err)
		}
	}
	return nil
}

func (c *Checker) finishHistory(runID string, summary *report.Summary, status string) {
	if c.deps.DB == nil {
		return
	}
	if err := c.deps.DB.FinishRun(runID, summary.Total, summary.Skipped, summary.Online, status); err != nil {
		logger.Warn(historyWarnFormat, err)
	}
	if removed, err := c.deps.DB.CleanupOldOfflineStreams(offlineRetention); err != nil {
		logger.Warn(historyWarnFormat, err)
	} else if removed > 0 {
		logger.Debug("{checker - finishHistory} pruned %d old offline records", removed)
		if err := c.deps.DB.Vacuum(); err != nil {
			logger.Warn(historyWarnFormat, err)
		}
	}
}

func (c *Checker) setState(state State) {
	c.setStatus(func(s *Status) { s.State = state })
}

func (c *Checker) setStatus(fn func(*Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.status)
}

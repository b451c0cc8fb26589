package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/ratelimit"

	"iptv-check/work/logger"
	"iptv-check/work/metrics"
	"iptv-check/work/types"
)

const (
	MinWorkers = 1
	MaxWorkers = 20
)

// Checker runs the whole probe pipeline for one channel. Implementations
// must return promptly once ctx is cancelled.
type Checker interface {
	Check(ctx context.Context, index int, ch types.ChannelRecord) types.ProbeResult
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, index int, ch types.ChannelRecord) types.ProbeResult

func (f CheckerFunc) Check(ctx context.Context, index int, ch types.ChannelRecord) types.ProbeResult {
	return f(ctx, index, ch)
}

// Options configures a Scheduler.
type Options struct {
	Workers   int // concurrent pipelines, clamped to 1-20
	RateLimit int // pipelines started per second, 0 = unlimited

	// OnProgress is called after every finished probe, in completion order.
	OnProgress func(types.Progress)

	// OnResult is called with every result in input order. An error aborts
	// the run.
	OnResult func(types.ProbeResult) error

	Metrics *metrics.Recorder
}

// InFlight describes a running pipeline.
type InFlight struct {
	Index   int       `json:"index"`
	URL     string    `json:"url"`
	Started time.Time `json:"started"`
}

// Stats is a point-in-time view of a run.
type Stats struct {
	Total     int        `json:"total"`
	Completed int64      `json:"completed"`
	InFlight  []InFlight `json:"in_flight"`
}

// Scheduler fans channel probes out over a bounded worker pool.
type Scheduler struct {
	checker   Checker
	opts      Options
	inflight  *xsync.MapOf[int, InFlight]
	completed *xsync.Counter

	mu    sync.Mutex
	total int
}

// New creates a Scheduler.
func New(checker Checker, opts Options) *Scheduler {
	if opts.Workers < MinWorkers {
		opts.Workers = MinWorkers
	}
	if opts.Workers > MaxWorkers {
		opts.Workers = MaxWorkers
	}
	return &Scheduler{
		checker:   checker,
		opts:      opts,
		inflight:  xsync.NewMapOf[int, InFlight](),
		completed: xsync.NewCounter(),
	}
}

// Run probes every record exactly once and returns the results in input
// order. When ctx is cancelled no further probes start, running ones are
// told to stop, and Run returns types.ErrInterrupted without results.
//
// Parameters:
//   - ctx: cancelling it stops dispatch and interrupts running probes
//   - records: channels to check, in playlist order
//
// Returns:
//   - []types.ProbeResult: one result per record, in input order
//   - error: types.ErrInterrupted on cancel, or the first OnResult error
func (s *Scheduler) Run(ctx context.Context, records []types.ChannelRecord) ([]types.ProbeResult, error) {
	s.mu.Lock()
	s.total = len(records)
	s.mu.Unlock()

	if len(records) == 0 {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInterrupted, ctx.Err())
		}
		return nil, nil
	}

	// runCtx is cancelled by the caller or by the collector when a result
	// cannot be recorded, whichever comes first
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := ants.NewPool(s.opts.Workers, ants.WithPreAlloc(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	limiter := ratelimit.NewUnlimited()
	if s.opts.RateLimit > 0 {
		limiter = ratelimit.New(s.opts.RateLimit)
	}

	// the channel holds every result, so workers never block on a
	// collector that has stopped reading
	resultsCh := make(chan types.ProbeResult, len(records))
	collected := make(chan collectOutcome, 1)
	go func() {
		collected <- s.collect(runCtx, cancel, len(records), resultsCh)
	}()

	// dispatch in input order; Submit blocks while all workers are busy
	var wg sync.WaitGroup
	for i, rec := range records {
		if runCtx.Err() != nil {
			break
		}
		limiter.Take()
		if runCtx.Err() != nil {
			break
		}

		index, ch := i, rec
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			resultsCh <- s.runOne(runCtx, index, ch)
		})
		if err != nil {
			wg.Done()
			logger.Error("{scheduler - Run} failed to submit probe %d: %v", index, err)
			cancel()
			break
		}
	}

	// drain: running probes finish (or stop on cancel) before the
	// collector sees the closed channel
	wg.Wait()
	close(resultsCh)
	outcome := <-collected

	if outcome.err != nil {
		return nil, outcome.err
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInterrupted, ctx.Err())
	}
	return outcome.results, nil
}

func (s *Scheduler) runOne(ctx context.Context, index int, ch types.ChannelRecord) types.ProbeResult {
	s.inflight.Store(index, InFlight{Index: index, URL: ch.URL, Started: time.Now()})
	s.opts.Metrics.ProbeStarted()

	start := time.Now()
	res := s.checker.Check(ctx, index, ch)
	res.Index = index
	res.Channel = ch
	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}

	s.inflight.Delete(index)
	s.completed.Inc()
	s.opts.Metrics.ProbeFinished(res)
	return res
}

type collectOutcome struct {
	results []types.ProbeResult
	err     error
}

// collect is the only goroutine that emits progress and hands results to
// OnResult. Results are held in a reorder buffer until every earlier index
// has arrived, so OnResult sees input order.
func (s *Scheduler) collect(ctx context.Context, cancel context.CancelFunc, total int, in <-chan types.ProbeResult) collectOutcome {
	var (
		results  = make([]types.ProbeResult, 0, total)
		pending  = make(map[int]types.ProbeResult)
		next     = 0
		done     = 0
		firstErr error
	)

	for res := range in {
		done++
		results = append(results, res)

		if s.opts.OnProgress != nil {
			s.opts.OnProgress(types.Progress{
				Index:          res.Index,
				Done:           done,
				Total:          total,
				Classification: res.Classification,
				Result:         res,
			})
		}

		pending[res.Index] = res
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			if firstErr != nil || ctx.Err() != nil || s.opts.OnResult == nil {
				continue
			}
			if err := s.opts.OnResult(r); err != nil {
				firstErr = err
				logger.Error("{scheduler - collect} result sink failed: %v", err)
				cancel()
			}
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return collectOutcome{results: results, err: firstErr}
}

// Stats returns the current progress of the run.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	total := s.total
	s.mu.Unlock()

	stats := Stats{Total: total, Completed: s.completed.Value()}
	s.inflight.Range(func(_ int, v InFlight) bool {
		stats.InFlight = append(stats.InFlight, v)
		return true
	})
	sort.Slice(stats.InFlight, func(i, j int) bool { return stats.InFlight[i].Index < stats.InFlight[j].Index })
	return stats
}

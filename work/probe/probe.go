package probe

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"iptv-check/work/cache"
	"iptv-check/work/logger"
	"iptv-check/work/media"
	"iptv-check/work/parser"
	"iptv-check/work/types"
	"iptv-check/work/utils"
)

// Fetcher downloads small text resources such as HLS manifests.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

const (
	ReasonNoData       = "no data"
	ReasonTooSmall     = "empty or too small"
	ReasonUnsupported  = "unsupported scheme"
	ReasonPrepare      = "prepare error"
	ReasonInterrupted  = "interrupted"
	ReasonTempDirError = "temp dir error"
)

// Artifact is the captured media of one probe. It lives in its own
// directory so concurrent probes never share files.
type Artifact struct {
	Dir  string
	Path string
	Size int64
}

// Cleanup removes the artifact directory and everything in it.
func (a *Artifact) Cleanup() {
	if a == nil || a.Dir == "" {
		return
	}
	if err := os.RemoveAll(a.Dir); err != nil {
		logger.Warn("{probe - Cleanup} failed to remove %s: %v", a.Dir, err)
	}
}

// Outcome is the result of the capture stage. Artifact is non-nil only when
// Connectivity is Reachable; the caller then owns its cleanup.
type Outcome struct {
	Connectivity types.Connectivity
	Artifact     *Artifact
	Reason       string
}

// Options configures an Engine.
type Options struct {
	TempDir         string // parent of the per-probe directories
	MinCaptureBytes int64  // captures at or below this size are stubs
	ObfuscateURLs   bool
}

// Engine runs the capture stage for single URLs. It is safe for concurrent
// use.
type Engine struct {
	capturer media.Capturer
	fetcher  Fetcher
	resolver media.URLResolver
	variants *cache.Cache
	opts     Options
}

// NewEngine creates an Engine. fetcher, resolver and variants may be nil,
// which disables HLS variant resolution, yt-dlp resolution and caching.
func NewEngine(capturer media.Capturer, fetcher Fetcher, resolver media.URLResolver, variants *cache.Cache, opts Options) *Engine {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.MinCaptureBytes <= 0 {
		opts.MinCaptureBytes = 500
	}
	return &Engine{
		capturer: capturer,
		fetcher:  fetcher,
		resolver: resolver,
		variants: variants,
		opts:     opts,
	}
}

// Probe captures up to timeout of url and classifies the capture by size.
// URLs without an http or rtmp scheme are Unreachable without any network
// access.
//
// Parameters:
//   - ctx: cancels the capture; the capture subprocess is killed with it
//   - url: the channel URL as it appears in the playlist
//   - timeout: how much of the stream to record
//
// Returns:
//   - Outcome: Reachable outcomes own an Artifact the caller must Cleanup;
//     every other outcome has already removed its files
func (e *Engine) Probe(ctx context.Context, url string, timeout time.Duration) Outcome {
	// reject before touching the network or the temp dir
	if !parser.IsStreamLine(url) {
		return Outcome{Connectivity: types.Unreachable, Reason: ReasonUnsupported}
	}

	target, err := e.prepare(ctx, url, timeout)
	if err != nil {
		logger.Debug("{probe - Probe} prepare failed for %s: %v", e.logURL(url), err)
		return Outcome{Connectivity: types.Unreachable, Reason: ReasonPrepare}
	}

	// one directory per probe so cleanup is a single RemoveAll
	dir, err := os.MkdirTemp(e.opts.TempDir, media.TempPrefix+"*")
	if err != nil {
		logger.Error("{probe - Probe} failed to create temp dir: %v", err)
		return Outcome{Connectivity: types.Unreachable, Reason: ReasonTempDirError}
	}
	artifact := &Artifact{Dir: dir, Path: filepath.Join(dir, "capture.ts")}

	// a failed capture may still leave usable bytes; the size decides
	if err := e.capturer.Capture(ctx, target, timeout, artifact.Path); err != nil {
		logger.Debug("{probe - Probe} capture of %s: %v", e.logURL(url), err)
	}

	if ctx.Err() != nil {
		artifact.Cleanup()
		return Outcome{Connectivity: types.Unreachable, Reason: ReasonInterrupted}
	}

	connectivity, size := e.classifySize(artifact.Path)
	artifact.Size = size

	switch connectivity {
	case types.Reachable:
		return Outcome{Connectivity: connectivity, Artifact: artifact}
	case types.EmptyOrTooSmall:
		artifact.Cleanup()
		return Outcome{Connectivity: connectivity, Reason: ReasonTooSmall}
	default:
		artifact.Cleanup()
		return Outcome{Connectivity: connectivity, Reason: ReasonNoData}
	}
}

// classifySize applies the capture size policy: no file is Unreachable, a
// file of at most MinCaptureBytes is EmptyOrTooSmall.
func (e *Engine) classifySize(path string) (types.Connectivity, int64) {
	info, err := os.Stat(path)
	if err != nil {
		return types.Unreachable, 0
	}
	if info.Size() <= e.opts.MinCaptureBytes {
		return types.EmptyOrTooSmall, info.Size()
	}
	return types.Reachable, info.Size()
}

// prepare turns the playlist URL into the URL actually captured. The
// written playlist always keeps the original.
func (e *Engine) prepare(ctx context.Context, url string, timeout time.Duration) (string, error) {
	target := SanitizeAdURL(url)

	if e.resolver != nil && media.IsYouTube(target) {
		resolved, err := e.resolver.ResolveURL(ctx, target)
		if err != nil {
			return "", err
		}
		logger.Debug("{probe - prepare} yt-dlp resolved %s", e.logURL(url))
		return resolved, nil
	}

	if e.fetcher != nil && isHLSURL(target) {
		return e.resolveVariant(ctx, target, timeout), nil
	}

	return target, nil
}

// resolveVariant returns the best variant of a master playlist, or url
// itself when it is a media playlist or cannot be fetched.
func (e *Engine) resolveVariant(ctx context.Context, url string, timeout time.Duration) string {
	if v, ok := e.variants.GetVariant(url); ok {
		return v
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := e.fetcher.Fetch(fetchCtx, url)
	if err != nil {
		logger.Debug("{probe - resolveVariant} manifest fetch failed for %s: %v", e.logURL(url), err)
		return url
	}

	variant, isMaster := parser.SelectBestVariant(string(body), url)
	if isMaster {
		logger.Debug("{probe - resolveVariant} %s -> %s", e.logURL(url), e.logURL(variant))
	}
	e.variants.SetVariant(url, variant)
	return variant
}

func (e *Engine) logURL(url string) string {
	return utils.LogURLWithFlag(e.opts.ObfuscateURLs, url)
}

// SanitizeAdURL drops the query of an HLS URL whose query points at an ad
// server, e.g. "a.m3u8?ads.host=x" becomes "a.m3u8".
func SanitizeAdURL(url string) string {
	idx := strings.Index(strings.ToLower(url), ".m3u8?")
	if idx < 0 {
		return url
	}
	cut := idx + len(".m3u8")
	if strings.Contains(strings.ToLower(url[cut:]), "ads.") {
		return url[:cut]
	}
	return url
}

func isHLSURL(url string) bool {
	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return strings.HasSuffix(strings.ToLower(path), ".m3u8")
}

package media

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"iptv-check/work/logger"
)

// FFmpeg captures streams and grabs frames with the ffmpeg binary.
type FFmpeg struct {
	Path           string          // binary to run
	UserAgent      string          // sent to http sources
	AudioUserAgent string          // sent to http sources matching an audio pattern
	Patterns       *StreamPatterns // decides which user agent applies
	Grace          time.Duration   // wall time allowed beyond the capture duration
}

// Capture remuxes up to duration of url into dest as MPEG-TS. The process is
// killed once duration+Grace has elapsed. A non-nil error does not mean
// dest is missing: a killed capture can still leave a usable partial file.
//
// Parameters:
//   - ctx: parent context; its cancellation kills the whole process group
//   - url: the prepared stream URL
//   - duration: stream time to record, passed to ffmpeg as -t
//   - dest: output file, overwritten if present
//
// Returns:
//   - error: ffmpeg exited non-zero or was stopped, with its last stderr line
func (f *FFmpeg) Capture(ctx context.Context, url string, duration time.Duration, dest string) error {
	// hard stop for sources that never send a byte
	ctx, cancel := context.WithTimeout(ctx, duration+f.Grace)
	defer cancel()

	args := f.captureArgs(url, duration, dest)
	logger.Debug("[FFMPEG] Command: %s %s", f.Path, strings.Join(args, " "))

	// only stderr is kept, for the failure message
	cmd := newCommand(ctx, f.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("capture stopped: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg capture failed: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

func (f *FFmpeg) captureArgs(url string, duration time.Duration, dest string) []string {
	secs := int(duration / time.Second)
	if secs < 1 {
		secs = 1
	}
	timeoutUS := strconv.FormatInt(duration.Microseconds(), 10)

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}

	scheme := strings.ToLower(url)
	if strings.HasPrefix(scheme, "http") {
		ua := f.UserAgent
		if f.Patterns.Kind(url) == KindAudio && f.AudioUserAgent != "" {
			ua = f.AudioUserAgent
		}
		if ua != "" {
			args = append(args, "-user_agent", ua)
		}
		args = append(args, "-timeout", timeoutUS)
	} else {
		// -timeout on rtmp switches to listen mode
		args = append(args, "-rw_timeout", timeoutUS)
	}

	if duration >= 20*time.Second {
		args = append(args, "-analyzeduration", "5M", "-probesize", "5M")
	}

	args = append(args,
		"-i", url,
		"-t", strconv.Itoa(secs),
		"-c", "copy",
		"-f", "mpegts",
		dest,
	)
	return args
}

// SampleFrame writes the single frame at offset into dest as an image.
func (f *FFmpeg) SampleFrame(ctx context.Context, media string, offset time.Duration, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(offset.Seconds(), 'f', -1, 64),
		"-i", media,
		"-frames:v", "1",
		dest,
	}

	cmd := newCommand(ctx, f.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg frame grab failed: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

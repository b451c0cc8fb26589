// Package media wraps the external programs used to inspect streams:
// ffmpeg for capture and frame grabs, ffprobe for analysis, tesseract for
// text recognition and yt-dlp for resolving page URLs to media URLs.
package media

import (
	"context"
	"os/exec"
	"syscall"
	"time"

	"iptv-check/work/types"
)

// Capturer copies up to duration of a stream into dest without re-encoding.
type Capturer interface {
	Capture(ctx context.Context, url string, duration time.Duration, dest string) error
}

// FrameSampler writes one still image taken offset into media to dest.
type FrameSampler interface {
	SampleFrame(ctx context.Context, media string, offset time.Duration, dest string) error
}

// Recognizer returns the text found in an image.
type Recognizer interface {
	Recognize(ctx context.Context, image string) (string, error)
}

// Analyzer reports which streams a captured artifact contains.
type Analyzer interface {
	Analyze(ctx context.Context, media string) (types.StreamHealthData, error)
}

// URLResolver turns a page URL into a directly playable media URL.
type URLResolver interface {
	ResolveURL(ctx context.Context, url string) (string, error)
}

// killWaitDelay bounds how long Wait blocks on pipes after the process group
// has been killed.
const killWaitDelay = 2 * time.Second

// newCommand builds a command in its own process group. When ctx ends the
// whole group is killed, so helpers spawned by the tool die with it.
func newCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = killWaitDelay
	return cmd
}

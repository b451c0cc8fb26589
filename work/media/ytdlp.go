package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grafana/regexp"
)

var youtubeRe = regexp.MustCompile(`(?i)^https?://(?:www\.|m\.)?(?:youtube\.com|youtu\.be)/`)

// IsYouTube reports whether url points at a YouTube page.
func IsYouTube(url string) bool {
	return youtubeRe.MatchString(url)
}

// YtDlp resolves page URLs with the yt-dlp binary.
type YtDlp struct {
	Path    string
	Timeout time.Duration
}

// ResolveURL returns the first direct media URL yt-dlp reports for url.
func (y *YtDlp) ResolveURL(ctx context.Context, url string) (string, error) {
	timeout := y.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := newCommand(ctx, y.Path, "--get-url", "--no-warnings", "-f", "best", url)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w: %s", err, lastLine(stderr.String()))
	}

	for _, line := range strings.Split(stdout.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("yt-dlp returned no URL")
}

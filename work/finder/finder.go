package finder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grafana/regexp"

	"iptv-check/work/logger"
)

const (
	pageTimeout  = 15 * time.Second
	checkTimeout = 5 * time.Second
	maxPageSize  = 8 << 20
)

// playlistLinkRe matches quoted absolute or relative .m3u/.m3u8 links in a
// web page.
var playlistLinkRe = regexp.MustCompile(`["'](https?://[^'" >]+?\.m3u8?|[^'" >]+?\.m3u8?)["']`)

// Doer sends requests with the tool's headers applied.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Finder discovers playlist links published on a web page.
type Finder struct {
	client Doer
}

func New(client Doer) *Finder {
	return &Finder{client: client}
}

// Find fetches pageURL and returns the playlist links it leads to, in page
// order.
//
// Parameters:
//   - ctx: cancels the page download and the link checks
//   - pageURL: the web page to scan
//
// Returns:
//   - []string: when the page redirects straight to a playlist, only that
//     final URL; otherwise every quoted link that answers HEAD with 200
//   - error: the page could not be downloaded
func (f *Finder) Find(ctx context.Context, pageURL string) ([]string, error) {
	pageCtx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(pageCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, pageURL)
	}

	// a redirect straight to a playlist needs no scan
	final := resp.Request.URL
	if IsPlaylistPath(final.Path) {
		logger.Debug("{finder - Find} %s redirected to %s", pageURL, final)
		return []string{final.String()}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pageURL, err)
	}

	candidates := Candidates(string(body), final)
	logger.Debug("{finder - Find} %d candidate links on %s", len(candidates), pageURL)

	var valid []string
	for _, link := range candidates {
		if ctx.Err() != nil {
			return valid, ctx.Err()
		}
		if f.reachable(ctx, link) {
			valid = append(valid, link)
		}
	}
	return valid, nil
}

// Candidates extracts the quoted playlist links of a page, resolved against
// the page URL and de-duplicated in page order.
func Candidates(page string, base *url.URL) []string {
	seen := make(map[string]struct{})
	var out []string

	for _, m := range playlistLinkRe.FindAllStringSubmatch(page, -1) {
		ref, err := url.Parse(m[1])
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	return out
}

// IsPlaylistPath reports whether a URL path names an .m3u or .m3u8 file.
func IsPlaylistPath(p string) bool {
	p = strings.ToLower(p)
	return strings.HasSuffix(p, ".m3u") || strings.HasSuffix(p, ".m3u8")
}

func (f *Finder) reachable(ctx context.Context, link string) bool {
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, link, nil)
	if err != nil {
		return false
	}
	resp, err := f.client.Do(req)
	if err != nil {
		logger.Debug("{finder - reachable} %s: %v", link, err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

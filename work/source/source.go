package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/ratelimit"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"iptv-check/work/database"
	"iptv-check/work/logger"
	"iptv-check/work/types"
	"iptv-check/work/utils"
)

// Fetcher downloads remote playlists.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// LinkStore lists the playlists saved for database mode.
type LinkStore interface {
	ListLinks() ([]database.Link, error)
}

// Source is a playlist ready for parsing.
type Source struct {
	Name    string // file path, URL or "database"
	Text    string
	BaseURL string // for resolving relative variant URIs, empty for local files
}

// LinkFailure is a stored link that could not be downloaded.
type LinkFailure struct {
	Name string
	URL  string
	Err  error
}

// Loader reads playlists from disk, the network or the link database.
type Loader struct {
	fetcher   Fetcher
	links     LinkStore
	rateLimit int

	// OnLinkFailure is called for every stored link that fails to download.
	OnLinkFailure func(LinkFailure)
}

// NewLoader creates a Loader. links may be nil when database mode is not
// used. rateLimit caps link downloads per second, 0 means unlimited.
func NewLoader(fetcher Fetcher, links LinkStore, rateLimit int) *Loader {
	return &Loader{fetcher: fetcher, links: links, rateLimit: rateLimit}
}

// IsRemote reports whether location is fetched over the network.
func IsRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// FromPath loads a local file or, for http(s) locations, downloads it.
// Every failure is an InputError.
func (l *Loader) FromPath(ctx context.Context, location string) (*Source, error) {
	var (
		data []byte
		err  error
		base string
	)

	if IsRemote(location) {
		if l.fetcher == nil {
			return nil, types.NewInputError(location, errors.New("no HTTP client configured"))
		}
		data, err = l.fetcher.Fetch(ctx, location)
		base = location
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInterrupted, ctx.Err())
		}
	} else {
		data, err = readFile(location)
	}
	if err != nil {
		return nil, types.NewInputError(location, err)
	}

	text, err := Decode(data)
	if err != nil {
		return nil, types.NewInputError(location, err)
	}

	logger.Debug("{source - FromPath} loaded %d bytes from %s", len(text), location)
	return &Source{Name: location, Text: text, BaseURL: base}, nil
}

// FromDatabase downloads every stored link and joins them into one
// playlist. Failed downloads are reported through OnLinkFailure and
// skipped. It fails when there are no links or none could be downloaded.
//
// Parameters:
//   - ctx: cancels the downloads; a cancel is reported as types.ErrInterrupted
//
// Returns:
//   - *Source: named "database", the texts joined in link order
//   - error: InputError for no links or no successful download
func (l *Loader) FromDatabase(ctx context.Context) (*Source, error) {
	if l.links == nil {
		return nil, types.NewInputError("database", types.ErrNoLinks)
	}

	links, err := l.links.ListLinks()
	if err != nil {
		return nil, types.NewInputError("database", err)
	}
	if len(links) == 0 {
		return nil, types.NewInputError("database", types.ErrNoLinks)
	}

	// at most rateLimit downloads per second, 0 for no limit
	limiter := ratelimit.NewUnlimited()
	if l.rateLimit > 0 {
		limiter = ratelimit.New(l.rateLimit)
	}

	var sb strings.Builder
	loaded := 0
	for _, link := range links {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInterrupted, ctx.Err())
		}
		limiter.Take()

		src, err := l.FromPath(ctx, link.URL)
		if errors.Is(err, types.ErrInterrupted) {
			return nil, err
		}
		if err != nil {
			logger.Warn("{source - FromDatabase} skipping %s: %v", link.Name, err)
			if l.OnLinkFailure != nil {
				l.OnLinkFailure(LinkFailure{Name: link.Name, URL: link.URL, Err: err})
			}
			continue
		}

		sb.WriteString(src.Text)
		if !strings.HasSuffix(src.Text, "\n") {
			sb.WriteByte('\n')
		}
		loaded++
		logger.Debug("{source - FromDatabase} loaded %s (%s)", link.Name, utils.ObfuscateURL(link.URL))
	}

	if loaded == 0 {
		return nil, types.NewInputError("database", errors.New("none of the stored links could be downloaded"))
	}

	logger.Info("[SOURCE] Loaded %d of %d stored playlists", loaded, len(links))
	return &Source{Name: "database", Text: sb.String()}, nil
}

// Decode converts playlist bytes to text, dropping a UTF-8 or UTF-16 byte
// order mark.
func Decode(data []byte) (string, error) {
	r := transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to decode playlist: %w", err)
	}
	return string(out), nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip file: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	return io.ReadAll(r)
}

package filter

import (
	"fmt"
	"strings"

	"github.com/grafana/regexp"

	"iptv-check/work/logger"
	"iptv-check/work/parser"
	"iptv-check/work/types"
)

// Content type detection for provider playlists that mix live channels with
// on-demand entries.
var (
	seriesRegex = regexp.MustCompile(`(?i)24\/7|247|\/series\/|\/shows\/|\/show\/`)
	vodRegex    = regexp.MustCompile(`(?i)\/vods\/|\/vod\/|\/movies\/|\/movie\/`)
)

const (
	ContentLive   = "live"
	ContentSeries = "series"
	ContentVOD    = "vod"
)

// Options selects which channels of a playlist are checked.
type Options struct {
	Include  string // regex; when set, the channel name or group must match
	Exclude  string // regex; matching channels are dropped
	LiveOnly bool   // drop series and VOD entries
}

// Filter decides which channels are dispatched. A nil Filter keeps
// everything.
type Filter struct {
	include  *regexp.Regexp
	exclude  *regexp.Regexp
	liveOnly bool
}

// New compiles opts. It returns nil when no option is set.
func New(opts Options) (*Filter, error) {
	if opts.Include == "" && opts.Exclude == "" && !opts.LiveOnly {
		return nil, nil
	}

	f := &Filter{liveOnly: opts.LiveOnly}
	if opts.Include != "" {
		re, err := regexp.Compile(opts.Include)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", opts.Include, err)
		}
		f.include = re
	}
	if opts.Exclude != "" {
		re, err := regexp.Compile(opts.Exclude)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", opts.Exclude, err)
		}
		f.exclude = re
	}
	return f, nil
}

// Allows reports whether ch should be checked. Include and exclude patterns
// are tested against the channel name and its group-title.
func (f *Filter) Allows(ch types.ChannelRecord) bool {
	if f == nil {
		return true
	}

	if f.liveOnly && ContentType(ch) != ContentLive {
		return false
	}

	name := parser.DisplayName(ch)
	group := groupOf(ch)
	matches := func(re *regexp.Regexp) bool {
		return re.MatchString(name) || (group != "" && re.MatchString(group))
	}

	if f.include != nil && !matches(f.include) {
		return false
	}
	if f.exclude != nil && matches(f.exclude) {
		return false
	}
	return true
}

// Apply keeps the allowed records in order and returns how many were
// dropped.
func (f *Filter) Apply(records []types.ChannelRecord) ([]types.ChannelRecord, int) {
	if f == nil {
		return records, 0
	}

	kept := make([]types.ChannelRecord, 0, len(records))
	for _, r := range records {
		if f.Allows(r) {
			kept = append(kept, r)
		}
	}

	dropped := len(records) - len(kept)
	logger.Debug("{filter - Apply} %d -> %d channels", len(records), len(kept))
	return kept, dropped
}

// ContentType classifies a channel as live, series or VOD from its URL, its
// name and its group-title. Anything unrecognised is live.
func ContentType(ch types.ChannelRecord) string {
	name := parser.DisplayName(ch)

	if seriesRegex.MatchString(name) || seriesRegex.MatchString(ch.URL) {
		return ContentSeries
	}
	if vodRegex.MatchString(name) || vodRegex.MatchString(ch.URL) {
		return ContentVOD
	}

	group := strings.ToLower(groupOf(ch))
	switch {
	case strings.Contains(group, "series"):
		return ContentSeries
	case strings.Contains(group, "vod") || strings.Contains(group, "movie"):
		return ContentVOD
	}
	return ContentLive
}

func groupOf(ch types.ChannelRecord) string {
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(ch.DisplayMetadata)), "#EXTINF:") {
		return ""
	}
	attrs := parser.ParseEXTINF(ch.DisplayMetadata)
	if g := attrs["group-title"]; g != "" {
		return g
	}
	return attrs["tvg-group"]
}

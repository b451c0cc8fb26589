package media

import (
	"sort"

	"github.com/grafana/regexp"
)

const (
	KindVideo = "video"
	KindAudio = "audio"
)

type pattern struct {
	re   *regexp.Regexp
	kind string
}

// StreamPatterns maps URL substrings to a stream kind. Longer substrings
// win, so "/stream.m3u8" can override ".m3u8".
type StreamPatterns struct {
	patterns []pattern
}

// NewStreamPatterns compiles a substring -> kind map. Unknown kinds are
// ignored.
func NewStreamPatterns(m map[string]string) *StreamPatterns {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	sp := &StreamPatterns{}
	for _, k := range keys {
		kind := m[k]
		if k == "" || (kind != KindVideo && kind != KindAudio) {
			continue
		}
		sp.patterns = append(sp.patterns, pattern{
			re:   regexp.MustCompile(`(?i)` + regexp.QuoteMeta(k)),
			kind: kind,
		})
	}
	return sp
}

// Kind returns the kind of the first matching pattern, video when nothing
// matches.
func (sp *StreamPatterns) Kind(url string) string {
	if sp == nil {
		return KindVideo
	}
	for _, p := range sp.patterns {
		if p.re.MatchString(url) {
			return p.kind
		}
	}
	return KindVideo
}

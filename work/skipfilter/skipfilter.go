package skipfilter

import (
	"errors"
	"fmt"
	"os"

	"iptv-check/work/logger"
	"iptv-check/work/parser"
	"iptv-check/work/types"
)

// Set holds URLs already confirmed online in a previous output playlist.
type Set map[string]struct{}

// FromText parses an existing output playlist the same way as any input
// and returns its URLs. Text too small to be a playlist gives an empty set.
func FromText(text string) Set {
	set := make(Set)
	_, records, err := parser.Parse(text)
	if err != nil {
		return set
	}
	for _, r := range records {
		set[r.URL] = struct{}{}
	}
	return set
}

// Load reads the skip set from the playlist at path. A missing file gives an
// empty set.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return make(Set), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	set := FromText(string(data))
	logger.Debug("{skipfilter - Load} %d known URLs in %s", len(set), path)
	return set, nil
}

// Contains reports whether url is in the set.
func (s Set) Contains(url string) bool {
	_, ok := s[url]
	return ok
}

// Filter drops records whose URL is in the set, keeping order. It returns
// the kept records and how many were skipped.
func (s Set) Filter(records []types.ChannelRecord) ([]types.ChannelRecord, int) {
	if len(s) == 0 {
		return records, 0
	}
	kept := make([]types.ChannelRecord, 0, len(records))
	for _, r := range records {
		if s.Contains(r.URL) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(records) - len(kept)
}

package parser

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/grafov/m3u8"

	"iptv-check/work/logger"
	"iptv-check/work/types"
)

// StreamVariant is one entry of an HLS master playlist.
type StreamVariant struct {
	URL        string // variant media playlist, resolved against the master URL when possible
	Bandwidth  uint32 // peak bandwidth in bits per second
	Resolution string // "WIDTHxHEIGHT", may be empty
	Name       string // NAME attribute, may be empty
	Codecs     string
}

// IsMasterPlaylist reports whether content looks like an HLS master playlist.
func IsMasterPlaylist(content string) bool {
	return strings.Contains(content, "#EXT-X-STREAM-INF")
}

// ParseMasterPlaylist decodes a master playlist and returns its variants
// sorted by bandwidth, highest first. A media playlist, or a master with no
// variants, yields an error.
func ParseMasterPlaylist(content, baseURL string) ([]StreamVariant, error) {
	playlist, listType, err := m3u8.DecodeFrom(strings.NewReader(content), false)
	if err != nil {
		return nil, fmt.Errorf("failed to decode playlist: %w", err)
	}
	if listType != m3u8.MASTER {
		return nil, fmt.Errorf("not a master playlist")
	}

	master := playlist.(*m3u8.MasterPlaylist)
	var variants []StreamVariant
	for _, v := range master.Variants {
		if v == nil {
			break
		}
		variants = append(variants, StreamVariant{
			URL:        resolveURL(strings.TrimSpace(v.URI), baseURL),
			Bandwidth:  v.Bandwidth,
			Resolution: v.Resolution,
			Name:       v.Name,
			Codecs:     v.Codecs,
		})
	}

	if len(variants) == 0 {
		return nil, fmt.Errorf("no variants found in master playlist")
	}

	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Bandwidth > variants[j].Bandwidth
	})

	return variants, nil
}

// SelectBestVariant returns the URL of the highest-bandwidth variant when
// content is a master playlist. For anything else it returns baseURL and
// false.
func SelectBestVariant(content, baseURL string) (string, bool) {
	if !IsMasterPlaylist(content) {
		return baseURL, false
	}

	variants, err := ParseMasterPlaylist(content, baseURL)
	if err != nil {
		logger.Debug("{parser - SelectBestVariant} %v", err)
		return baseURL, false
	}

	best := variants[0]
	logger.Debug("{parser - SelectBestVariant} selected %s (%d kbps) of %d variants",
		best.Resolution, best.Bandwidth/1000, len(variants))

	return best.URL, true
}

// parseMaster turns an input that is itself a master playlist into one
// channel record per variant, in playlist order.
func parseMaster(raw string, lines []string, baseURL string) ([]types.ChannelRecord, bool) {
	playlist, listType, err := m3u8.DecodeFrom(strings.NewReader(raw), false)
	if err != nil || listType != m3u8.MASTER {
		logger.Debug("{parser - parseMaster} falling back to plain dialect: %v", err)
		return nil, false
	}

	master := playlist.(*m3u8.MasterPlaylist)

	// every URI line must belong to a variant, otherwise bare channel
	// URLs sit next to the master and the plain parser keeps them all
	variants := 0
	for _, v := range master.Variants {
		if v != nil {
			variants++
		}
	}
	if variants != countURILines(lines) {
		logger.Debug("{parser - parseMaster} %d variants for %d URI lines, parsing as plain", variants, countURILines(lines))
		return nil, false
	}

	seen := make(map[string]struct{})
	var records []types.ChannelRecord

	for _, v := range master.Variants {
		if v == nil {
			break
		}

		uri := strings.TrimSpace(v.URI)
		resolved := resolveURL(uri, baseURL)
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}

		records = append(records, types.ChannelRecord{
			DisplayMetadata: "#EXTINF:-1," + variantName(v),
			URL:             resolved,
			SourceLineIndex: lineIndexOf(lines, uri),
		})
	}

	return records, len(records) > 0
}

func countURILines(lines []string) int {
	n := 0
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" && !strings.HasPrefix(l, "#") {
			n++
		}
	}
	return n
}

func variantName(v *m3u8.Variant) string {
	switch {
	case v.Name != "":
		return v.Name
	case v.Resolution != "":
		return fmt.Sprintf("Stream_%s", v.Resolution)
	default:
		return fmt.Sprintf("Stream_%d", v.Bandwidth)
	}
}

func lineIndexOf(lines []string, uri string) int {
	for i, l := range lines {
		if strings.TrimSpace(l) == uri {
			return i
		}
	}
	return -1
}

// resolveURL resolves a possibly relative variant URI against the master
// playlist URL. Absolute URIs, or an unusable base, return streamURL as is.
func resolveURL(streamURL, baseURL string) string {
	if baseURL == "" || IsStreamLine(streamURL) {
		return streamURL
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		logger.Debug("{parser - resolveURL} bad base URL: %v", err)
		return streamURL
	}

	rel, err := url.Parse(streamURL)
	if err != nil {
		logger.Debug("{parser - resolveURL} bad variant URL: %v", err)
		return streamURL
	}

	return base.ResolveReference(rel).String()
}

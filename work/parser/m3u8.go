package parser

import (
	"strings"

	"github.com/grafana/regexp"

	"iptv-check/work/logger"
	"iptv-check/work/types"
	"iptv-check/work/utils"
)

// MinPlaylistSize is the smallest input accepted as a playlist.
const MinPlaylistSize = 10

var (
	itemTagRe   = regexp.MustCompile(`(?i)<item[\s>]`)
	linkTagRe   = regexp.MustCompile(`(?i)</?link>`)
	anyTagRe    = regexp.MustCompile(`<[^>]*>`)
	xmlURLRe    = regexp.MustCompile(`(?i)(?:https?|rtmp)://[^\s<>"']+`)
	extinfAttrs = regexp.MustCompile(`([A-Za-z0-9_-]+)="([^"]*)"`)
	extinfLine  = regexp.MustCompile(`(?mi)^\s*#EXTINF:`)

	xmlEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&#38;", "&")
)

// Parse converts raw playlist text into channel records. The dialect is
// chosen once for the whole input. Duplicate URLs keep their first
// occurrence.
func Parse(raw string) (types.Dialect, []types.ChannelRecord, error) {
	return ParseWithBase(raw, "")
}

// ParseWithBase is Parse for inputs fetched from baseURL, so relative
// variant URIs of an HLS master playlist resolve to absolute URLs.
//
// Parameters:
//   - raw: the whole playlist text
//   - baseURL: where raw was downloaded from, or "" for local files
//
// Returns:
//   - types.Dialect: the strategy used for the whole input
//   - []types.ChannelRecord: one record per unique stream URL, in input order
//   - error: a ParseError when raw is shorter than MinPlaylistSize
func ParseWithBase(raw, baseURL string) (types.Dialect, []types.ChannelRecord, error) {
	if len(raw) < MinPlaylistSize {
		return types.DialectPlain, nil, &types.ParseError{Size: len(raw), Err: types.ErrEmptyOrTiny}
	}

	dialect := DetectDialect(raw)
	lines := splitLines(raw)

	var records []types.ChannelRecord
	switch dialect {
	case types.DialectXML:
		records = parseXML(lines)
	case types.DialectHLS:
		// a master that does not decode cleanly is read line by line instead
		var ok bool
		records, ok = parseMaster(raw, lines, baseURL)
		if !ok {
			dialect = types.DialectPlain
			records = parsePlain(lines)
		}
	default:
		records = parsePlain(lines)
	}

	logger.Debug("{parser - Parse} %s dialect, %d channels from %d bytes", dialect, len(records), len(raw))
	return dialect, records, nil
}

// DetectDialect picks the parsing strategy for a whole input. An input is
// only treated as an HLS master when it carries no #EXTINF channel
// entries; concatenated lists mixing channels and a master stay plain.
func DetectDialect(raw string) types.Dialect {
	switch {
	case itemTagRe.MatchString(raw):
		return types.DialectXML
	case strings.Contains(raw, "#EXT-X-STREAM-INF") && !extinfLine.MatchString(raw):
		return types.DialectHLS
	default:
		return types.DialectPlain
	}
}

// IsStreamLine reports whether a trimmed line starts with an http or rtmp
// scheme, compared case-insensitively on the first four characters.
func IsStreamLine(line string) bool {
	if len(line) < 4 {
		return false
	}
	prefix := strings.ToLower(line[:4])
	return prefix == "http" || prefix == "rtmp"
}

func splitLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}

func parsePlain(lines []string) []types.ChannelRecord {
	seen := make(map[string]struct{})
	var records []types.ChannelRecord

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !IsStreamLine(trimmed) {
			continue
		}

		url := strings.Fields(trimmed)[0]
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}

		records = append(records, types.ChannelRecord{
			DisplayMetadata: precedingMetadata(lines, i),
			URL:             url,
			SourceLineIndex: i,
		})
	}

	return records
}

// precedingMetadata walks back from a channel line to the nearest line that
// describes it. Option lines and blanks are skipped; another channel line
// or the header ends the search.
func precedingMetadata(lines []string, idx int) string {
	for j := idx - 1; j >= 0; j-- {
		prev := strings.TrimSpace(lines[j])
		switch {
		case prev == "":
			continue
		case strings.HasPrefix(strings.ToUpper(prev), "#EXTVLCOPT"):
			continue
		case strings.HasPrefix(strings.ToUpper(prev), "#EXTM3U"):
			return ""
		case IsStreamLine(prev):
			return ""
		default:
			return prev
		}
	}
	return ""
}

func parseXML(lines []string) []types.ChannelRecord {
	seen := make(map[string]struct{})
	var records []types.ChannelRecord

	for i, line := range lines {
		stripped := linkTagRe.ReplaceAllString(line, " ")
		loc := xmlURLRe.FindStringIndex(stripped)
		if loc == nil {
			continue
		}

		// feeds escape query separators as &amp;
		url := xmlEntities.Replace(stripped[loc[0]:loc[1]])
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}

		text := normalizeXMLText(stripped[loc[1]:])
		if text == "" {
			text = normalizeXMLText(stripped[:loc[0]])
		}

		meta := ""
		if text != "" {
			meta = "#EXTINF:-1," + text
		}

		records = append(records, types.ChannelRecord{
			DisplayMetadata: meta,
			URL:             url,
			SourceLineIndex: i,
		})
	}

	return records
}

func normalizeXMLText(s string) string {
	s = anyTagRe.ReplaceAllString(s, " ")
	s = strings.NewReplacer("=", " ", "\"", " ", "'", " ", "<", " ", ">", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// ParseEXTINF splits an #EXTINF line into its quoted attributes and the
// channel name after the last unquoted comma. The name is stored under
// "name", the duration under "duration".
func ParseEXTINF(line string) map[string]string {
	attrs := make(map[string]string)
	if !strings.HasPrefix(strings.ToUpper(line), "#EXTINF:") {
		return attrs
	}
	line = line[len("#EXTINF:"):]

	lastComma := -1
	inQuotes := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				lastComma = i
			}
		}
	}

	attrPart := line
	if lastComma != -1 {
		attrPart = line[:lastComma]
		if name := strings.TrimSpace(line[lastComma+1:]); name != "" {
			attrs["name"] = name
		}
	}

	if parts := strings.Fields(attrPart); len(parts) > 0 {
		attrs["duration"] = parts[0]
	}

	for _, m := range extinfAttrs.FindAllStringSubmatch(attrPart, -1) {
		attrs[strings.ToLower(m[1])] = m[2]
	}

	return attrs
}

// DisplayName is the human name of a channel: the #EXTINF title, then its
// tvg-name attribute, then the raw metadata line, then a name derived from
// the URL.
func DisplayName(ch types.ChannelRecord) string {
	meta := strings.TrimSpace(ch.DisplayMetadata)
	if strings.HasPrefix(strings.ToUpper(meta), "#EXTINF:") {
		attrs := ParseEXTINF(meta)
		if name := attrs["name"]; name != "" {
			return name
		}
		if name := attrs["tvg-name"]; name != "" {
			return name
		}
	} else if meta != "" && !strings.HasPrefix(meta, "#") {
		return meta
	}
	return utils.NameFromURL(ch.URL)
}

// URLs returns just the URL of every record, preserving order.
func URLs(records []types.ChannelRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.URL)
	}
	return out
}

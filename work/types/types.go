package types

import (
	"time"
)

// Dialect identifies which parsing strategy produced a set of channel records.
// It is chosen once per input and never re-evaluated line by line.
type Dialect int

const (
	DialectPlain Dialect = iota // plain M3U with #EXTINF tag lines
	DialectXML                  // URLs embedded in <item>/<link> style markup
	DialectHLS                  // HLS master playlist, one record per variant
)

func (d Dialect) String() string {
	switch d {
	case DialectPlain:
		return "plain"
	case DialectXML:
		return "xml"
	case DialectHLS:
		return "hls"
	default:
		return "unknown"
	}
}

// ChannelRecord is a single channel discovered while parsing a playlist.
// Records are created by the parser and never modified afterwards; the URL is
// the record's identity within a run (byte-exact, case-sensitive).
type ChannelRecord struct {
	DisplayMetadata string // raw tag line associated with the URL, may be empty
	URL             string // stream URL exactly as it appeared in the source
	SourceLineIndex int    // zero-based line index of the URL in the source text
}

// Connectivity is the outcome of the capture stage of a probe.
type Connectivity int

const (
	Unreachable     Connectivity = iota // nothing captured, or scheme not probeable
	EmptyOrTooSmall                     // capture exists but is a stub or error body
	Reachable                           // capture large enough to be real media
)

func (c Connectivity) String() string {
	switch c {
	case Unreachable:
		return "unreachable"
	case EmptyOrTooSmall:
		return "empty"
	case Reachable:
		return "reachable"
	default:
		return "unknown"
	}
}

// Classification is the final verdict for a channel.
type Classification int

const (
	OfflineNetwork  Classification = iota // connectivity failed or capture unusable
	OfflineBadLogin                       // connected, but the picture shows an error screen
	Online                                // connected and content looks valid
)

func (c Classification) String() string {
	switch c {
	case Online:
		return "ON"
	case OfflineNetwork:
		return "OFF"
	case OfflineBadLogin:
		return "OFF (bad login)"
	default:
		return "UNKNOWN"
	}
}

// Label is the metrics/database friendly form of a classification.
func (c Classification) Label() string {
	switch c {
	case Online:
		return "online"
	case OfflineNetwork:
		return "offline_network"
	case OfflineBadLogin:
		return "offline_bad_login"
	default:
		return "unknown"
	}
}

// StreamHealthData holds the ffprobe analysis of a captured artifact.
type StreamHealthData struct {
	HasVideo   bool    // a video stream with non-zero dimensions is present
	HasAudio   bool    // an audio stream with a known codec is present
	Bitrate    int64   // container bitrate in bits per second, 0 if unknown
	FPS        float64 // frame rate of the first video stream
	Resolution string  // "WIDTHxHEIGHT" of the first video stream
	Valid      bool    // analysis ran and produced parseable output
}

// ProbeResult is the outcome of running the probe pipeline for one channel.
// Results are values; the scheduler appends them to its results and never
// mutates them after creation.
type ProbeResult struct {
	Index          int               // position of the channel in the dispatched sequence
	Channel        ChannelRecord     // the probed channel
	Connectivity   Connectivity      // capture-stage outcome
	ContentValid   *bool             // nil when the OCR stage did not run
	Classification Classification    // final verdict
	Health         *StreamHealthData // media analysis, nil when not performed
	Reason         string            // short detail shown next to offline statuses
	Duration       time.Duration     // wall time spent on this channel
}

// IsOnline reports whether the channel should be written to the output.
func (r ProbeResult) IsOnline() bool {
	return r.Classification == Online
}

// Progress is emitted after every completed probe, in completion order.
type Progress struct {
	Index          int            // position of the finished channel in the dispatched sequence
	Done           int            // number of probes finished so far, including this one
	Total          int            // number of probes dispatched in this run
	Classification Classification // verdict of the finished channel
	Result         ProbeResult    // full result, for status printing
}

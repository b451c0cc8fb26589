package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"iptv-check/work/parser"
	"iptv-check/work/types"
	"iptv-check/work/utils"
)

const statusWidth = 17

// Summary is the end-of-run tally.
type Summary struct {
	RunID        string
	Source       string
	OutputPath   string
	Total        int // channels probed
	Skipped      int // channels dropped by the skip filter
	Filtered     int // channels dropped by include, exclude or live-only selection
	Online       int
	Uncheckable  int
	Recheck      bool
	OutputExists bool // false when a recheck found nothing and removed the output
}

// Offline is the number of probed channels that were not online.
func (s Summary) Offline() int { return s.Total - s.Online }

// Printer writes the user-facing progress and summary lines.
type Printer struct {
	out       io.Writer
	logFormat string
	obfuscate bool
	mu        sync.Mutex
}

// NewPrinter creates a Printer. logFormat "url" shows channel URLs,
// anything else shows channel names.
func NewPrinter(out io.Writer, logFormat string, obfuscate bool) *Printer {
	return &Printer{out: out, logFormat: logFormat, obfuscate: obfuscate}
}

// Status renders the status column for a result.
func Status(res types.ProbeResult) string {
	switch res.Classification {
	case types.Online:
		return "ON"
	case types.OfflineBadLogin:
		return "OFF (bad login)"
	default:
		if res.Reason != "" {
			return "OFF (" + res.Reason + ")"
		}
		return "OFF"
	}
}

// Label is how a channel is named in progress lines.
func (p *Printer) Label(ch types.ChannelRecord) string {
	if p.logFormat == "url" {
		return utils.LogURLWithFlag(p.obfuscate, ch.URL)
	}
	return parser.DisplayName(ch)
}

// Progress prints one line for a finished probe.
func (p *Printer) Progress(ev types.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "[%s] [%d/%d] %s\n", center(Status(ev.Result), statusWidth), ev.Done, ev.Total, p.Label(ev.Result.Channel))
}

// Infof prints an informational line.
func (p *Printer) Infof(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "[*] "+format+"\n", args...)
}

// Warnf prints a warning line.
func (p *Printer) Warnf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "[!] "+format+"\n", args...)
}

// Summary prints the end-of-run report.
func (p *Printer) Summary(s Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "--- Check Complete ---")
	if s.Skipped > 0 {
		fmt.Fprintf(p.out, "[*] %d channels already in %s were skipped\n", s.Skipped, s.OutputPath)
	}
	if s.Filtered > 0 {
		fmt.Fprintf(p.out, "[*] %d channels excluded by filters\n", s.Filtered)
	}

	switch {
	case s.Recheck && s.OutputExists:
		fmt.Fprintf(p.out, "[+] Playlist cleaned and saved to: %s\n", s.OutputPath)
	case s.Recheck:
		fmt.Fprintf(p.out, "[!] No working streams found. Output file '%s' removed.\n", s.OutputPath)
	case s.Online > 0:
		fmt.Fprintf(p.out, "[+] Appended %d new working streams to: %s\n", s.Online, s.OutputPath)
	default:
		fmt.Fprintln(p.out, "[!] No new working streams found.")
	}

	if s.Uncheckable > 0 {
		fmt.Fprintf(p.out, "[!] %d streams were saved to the uncheckable list\n", s.Uncheckable)
	}

	fmt.Fprintf(p.out, "\nSummary: %d Online, %d Offline, %d Total.\n", s.Online, s.Offline(), s.Total)
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-len(s)-left)
}

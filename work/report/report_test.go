package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"iptv-check/work/types"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		res  types.ProbeResult
		want string
	}{
		{types.ProbeResult{Classification: types.Online}, "ON"},
		{types.ProbeResult{Classification: types.OfflineBadLogin}, "OFF (bad login)"},
		{types.ProbeResult{Classification: types.OfflineNetwork, Reason: "no data"}, "OFF (no data)"},
		{types.ProbeResult{Classification: types.OfflineNetwork}, "OFF"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Status(tt.res))
	}
}

func TestProgressLine(t *testing.T) {
	ch := types.ChannelRecord{DisplayMetadata: "#EXTINF:-1,Channel A", URL: "http://x/a.ts?token=1"}
	ev := types.Progress{Done: 2, Total: 5, Result: types.ProbeResult{Channel: ch, Classification: types.Online}}

	tests := []struct {
		format    string
		obfuscate bool
		want      string
	}{
		{"name", false, "[       ON        ] [2/5] Channel A\n"},
		{"url", false, "[       ON        ] [2/5] http://x/a.ts?token=1\n"},
		{"url", true, "[       ON        ] [2/5] http://x/***?***\n"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		NewPrinter(&buf, tt.format, tt.obfuscate).Progress(ev)
		assert.Equal(t, tt.want, buf.String())
	}
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, "name", false).Summary(Summary{
		OutputPath:  "updated.m3u",
		Total:       10,
		Skipped:     3,
		Online:      4,
		Uncheckable: 1,
	})

	out := buf.String()
	assert.Contains(t, out, "3 channels already in updated.m3u were skipped")
	assert.Contains(t, out, "Appended 4 new working streams to: updated.m3u")
	assert.Contains(t, out, "1 streams were saved to the uncheckable list")
	assert.Contains(t, out, "Summary: 4 Online, 6 Offline, 10 Total.")

	buf.Reset()
	NewPrinter(&buf, "name", false).Summary(Summary{OutputPath: "list.m3u", Total: 2, Recheck: true})
	assert.Contains(t, buf.String(), "Output file 'list.m3u' removed")
}

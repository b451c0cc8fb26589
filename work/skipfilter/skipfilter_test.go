package skipfilter

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iptv-check/work/parser"
	"iptv-check/work/types"
	"iptv-check/work/writer"
)

const source = "#EXTM3U\n" +
	"#EXTINF:-1,A\nhttp://x/a.ts\n" +
	"#EXTINF:-1,B\nhttp://x/b.ts\n" +
	"C\nhttp://x/c.ts\n"

func TestFromText(t *testing.T) {
	set := FromText("#EXTM3U\n\n#EXTINF:-1,A\nhttp://x/a.ts\n\n")
	assert.True(t, set.Contains("http://x/a.ts"))
	assert.False(t, set.Contains("http://x/A.ts"))
	assert.Len(t, set, 1)

	assert.Empty(t, FromText(""))
	assert.Empty(t, FromText("#EXTM3U"))
}

func TestLoadMissingFile(t *testing.T) {
	set, err := Load(filepath.Join(t.TempDir(), "none.m3u"))
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestFilterKeepsOrder(t *testing.T) {
	_, recs, err := parser.Parse(source)
	require.NoError(t, err)

	set := Set{"http://x/b.ts": {}}
	kept, skipped := set.Filter(recs)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, []string{"http://x/a.ts", "http://x/c.ts"}, parser.URLs(kept))
}

func TestSkipIsIdempotentAfterWrite(t *testing.T) {
	_, recs, err := parser.Parse(source)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "updated.m3u")
	w := writer.New(out)
	for _, r := range recs {
		require.NoError(t, w.Append(r))
	}
	require.NoError(t, w.Commit())

	set, err := Load(out)
	require.NoError(t, err)

	kept, skipped := set.Filter(recs)
	assert.Empty(t, kept)
	assert.Equal(t, len(recs), skipped)
}

func TestFilterEmptySet(t *testing.T) {
	recs := []types.ChannelRecord{{URL: "http://x/a.ts"}}
	kept, skipped := Set{}.Filter(recs)
	assert.Equal(t, recs, kept)
	assert.Zero(t, skipped)
}

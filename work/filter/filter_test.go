package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iptv-check/work/types"
)

func channel(meta, url string) types.ChannelRecord {
	return types.ChannelRecord{DisplayMetadata: meta, URL: url}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		ch   types.ChannelRecord
		want string
	}{
		{"plain live", channel("#EXTINF:-1,BBC One", "http://x/live/1.ts"), ContentLive},
		{"vod url", channel("#EXTINF:-1,Some Film", "http://x/movie/u/p/9.mkv"), ContentVOD},
		{"series url", channel("#EXTINF:-1,Show S01E01", "http://x/series/u/p/7.mkv"), ContentSeries},
		{"24/7 name", channel("#EXTINF:-1,24/7 Cartoons", "http://x/1.ts"), ContentSeries},
		{"vod group", channel(`#EXTINF:-1 group-title="VOD | Action",Film`, "http://x/2.ts"), ContentVOD},
		{"series group", channel(`#EXTINF:-1 group-title="Series",Show`, "http://x/3.ts"), ContentSeries},
		{"no metadata", channel("", "http://x/4.ts"), ContentLive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentType(tt.ch))
		})
	}
}

func TestNewWithoutOptions(t *testing.T) {
	f, err := New(Options{})
	require.NoError(t, err)
	assert.Nil(t, f)

	records := []types.ChannelRecord{channel("", "http://x/1.ts")}
	kept, dropped := f.Apply(records)
	assert.Equal(t, records, kept)
	assert.Zero(t, dropped)
}

func TestNewRejectsBadPattern(t *testing.T) {
	_, err := New(Options{Include: "("})
	assert.Error(t, err)
	_, err = New(Options{Exclude: "[a-"})
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	records := []types.ChannelRecord{
		channel(`#EXTINF:-1 group-title="UK Sports",Sky Sports 1`, "http://x/1.ts"),
		channel(`#EXTINF:-1 group-title="UK News",BBC News`, "http://x/2.ts"),
		channel(`#EXTINF:-1 group-title="Movies",Film`, "http://x/movie/3.mkv"),
		channel(`#EXTINF:-1 group-title="UK Sports",Sports Adult`, "http://x/4.ts"),
	}

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"include by group", Options{Include: "(?i)sports"}, []string{"http://x/1.ts", "http://x/4.ts"}},
		{"include and exclude", Options{Include: "(?i)^uk", Exclude: "(?i)adult"}, []string{"http://x/1.ts", "http://x/2.ts"}},
		{"live only", Options{LiveOnly: true}, []string{"http://x/1.ts", "http://x/2.ts", "http://x/4.ts"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.opts)
			require.NoError(t, err)

			kept, dropped := f.Apply(records)
			var urls []string
			for _, r := range kept {
				urls = append(urls, r.URL)
			}
			assert.Equal(t, tt.want, urls)
			assert.Equal(t, len(records)-len(tt.want), dropped)
		})
	}
}

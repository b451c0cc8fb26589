package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iptv-check/work/database"
	"iptv-check/work/types"
)

const playlist = "#EXTM3U\n#EXTINF:-1,A\nhttp://x/a.ts\n"

type fakeFetcher map[string]string

func (f fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	body, ok := f[url]
	if !ok {
		return nil, errors.New("HTTP 404")
	}
	return []byte(body), nil
}

type fakeLinks []database.Link

func (f fakeLinks) ListLinks() ([]database.Link, error) { return f, nil }

func TestFromPathLocal(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "list.m3u")
	require.NoError(t, os.WriteFile(plain, []byte("\xef\xbb\xbf"+playlist), 0644))

	gzPath := filepath.Join(dir, "list.m3u.gz")
	f, err := os.Create(gzPath)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(playlist))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	l := NewLoader(nil, nil, 0)
	for _, path := range []string{plain, gzPath} {
		src, err := l.FromPath(context.Background(), path)
		require.NoError(t, err, path)
		assert.Equal(t, playlist, src.Text, path)
		assert.Empty(t, src.BaseURL)
	}
}

func TestFromPathErrors(t *testing.T) {
	l := NewLoader(fakeFetcher{}, nil, 0)

	_, err := l.FromPath(context.Background(), filepath.Join(t.TempDir(), "missing.m3u"))
	assert.True(t, types.IsInputError(err))

	_, err = l.FromPath(context.Background(), "http://x/missing.m3u")
	assert.True(t, types.IsInputError(err))
}

// cancelFetcher cancels the run while the download is in flight.
type cancelFetcher struct{ cancel context.CancelFunc }

func (f cancelFetcher) Fetch(ctx context.Context, _ string) ([]byte, error) {
	f.cancel()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestFromPathCancelledDownloadIsInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLoader(cancelFetcher{cancel: cancel}, nil, 0)

	_, err := l.FromPath(ctx, "http://x/list.m3u")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInterrupted))
	assert.False(t, types.IsInputError(err))

	links := fakeLinks{{Name: "one", URL: "http://x/one.m3u"}}
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	l = NewLoader(cancelFetcher{cancel: cancel2}, links, 0)
	_, err = l.FromDatabase(ctx2)
	assert.True(t, errors.Is(err, types.ErrInterrupted))
}

func TestFromPathRemote(t *testing.T) {
	l := NewLoader(fakeFetcher{"http://x/list.m3u": playlist}, nil, 0)

	src, err := l.FromPath(context.Background(), "http://x/list.m3u")
	require.NoError(t, err)
	assert.Equal(t, playlist, src.Text)
	assert.Equal(t, "http://x/list.m3u", src.BaseURL)
}

func TestFromDatabase(t *testing.T) {
	fetcher := fakeFetcher{
		"http://x/one.m3u": "#EXTM3U\n#EXTINF:-1,One\nhttp://x/1.ts",
		"http://x/two.m3u": playlist,
	}
	links := fakeLinks{
		{Name: "one", URL: "http://x/one.m3u"},
		{Name: "dead", URL: "http://x/dead.m3u"},
		{Name: "two", URL: "http://x/two.m3u"},
	}

	l := NewLoader(fetcher, links, 0)
	var failed []string
	l.OnLinkFailure = func(f LinkFailure) { failed = append(failed, f.Name) }

	src, err := l.FromDatabase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dead"}, failed)
	assert.Equal(t, "#EXTM3U\n#EXTINF:-1,One\nhttp://x/1.ts\n"+playlist, src.Text)
}

func TestFromDatabaseNothingLoaded(t *testing.T) {
	tests := []struct {
		name  string
		links LinkStore
	}{
		{"no store", nil},
		{"no links", fakeLinks{}},
		{"all fail", fakeLinks{{Name: "dead", URL: "http://x/dead.m3u"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(fakeFetcher{}, tt.links, 0).FromDatabase(context.Background())
			assert.True(t, types.IsInputError(err))
		})
	}
}

func TestDecodeStripsBOM(t *testing.T) {
	text, err := Decode([]byte("\xef\xbb\xbf#EXTM3U"))
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U", text)
}

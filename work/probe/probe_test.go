package probe

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iptv-check/work/cache"
	"iptv-check/work/types"
)

// fakeCapturer writes size bytes to dest, or nothing when size < 0.
type fakeCapturer struct {
	mu      sync.Mutex
	size    int
	err     error
	targets []string
	dests   []string
}

func (f *fakeCapturer) Capture(ctx context.Context, url string, d time.Duration, dest string) error {
	f.mu.Lock()
	f.targets = append(f.targets, url)
	f.dests = append(f.dests, dest)
	f.mu.Unlock()

	if f.size >= 0 {
		if err := os.WriteFile(dest, make([]byte, f.size), 0644); err != nil {
			return err
		}
	}
	return f.err
}

type fakeFetcher struct {
	body  string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls++
	return []byte(f.body), f.err
}

type fakeResolver struct {
	url string
	err error
}

func (f *fakeResolver) ResolveURL(ctx context.Context, url string) (string, error) {
	return f.url, f.err
}

func newTestEngine(t *testing.T, c *fakeCapturer) *Engine {
	return NewEngine(c, nil, nil, nil, Options{TempDir: t.TempDir(), MinCaptureBytes: 500})
}

func TestProbeSizeBoundary(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		err    error
		want   types.Connectivity
		reason string
	}{
		{"no output", -1, errors.New("exit 1"), types.Unreachable, ReasonNoData},
		{"zero bytes", 0, nil, types.EmptyOrTooSmall, ReasonTooSmall},
		{"exactly 500", 500, nil, types.EmptyOrTooSmall, ReasonTooSmall},
		{"501 bytes", 501, nil, types.Reachable, ""},
		{"partial after kill", 4096, context.DeadlineExceeded, types.Reachable, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCapturer{size: tt.size, err: tt.err}
			e := newTestEngine(t, c)

			out := e.Probe(context.Background(), "http://x/a.ts", 5*time.Second)
			assert.Equal(t, tt.want, out.Connectivity)
			assert.Equal(t, tt.reason, out.Reason)

			if tt.want == types.Reachable {
				require.NotNil(t, out.Artifact)
				assert.Equal(t, int64(tt.size), out.Artifact.Size)
				assert.FileExists(t, out.Artifact.Path)
				out.Artifact.Cleanup()
				assert.NoDirExists(t, out.Artifact.Dir)
			} else {
				assert.Nil(t, out.Artifact)
				assert.NoFileExists(t, c.dests[0])
			}
		})
	}
}

func TestProbeSkipsUnsupportedSchemes(t *testing.T) {
	c := &fakeCapturer{size: 1000}
	e := newTestEngine(t, c)

	for _, url := range []string{"udp://239.0.0.1:1234", "ftp://x/a.ts", "x", "/local/file.ts"} {
		out := e.Probe(context.Background(), url, time.Second)
		assert.Equal(t, types.Unreachable, out.Connectivity, url)
		assert.Equal(t, ReasonUnsupported, out.Reason)
	}
	assert.Empty(t, c.targets)

	out := e.Probe(context.Background(), "RTMP://x/live", time.Second)
	assert.Equal(t, types.Reachable, out.Connectivity)
	out.Artifact.Cleanup()
}

func TestProbeCancelledCleansUp(t *testing.T) {
	c := &fakeCapturer{size: 4096}
	dir := t.TempDir()
	e := NewEngine(c, nil, nil, nil, Options{TempDir: dir})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := e.Probe(ctx, "http://x/a.ts", time.Second)
	assert.Equal(t, types.Unreachable, out.Connectivity)
	assert.Equal(t, ReasonInterrupted, out.Reason)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProbeResolvesMasterPlaylist(t *testing.T) {
	c := &fakeCapturer{size: 1000}
	f := &fakeFetcher{body: "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=500000\nlow.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=3000000\nhigh.m3u8\n"}
	e := NewEngine(c, f, nil, cache.NewCache(10, time.Minute), Options{TempDir: t.TempDir()})

	for i := 0; i < 2; i++ {
		out := e.Probe(context.Background(), "http://cdn/live/master.m3u8", time.Second)
		require.Equal(t, types.Reachable, out.Connectivity)
		out.Artifact.Cleanup()
	}

	assert.Equal(t, []string{"http://cdn/live/high.m3u8", "http://cdn/live/high.m3u8"}, c.targets)
	assert.Equal(t, 1, f.calls)
}

func TestProbeManifestFetchFailureUsesOriginal(t *testing.T) {
	c := &fakeCapturer{size: -1}
	f := &fakeFetcher{err: errors.New("boom")}
	e := NewEngine(c, f, nil, nil, Options{TempDir: t.TempDir()})

	out := e.Probe(context.Background(), "http://cdn/index.m3u8", time.Second)
	assert.Equal(t, types.Unreachable, out.Connectivity)
	assert.Equal(t, []string{"http://cdn/index.m3u8"}, c.targets)
}

func TestProbeYouTube(t *testing.T) {
	c := &fakeCapturer{size: 1000}
	e := NewEngine(c, nil, &fakeResolver{url: "https://media.example/v.m3u8"}, nil, Options{TempDir: t.TempDir()})

	out := e.Probe(context.Background(), "https://www.youtube.com/watch?v=x", time.Second)
	require.Equal(t, types.Reachable, out.Connectivity)
	out.Artifact.Cleanup()
	assert.Equal(t, []string{"https://media.example/v.m3u8"}, c.targets)

	e = NewEngine(c, nil, &fakeResolver{err: errors.New("private video")}, nil, Options{TempDir: t.TempDir()})
	out = e.Probe(context.Background(), "https://youtu.be/x", time.Second)
	assert.Equal(t, types.Unreachable, out.Connectivity)
	assert.Equal(t, ReasonPrepare, out.Reason)
}

func TestSanitizeAdURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://x/live.m3u8?ads.app_bundle=1&x=2", "http://x/live.m3u8"},
		{"http://x/live.m3u8?token=abc", "http://x/live.m3u8?token=abc"},
		{"http://x/live.ts?ads.x=1", "http://x/live.ts?ads.x=1"},
		{"http://x/LIVE.M3U8?ADS.x=1", "http://x/LIVE.M3U8"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeAdURL(tt.in))
		})
	}
}

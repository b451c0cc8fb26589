package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iptv-check/work/config"
	"iptv-check/work/types"
)

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func TestStreamPatternsKind(t *testing.T) {
	sp := NewStreamPatterns(map[string]string{
		".m3u8":   KindVideo,
		".mp3":    KindAudio,
		"/radio/": KindAudio,
		".bogus":  "other",
	})

	tests := []struct {
		url  string
		want string
	}{
		{"http://x/live.m3u8", KindVideo},
		{"http://x/song.MP3", KindAudio},
		{"http://x/radio/live.m3u8", KindAudio},
		{"http://x/unknown", KindVideo},
		{"http://x/a.bogus", KindVideo},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, sp.Kind(tt.url))
		})
	}

	var nilPatterns *StreamPatterns
	assert.Equal(t, KindVideo, nilPatterns.Kind("http://x/a.mp3"))
}

func TestCaptureArgs(t *testing.T) {
	f := &FFmpeg{
		Path:           "ffmpeg",
		UserAgent:      "video-ua",
		AudioUserAgent: "audio-ua",
		Patterns:       NewStreamPatterns(map[string]string{".mp3": KindAudio}),
	}

	args := f.captureArgs("http://x/a.ts", 5*time.Second, "/tmp/out.ts")
	assert.Contains(t, args, "video-ua")
	assert.Contains(t, args, "-timeout")
	assert.Equal(t, []string{"-i", "http://x/a.ts", "-t", "5", "-c", "copy", "-f", "mpegts", "/tmp/out.ts"}, args[len(args)-9:])

	args = f.captureArgs("http://x/a.mp3", 5*time.Second, "/tmp/out.ts")
	assert.Contains(t, args, "audio-ua")

	args = f.captureArgs("rtmp://x/live", 25*time.Second, "/tmp/out.ts")
	assert.NotContains(t, args, "-timeout")
	assert.NotContains(t, args, "-user_agent")
	assert.Contains(t, args, "-rw_timeout")
	assert.Contains(t, args, "-analyzeduration")
}

func TestCaptureWritesDest(t *testing.T) {
	script := writeScript(t, "ffmpeg", `for last; do :; done
head -c 2048 /dev/zero > "$last"
`)
	f := &FFmpeg{Path: script, Grace: time.Second}
	dest := filepath.Join(t.TempDir(), "capture.ts")

	require.NoError(t, f.Capture(context.Background(), "http://x/a.ts", time.Second, dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), info.Size())
}

func TestCaptureKilledAfterGrace(t *testing.T) {
	script := writeScript(t, "ffmpeg", "sleep 30\n")
	f := &FFmpeg{Path: script, Grace: 200 * time.Millisecond}

	start := time.Now()
	err := f.Capture(context.Background(), "http://x/a.ts", time.Second, filepath.Join(t.TempDir(), "c.ts"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestTesseractRecognize(t *testing.T) {
	script := writeScript(t, "tesseract", `echo "Login Error Please Retry" > "$2.txt"
`)
	dir := t.TempDir()
	image := filepath.Join(dir, "frame.png")
	require.NoError(t, os.WriteFile(image, []byte("png"), 0644))

	tess := &Tesseract{Path: script}
	text, err := tess.Recognize(context.Background(), image)
	require.NoError(t, err)
	assert.Contains(t, text, "Login Error")

	_, err = os.Stat(filepath.Join(dir, "frame_ocr.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestParseProbeOutput(t *testing.T) {
	out := []byte(`{
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720, "avg_frame_rate": "30000/1001"},
			{"codec_type": "audio", "codec_name": "aac"}
		],
		"format": {"bit_rate": "2500000"}
	}`)

	health, err := parseProbeOutput(out)
	require.NoError(t, err)
	assert.True(t, health.Valid)
	assert.True(t, health.HasVideo)
	assert.True(t, health.HasAudio)
	assert.Equal(t, "1280x720", health.Resolution)
	assert.Equal(t, int64(2500000), health.Bitrate)
	assert.InDelta(t, 29.97, health.FPS, 0.01)

	radio, err := parseProbeOutput([]byte(`{"streams":[{"codec_type":"audio","codec_name":"mp3"}],"format":{}}`))
	require.NoError(t, err)
	assert.False(t, radio.HasVideo)
	assert.True(t, radio.HasAudio)

	_, err = parseProbeOutput([]byte("not json"))
	assert.Error(t, err)
}

func TestParseFrameRate(t *testing.T) {
	assert.Equal(t, 25.0, parseFrameRate("25/1"))
	assert.Equal(t, 0.0, parseFrameRate("25"))
	assert.Equal(t, 0.0, parseFrameRate("25/0"))
}

func TestFindTools(t *testing.T) {
	installed := map[string]bool{"ffmpeg": true, "ffprobe": true}
	look := func(name string) (string, error) {
		if installed[name] {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}

	cfg := config.DefaultConfig()
	ts, err := FindTools(cfg, look)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/ffmpeg", ts.FFmpeg.Path)
	assert.Nil(t, ts.FFprobe)
	assert.Nil(t, ts.YtDlp)

	cfg.OCR = true
	_, err = FindTools(cfg, look)
	require.Error(t, err)
	assert.True(t, types.IsSetupError(err))

	var se *types.SetupError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"tesseract"}, se.Missing)

	installed = map[string]bool{}
	cfg.OCR = false
	_, err = FindTools(cfg, look)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"ffmpeg"}, se.Missing)
}

func TestCleanupStale(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, TempPrefix+"old")
	fresh := filepath.Join(dir, TempPrefix+"fresh")
	other := filepath.Join(dir, "keep-me")
	for _, d := range []string{old, fresh, other} {
		require.NoError(t, os.Mkdir(d, 0755))
	}
	past := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	assert.Equal(t, 1, CleanupStale(dir, time.Hour))

	assert.NoDirExists(t, old)
	assert.DirExists(t, fresh)
	assert.DirExists(t, other)
}

func TestIsYouTube(t *testing.T) {
	assert.True(t, IsYouTube("https://www.youtube.com/watch?v=abc"))
	assert.True(t, IsYouTube("https://youtu.be/abc"))
	assert.False(t, IsYouTube("http://example.com/youtube.com/a.ts"))
}

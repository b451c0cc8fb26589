package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "links.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "links.db")

	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.AddLink("uk", "http://x/uk.m3u")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	links, err := db.ListLinks()
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestAddLinkNames(t *testing.T) {
	db := openTestDB(t)

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"", "http://example.com/lists/sports.m3u", "sports"},
		{"", "http://other.com/sports.m3u", "sports_2"},
		{"", "http://third.com/sports.m3u8", "sports_3"},
		{"My List", "http://x/a.m3u", "My_List"},
		{"", "http://bare.example.com/", "bare_example_com"},
	}

	for _, tt := range tests {
		got, err := db.AddLink(tt.name, tt.url)
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.want, got, tt.url)
	}

	_, err := db.AddLink("again", "http://x/a.m3u")
	assert.True(t, errors.Is(err, ErrLinkExists))

	links, err := db.ListLinks()
	require.NoError(t, err)
	require.Len(t, links, 5)
	assert.Equal(t, "My_List", links[0].Name)
	assert.WithinDuration(t, time.Now(), links[0].AddedAt, time.Minute)
}

func TestGetAndRemoveLink(t *testing.T) {
	db := openTestDB(t)

	name, err := db.AddLink("news", "http://x/news.m3u")
	require.NoError(t, err)

	l, err := db.GetLink(name)
	require.NoError(t, err)
	assert.Equal(t, "http://x/news.m3u", l.URL)

	require.NoError(t, db.RemoveLink(name))
	_, err = db.GetLink(name)
	assert.ErrorIs(t, err, ErrLinkNotFound)
	assert.ErrorIs(t, db.RemoveLink(name), ErrLinkNotFound)
}

func TestRunHistory(t *testing.T) {
	db := openTestDB(t)

	start := time.Now().Add(-time.Minute)
	require.NoError(t, db.StartRun("run-1", "list.m3u", "file", start))
	require.NoError(t, db.MarkStreamOffline("run-1", "http://x/dead.ts", "Dead", "offline_network", "no data"))
	require.NoError(t, db.MarkStreamOffline("run-1", "http://x/dead.ts", "Dead", "offline_bad_login", "error screen"))
	require.NoError(t, db.FinishRun("run-1", 10, 2, 5, RunStatusCompleted))

	runs, err := db.RecentRuns(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, 10, runs[0].Total)
	assert.Equal(t, 2, runs[0].Skipped)
	assert.Equal(t, 5, runs[0].Online)
	assert.Equal(t, RunStatusCompleted, runs[0].Status)
	assert.False(t, runs[0].FinishedAt.IsZero())

	offline, err := db.LoadOfflineStreams("run-1")
	require.NoError(t, err)
	require.Len(t, offline, 1)
	assert.Equal(t, "offline_bad_login", offline[0].Classification)

	removed, err := db.CleanupOldOfflineStreams(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats["runs_count"])
	assert.Equal(t, 1, stats["offline_streams_count"])
}

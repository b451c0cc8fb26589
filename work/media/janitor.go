package media

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"iptv-check/work/logger"
)

// TempPrefix starts the name of every temporary directory a probe creates.
const TempPrefix = "iptv-check-"

// CleanupStale removes probe directories under dir left behind by an earlier
// run that was killed, if they are older than maxAge. It returns how many
// entries were removed.
func CleanupStale(dir string, maxAge time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Debug("{media - CleanupStale} cannot read %s: %v", dir, err)
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), TempPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			logger.Warn("{media - CleanupStale} failed to remove %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info("[JANITOR] Removed %d stale temporary artifacts from %s", removed, dir)
	}
	return removed
}

package local

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const dayDirLayout = "2006-01-02"

// CleanupExpired removes date directories older than the retention
// window. Entries that are not date directories are left alone. It
// returns the number of directories removed.
func (s *BlobStore) CleanupExpired(now time.Time, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive")
	}
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, fmt.Errorf("read base directory: %w", err)
	}
	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		day, err := time.Parse(dayDirLayout, entry.Name())
		if err != nil {
			continue
		}
		if !day.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.baseDir, entry.Name())); err != nil {
			return removed, fmt.Errorf("remove expired directory %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

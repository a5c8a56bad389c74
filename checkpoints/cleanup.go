package checkpoints

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

var epochFilePattern = regexp.MustCompile(`^[0-9]+$`)

// EpochFileName names the model file of a 0-based epoch: "%02d" of the
// 1-based epoch number followed by ext.
func EpochFileName(epoch int, ext string) string {
	return fmt.Sprintf("%02d%s", epoch+1, ext)
}

// CleanNonBest deletes every per-epoch model file with extension ext in dir
// except the one belonging to bestEpoch. Files that do not follow the epoch
// naming (best/last models, snapshots) are left alone. It returns the
// removed paths in name order.
func CleanNonBest(dir, ext string, bestEpoch int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	keep := EpochFileName(bestEpoch, ext)

	var candidates []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ext || name == keep {
			continue
		}
		if !epochFilePattern.MatchString(name[:len(name)-len(ext)]) {
			continue
		}
		candidates = append(candidates, name)
	}
	sort.Strings(candidates)

	removed := make([]string, 0, len(candidates))
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed = append(removed, path)
	}

	return removed, nil
}

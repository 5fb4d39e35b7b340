package ingest

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mwhitford/reddit-profiler/models"
)

// LoadUsernameList reads a plain-text file with one username per line.
// Entries are trimmed, blank lines dropped, and duplicates removed with
// case-insensitive comparison; the first-seen casing is preserved for
// display. A file with no usable entries fails with EmptyUsernameListError.
func LoadUsernameList(path string) (*models.UsernameList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	list := &models.UsernameList{Path: path}
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		list.Names = append(list.Names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if len(list.Names) == 0 {
		return nil, &EmptyUsernameListError{Path: path}
	}
	return list, nil
}

// FilterUsernames drops names ending in "bot" (when skipBots is set) and
// names present in the skip set (lower-cased members). Casing and order of
// the survivors are preserved.
func FilterUsernames(names []string, skipBots bool, skip map[string]struct{}) []string {
	filtered := make([]string, 0, len(names))
	for _, name := range names {
		lower := strings.ToLower(name)
		if skipBots && strings.HasSuffix(lower, "bot") {
			continue
		}
		if _, skipped := skip[lower]; skipped {
			continue
		}
		filtered = append(filtered, name)
	}
	return filtered
}

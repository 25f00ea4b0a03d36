package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ListVersions returns the version names (file names without .yaml) in a
// versioned database directory.
func ListVersions(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read versions directory: %w", err)
	}

	var versions []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		versions = append(versions, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(versions)
	return versions, nil
}

// LatestVersion picks the newest version. When every version parses as a
// number the highest number wins; otherwise the last in descending string
// order. Returns "" for an empty list.
func LatestVersion(versions []string) string {
	if len(versions) == 0 {
		return ""
	}

	best := ""
	bestNum := 0.0
	for _, v := range versions {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			sorted := append([]string(nil), versions...)
			sort.Sort(sort.Reverse(sort.StringSlice(sorted)))
			return sorted[0]
		}
		if best == "" || n > bestNum {
			best, bestNum = v, n
		}
	}
	return best
}

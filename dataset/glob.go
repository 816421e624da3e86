package dataset

import (
	"fmt"
	"path/filepath"
	"sort"
)

// ResolvePaths expands glob patterns into a deduplicated, sorted file list.
// Simulation outputs are numbered (0000.sdf, 0001.sdf, ...), so lexical
// order is chronological order. An empty result is an error: a typo in the
// pattern should not silently yield an empty dataset.
func ResolvePaths(patterns ...string) ([]string, error) {
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	paths = normalizePaths(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files match %v", patterns)
	}
	return paths, nil
}

// normalizePaths de-duplicates and sorts a path collection; with numbered
// output files, lexical order is chronological order.
func normalizePaths(paths []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

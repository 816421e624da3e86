// Package dataset assembles SDF simulation output into labeled datasets:
// variables and coordinates keyed by canonical names, with lazy payloads and
// consolidation of multi-file time series.
package dataset

import (
	"regexp"
	"strings"
)

// Flatten maps a raw block name to its canonical identifier. Block names
// carry slashes, spaces and dashes, which are not valid in dimension names,
// so they all become underscores. Pure and idempotent.
func Flatten(name string) string {
	return strings.NewReplacer("/", "_", " ", "_", "-", "_").Replace(name)
}

// latexName matches whole-word physics component names such as Ex, By or Pz.
// Word boundaries keep longer identifiers that merely contain the pair
// (e.g. "PxTest") untouched.
var latexName = regexp.MustCompile(`\b([EBJP])([xyz])\b`)

// Humanize maps a raw block name to a display label: underscores become
// spaces and field components gain subscript notation, so
// "Electric_Field_Ex" reads "Electric Field $E_x$". Display only; canonical
// identity always comes from Flatten.
func Humanize(name string) string {
	spaced := strings.ReplaceAll(name, "_", " ")
	return latexName.ReplaceAllString(spaced, `$$${1}_${2}$$`)
}

// normGridName drops the common leading path segment from a grid name.
// There may be multiple grids all with the same axis labels, so the
// remainder namespaces the axis name per grid.
func normGridName(gridName string) string {
	if _, rest, ok := strings.Cut(gridName, "/"); ok {
		return rest
	}
	return gridName
}

// speciesName extracts the trailing species or probe segment of a grid or
// variable name.
func speciesName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// firstSegment returns the leading path segment of a block name.
func firstSegment(name string) string {
	if head, _, ok := strings.Cut(name, "/"); ok {
		return head
	}
	return name
}

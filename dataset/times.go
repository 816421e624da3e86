package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PlasmaFAIR/sdf-xarray/sdf"
)

// TimeGroups partitions the blocks of a file series by output frequency.
// Blocks written at every step and blocks written every tenth step cannot
// share a time axis; each distinct sequence of output times becomes one
// group with its own axis.
type TimeGroups struct {
	// Names lists the group names, time0, time1, ..., in order of first
	// appearance.
	Names []string

	// Times holds each group's output times, in file order.
	Times map[string][]float64

	// VarGroups maps each canonical block name to its group.
	VarGroups map[string]string
}

// signature is a collision-free key for an ordered sequence of times. The
// hex float form is exact, so two sequences share a signature only when
// they are bit-identical.
func signature(times []float64) string {
	parts := make([]string, len(times))
	for i, t := range times {
		parts[i] = strconv.FormatFloat(t, 'x', -1, 64)
	}
	return strings.Join(parts, ",")
}

// MakeTimeDims scans a file series and groups every variable, constant and
// grid by the exact sequence of times it appears at.
func MakeTimeDims(paths []string) (*TimeGroups, error) {
	times := map[string][]float64{}
	var order []string

	for _, path := range paths {
		f, err := sdf.Open(path)
		if err != nil {
			return nil, fmt.Errorf("scanning %q: %w", path, err)
		}
		t := f.Header().Time

		record := func(name string) {
			canonical := Flatten(name)
			if _, seen := times[canonical]; !seen {
				order = append(order, canonical)
			}
			times[canonical] = append(times[canonical], t)
		}
		for _, name := range sortedKeys(f.Variables()) {
			record(name)
		}
		for _, name := range sortedKeys(f.Constants()) {
			record(name)
		}
		for _, name := range sortedKeys(f.Grids()) {
			record(name)
		}
		f.Close()
	}

	groups := &TimeGroups{
		Times:     map[string][]float64{},
		VarGroups: map[string]string{},
	}
	bySignature := map[string]string{}
	for _, name := range order {
		seq := times[name]
		sig := signature(seq)
		group, ok := bySignature[sig]
		if !ok {
			group = fmt.Sprintf("time%d", len(groups.Names))
			bySignature[sig] = group
			groups.Names = append(groups.Names, group)
			groups.Times[group] = seq
		}
		groups.VarGroups[name] = group
	}
	return groups, nil
}

// Group returns the time group of a canonical block name.
func (g *TimeGroups) Group(name string) (string, bool) {
	group, ok := g.VarGroups[name]
	return group, ok
}

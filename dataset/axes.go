package dataset

import (
	"fmt"

	"github.com/PlasmaFAIR/sdf-xarray/sdf"
)

// resolveAxes binds each dimension of a gridded variable to a coordinate
// name. Output quantities may live on the nodes of their grid or on the cell
// midpoints, one node fewer per dimension, and the block metadata does not
// say which. The extent disambiguates: each axis label maps per-size to the
// node or midpoint coordinate, and the variable's own extent picks one.
func resolveAxes(f *sdf.File, v *sdf.Variable) ([]string, error) {
	grid, ok := f.Grid(v.Grid)
	if !ok {
		return nil, fmt.Errorf("%w: variable %q references unknown grid %q",
			ErrNoAxisBinding, v.Name, v.Grid)
	}

	lookup := map[string]map[int]string{}
	addGrid := func(m *sdf.Mesh) {
		base := Flatten(normGridName(m.Name))
		for i, label := range m.Labels {
			if lookup[label] == nil {
				lookup[label] = map[int]string{}
			}
			lookup[label][m.Shape[i]] = label + "_" + base
		}
	}
	addGrid(grid)
	if mid, ok := f.Grid(v.GridMid); ok {
		addGrid(mid)
	}

	if len(v.Shape) != len(grid.Labels) {
		return nil, fmt.Errorf("%w: variable %q has %d dimensions but grid %q has %d axes",
			ErrNoAxisBinding, v.Name, len(v.Shape), grid.Name, len(grid.Labels))
	}

	dims := make([]string, len(v.Shape))
	for i, size := range v.Shape {
		label := grid.Labels[i]
		name, ok := lookup[label][size]
		if !ok {
			return nil, fmt.Errorf("%w: variable %q (canonical %q) axis %q has extent %d matching neither grid",
				ErrNoAxisBinding, v.Name, Flatten(v.Name), label, size)
		}
		dims[i] = name
	}
	return dims, nil
}

// syntheticDims names the axes of a variable that references no grid. The
// names are derived from the variable itself so they never alias a shared
// coordinate.
func syntheticDims(name string, shape []int) []string {
	dims := make([]string, len(shape))
	for i := range shape {
		dims[i] = fmt.Sprintf("dim_%s_%d", Flatten(name), i)
	}
	return dims
}

// pointAxisName picks the identity axis for a point variable. Species
// variables share one axis per species; probe variables each get their own,
// because probes accumulate independently.
func pointAxisName(name string, probeNames []string) string {
	head := firstSegment(name)
	for _, probe := range probeNames {
		if head == probe {
			return "ID_" + Flatten(name)
		}
	}
	return "ID_" + Flatten(speciesName(name))
}

package dataset

import (
	"fmt"
	"math"
	"sort"
)

// OpenMulti assembles a file series into one Dataset with time axes. By
// default every variable shares a single "time" axis spanning all files,
// with NaN filling the slots of files a variable is absent from. With
// WithSeparateTimes, variables are instead grouped by output frequency and
// each group gets its own dense time axis.
//
// Payloads are materialized during assembly and the per-file handles are
// released before returning; the combined dataset holds no open files.
//
// The path collection is de-duplicated and sorted before processing, so the
// time axes come out in chronological order regardless of input order.
func OpenMulti(paths []string, opts ...OpenOption) (*Dataset, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}
	paths = normalizePaths(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to combine")
	}

	if o.separateTimes {
		return combineSplit(paths, opts)
	}
	return combineUnified(paths, opts)
}

// openAll opens every file in order, closing the already-opened ones on
// failure so an error never leaks handles.
func openAll(paths []string, opts []OpenOption) ([]*Dataset, error) {
	files := make([]*Dataset, 0, len(paths))
	for _, path := range paths {
		ds, err := Open(path, opts...)
		if err != nil {
			for _, open := range files {
				open.Close()
			}
			return nil, fmt.Errorf("opening %q: %w", path, err)
		}
		files = append(files, ds)
	}
	return files, nil
}

func closeAll(files []*Dataset) {
	for _, ds := range files {
		ds.Close()
	}
}

// combineUnified concatenates all files along one "time" axis.
func combineUnified(paths []string, opts []OpenOption) (*Dataset, error) {
	files, err := openAll(paths, opts)
	if err != nil {
		return nil, err
	}
	defer closeAll(files)

	// Files from different runs restart numbering and may disagree on
	// geometry; refuse to stack them.
	want := files[0].Attrs["jobid1"]
	for i, ds := range files[1:] {
		if got := ds.Attrs["jobid1"]; got != want {
			return nil, fmt.Errorf("%w: %q has jobid1 %v, expected %v",
				ErrJobIDMismatch, paths[i+1], got, want)
		}
	}

	times := make([]float64, len(files))
	for i, ds := range files {
		t, _ := ds.Attrs["time"].(float64)
		times[i] = t
	}

	out := &Dataset{
		Vars:   map[string]*Variable{},
		Coords: map[string]*Variable{},
		Attrs:  mergeAttrs(files),
	}

	for _, name := range unionVarNames(files) {
		tmpl := firstVar(files, name)
		shape, err := stackShape(files, name)
		if err != nil {
			return nil, err
		}
		slab := sizeOf(shape)
		data := nanSlice(len(files) * slab)
		for i, ds := range files {
			v, ok := ds.Vars[name]
			if !ok {
				continue
			}
			vals, err := v.Values()
			if err != nil {
				return nil, fmt.Errorf("reading %q from %q: %w", name, paths[i], err)
			}
			copy(data[i*slab:], vals)
		}
		out.Vars[name] = NewVariable(
			append([]string{"time"}, tmpl.Dims...),
			append([]int{len(files)}, shape...),
			data,
			tmpl.Attrs.clone(),
		)
	}

	sharedAxis := func(string) (string, error) { return "time", nil }
	if err := combineCoords(out, files, true, sharedAxis); err != nil {
		return nil, err
	}

	out.Coords["time"] = NewVariable([]string{"time"}, []int{len(files)}, times, Attrs{
		"units":     "s",
		"long_name": "Time",
		"full_name": "time",
	})
	return out, nil
}

// combineSplit concatenates each output-frequency group along its own axis.
func combineSplit(paths []string, opts []OpenOption) (*Dataset, error) {
	groups, err := MakeTimeDims(paths)
	if err != nil {
		return nil, err
	}

	files, err := openAll(paths, opts)
	if err != nil {
		return nil, err
	}
	defer closeAll(files)

	out := &Dataset{
		Vars:   map[string]*Variable{},
		Coords: map[string]*Variable{},
		Attrs:  mergeAttrs(files),
	}

	for _, name := range unionVarNames(files) {
		group, ok := groups.Group(name)
		if !ok {
			return nil, fmt.Errorf("no time group for %q", name)
		}
		groupLen := len(groups.Times[group])

		tmpl := firstVar(files, name)
		shape, err := stackShape(files, name)
		if err != nil {
			return nil, err
		}
		slab := sizeOf(shape)
		data := nanSlice(groupLen * slab)
		pos := 0
		for i, ds := range files {
			v, ok := ds.Vars[name]
			if !ok {
				continue
			}
			vals, err := v.Values()
			if err != nil {
				return nil, fmt.Errorf("reading %q from %q: %w", name, paths[i], err)
			}
			copy(data[pos*slab:], vals)
			pos++
		}
		out.Vars[name] = NewVariable(
			append([]string{group}, tmpl.Dims...),
			append([]int{groupLen}, shape...),
			data,
			tmpl.Attrs.clone(),
		)
	}

	groupFor := func(fullName string) (string, error) {
		group, ok := groups.Group(Flatten(fullName))
		if !ok {
			return "", fmt.Errorf("no time group for coordinate grid %q", fullName)
		}
		return group, nil
	}
	if err := combineCoords(out, files, false, groupFor); err != nil {
		return nil, err
	}

	for _, group := range groups.Names {
		seq := groups.Times[group]
		out.Coords[group] = NewVariable([]string{group}, []int{len(seq)}, seq, Attrs{
			"units":     "s",
			"long_name": "Time",
			"full_name": group,
		})
	}
	return out, nil
}

// combineCoords merges per-file coordinates. Grid coordinates are fixed for
// a run, so first occurrence wins; per-particle coordinates vary between
// outputs and get expanded along the time axis named by groupFor, keyed on
// the coordinate's underlying grid name. With fileIndexed, slabs land at
// the file's index on the shared axis; otherwise they pack densely in file
// order, matching a per-group axis.
func combineCoords(out *Dataset, files []*Dataset, fileIndexed bool, groupFor func(fullName string) (string, error)) error {
	names := map[string]bool{}
	var order []string
	for _, ds := range files {
		for _, name := range ds.CoordNames() {
			if !names[name] {
				names[name] = true
				order = append(order, name)
			}
		}
	}
	sort.Strings(order)

	for _, name := range order {
		tmpl := firstCoord(files, name)
		if !tmpl.PointData() {
			out.Coords[name] = tmpl
			continue
		}

		fullName, _ := tmpl.Attrs["full_name"].(string)
		axis, err := groupFor(fullName)
		if err != nil {
			return err
		}
		axisLen, ok := out.DimSize(axis)
		if !ok {
			axisLen = len(files)
		}

		// Particle counts can differ between outputs; pad to the widest.
		width := 0
		for _, ds := range files {
			if c, ok := ds.Coords[name]; ok && c.Size() > width {
				width = c.Size()
			}
		}

		data := nanSlice(axisLen * width)
		pos := 0
		for i, ds := range files {
			c, ok := ds.Coords[name]
			if !ok {
				continue
			}
			vals, err := c.Values()
			if err != nil {
				return fmt.Errorf("reading coordinate %q: %w", name, err)
			}
			slot := pos
			if fileIndexed {
				slot = i
			}
			copy(data[slot*width:], vals)
			pos++
		}
		out.Coords[name] = NewVariable(
			append([]string{axis}, tmpl.Dims...),
			[]int{axisLen, width},
			data,
			tmpl.Attrs.clone(),
		)
	}
	return nil
}

// mergeAttrs keeps only attributes every file agrees on.
func mergeAttrs(files []*Dataset) Attrs {
	merged := files[0].Attrs.clone()
	for _, ds := range files[1:] {
		for k, v := range merged {
			if other, ok := ds.Attrs[k]; !ok || other != v {
				delete(merged, k)
			}
		}
	}
	return merged
}

// stackShape returns the per-slab shape of a variable across the series.
// Particle counts differ between outputs, so one-dimensional slabs widen to
// the largest count and the narrower files' slots stay NaN; higher-rank
// shapes must agree exactly.
func stackShape(files []*Dataset, name string) ([]int, error) {
	var shape []int
	for _, ds := range files {
		v, ok := ds.Vars[name]
		if !ok {
			continue
		}
		if shape == nil {
			shape = append([]int{}, v.Shape...)
			continue
		}
		if len(v.Shape) != len(shape) {
			return nil, fmt.Errorf("combining %q: rank %d does not match rank %d",
				name, len(v.Shape), len(shape))
		}
		if len(shape) == 1 {
			if v.Shape[0] > shape[0] {
				shape[0] = v.Shape[0]
			}
			continue
		}
		for i, n := range v.Shape {
			if n != shape[i] {
				return nil, fmt.Errorf("combining %q: shape %v does not match %v",
					name, v.Shape, shape)
			}
		}
	}
	return shape, nil
}

func sizeOf(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// unionVarNames returns the sorted union of data-variable names.
func unionVarNames(files []*Dataset) []string {
	seen := map[string]bool{}
	var names []string
	for _, ds := range files {
		for name := range ds.Vars {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// firstVar returns the variable's first occurrence across the series.
func firstVar(files []*Dataset, name string) *Variable {
	for _, ds := range files {
		if v, ok := ds.Vars[name]; ok {
			return v
		}
	}
	return nil
}

func firstCoord(files []*Dataset, name string) *Variable {
	for _, ds := range files {
		if c, ok := ds.Coords[name]; ok {
			return c
		}
	}
	return nil
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

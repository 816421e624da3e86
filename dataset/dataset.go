package dataset

import (
	"fmt"
	"sort"
	"sync"
)

// Attrs is a flat attribute mapping attached to datasets, variables and
// coordinates.
type Attrs map[string]any

// clone returns a shallow copy.
func (a Attrs) clone() Attrs {
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Variable is one labeled array: dimension names, extents, attributes, and a
// payload that is either in memory or read on demand through a LazyArray.
// Reads are safe for concurrent use; the first read fills the cache under mu.
type Variable struct {
	Dims  []string
	Shape []int
	Attrs Attrs

	mu   sync.Mutex
	data []float64
	lazy *LazyArray
}

// NewVariable creates an eager variable.
func NewVariable(dims []string, shape []int, data []float64, attrs Attrs) *Variable {
	return &Variable{Dims: dims, Shape: shape, Attrs: attrs, data: data}
}

// NewLazyVariable creates a variable whose payload is read on first use; the
// shape comes from the accessor's metadata probe.
func NewLazyVariable(dims []string, lazy *LazyArray, attrs Attrs) *Variable {
	return &Variable{Dims: dims, Shape: lazy.Shape(), Attrs: attrs, lazy: lazy}
}

// IsLazy reports whether the payload is still deferred.
func (v *Variable) IsLazy() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lazy != nil && v.data == nil
}

// PointData reports whether this is per-particle data.
func (v *Variable) PointData() bool {
	b, _ := v.Attrs["point_data"].(bool)
	return b
}

// Size returns the total element count implied by the shape.
func (v *Variable) Size() int {
	n := 1
	for _, d := range v.Shape {
		n *= d
	}
	return n
}

// Values returns the full payload, reading it from storage on first use.
// The read is cached: repeated calls touch storage once.
func (v *Variable) Values() ([]float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.valuesLocked()
}

func (v *Variable) valuesLocked() ([]float64, error) {
	if v.data != nil {
		return v.data, nil
	}
	if v.lazy == nil {
		return nil, nil
	}
	data, err := v.lazy.Load()
	if err != nil {
		return nil, err
	}
	v.data = data
	return v.data, nil
}

// Sel reads an outer (per-axis) selection of the payload: one index set per
// dimension, nil meaning all indices of that axis. Returns the selected
// values and their shape. An unread lazy payload is selected from storage
// directly, without filling the cache.
func (v *Variable) Sel(indexes ...[]int) ([]float64, []int, error) {
	v.mu.Lock()
	if v.data == nil && v.lazy != nil {
		lazy := v.lazy
		v.mu.Unlock()
		return lazy.Sel(indexes...)
	}
	data := v.data
	v.mu.Unlock()
	return selectOuter(data, v.Shape, indexes)
}

// Dataset is an assembled file or file collection: data variables and
// coordinates keyed by canonical name, plus global attributes. Closing the
// dataset releases the backing stores; Close is idempotent.
type Dataset struct {
	Vars   map[string]*Variable
	Coords map[string]*Variable
	Attrs  Attrs

	mu     sync.Mutex
	stores []*Store
	closed bool
}

// Get looks up a data variable or coordinate by canonical name.
func (d *Dataset) Get(name string) (*Variable, bool) {
	if v, ok := d.Vars[name]; ok {
		return v, true
	}
	v, ok := d.Coords[name]
	return v, ok
}

// VarNames returns the data-variable names in sorted order.
func (d *Dataset) VarNames() []string {
	return sortedKeys(d.Vars)
}

// CoordNames returns the coordinate names in sorted order.
func (d *Dataset) CoordNames() []string {
	return sortedKeys(d.Coords)
}

// DimSize returns the extent of a named dimension, scanning variables and
// coordinates.
func (d *Dataset) DimSize(dim string) (int, bool) {
	for _, v := range d.Coords {
		for i, dname := range v.Dims {
			if dname == dim {
				return v.Shape[i], true
			}
		}
	}
	for _, v := range d.Vars {
		for i, dname := range v.Dims {
			if dname == dim {
				return v.Shape[i], true
			}
		}
	}
	return 0, false
}

// Close releases the backing stores. Safe to call multiple times; the
// underlying handles are released exactly once.
func (d *Dataset) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var firstErr error
	for _, s := range d.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.stores = nil
	return firstErr
}

// selectOuter applies per-axis index sets to a row-major payload.
func selectOuter(data []float64, shape []int, indexes [][]int) ([]float64, []int, error) {
	if len(indexes) > len(shape) {
		return nil, nil, fmt.Errorf("%d index sets for %d dimensions", len(indexes), len(shape))
	}

	sel := make([][]int, len(shape))
	outShape := make([]int, len(shape))
	for axis := range shape {
		var idx []int
		if axis < len(indexes) {
			idx = indexes[axis]
		}
		if idx == nil {
			idx = make([]int, shape[axis])
			for i := range idx {
				idx[i] = i
			}
		}
		for _, i := range idx {
			if i < 0 || i >= shape[axis] {
				return nil, nil, fmt.Errorf("index %d out of range for axis %d (size %d)", i, axis, shape[axis])
			}
		}
		sel[axis] = idx
		outShape[axis] = len(idx)
	}

	// Row-major strides.
	strides := make([]int, len(shape))
	stride := 1
	for axis := len(shape) - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= shape[axis]
	}

	total := 1
	for _, n := range outShape {
		total *= n
	}
	out := make([]float64, 0, total)

	// Odometer over the selected indices.
	if total > 0 {
		counter := make([]int, len(shape))
		for {
			offset := 0
			for axis, c := range counter {
				offset += sel[axis][c] * strides[axis]
			}
			out = append(out, data[offset])

			axis := len(counter) - 1
			for axis >= 0 {
				counter[axis]++
				if counter[axis] < len(sel[axis]) {
					break
				}
				counter[axis] = 0
				axis--
			}
			if axis < 0 {
				break
			}
		}
	}

	return out, outShape, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

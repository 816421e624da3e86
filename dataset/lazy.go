package dataset

import (
	"fmt"

	"github.com/PlasmaFAIR/sdf-xarray/sdf"
)

// LazyArray defers a variable's payload to first use. It holds the raw block
// name and a shared store handle rather than any data; the shape is probed
// once at construction so the dataset can be inspected without touching the
// payload.
type LazyArray struct {
	name  string
	store *Store
	shape []int
}

// NewLazyArray probes the named variable's metadata and returns an accessor
// for its payload.
func NewLazyArray(name string, store *Store) (*LazyArray, error) {
	f, release, err := store.acquire(true)
	if err != nil {
		return nil, err
	}
	defer release()
	return probeLazyArray(f, name, store)
}

// newLazyArrayLocked is NewLazyArray for callers already holding the store
// lock.
func newLazyArrayLocked(name string, store *Store) (*LazyArray, error) {
	f, release, err := store.acquire(false)
	if err != nil {
		return nil, err
	}
	defer release()
	return probeLazyArray(f, name, store)
}

func probeLazyArray(f *sdf.File, name string, store *Store) (*LazyArray, error) {
	v, ok := f.Variables()[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	shape := make([]int, len(v.Shape))
	copy(shape, v.Shape)
	return &LazyArray{name: name, store: store, shape: shape}, nil
}

// Shape returns the per-dimension extents recorded at construction.
func (a *LazyArray) Shape() []int {
	return a.shape
}

// Load reads the full payload. The store lock is held for the duration of
// the read, so sibling accessors sharing the file never interleave seeks.
func (a *LazyArray) Load() ([]float64, error) {
	f, release, err := a.store.acquire(true)
	if err != nil {
		return nil, err
	}
	defer release()

	v, ok := f.Variables()[a.name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, a.name)
	}
	data, err := v.ReadLocked()
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", a.name, err)
	}
	return data, nil
}

// Sel reads an outer selection of the payload without caching the full
// array on the accessor.
func (a *LazyArray) Sel(indexes ...[]int) ([]float64, []int, error) {
	data, err := a.Load()
	if err != nil {
		return nil, nil, err
	}
	return selectOuter(data, a.shape, indexes)
}

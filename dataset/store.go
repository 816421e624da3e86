package dataset

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/PlasmaFAIR/sdf-xarray/internal/manager"
	"github.com/PlasmaFAIR/sdf-xarray/sdf"
)

// ignoreSubstrings is the fixed denylist of bookkeeping blocks, matched
// case-insensitively against raw block names.
var ignoreSubstrings = []string{"cpu", "output file"}

// OpenOption configures Open and OpenMulti.
type OpenOption func(*openOptions)

type openOptions struct {
	dropVariables []string
	keepParticles bool
	probeNames    []string
	separateTimes bool
}

// WithDropVariables removes the named variables during assembly. Names may
// be given in raw (slash-separated) or canonical (underscore) form; a name
// that resolves to nothing fails the open.
func WithDropVariables(names ...string) OpenOption {
	return func(o *openOptions) {
		o.dropVariables = append(o.dropVariables, names...)
	}
}

// WithKeepParticles includes per-particle (point) data, which is skipped by
// default because of its size.
func WithKeepParticles(keep bool) OpenOption {
	return func(o *openOptions) { o.keepParticles = keep }
}

// WithProbeNames names the particle probes present in the files. Point
// variables belonging to a listed probe get identity axes derived from
// their full name, since their trailing segments (Px, Py, ...) collide
// across probes.
func WithProbeNames(names ...string) OpenOption {
	return func(o *openOptions) {
		o.probeNames = append(o.probeNames, names...)
	}
}

// WithSeparateTimes gives each distinct output frequency its own time axis
// in OpenMulti instead of one NaN-padded shared axis.
func WithSeparateTimes(separate bool) OpenOption {
	return func(o *openOptions) { o.separateTimes = separate }
}

// Store is the per-file backing store: a reference-counted shared handle to
// one SDF file. Sibling lazy accessors from the same file share it.
type Store struct {
	manager *manager.Manager
}

// openStore acquires the shared handle for path.
func openStore(path string) (*Store, error) {
	m, err := manager.Acquire(path, func(p string) (manager.File, error) {
		return sdf.Open(p)
	})
	if err != nil {
		return nil, err
	}
	return &Store{manager: m}, nil
}

// acquire returns the SDF file with the store lock held; the returned
// release function must be called when done. Pass needsLock=false only when
// the caller already holds the lock.
func (s *Store) acquire(needsLock bool) (*sdf.File, func(), error) {
	f, release, err := s.manager.AcquireContext(needsLock)
	if err != nil {
		if errors.Is(err, manager.ErrClosed) {
			err = ErrClosed
		}
		return nil, release, err
	}
	return f.(*sdf.File), release, nil
}

// Close drops this store's reference; the file closes when the last sibling
// releases. Safe to call multiple times.
func (s *Store) Close() error {
	return s.manager.Release()
}

// Open assembles one SDF file into a Dataset. Field payloads stay on disk
// until read; the file handle is released by Dataset.Close.
func Open(path string, opts ...OpenOption) (*Dataset, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	store, err := openStore(path)
	if err != nil {
		return nil, err
	}

	ds, err := load(store, &o)
	if err != nil {
		store.Close()
		return nil, err
	}
	return ds, nil
}

// load builds the dataset from the store's block metadata.
func load(store *Store, o *openOptions) (*Dataset, error) {
	f, release, err := store.acquire(true)
	if err != nil {
		return nil, err
	}
	defer release()

	skip, err := resolveDropSet(f, o.dropVariables)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Vars:   map[string]*Variable{},
		Coords: map[string]*Variable{},
		Attrs:  Attrs{},
		stores: []*Store{store},
	}

	// Header and run metadata become global attributes; run info wins on
	// key collisions.
	for k, v := range f.HeaderAttrs() {
		ds.Attrs[k] = v
	}
	for k, v := range f.RunInfo() {
		ds.Attrs[k] = v
	}

	if err := loadCoords(ds, f, o); err != nil {
		return nil, err
	}
	if err := loadVariables(ds, f, store, o, skip); err != nil {
		return nil, err
	}
	loadConstants(ds, f, skip)

	return ds, nil
}

// resolveDropSet maps requested drop names (raw or canonical) onto raw block
// names, failing fast on unknown or ambiguous requests.
func resolveDropSet(f *sdf.File, requested []string) (map[string]bool, error) {
	if len(requested) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(f.Variables())+len(f.Constants()))
	for name := range f.Variables() {
		names = append(names, name)
	}
	for name := range f.Constants() {
		names = append(names, name)
	}
	sort.Strings(names)

	skip := map[string]bool{}
	for _, req := range requested {
		canonical := Flatten(req)

		var matches []string
		for _, name := range names {
			if name == req || Flatten(name) == canonical {
				matches = append(matches, name)
			}
		}
		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("%w: %q (canonical %q)", ErrNotFound, req, canonical)
		case 1:
			skip[matches[0]] = true
		default:
			return nil, fmt.Errorf("%w: %q (canonical %q) matches %s",
				ErrAmbiguous, req, canonical, strings.Join(matches, ", "))
		}
	}
	return skip, nil
}

// ignored reports whether a raw block name is on the fixed denylist.
func ignored(name string) bool {
	lower := strings.ToLower(name)
	for _, sub := range ignoreSubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// loadCoords registers every mesh axis as a coordinate.
func loadCoords(ds *Dataset, f *sdf.File, o *openOptions) error {
	for _, key := range sortedKeys(f.Grids()) {
		grid := f.Grids()[key]
		if ignored(key) {
			continue
		}
		if grid.IsPointData && !o.keepParticles {
			continue
		}

		axes, err := grid.Data()
		if err != nil {
			return fmt.Errorf("reading grid %q: %w", key, err)
		}

		baseName := Flatten(normGridName(grid.Name))
		for i, label := range grid.Labels {
			fullName := label + "_" + baseName
			dimName := fullName
			if grid.IsPointData {
				dimName = "ID_" + Flatten(speciesName(key))
			}
			ds.Coords[fullName] = NewVariable(
				[]string{dimName},
				[]int{grid.Shape[i]},
				axes[i],
				Attrs{
					"long_name":  label,
					"units":      grid.Units[i],
					"point_data": grid.IsPointData,
					"full_name":  grid.Name,
				},
			)
		}
	}
	return nil
}

// loadVariables attaches axis bindings and lazy payloads for every variable
// block that survives filtering.
func loadVariables(ds *Dataset, f *sdf.File, store *Store, o *openOptions, skip map[string]bool) error {
	for _, key := range sortedKeys(f.Variables()) {
		v := f.Variables()[key]
		if ignored(key) || skip[key] {
			continue
		}
		if v.IsPointData && !o.keepParticles {
			continue
		}

		attrs := Attrs{"full_name": key}
		if v.Units != "" {
			attrs["units"] = v.Units
		}

		var dims []string
		switch {
		case v.Grid == "":
			// No grid: a plain array over something unknown. Synthetic dim
			// names keep it well-formed without claiming shared axes.
			dims = syntheticDims(key, v.Shape)
		case v.IsPointData:
			dims = []string{pointAxisName(key, o.probeNames)}
			attrs["point_data"] = true
			attrs["long_name"] = Humanize(Flatten(key))
		default:
			var err error
			dims, err = resolveAxes(f, v)
			if err != nil {
				return err
			}
			attrs["point_data"] = false
			attrs["long_name"] = Humanize(Flatten(key))
		}

		lazy, err := newLazyArrayLocked(key, store)
		if err != nil {
			return err
		}
		ds.Vars[Flatten(key)] = NewLazyVariable(dims, lazy, attrs)
	}
	return nil
}

// loadConstants turns scalar constants into zero-dimensional variables;
// character constants become global attributes instead.
func loadConstants(ds *Dataset, f *sdf.File, skip map[string]bool) {
	for _, key := range sortedKeys(f.Constants()) {
		c := f.Constants()[key]
		if ignored(key) || skip[key] {
			continue
		}

		value, ok := c.Float()
		if !ok {
			ds.Attrs[Flatten(key)] = c.Value()
			continue
		}

		attrs := Attrs{"full_name": key}
		if c.Units != "" {
			attrs["units"] = c.Units
		}
		ds.Vars[Flatten(key)] = NewVariable(nil, nil, []float64{value}, attrs)
	}
}

package dataset

import (
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PlasmaFAIR/sdf-xarray/sdf"
)

func TestOpenMultiUnified(t *testing.T) {
	paths := writeSeries(t, t.TempDir(), []float64{1e-9, 2e-9}, map[int]bool{1: true})

	ds, err := OpenMulti(paths)
	require.NoError(t, err)
	defer ds.Close()

	// Every variable gains a leading shared time axis.
	ex, ok := ds.Get("Electric_Field_Ex")
	require.True(t, ok)
	assert.Equal(t, []string{"time", "X_Grid_mid"}, ex.Dims)
	assert.Equal(t, []int{2, 4}, ex.Shape)
	values, err := ex.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 1, 2, 3, 4}, values)

	timeCoord, ok := ds.Coords["time"]
	require.True(t, ok)
	timeValues, err := timeCoord.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{1e-9, 2e-9}, timeValues)
	assert.Equal(t, "s", timeCoord.Attrs["units"])
	assert.Equal(t, "Time", timeCoord.Attrs["long_name"])

	// Grid coordinates keep their single-file form.
	nodes, ok := ds.Coords["X_Grid"]
	require.True(t, ok)
	assert.Equal(t, []string{"X_Grid"}, nodes.Dims)
	assert.Equal(t, []int{5}, nodes.Shape)

	// Attributes the files disagree on are dropped, shared ones kept.
	assert.Equal(t, "Epoch1d", ds.Attrs["code_name"])
	_, ok = ds.Attrs["filename"]
	assert.False(t, ok)
	_, ok = ds.Attrs["time"]
	assert.False(t, ok)
}

func TestOpenMultiUnifiedMissingVariable(t *testing.T) {
	paths := writeSeries(t, t.TempDir(), []float64{1e-9, 2e-9}, map[int]bool{1: true})

	ds, err := OpenMulti(paths)
	require.NoError(t, err)
	defer ds.Close()

	// Temperature only exists in the second file; the first file's slot is
	// NaN-filled.
	temp, ok := ds.Get("Derived_Temperature")
	require.True(t, ok)
	assert.Equal(t, []string{"time", "X_Grid"}, temp.Dims)
	assert.Equal(t, []int{2, 5}, temp.Shape)

	values, err := temp.Values()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		assert.True(t, math.IsNaN(values[i]), "slot %d should be NaN", i)
	}
	assert.Equal(t, []float64{10, 20, 30, 40, 50}, values[5:])
}

func TestOpenMultiUnifiedConstants(t *testing.T) {
	paths := writeSeries(t, t.TempDir(), []float64{1e-9, 2e-9}, nil)

	ds, err := OpenMulti(paths)
	require.NoError(t, err)
	defer ds.Close()

	// Scalar constants become time series.
	laser, ok := ds.Get("Absorption_Total_Laser_Energy_Injected")
	require.True(t, ok)
	assert.Equal(t, []string{"time"}, laser.Dims)
	values, err := laser.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{12.5, 12.5}, values)
}

func TestOpenMultiJobIDMismatch(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "0000.sdf")
	b := filepath.Join(dir, "0001.sdf")
	writeSim(t, a, 1e-9, 100, nil)
	writeSim(t, b, 2e-9, 200, nil)

	_, err := OpenMulti([]string{a, b})
	require.ErrorIs(t, err, ErrJobIDMismatch)
	assert.Contains(t, err.Error(), "100")
	assert.Contains(t, err.Error(), "200")
}

func TestOpenMultiSingleFile(t *testing.T) {
	paths := writeSeries(t, t.TempDir(), []float64{1e-9}, nil)

	ds, err := OpenMulti(paths)
	require.NoError(t, err)
	defer ds.Close()

	// A one-file series still gets a length-one time axis, so downstream
	// code sees the same dimensionality regardless of series length.
	ex, _ := ds.Get("Electric_Field_Ex")
	assert.Equal(t, []int{1, 4}, ex.Shape)

	single, err := Open(paths[0])
	require.NoError(t, err)
	defer single.Close()
	exSingle, _ := single.Get("Electric_Field_Ex")
	assert.Equal(t, []int{4}, exSingle.Shape)
}

func TestOpenMultiPointCoords(t *testing.T) {
	paths := writeSeries(t, t.TempDir(), []float64{1e-9, 2e-9}, nil)

	ds, err := OpenMulti(paths, WithKeepParticles(true))
	require.NoError(t, err)
	defer ds.Close()

	// Particles move between outputs, so their coordinates expand along
	// the time axis.
	coord, ok := ds.Coords["X_Particles_proton"]
	require.True(t, ok)
	assert.Equal(t, []string{"time", "ID_proton"}, coord.Dims)
	assert.Equal(t, []int{2, 3}, coord.Shape)

	values, err := coord.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.1, 0.2, 0.3}, values)

	px, ok := ds.Get("Particles_Px_proton")
	require.True(t, ok)
	assert.Equal(t, []string{"time", "ID_proton"}, px.Dims)
}

func TestOpenMultiSeparateTimes(t *testing.T) {
	paths := writeSeries(t, t.TempDir(), []float64{1e-9, 2e-9, 3e-9},
		map[int]bool{0: true, 2: true})

	ds, err := OpenMulti(paths, WithSeparateTimes(true))
	require.NoError(t, err)
	defer ds.Close()

	ex, ok := ds.Get("Electric_Field_Ex")
	require.True(t, ok)
	temp, ok := ds.Get("Derived_Temperature")
	require.True(t, ok)

	exAxis := ex.Dims[0]
	tempAxis := temp.Dims[0]
	assert.NotEqual(t, exAxis, tempAxis)

	// The dense group spans all three files; Temperature's axis only its
	// two, with no NaN padding between them.
	assert.Equal(t, []int{3, 4}, ex.Shape)
	assert.Equal(t, []int{2, 5}, temp.Shape)
	values, err := temp.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30, 40, 50, 10, 20, 30, 40, 50}, values)

	// Each group has its own time coordinate.
	exTimes, ok := ds.Coords[exAxis]
	require.True(t, ok)
	exTimeValues, err := exTimes.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{1e-9, 2e-9, 3e-9}, exTimeValues)

	tempTimes, ok := ds.Coords[tempAxis]
	require.True(t, ok)
	tempTimeValues, err := tempTimes.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{1e-9, 3e-9}, tempTimeValues)
	assert.Equal(t, "s", tempTimes.Attrs["units"])
}

// writeParticleSnapshots writes one file per entry of momenta: each with a
// proton point mesh whose particle count is that entry's length.
func writeParticleSnapshots(t *testing.T, dir string, momenta [][]float64) []string {
	t.Helper()
	paths := make([]string, len(momenta))
	for i, px := range momenta {
		paths[i] = filepath.Join(dir, fmt.Sprintf("%04d.sdf", i))
		positions := make([]float64, len(px))
		for j := range positions {
			positions[j] = float64(j) / 10
		}
		w := sdf.NewWriter(paths[i],
			sdf.WithTime(float64(i+1)*1e-9),
			sdf.WithJobID(1, 1),
			sdf.WithCodeName("Epoch1d"),
		)
		w.PointMesh("grid_proton", "Grid/Particles/proton",
			[]string{"X"}, []string{"m"}, [][]float64{positions})
		w.PointVariable("px_proton", "Particles/Px/proton", "kg.m/s", "grid_proton", px)
		require.NoError(t, w.Flush())
	}
	return paths
}

func TestOpenMultiGrowingParticleCount(t *testing.T) {
	// Particle counts change between outputs as particles enter and leave
	// the domain; the identity axis widens to the largest count and the
	// narrower snapshots are NaN-padded, matching the coordinate.
	paths := writeParticleSnapshots(t, t.TempDir(), [][]float64{
		{10, 20},
		{30, 40, 50, 60},
	})

	ds, err := OpenMulti(paths, WithKeepParticles(true))
	require.NoError(t, err)
	defer ds.Close()

	px, ok := ds.Get("Particles_Px_proton")
	require.True(t, ok)
	assert.Equal(t, []string{"time", "ID_proton"}, px.Dims)
	assert.Equal(t, []int{2, 4}, px.Shape)

	values, err := px.Values()
	require.NoError(t, err)
	require.Len(t, values, 8)
	assert.Equal(t, []float64{10, 20}, values[:2])
	assert.True(t, math.IsNaN(values[2]))
	assert.True(t, math.IsNaN(values[3]))
	assert.Equal(t, []float64{30, 40, 50, 60}, values[4:])

	coord, ok := ds.Coords["X_Particles_proton"]
	require.True(t, ok)
	assert.Equal(t, px.Shape, coord.Shape)
	coordValues, err := coord.Values()
	require.NoError(t, err)
	assert.True(t, math.IsNaN(coordValues[2]))
	assert.Equal(t, []float64{0, 0.1, 0.2, 0.3}, coordValues[4:])
}

func TestOpenMultiShrinkingParticleCount(t *testing.T) {
	paths := writeParticleSnapshots(t, t.TempDir(), [][]float64{
		{10, 20, 30},
		{40},
	})

	ds, err := OpenMulti(paths, WithKeepParticles(true), WithSeparateTimes(true))
	require.NoError(t, err)
	defer ds.Close()

	px, ok := ds.Get("Particles_Px_proton")
	require.True(t, ok)
	assert.Equal(t, []int{2, 3}, px.Shape)

	values, err := px.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, values[:3])
	assert.Equal(t, 40.0, values[3])
	assert.True(t, math.IsNaN(values[4]))
	assert.True(t, math.IsNaN(values[5]))
}

func TestOpenMultiShapeMismatch(t *testing.T) {
	// Gridded extents are fixed by the run's geometry; a rank-2 array whose
	// shape changes between files is corrupt input and must fail, not pad.
	dir := t.TempDir()
	a := filepath.Join(dir, "0000.sdf")
	b := filepath.Join(dir, "0001.sdf")
	writeSim(t, a, 1e-9, 1, func(w *sdf.Writer) {
		w.PlainVariable("hist", "dist_fn/x_px/electron", "", "", []int{2, 3}, 0,
			[]float64{1, 2, 3, 4, 5, 6})
	})
	writeSim(t, b, 2e-9, 1, func(w *sdf.Writer) {
		w.PlainVariable("hist", "dist_fn/x_px/electron", "", "", []int{2, 4}, 0,
			[]float64{1, 2, 3, 4, 5, 6, 7, 8})
	})

	_, err := OpenMulti([]string{a, b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dist_fn_x_px_electron")
}

func TestOpenMultiNormalizesPaths(t *testing.T) {
	paths := writeSeries(t, t.TempDir(), []float64{1e-9, 2e-9}, nil)

	// Unsorted and duplicated input gets one chronological time axis.
	ds, err := OpenMulti([]string{paths[1], paths[0], paths[1]})
	require.NoError(t, err)
	defer ds.Close()

	timeCoord, ok := ds.Coords["time"]
	require.True(t, ok)
	assert.Equal(t, []int{2}, timeCoord.Shape)
	values, err := timeCoord.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{1e-9, 2e-9}, values)
}

func TestCombineCoordsGroupLookupFailure(t *testing.T) {
	coord := NewVariable([]string{"ID_proton"}, []int{2}, []float64{0.1, 0.2}, Attrs{
		"point_data": true,
		"full_name":  "Grid/Particles/proton",
	})
	file := &Dataset{
		Vars:   map[string]*Variable{},
		Coords: map[string]*Variable{"X_Particles_proton": coord},
	}
	out := &Dataset{
		Vars:   map[string]*Variable{},
		Coords: map[string]*Variable{},
		Attrs:  Attrs{},
	}

	// A point coordinate whose grid matches no time group is an internal
	// inconsistency and must surface, not land on an arbitrary axis.
	lookupErr := fmt.Errorf("no time group for coordinate grid %q", "Grid/Particles/proton")
	err := combineCoords(out, []*Dataset{file}, false, func(string) (string, error) {
		return "", lookupErr
	})
	require.ErrorIs(t, err, lookupErr)
	assert.Empty(t, out.Coords)
}

func TestOpenMultiEmpty(t *testing.T) {
	_, err := OpenMulti(nil)
	assert.Error(t, err)
}

func TestOpenMultiClosesOnFailure(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "0000.sdf")
	writeSim(t, a, 1e-9, 1, nil)
	missing := filepath.Join(dir, "absent.sdf")

	_, err := OpenMulti([]string{a, missing})
	require.Error(t, err)

	// The first file's handle must have been released: a fresh open and
	// close cycle works and fully tears down.
	ds, err := Open(a)
	require.NoError(t, err)
	require.NoError(t, ds.Close())
}

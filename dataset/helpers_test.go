package dataset

import (
	"testing"

	"github.com/PlasmaFAIR/sdf-xarray/sdf"
)

// writeSim writes a small 1D simulation snapshot: a five-node grid with its
// midpoint variant, a midpoint-staggered field, a node-centred field, one
// particle species, a scalar constant and run info. extra, if non-nil, adds
// further blocks before the file is flushed.
func writeSim(t *testing.T, path string, time float64, jobID int32, extra func(w *sdf.Writer)) {
	t.Helper()

	nodes := []float64{0, 1, 2, 3, 4}
	mids := []float64{0.5, 1.5, 2.5, 3.5}

	w := sdf.NewWriter(path,
		sdf.WithTime(time),
		sdf.WithStep(10),
		sdf.WithJobID(jobID, 1),
		sdf.WithCodeName("Epoch1d"),
	)
	w.PlainMesh("grid", "Grid/Grid", []string{"X"}, []string{"m"}, [][]float64{nodes})
	w.PlainMesh("grid_mid", "Grid/Grid_mid", []string{"X"}, []string{"m"}, [][]float64{mids})
	w.PlainVariable("ex", "Electric Field/Ex", "V/m", "grid", []int{4}, 1, []float64{1, 2, 3, 4})
	w.PlainVariable("bz", "Magnetic Field/Bz", "T", "grid", []int{5}, 0, []float64{5, 6, 7, 8, 9})
	w.PointMesh("grid_proton", "Grid/Particles/proton",
		[]string{"X"}, []string{"m"}, [][]float64{{0.1, 0.2, 0.3}})
	w.PointVariable("px_proton", "Particles/Px/proton", "kg.m/s", "grid_proton",
		[]float64{-1, 0, 1})
	w.Constant("laser_en", "Absorption/Total Laser Energy Injected", "J", 12.5)
	w.RunInfo(1, 4, "deadbeef")
	if extra != nil {
		extra(w)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
}

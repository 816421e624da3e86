package sdf

import (
	"fmt"
	"os"

	"github.com/PlasmaFAIR/sdf-xarray/internal/binary"
	"github.com/PlasmaFAIR/sdf-xarray/internal/dtype"
)

// defaultStringLength is the block-name slot width for files we produce.
const defaultStringLength = 64

// WriterOption configures file-level header fields.
type WriterOption func(*Writer)

// WithTime sets the simulation time recorded in the header.
func WithTime(t float64) WriterOption {
	return func(w *Writer) { w.header.Time = t }
}

// WithStep sets the simulation step recorded in the header.
func WithStep(step int32) WriterOption {
	return func(w *Writer) { w.header.Step = step }
}

// WithJobID sets the job identifier pair recorded in the header.
func WithJobID(id1, id2 int32) WriterOption {
	return func(w *Writer) {
		w.header.JobID1 = id1
		w.header.JobID2 = id2
	}
}

// WithCodeName sets the producing code's name recorded in the header.
func WithCodeName(name string) WriterOption {
	return func(w *Writer) { w.header.CodeName = name }
}

// WithRestart marks the file as a restart dump.
func WithRestart() WriterOption {
	return func(w *Writer) { w.header.Restart = true }
}

// stagedBlock is a block waiting for offset assignment.
type stagedBlock struct {
	id        string
	name      string
	blockType BlockType
	dataType  dtype.Type
	ndims     int32
	meta      []byte
	data      []byte
}

// Writer builds an SDF file in memory and flushes it in a single pass,
// mirroring how files are read: fixed header, then a chain of blocks, each
// block's payload following its metadata.
type Writer struct {
	path   string
	header Header
	blocks []stagedBlock
	err    error
}

// NewWriter prepares an SDF file at the given path. Nothing touches the
// filesystem until Flush.
func NewWriter(path string, opts ...WriterOption) *Writer {
	w := &Writer{
		path: path,
		header: Header{
			CodeName:          "sdf-xarray",
			SDFVersion:        1,
			SDFRevision:       4,
			StringLength:      defaultStringLength,
			BlockHeaderLength: 68 + defaultStringLength,
			CodeIOVersion:     1,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// fail records the first staging error; Flush reports it.
func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// PlainMesh stages a grid block: one coordinate array per axis.
func (w *Writer) PlainMesh(id, name string, labels, units []string, axes [][]float64) {
	ndims := len(axes)
	if len(labels) != ndims || len(units) != ndims {
		w.fail(fmt.Errorf("mesh %q: %d axes but %d labels, %d units", name, ndims, len(labels), len(units)))
		return
	}

	meta := binary.NewWriter()
	for range axes {
		meta.WriteFloat64(1.0)
	}
	for _, l := range labels {
		meta.WriteString(l, idLength)
	}
	for _, u := range units {
		meta.WriteString(u, idLength)
	}
	meta.WriteInt32(0) // cartesian geometry
	for _, axis := range axes {
		meta.WriteFloat64(minOf(axis))
	}
	for _, axis := range axes {
		meta.WriteFloat64(maxOf(axis))
	}
	for _, axis := range axes {
		meta.WriteInt32(int32(len(axis)))
	}

	data := binary.NewWriter()
	for _, axis := range axes {
		raw, err := dtype.Encode(dtype.Real8, axis)
		if err != nil {
			w.fail(err)
			return
		}
		data.WriteBytes(raw)
	}

	w.blocks = append(w.blocks, stagedBlock{
		id:        id,
		name:      name,
		blockType: BlockPlainMesh,
		dataType:  dtype.Real8,
		ndims:     int32(ndims),
		meta:      meta.Bytes(),
		data:      data.Bytes(),
	})
}

// PointMesh stages a particle-position grid: one array per axis, all of the
// same length (the particle count).
func (w *Writer) PointMesh(id, name string, labels, units []string, axes [][]float64) {
	ndims := len(axes)
	if ndims == 0 {
		w.fail(fmt.Errorf("point mesh %q has no axes", name))
		return
	}
	npoints := len(axes[0])
	for _, axis := range axes {
		if len(axis) != npoints {
			w.fail(fmt.Errorf("point mesh %q: ragged axis lengths", name))
			return
		}
	}

	meta := binary.NewWriter()
	for range axes {
		meta.WriteFloat64(1.0)
	}
	for _, l := range labels {
		meta.WriteString(l, idLength)
	}
	for _, u := range units {
		meta.WriteString(u, idLength)
	}
	meta.WriteInt32(0)
	for _, axis := range axes {
		meta.WriteFloat64(minOf(axis))
	}
	for _, axis := range axes {
		meta.WriteFloat64(maxOf(axis))
	}
	meta.WriteInt64(int64(npoints))

	data := binary.NewWriter()
	for _, axis := range axes {
		raw, err := dtype.Encode(dtype.Real8, axis)
		if err != nil {
			w.fail(err)
			return
		}
		data.WriteBytes(raw)
	}

	w.blocks = append(w.blocks, stagedBlock{
		id:        id,
		name:      name,
		blockType: BlockPointMesh,
		dataType:  dtype.Real8,
		ndims:     int32(ndims),
		meta:      meta.Bytes(),
		data:      data.Bytes(),
	})
}

// PlainVariable stages a field variable defined on the mesh with the given id.
// Pass an empty meshID for gridless arrays.
func (w *Writer) PlainVariable(id, name, units, meshID string, dims []int, stagger int32, values []float64) {
	n := 1
	for _, d := range dims {
		n *= d
	}
	if n != len(values) {
		w.fail(fmt.Errorf("variable %q: dims %v need %d values, got %d", name, dims, n, len(values)))
		return
	}

	meta := binary.NewWriter()
	meta.WriteFloat64(1.0)
	meta.WriteString(units, idLength)
	meta.WriteString(meshID, idLength)
	for _, d := range dims {
		meta.WriteInt32(int32(d))
	}
	meta.WriteInt32(stagger)

	raw, err := dtype.Encode(dtype.Real8, values)
	if err != nil {
		w.fail(err)
		return
	}

	w.blocks = append(w.blocks, stagedBlock{
		id:        id,
		name:      name,
		blockType: BlockPlainVariable,
		dataType:  dtype.Real8,
		ndims:     int32(len(dims)),
		meta:      meta.Bytes(),
		data:      raw,
	})
}

// PointVariable stages a per-particle variable tied to a point mesh.
func (w *Writer) PointVariable(id, name, units, meshID string, values []float64) {
	meta := binary.NewWriter()
	meta.WriteFloat64(1.0)
	meta.WriteString(units, idLength)
	meta.WriteString(meshID, idLength)
	meta.WriteInt64(int64(len(values)))

	raw, err := dtype.Encode(dtype.Real8, values)
	if err != nil {
		w.fail(err)
		return
	}

	w.blocks = append(w.blocks, stagedBlock{
		id:        id,
		name:      name,
		blockType: BlockPointVariable,
		dataType:  dtype.Real8,
		ndims:     1,
		meta:      meta.Bytes(),
		data:      raw,
	})
}

// Constant stages a scalar constant stored inline in block metadata.
func (w *Writer) Constant(id, name, units string, value float64) {
	meta := binary.NewWriter()
	meta.WriteString(units, idLength)
	raw, err := dtype.Encode(dtype.Real8, []float64{value})
	if err != nil {
		w.fail(err)
		return
	}
	meta.WriteBytes(raw)

	w.blocks = append(w.blocks, stagedBlock{
		id:        id,
		name:      name,
		blockType: BlockConstant,
		dataType:  dtype.Real8,
		ndims:     0,
		meta:      meta.Bytes(),
	})
}

// StringConstant stages a character constant.
func (w *Writer) StringConstant(id, name, value string) {
	meta := binary.NewWriter()
	meta.WriteString("", idLength)
	meta.WriteString(value, defaultStringLength)

	w.blocks = append(w.blocks, stagedBlock{
		id:        id,
		name:      name,
		blockType: BlockConstant,
		dataType:  dtype.Character,
		ndims:     0,
		meta:      meta.Bytes(),
	})
}

// RunInfo stages the run metadata block.
func (w *Writer) RunInfo(version, revision int32, commit string) {
	meta := binary.NewWriter()
	meta.WriteInt32(version)
	meta.WriteInt32(revision)
	meta.WriteString(commit, idLength)
	meta.WriteInt32(0) // run date
	meta.WriteInt32(0) // io date

	w.blocks = append(w.blocks, stagedBlock{
		id:        "run_info",
		name:      "Run_info",
		blockType: BlockRunInfo,
		dataType:  dtype.Null,
		ndims:     0,
		meta:      meta.Bytes(),
	})
}

// Flush assigns offsets and writes the whole file.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}

	blockHeaderLength := int64(w.header.BlockHeaderLength)

	// Pass one: assign block offsets. Each block is header, metadata, then
	// payload; the next block starts right after the payload.
	type layout struct {
		header int64
		data   int64
		next   int64
	}
	layouts := make([]layout, len(w.blocks))
	location := int64(headerLength)
	for i, b := range w.blocks {
		l := layout{header: location}
		l.data = location + blockHeaderLength + int64(len(b.meta))
		l.next = l.data + int64(len(b.data))
		layouts[i] = l
		location = l.next
	}

	w.header.FirstBlockLocation = headerLength
	w.header.SummaryLocation = location
	w.header.NBlocks = int32(len(w.blocks))

	// Pass two: emit.
	out := binary.NewWriter()
	w.header.write(out)
	for i, b := range w.blocks {
		l := layouts[i]
		dataLocation := l.data
		if len(b.data) == 0 {
			dataLocation = 0
		}
		out.WriteInt64(l.next)
		out.WriteInt64(dataLocation)
		out.WriteString(b.id, idLength)
		out.WriteInt64(int64(len(b.data)))
		out.WriteInt32(int32(b.blockType))
		out.WriteInt32(int32(b.dataType))
		out.WriteInt32(b.ndims)
		out.WriteString(b.name, int(w.header.StringLength))
		out.WriteBytes(b.meta)
		out.WriteBytes(b.data)
	}

	return os.WriteFile(w.path, out.Bytes(), 0644)
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

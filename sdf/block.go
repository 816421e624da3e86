package sdf

import (
	"fmt"

	"github.com/PlasmaFAIR/sdf-xarray/internal/binary"
	"github.com/PlasmaFAIR/sdf-xarray/internal/dtype"
)

// BlockType identifies the kind of a block, using the numeric codes from the
// SDF format. Types not listed here are skipped during parsing.
type BlockType int32

const (
	BlockNull          BlockType = 0
	BlockPlainMesh     BlockType = 1
	BlockPointMesh     BlockType = 2
	BlockPlainVariable BlockType = 3
	BlockPointVariable BlockType = 4
	BlockConstant      BlockType = 5
	BlockArray         BlockType = 6
	BlockRunInfo       BlockType = 7
)

// blockHeader is the fixed common prefix of every block.
type blockHeader struct {
	nextBlock    int64
	dataLocation int64
	id           string
	dataLength   int64
	blockType    BlockType
	dataType     dtype.Type
	ndims        int32
	name         string
}

func readBlockHeader(r *binary.Reader, stringLength int) (*blockHeader, error) {
	var (
		b   blockHeader
		err error
	)
	if b.nextBlock, err = r.ReadInt64(); err != nil {
		return nil, err
	}
	if b.dataLocation, err = r.ReadInt64(); err != nil {
		return nil, err
	}
	if b.id, err = r.ReadString(idLength); err != nil {
		return nil, err
	}
	if b.dataLength, err = r.ReadInt64(); err != nil {
		return nil, err
	}

	bt, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	b.blockType = BlockType(bt)

	dt, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	b.dataType = dtype.Type(dt)

	if b.ndims, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if b.name, err = r.ReadString(stringLength); err != nil {
		return nil, err
	}
	return &b, nil
}

// Mesh is a coordinate grid block: one coordinate array per axis, either on
// grid nodes (plain mesh) or one entry per particle (point mesh).
type Mesh struct {
	ID     string
	Name   string
	Labels []string
	Units  []string
	Mults  []float64
	MinVal []float64
	MaxVal []float64

	// Shape holds the per-axis array lengths. For point meshes every axis
	// has the same length (the particle count).
	Shape []int

	Geometry    int32
	IsPointData bool
	Type        dtype.Type

	file         *File
	dataLocation int64
}

// Data reads the per-axis coordinate arrays.
func (m *Mesh) Data() ([][]float64, error) {
	m.file.mu.Lock()
	defer m.file.mu.Unlock()
	return m.readData()
}

// readData is the unlocked read used by File while assembling.
func (m *Mesh) readData() ([][]float64, error) {
	if m.file.closed {
		return nil, ErrClosed
	}

	out := make([][]float64, len(m.Shape))
	offset := m.dataLocation
	size := int64(m.Type.Size())
	for i, n := range m.Shape {
		raw, err := m.file.reader.At(offset).ReadBytes(n * int(size))
		if err != nil {
			return nil, fmt.Errorf("reading mesh %q axis %d: %w", m.Name, i, err)
		}
		axis, err := dtype.Decode(m.Type, raw, n)
		if err != nil {
			return nil, fmt.Errorf("decoding mesh %q axis %d: %w", m.Name, i, err)
		}
		out[i] = axis
		offset += int64(n) * size
	}
	return out, nil
}

// Variable is a data block defined either on a mesh (field variable), per
// particle (point variable), or on nothing at all. Payloads are read on
// demand via Read.
type Variable struct {
	ID    string
	Name  string
	Units string
	Mult  float64

	// Grid and GridMid are the names of the owning mesh and its midpoint
	// (cell-centre) variant; both are empty for gridless variables.
	Grid    string
	GridMid string

	Shape       []int
	Stagger     int32
	IsPointData bool
	Type        dtype.Type

	file         *File
	dataLocation int64
	dataLength   int64
}

// NumElements returns the total payload element count.
func (v *Variable) NumElements() int {
	n := 1
	for _, d := range v.Shape {
		n *= d
	}
	return n
}

// Read reads the whole payload, decoded to float64. The caller must not hold
// the file's own lock; use ReadLocked from inside a locked region.
func (v *Variable) Read() ([]float64, error) {
	v.file.mu.Lock()
	defer v.file.mu.Unlock()
	return v.ReadLocked()
}

// ReadLocked reads the payload without re-acquiring the file lock.
func (v *Variable) ReadLocked() ([]float64, error) {
	if v.file.closed {
		return nil, ErrClosed
	}

	n := v.NumElements()
	raw, err := v.file.reader.At(v.dataLocation).ReadBytes(n * v.Type.Size())
	if err != nil {
		return nil, fmt.Errorf("reading variable %q: %w", v.Name, err)
	}
	return dtype.Decode(v.Type, raw, n)
}

// Constant is a scalar block whose value is stored inline in the block
// metadata rather than in a payload section.
type Constant struct {
	ID    string
	Name  string
	Units string
	Type  dtype.Type

	value any
}

// Value returns the constant's value: float64 for numeric types, string for
// character constants.
func (c *Constant) Value() any {
	return c.value
}

// Float returns the value as a float64 if the constant is numeric.
func (c *Constant) Float() (float64, bool) {
	f, ok := c.value.(float64)
	return f, ok
}

// parseBlock dispatches on block type; unknown types return (nil handled) so
// the file walk can skip them.
func (f *File) parseBlock(b *blockHeader, r *binary.Reader) error {
	switch b.blockType {
	case BlockPlainMesh, BlockPointMesh:
		return f.parseMesh(b, r)
	case BlockPlainVariable, BlockPointVariable:
		return f.parseVariable(b, r)
	case BlockConstant:
		return f.parseConstant(b, r)
	case BlockRunInfo:
		return f.parseRunInfo(b, r)
	default:
		// Skipped: station, stitched and derived blocks carry no data the
		// dataset layer consumes.
		return nil
	}
}

func (f *File) parseMesh(b *blockHeader, r *binary.Reader) error {
	ndims := int(b.ndims)
	m := &Mesh{
		ID:           b.id,
		Name:         b.name,
		IsPointData:  b.blockType == BlockPointMesh,
		Type:         b.dataType,
		file:         f,
		dataLocation: b.dataLocation,
		Mults:        make([]float64, ndims),
		Labels:       make([]string, ndims),
		Units:        make([]string, ndims),
		MinVal:       make([]float64, ndims),
		MaxVal:       make([]float64, ndims),
	}

	var err error
	for i := range m.Mults {
		if m.Mults[i], err = r.ReadFloat64(); err != nil {
			return err
		}
	}
	for i := range m.Labels {
		if m.Labels[i], err = r.ReadString(idLength); err != nil {
			return err
		}
	}
	for i := range m.Units {
		if m.Units[i], err = r.ReadString(idLength); err != nil {
			return err
		}
	}
	if m.Geometry, err = r.ReadInt32(); err != nil {
		return err
	}
	for i := range m.MinVal {
		if m.MinVal[i], err = r.ReadFloat64(); err != nil {
			return err
		}
	}
	for i := range m.MaxVal {
		if m.MaxVal[i], err = r.ReadFloat64(); err != nil {
			return err
		}
	}

	m.Shape = make([]int, ndims)
	if m.IsPointData {
		npoints, err := r.ReadInt64()
		if err != nil {
			return err
		}
		for i := range m.Shape {
			m.Shape[i] = int(npoints)
		}
	} else {
		for i := range m.Shape {
			d, err := r.ReadInt32()
			if err != nil {
				return err
			}
			m.Shape[i] = int(d)
		}
	}

	f.grids[m.Name] = m
	f.gridsByID[m.ID] = m
	return nil
}

func (f *File) parseVariable(b *blockHeader, r *binary.Reader) error {
	v := &Variable{
		ID:           b.id,
		Name:         b.name,
		IsPointData:  b.blockType == BlockPointVariable,
		Type:         b.dataType,
		file:         f,
		dataLocation: b.dataLocation,
		dataLength:   b.dataLength,
	}

	var err error
	if v.Mult, err = r.ReadFloat64(); err != nil {
		return err
	}
	if v.Units, err = r.ReadString(idLength); err != nil {
		return err
	}

	meshID, err := r.ReadString(idLength)
	if err != nil {
		return err
	}

	if v.IsPointData {
		npoints, err := r.ReadInt64()
		if err != nil {
			return err
		}
		v.Shape = []int{int(npoints)}
	} else {
		v.Shape = make([]int, int(b.ndims))
		for i := range v.Shape {
			d, err := r.ReadInt32()
			if err != nil {
				return err
			}
			v.Shape[i] = int(d)
		}
		if v.Stagger, err = r.ReadInt32(); err != nil {
			return err
		}
	}

	// Mesh references are resolved to block names once the whole block list
	// is parsed; record the raw id for now.
	if meshID != "" {
		f.pendingMesh[v] = meshID
	}

	f.variables[v.Name] = v
	return nil
}

func (f *File) parseConstant(b *blockHeader, r *binary.Reader) error {
	c := &Constant{ID: b.id, Name: b.name, Type: b.dataType}

	units, err := r.ReadString(idLength)
	if err != nil {
		return err
	}
	c.Units = units

	switch b.dataType {
	case dtype.Character:
		s, err := r.ReadString(int(f.header.StringLength))
		if err != nil {
			return err
		}
		c.value = s
	default:
		size := b.dataType.Size()
		if size == 0 {
			return fmt.Errorf("constant %q: %w: %s value", b.name, ErrUnsupported, b.dataType)
		}
		raw, err := r.ReadBytes(size)
		if err != nil {
			return err
		}
		vals, err := dtype.Decode(b.dataType, raw, 1)
		if err != nil {
			return fmt.Errorf("constant %q: %w", b.name, err)
		}
		c.value = vals[0]
	}

	f.constants[c.Name] = c
	return nil
}

func (f *File) parseRunInfo(b *blockHeader, r *binary.Reader) error {
	version, err := r.ReadInt32()
	if err != nil {
		return err
	}
	revision, err := r.ReadInt32()
	if err != nil {
		return err
	}
	commit, err := r.ReadString(idLength)
	if err != nil {
		return err
	}
	runDate, err := r.ReadInt32()
	if err != nil {
		return err
	}
	ioDate, err := r.ReadInt32()
	if err != nil {
		return err
	}

	f.runInfo = map[string]any{
		"code_version":  version,
		"code_revision": revision,
		"commit_id":     commit,
		"run_date":      runDate,
		"io_date":       ioDate,
	}
	return nil
}

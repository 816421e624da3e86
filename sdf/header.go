package sdf

import (
	"fmt"

	"github.com/PlasmaFAIR/sdf-xarray/internal/binary"
)

const (
	// Magic is the 4-byte marker at the start of every SDF file.
	Magic = "SDF1"

	// endianness is the value 0x0102_030F as written by a little-endian
	// producer; any other byte order shows up as a different integer.
	endianness = 16911887

	// idLength is the fixed width of block ids, axis labels and unit strings.
	idLength = 32

	// headerLength is the size of the fixed file header; the first block
	// header starts here.
	headerLength = 106
)

// Header is the fixed-layout file header of an SDF file.
type Header struct {
	CodeName           string
	SDFVersion         int32
	SDFRevision        int32
	FirstBlockLocation int64
	SummaryLocation    int64
	SummarySize        int32
	NBlocks            int32
	BlockHeaderLength  int32
	Step               int32
	Time               float64
	JobID1             int32
	JobID2             int32
	StringLength       int32
	CodeIOVersion      int32
	Restart            bool
	SubdomainFile      bool
}

// readHeader parses and validates the file header.
func readHeader(r *binary.Reader) (*Header, error) {
	magic, err := r.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if string(magic) != Magic {
		return nil, ErrNotSDF
	}

	endian, err := r.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading endianness: %w", err)
	}
	if endian != endianness {
		return nil, fmt.Errorf("%w: big-endian SDF files", ErrUnsupported)
	}

	h := &Header{}
	if h.SDFVersion, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if h.SDFRevision, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if h.CodeName, err = r.ReadString(idLength); err != nil {
		return nil, err
	}
	if h.FirstBlockLocation, err = r.ReadInt64(); err != nil {
		return nil, err
	}
	if h.SummaryLocation, err = r.ReadInt64(); err != nil {
		return nil, err
	}
	if h.SummarySize, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if h.NBlocks, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if h.BlockHeaderLength, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if h.Step, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if h.Time, err = r.ReadFloat64(); err != nil {
		return nil, err
	}
	if h.JobID1, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if h.JobID2, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if h.StringLength, err = r.ReadInt32(); err != nil {
		return nil, err
	}
	if h.CodeIOVersion, err = r.ReadInt32(); err != nil {
		return nil, err
	}

	restart, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	h.Restart = restart != 0

	subdomain, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	h.SubdomainFile = subdomain != 0

	if h.StringLength <= 0 || h.FirstBlockLocation < headerLength {
		return nil, fmt.Errorf("corrupt SDF header: string length %d, first block at %d",
			h.StringLength, h.FirstBlockLocation)
	}

	return h, nil
}

func (h *Header) write(w *binary.Writer) {
	w.WriteBytes([]byte(Magic))
	w.WriteInt32(endianness)
	w.WriteInt32(h.SDFVersion)
	w.WriteInt32(h.SDFRevision)
	w.WriteString(h.CodeName, idLength)
	w.WriteInt64(h.FirstBlockLocation)
	w.WriteInt64(h.SummaryLocation)
	w.WriteInt32(h.SummarySize)
	w.WriteInt32(h.NBlocks)
	w.WriteInt32(h.BlockHeaderLength)
	w.WriteInt32(h.Step)
	w.WriteFloat64(h.Time)
	w.WriteInt32(h.JobID1)
	w.WriteInt32(h.JobID2)
	w.WriteInt32(h.StringLength)
	w.WriteInt32(h.CodeIOVersion)
	if h.Restart {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
	if h.SubdomainFile {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

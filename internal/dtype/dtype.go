// Package dtype describes the element types an SDF block can carry and
// converts raw block payloads into Go values.
package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Type identifies the on-disk element type of a block payload, using the
// numeric codes from the SDF format.
type Type int32

const (
	Null      Type = 0
	Integer4  Type = 1
	Integer8  Type = 2
	Real4     Type = 3
	Real8     Type = 4
	Real16    Type = 5
	Character Type = 6
	Logical   Type = 7
	Other     Type = 8
)

// Size returns the element size in bytes, or 0 for types with no fixed size.
func (t Type) Size() int {
	switch t {
	case Integer4, Real4:
		return 4
	case Integer8, Real8:
		return 8
	case Real16:
		return 16
	case Character, Logical:
		return 1
	default:
		return 0
	}
}

// Numeric reports whether payloads of this type can be decoded to float64.
func (t Type) Numeric() bool {
	switch t {
	case Integer4, Integer8, Real4, Real8, Logical:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	switch t {
	case Null:
		return "null"
	case Integer4:
		return "integer4"
	case Integer8:
		return "integer8"
	case Real4:
		return "real4"
	case Real8:
		return "real8"
	case Real16:
		return "real16"
	case Character:
		return "character"
	case Logical:
		return "logical"
	case Other:
		return "other"
	default:
		return fmt.Sprintf("dtype(%d)", int32(t))
	}
}

// Decode converts a raw little-endian payload of n elements to float64s.
func Decode(t Type, raw []byte, n int) ([]float64, error) {
	size := t.Size()
	if size == 0 || !t.Numeric() {
		return nil, fmt.Errorf("cannot decode %s payload to float64", t)
	}
	if len(raw) < n*size {
		return nil, fmt.Errorf("short payload: have %d bytes, need %d for %d %s elements",
			len(raw), n*size, n, t)
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		chunk := raw[i*size:]
		switch t {
		case Integer4:
			out[i] = float64(int32(binary.LittleEndian.Uint32(chunk)))
		case Integer8:
			out[i] = float64(int64(binary.LittleEndian.Uint64(chunk)))
		case Real4:
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(chunk)))
		case Real8:
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(chunk))
		case Logical:
			if chunk[0] != 0 {
				out[i] = 1
			}
		}
	}
	return out, nil
}

// Encode converts float64 values into a raw little-endian payload.
// It is the inverse of Decode for the numeric types.
func Encode(t Type, values []float64) ([]byte, error) {
	size := t.Size()
	if size == 0 || !t.Numeric() {
		return nil, fmt.Errorf("cannot encode float64 values as %s", t)
	}

	raw := make([]byte, len(values)*size)
	for i, v := range values {
		chunk := raw[i*size:]
		switch t {
		case Integer4:
			binary.LittleEndian.PutUint32(chunk, uint32(int32(v)))
		case Integer8:
			binary.LittleEndian.PutUint64(chunk, uint64(int64(v)))
		case Real4:
			binary.LittleEndian.PutUint32(chunk, math.Float32bits(float32(v)))
		case Real8:
			binary.LittleEndian.PutUint64(chunk, math.Float64bits(v))
		case Logical:
			if v != 0 {
				chunk[0] = 1
			}
		}
	}
	return raw, nil
}

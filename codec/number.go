package codec

import (
	"github.com/pkg/errors"

	"github.com/outofforest/mpi/types"
	"github.com/outofforest/mpi/wire"
)

// encodeNumeric encodes numbers and numeric slices not covered by scalar wrappers.
// Slices produce exactly the same frame and payload as fixed-capacity buffers.
func encodeNumeric(v any) (wire.Frame, []byte, bool) {
	switch v := v.(type) {
	case int8:
		return number(v)
	case int16:
		return number(v)
	case int32:
		return number(v)
	case uint8:
		return number(v)
	case uint16:
		return number(v)
	case uint32:
		return number(v)
	case float32:
		return number(v)
	case []int8:
		return buffer(v)
	case []int16:
		return buffer(v)
	case []int32:
		return buffer(v)
	case []int64:
		return buffer(v)
	case []uint16:
		return buffer(v)
	case []uint32:
		return buffer(v)
	case []uint64:
		return buffer(v)
	case []float32:
		return buffer(v)
	case []float64:
		return buffer(v)
	default:
		return wire.Frame{}, nil, false
	}
}

func number[T Numeric](v T) (wire.Frame, []byte, bool) {
	buf := []T{v}
	frame := BufferFrame(buf)
	frame.Kind = wire.KindNumber
	return frame, Bytes(buf), true
}

func buffer[T Numeric](v []T) (wire.Frame, []byte, bool) {
	return BufferFrame(v), Bytes(v), true
}

func decodeNumeric(frame wire.Frame, b []byte) (any, error) {
	switch frame.Element {
	case wire.ElementInt8:
		return unpackNumeric[int8](frame, b)
	case wire.ElementInt16:
		return unpackNumeric[int16](frame, b)
	case wire.ElementInt32:
		return unpackNumeric[int32](frame, b)
	case wire.ElementInt64:
		return unpackNumeric[int64](frame, b)
	case wire.ElementUint8:
		return unpackNumeric[uint8](frame, b)
	case wire.ElementUint16:
		return unpackNumeric[uint16](frame, b)
	case wire.ElementUint32:
		return unpackNumeric[uint32](frame, b)
	case wire.ElementUint64:
		return unpackNumeric[uint64](frame, b)
	case wire.ElementFloat32:
		return unpackNumeric[float32](frame, b)
	case wire.ElementFloat64:
		return unpackNumeric[float64](frame, b)
	default:
		return nil, errors.Wrapf(types.ErrShapeMismatch, "unknown element %d", frame.Element)
	}
}

func unpackNumeric[T Numeric](frame wire.Frame, b []byte) (any, error) {
	if frame.Kind != wire.KindNumber {
		return UnpackNew[T](frame, b)
	}
	if frame.Count != 1 {
		return nil, errors.Wrapf(types.ErrShapeMismatch, "single number expected, got %d", frame.Count)
	}
	var v [1]T
	if err := CopyInto(v[:], b); err != nil {
		return nil, err
	}
	return v[0], nil
}

package codec

import (
	"reflect"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/outofforest/mpi/types"
	"github.com/outofforest/mpi/wire"
)

// Numeric lists element types accepted by fixed-capacity buffers.
type Numeric interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// ElementOf returns the wire element type of T.
func ElementOf[T Numeric]() wire.Element {
	switch reflect.TypeFor[T]().Kind() {
	case reflect.Int8:
		return wire.ElementInt8
	case reflect.Int16:
		return wire.ElementInt16
	case reflect.Int32:
		return wire.ElementInt32
	case reflect.Int64:
		return wire.ElementInt64
	case reflect.Uint8:
		return wire.ElementUint8
	case reflect.Uint16:
		return wire.ElementUint16
	case reflect.Uint32:
		return wire.ElementUint32
	case reflect.Uint64:
		return wire.ElementUint64
	case reflect.Float32:
		return wire.ElementFloat32
	case reflect.Float64:
		return wire.ElementFloat64
	default:
		return wire.ElementNone
	}
}

// Bytes returns the memory of the slice viewed as bytes. No copy is made.
// Bytes travel in the native byte order of the host, so all the ranks must share it.
func Bytes[T Numeric](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(s[0])))
}

// CopyInto copies received bytes into the buffer. The size must match exactly.
func CopyInto[T Numeric](dst []T, b []byte) error {
	view := Bytes(dst)
	if len(view) != len(b) {
		return errors.Wrapf(types.ErrShapeMismatch, "expected %d bytes, got %d", len(view), len(b))
	}
	copy(view, b)
	return nil
}

// BufferFrame returns the frame describing the buffer.
func BufferFrame[T Numeric](buf []T) wire.Frame {
	return wire.Frame{
		Kind:    wire.KindBuffer,
		Element: ElementOf[T](),
		Count:   uint64(len(buf)),
	}
}

// Unpack verifies that the frame carries the buffer of the same element type and length and copies it.
func Unpack[T Numeric](frame wire.Frame, payload []byte, buf []T) error {
	if err := verifyElement[T](frame); err != nil {
		return err
	}
	if frame.Count != uint64(len(buf)) {
		return errors.Wrapf(types.ErrShapeMismatch, "buffer of %d elements expected, got %d", len(buf), frame.Count)
	}
	return CopyInto(buf, payload)
}

// UnpackNew allocates the buffer of the length carried by the frame and copies the payload into it.
func UnpackNew[T Numeric](frame wire.Frame, payload []byte) ([]T, error) {
	if err := verifyElement[T](frame); err != nil {
		return nil, err
	}
	buf := make([]T, frame.Count)
	if err := CopyInto(buf, payload); err != nil {
		return nil, err
	}
	return buf, nil
}

func verifyElement[T Numeric](frame wire.Frame) error {
	if frame.Kind != wire.KindBuffer {
		return errors.Wrapf(types.ErrShapeMismatch, "buffer expected, got payload of kind %d", frame.Kind)
	}
	if element := ElementOf[T](); frame.Element != element {
		return errors.Wrapf(types.ErrShapeMismatch, "element %d expected, got %d", element, frame.Element)
	}
	return nil
}

package codec

import (
	"math"
	"reflect"

	"github.com/pkg/errors"

	"github.com/outofforest/mpi/wire"
	"github.com/outofforest/mpi/wire/scalar"
	"github.com/outofforest/proton"
	"github.com/outofforest/varuint64"
)

// NewObjectCodec creates codec of dynamic payloads. User marshaller may be nil if only scalars are sent.
func NewObjectCodec(m proton.Marshaller) *ObjectCodec {
	return &ObjectCodec{
		user:    m,
		scalars: scalar.NewMarshaller(),
	}
}

// ObjectCodec encodes and decodes payloads of the dynamic mode.
type ObjectCodec struct {
	user    proton.Marshaller
	scalars scalar.Marshaller
}

// Encode encodes the value and returns the frame describing the payload.
func (c *ObjectCodec) Encode(v any) (wire.Frame, []byte, error) {
	if v == nil {
		return wire.Frame{}, nil, errors.New("nil payload")
	}
	if w, ok := wrap(v); ok {
		b, err := encode(c.scalars, w)
		return wire.Frame{Kind: wire.KindScalar}, b, err
	}
	if frame, b, ok := encodeNumeric(v); ok {
		return frame, b, nil
	}
	if c.user != nil {
		msg := pointerTo(v)
		if _, err := c.user.ID(msg); err == nil {
			b, err := encode(c.user, msg)
			return wire.Frame{Kind: wire.KindObject}, b, err
		}
	}
	return wire.Frame{}, nil, errors.Errorf("unsupported payload type %T", v)
}

// Decode decodes the payload described by the frame.
func (c *ObjectCodec) Decode(frame wire.Frame, b []byte) (any, error) {
	switch frame.Kind {
	case wire.KindScalar:
		v, err := decode(c.scalars, b)
		if err != nil {
			return nil, err
		}
		return unwrap(v)
	case wire.KindNumber, wire.KindBuffer:
		return decodeNumeric(frame, b)
	case wire.KindObject:
		if c.user == nil {
			return nil, errors.New("object received but no marshaller is configured")
		}
		return decode(c.user, b)
	default:
		return nil, errors.Errorf("payload of kind %d is not a dynamic one", frame.Kind)
	}
}

func encode(m proton.Marshaller, msg any) ([]byte, error) {
	id, err := m.ID(msg)
	if err != nil {
		return nil, err
	}
	size, err := m.Size(msg)
	if err != nil {
		return nil, err
	}

	n := varuint64.Size(id)
	buf := make([]byte, n+size)
	varuint64.Put(buf, id)
	if _, _, err := m.Marshal(msg, buf[n:]); err != nil {
		return nil, err
	}
	return buf, nil
}

func decode(m proton.Marshaller, b []byte) (any, error) {
	if !varuint64.Contains(b) {
		return nil, errors.New("malformed payload")
	}
	id, n := varuint64.Parse(b)
	v, _, err := m.Unmarshal(id, b[n:])
	if err != nil {
		return nil, err
	}
	return v, nil
}

func pointerTo(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return v
	}
	p := reflect.New(rv.Type())
	p.Elem().Set(rv)
	return p.Interface()
}

func wrap(v any) (any, bool) {
	switch v := v.(type) {
	case int:
		return &scalar.Int{Value: int64(v)}, true
	case int64:
		return &scalar.Int64{Value: v}, true
	case uint64:
		return &scalar.Uint64{Value: v}, true
	case float64:
		return &scalar.Float64{Bits: math.Float64bits(v)}, true
	case string:
		return &scalar.String{Value: v}, true
	case []byte:
		return &scalar.Bytes{Value: v}, true
	case bool:
		return &scalar.Bool{Value: v}, true
	default:
		return nil, false
	}
}

func unwrap(v any) (any, error) {
	switch v := v.(type) {
	case *scalar.Int:
		return int(v.Value), nil
	case *scalar.Int64:
		return v.Value, nil
	case *scalar.Uint64:
		return v.Value, nil
	case *scalar.Float64:
		return math.Float64frombits(v.Bits), nil
	case *scalar.String:
		return v.Value, nil
	case *scalar.Bytes:
		if v.Value == nil {
			return []byte{}, nil
		}
		return v.Value, nil
	case *scalar.Bool:
		return v.Value, nil
	default:
		return nil, errors.Errorf("unexpected scalar %T", v)
	}
}

package scalar

import (
	"reflect"
	"unsafe"

	"github.com/outofforest/proton"
	"github.com/outofforest/proton/helpers"
	"github.com/pkg/errors"
)

const (
	id6 uint64 = iota + 1
	id5
	id4
	id3
	id2
	id1
	id0
)

var _ proton.Marshaller = Marshaller{}

// NewMarshaller creates marshaller.
func NewMarshaller() Marshaller {
	return Marshaller{}
}

// Marshaller marshals and unmarshals messages.
type Marshaller struct {
}

// Messages returns list of the message types supported by marshaller.
func (m Marshaller) Messages() []any {
	return []any{
		Int{},
		Int64{},
		Uint64{},
		Float64{},
		String{},
		Bytes{},
		Bool{},
	}
}

// ID returns ID of message type.
func (m Marshaller) ID(msg any) (uint64, error) {
	switch msg.(type) {
	case *Int:
		return id6, nil
	case *Int64:
		return id5, nil
	case *Uint64:
		return id4, nil
	case *Float64:
		return id3, nil
	case *String:
		return id2, nil
	case *Bytes:
		return id1, nil
	case *Bool:
		return id0, nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Size computes the size of marshalled message.
func (m Marshaller) Size(msg any) (uint64, error) {
	switch msg2 := msg.(type) {
	case *Int:
		return sizei6(msg2), nil
	case *Int64:
		return sizei5(msg2), nil
	case *Uint64:
		return sizei4(msg2), nil
	case *Float64:
		return sizei3(msg2), nil
	case *String:
		return sizei2(msg2), nil
	case *Bytes:
		return sizei1(msg2), nil
	case *Bool:
		return sizei0(msg2), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Marshal marshals message.
func (m Marshaller) Marshal(msg any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMarshal(&retErr)

	switch msg2 := msg.(type) {
	case *Int:
		return id6, marshali6(msg2, buf), nil
	case *Int64:
		return id5, marshali5(msg2, buf), nil
	case *Uint64:
		return id4, marshali4(msg2, buf), nil
	case *Float64:
		return id3, marshali3(msg2, buf), nil
	case *String:
		return id2, marshali2(msg2, buf), nil
	case *Bytes:
		return id1, marshali1(msg2, buf), nil
	case *Bool:
		return id0, marshali0(msg2, buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Unmarshal unmarshals message.
func (m Marshaller) Unmarshal(id uint64, buf []byte) (retMsg any, retSize uint64, retErr error) {
	defer helpers.RecoverUnmarshal(&retErr)

	switch id {
	case id6:
		msg := &Int{}
		return msg, unmarshali6(msg, buf), nil
	case id5:
		msg := &Int64{}
		return msg, unmarshali5(msg, buf), nil
	case id4:
		msg := &Uint64{}
		return msg, unmarshali4(msg, buf), nil
	case id3:
		msg := &Float64{}
		return msg, unmarshali3(msg, buf), nil
	case id2:
		msg := &String{}
		return msg, unmarshali2(msg, buf), nil
	case id1:
		msg := &Bytes{}
		return msg, unmarshali1(msg, buf), nil
	case id0:
		msg := &Bool{}
		return msg, unmarshali0(msg, buf), nil
	default:
		return nil, 0, errors.Errorf("unknown ID %d", id)
	}
}

// MakePatch creates a patch.
func (m Marshaller) MakePatch(msgDst, msgSrc any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMakePatch(&retErr)

	switch msg2 := msgDst.(type) {
	case *Int:
		return id6, makePatchi6(msg2, msgSrc.(*Int), buf), nil
	case *Int64:
		return id5, makePatchi5(msg2, msgSrc.(*Int64), buf), nil
	case *Uint64:
		return id4, makePatchi4(msg2, msgSrc.(*Uint64), buf), nil
	case *Float64:
		return id3, makePatchi3(msg2, msgSrc.(*Float64), buf), nil
	case *String:
		return id2, makePatchi2(msg2, msgSrc.(*String), buf), nil
	case *Bytes:
		return id1, makePatchi1(msg2, msgSrc.(*Bytes), buf), nil
	case *Bool:
		return id0, makePatchi0(msg2, msgSrc.(*Bool), buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msgDst)
	}
}

// ApplyPatch applies patch.
func (m Marshaller) ApplyPatch(msg any, buf []byte) (retSize uint64, retErr error) {
	defer helpers.RecoverApplyPatch(&retErr)

	switch msg2 := msg.(type) {
	case *Int:
		return applyPatchi6(msg2, buf), nil
	case *Int64:
		return applyPatchi5(msg2, buf), nil
	case *Uint64:
		return applyPatchi4(msg2, buf), nil
	case *Float64:
		return applyPatchi3(msg2, buf), nil
	case *String:
		return applyPatchi2(msg2, buf), nil
	case *Bytes:
		return applyPatchi1(msg2, buf), nil
	case *Bool:
		return applyPatchi0(msg2, buf), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

func sizei0(m *Bool) uint64 {
	var n uint64 = 1
	return n
}

func marshali0(m *Bool, b []byte) uint64 {
	var o uint64 = 1
	{
		// Value

		if m.Value {
			b[0] |= 0x01
		} else {
			b[0] &= 0xFE
		}
	}

	return o
}

func unmarshali0(m *Bool, b []byte) uint64 {
	var o uint64 = 1
	{
		// Value

		m.Value = b[0]&0x01 != 0
	}

	return o
}

func makePatchi0(m, mSrc *Bool, b []byte) uint64 {
	var o uint64 = 1
	{
		// Value

		if m.Value == mSrc.Value {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
		}
	}

	return o
}

func applyPatchi0(m *Bool, b []byte) uint64 {
	var o uint64 = 1
	{
		// Value

		if b[0]&0x01 != 0 {
			m.Value = !m.Value
		}
	}

	return o
}

func sizei1(m *Bytes) uint64 {
	var n uint64 = 1
	{
		// Value

		l := uint64(len(m.Value))
		helpers.UInt64Size(l, &n)
		n += l
	}
	return n
}

func marshali1(m *Bytes, b []byte) uint64 {
	var o uint64
	{
		// Value

		l := uint64(len(m.Value))
		helpers.UInt64Marshal(l, b, &o)
		if l > 0 {
			copy(b[o:o+l], unsafe.Slice(&m.Value[0], l))
			o += l
		}
	}

	return o
}

func unmarshali1(m *Bytes, b []byte) uint64 {
	var o uint64
	{
		// Value

		var l uint64
		helpers.UInt64Unmarshal(&l, b, &o)
		if l > 0 {
			m.Value = make([]uint8, l)
			copy(m.Value, b[o:o+l])
			o += l
		}
	}

	return o
}

func makePatchi1(m, mSrc *Bytes, b []byte) uint64 {
	var o uint64 = 1
	{
		// Value

		if reflect.DeepEqual(m.Value, mSrc.Value) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			l := uint64(len(m.Value))
			helpers.UInt64Marshal(l, b, &o)
			if l > 0 {
				copy(b[o:o+l], unsafe.Slice(&m.Value[0], l))
				o += l
			}
		}
	}

	return o
}

func applyPatchi1(m *Bytes, b []byte) uint64 {
	var o uint64 = 1
	{
		// Value

		if b[0]&0x01 != 0 {
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Value = make([]uint8, l)
				copy(m.Value, b[o:o+l])
				o += l
			}
		}
	}

	return o
}

func sizei2(m *String) uint64 {
	var n uint64 = 1
	{
		// Value

		{
			l := uint64(len(m.Value))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	return n
}

func marshali2(m *String, b []byte) uint64 {
	var o uint64
	{
		// Value

		{
			l := uint64(len(m.Value))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Value)
			o += l
		}
	}

	return o
}

func unmarshali2(m *String, b []byte) uint64 {
	var o uint64
	{
		// Value

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Value = string(b[o : o+l])
				o += l
			}
		}
	}

	return o
}

func makePatchi2(m, mSrc *String, b []byte) uint64 {
	var o uint64 = 1
	{
		// Value

		if reflect.DeepEqual(m.Value, mSrc.Value) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			{
				l := uint64(len(m.Value))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.Value)
				o += l
			}
		}
	}

	return o
}

func applyPatchi2(m *String, b []byte) uint64 {
	var o uint64 = 1
	{
		// Value

		if b[0]&0x01 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.Value = string(b[o : o+l])
					o += l
				}
			}
		}
	}

	return o
}

func sizei3(m *Float64) uint64 {
	var n uint64 = 1
	{
		// Bits

		helpers.UInt64Size(m.Bits, &n)
	}
	return n
}

func marshali3(m *Float64, b []byte) uint64 {
	var o uint64
	{
		// Bits

		helpers.UInt64Marshal(m.Bits, b, &o)
	}

	return o
}

func unmarshali3(m *Float64, b []byte) uint64 {
	var o uint64
	{
		// Bits

		helpers.UInt64Unmarshal(&m.Bits, b, &o)
	}

	return o
}

func makePatchi3(m, mSrc *Float64, b []byte) uint64 {
	var o uint64 = 1
	{
		// Bits

		if reflect.DeepEqual(m.Bits, mSrc.Bits) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.UInt64Marshal(m.Bits, b, &o)
		}
	}

	return o
}

func applyPatchi3(m *Float64, b []byte) uint64 {
	var o uint64 = 1
	{
		// Bits

		if b[0]&0x01 != 0 {
			helpers.UInt64Unmarshal(&m.Bits, b, &o)
		}
	}

	return o
}

func sizei4(m *Uint64) uint64 {
	var n uint64 = 1
	{
		// Value

		helpers.UInt64Size(m.Value, &n)
	}
	return n
}

func marshali4(m *Uint64, b []byte) uint64 {
	var o uint64
	{
		// Value

		helpers.UInt64Marshal(m.Value, b, &o)
	}

	return o
}

func unmarshali4(m *Uint64, b []byte) uint64 {
	var o uint64
	{
		// Value

		helpers.UInt64Unmarshal(&m.Value, b, &o)
	}

	return o
}

func makePatchi4(m, mSrc *Uint64, b []byte) uint64 {
	var o uint64 = 1
	{
		// Value

		if reflect.DeepEqual(m.Value, mSrc.Value) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.UInt64Marshal(m.Value, b, &o)
		}
	}

	return o
}

func applyPatchi4(m *Uint64, b []byte) uint64 {
	var o uint64 = 1
	{
		// Value

		if b[0]&0x01 != 0 {
			helpers.UInt64Unmarshal(&m.Value, b, &o)
		}
	}

	return o
}

func sizei5(m *Int64) uint64 {
	var n uint64 = 1
	{
		// Value

		helpers.Int64Size(m.Value, &n)
	}
	return n
}

func marshali5(m *Int64, b []byte) uint64 {
	var o uint64
	{
		// Value

		helpers.Int64Marshal(m.Value, b, &o)
	}

	return o
}

func unmarshali5(m *Int64, b []byte) uint64 {
	var o uint64
	{
		// Value

		helpers.Int64Unmarshal(&m.Value, b, &o)
	}

	return o
}

func makePatchi5(m, mSrc *Int64, b []byte) uint64 {
	var o uint64 = 1
	{
		// Value

		if reflect.DeepEqual(m.Value, mSrc.Value) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.Int64Marshal(m.Value, b, &o)
		}
	}

	return o
}

func applyPatchi5(m *Int64, b []byte) uint64 {
	var o uint64 = 1
	{
		// Value

		if b[0]&0x01 != 0 {
			helpers.Int64Unmarshal(&m.Value, b, &o)
		}
	}

	return o
}

func sizei6(m *Int) uint64 {
	var n uint64 = 1
	{
		// Value

		helpers.Int64Size(m.Value, &n)
	}
	return n
}

func marshali6(m *Int, b []byte) uint64 {
	var o uint64
	{
		// Value

		helpers.Int64Marshal(m.Value, b, &o)
	}

	return o
}

func unmarshali6(m *Int, b []byte) uint64 {
	var o uint64
	{
		// Value

		helpers.Int64Unmarshal(&m.Value, b, &o)
	}

	return o
}

func makePatchi6(m, mSrc *Int, b []byte) uint64 {
	var o uint64 = 1
	{
		// Value

		if reflect.DeepEqual(m.Value, mSrc.Value) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.Int64Marshal(m.Value, b, &o)
		}
	}

	return o
}

func applyPatchi6(m *Int, b []byte) uint64 {
	var o uint64 = 1
	{
		// Value

		if b[0]&0x01 != 0 {
			helpers.Int64Unmarshal(&m.Value, b, &o)
		}
	}

	return o
}

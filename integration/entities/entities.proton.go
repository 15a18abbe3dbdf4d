package entities

import (
	"reflect"

	"github.com/outofforest/proton"
	"github.com/outofforest/proton/helpers"
	"github.com/pkg/errors"
)

const (
	id1 uint64 = iota + 1
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
		Token{},
		Cell{},
	}
}

// ID returns ID of message type.
func (m Marshaller) ID(msg any) (uint64, error) {
	switch msg.(type) {
	case *Token:
		return id1, nil
	case *Cell:
		return id0, nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Size computes the size of marshalled message.
func (m Marshaller) Size(msg any) (uint64, error) {
	switch msg2 := msg.(type) {
	case *Token:
		return sizei1(msg2), nil
	case *Cell:
		return sizei0(msg2), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Marshal marshals message.
func (m Marshaller) Marshal(msg any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMarshal(&retErr)

	switch msg2 := msg.(type) {
	case *Token:
		return id1, marshali1(msg2, buf), nil
	case *Cell:
		return id0, marshali0(msg2, buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Unmarshal unmarshals message.
func (m Marshaller) Unmarshal(id uint64, buf []byte) (retMsg any, retSize uint64, retErr error) {
	defer helpers.RecoverUnmarshal(&retErr)

	switch id {
	case id1:
		msg := &Token{}
		return msg, unmarshali1(msg, buf), nil
	case id0:
		msg := &Cell{}
		return msg, unmarshali0(msg, buf), nil
	default:
		return nil, 0, errors.Errorf("unknown ID %d", id)
	}
}

// MakePatch creates a patch.
func (m Marshaller) MakePatch(msgDst, msgSrc any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMakePatch(&retErr)

	switch msg2 := msgDst.(type) {
	case *Token:
		return id1, makePatchi1(msg2, msgSrc.(*Token), buf), nil
	case *Cell:
		return id0, makePatchi0(msg2, msgSrc.(*Cell), buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msgDst)
	}
}

// ApplyPatch applies patch.
func (m Marshaller) ApplyPatch(msg any, buf []byte) (retSize uint64, retErr error) {
	defer helpers.RecoverApplyPatch(&retErr)

	switch msg2 := msg.(type) {
	case *Token:
		return applyPatchi1(msg2, buf), nil
	case *Cell:
		return applyPatchi0(msg2, buf), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

func sizei0(m *Cell) uint64 {
	var n uint64 = 3
	{
		// ID

		helpers.UInt64Size(m.ID, &n)
	}
	{
		// Owner

		helpers.UInt64Size(m.Owner, &n)
	}
	{
		// Label

		{
			l := uint64(len(m.Label))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	return n
}

func marshali0(m *Cell, b []byte) uint64 {
	var o uint64
	{
		// ID

		helpers.UInt64Marshal(m.ID, b, &o)
	}
	{
		// Owner

		helpers.UInt64Marshal(m.Owner, b, &o)
	}
	{
		// Label

		{
			l := uint64(len(m.Label))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Label)
			o += l
		}
	}

	return o
}

func unmarshali0(m *Cell, b []byte) uint64 {
	var o uint64
	{
		// ID

		helpers.UInt64Unmarshal(&m.ID, b, &o)
	}
	{
		// Owner

		helpers.UInt64Unmarshal(&m.Owner, b, &o)
	}
	{
		// Label

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Label = string(b[o : o+l])
				o += l
			}
		}
	}

	return o
}

func makePatchi0(m, mSrc *Cell, b []byte) uint64 {
	var o uint64 = 1
	{
		// ID

		if reflect.DeepEqual(m.ID, mSrc.ID) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.UInt64Marshal(m.ID, b, &o)
		}
	}
	{
		// Owner

		if reflect.DeepEqual(m.Owner, mSrc.Owner) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			helpers.UInt64Marshal(m.Owner, b, &o)
		}
	}
	{
		// Label

		if reflect.DeepEqual(m.Label, mSrc.Label) {
			b[0] &= 0xFB
		} else {
			b[0] |= 0x04
			{
				l := uint64(len(m.Label))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.Label)
				o += l
			}
		}
	}

	return o
}

func applyPatchi0(m *Cell, b []byte) uint64 {
	var o uint64 = 1
	{
		// ID

		if b[0]&0x01 != 0 {
			helpers.UInt64Unmarshal(&m.ID, b, &o)
		}
	}
	{
		// Owner

		if b[0]&0x02 != 0 {
			helpers.UInt64Unmarshal(&m.Owner, b, &o)
		}
	}
	{
		// Label

		if b[0]&0x04 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.Label = string(b[o : o+l])
					o += l
				}
			}
		}
	}

	return o
}

func sizei1(m *Token) uint64 {
	var n uint64 = 2
	{
		// Path

		{
			l := uint64(len(m.Path))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// Hops

		helpers.UInt64Size(m.Hops, &n)
	}
	return n
}

func marshali1(m *Token, b []byte) uint64 {
	var o uint64
	{
		// Path

		{
			l := uint64(len(m.Path))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Path)
			o += l
		}
	}
	{
		// Hops

		helpers.UInt64Marshal(m.Hops, b, &o)
	}

	return o
}

func unmarshali1(m *Token, b []byte) uint64 {
	var o uint64
	{
		// Path

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Path = string(b[o : o+l])
				o += l
			}
		}
	}
	{
		// Hops

		helpers.UInt64Unmarshal(&m.Hops, b, &o)
	}

	return o
}

func makePatchi1(m, mSrc *Token, b []byte) uint64 {
	var o uint64 = 1
	{
		// Path

		if reflect.DeepEqual(m.Path, mSrc.Path) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			{
				l := uint64(len(m.Path))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.Path)
				o += l
			}
		}
	}
	{
		// Hops

		if reflect.DeepEqual(m.Hops, mSrc.Hops) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			helpers.UInt64Marshal(m.Hops, b, &o)
		}
	}

	return o
}

func applyPatchi1(m *Token, b []byte) uint64 {
	var o uint64 = 1
	{
		// Path

		if b[0]&0x01 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.Path = string(b[o : o+l])
					o += l
				}
			}
		}
	}
	{
		// Hops

		if b[0]&0x02 != 0 {
			helpers.UInt64Unmarshal(&m.Hops, b, &o)
		}
	}

	return o
}

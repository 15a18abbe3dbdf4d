package p2p

import (
	"reflect"

	"github.com/outofforest/mpi/wire"
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
		wire.Frame{},
		wire.Goodbye{},
	}
}

// ID returns ID of message type.
func (m Marshaller) ID(msg any) (uint64, error) {
	switch msg.(type) {
	case *wire.Frame:
		return id1, nil
	case *wire.Goodbye:
		return id0, nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Size computes the size of marshalled message.
func (m Marshaller) Size(msg any) (uint64, error) {
	switch msg2 := msg.(type) {
	case *wire.Frame:
		return sizei1(msg2), nil
	case *wire.Goodbye:
		return sizei0(msg2), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Marshal marshals message.
func (m Marshaller) Marshal(msg any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMarshal(&retErr)

	switch msg2 := msg.(type) {
	case *wire.Frame:
		return id1, marshali1(msg2, buf), nil
	case *wire.Goodbye:
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
		msg := &wire.Frame{}
		return msg, unmarshali1(msg, buf), nil
	case id0:
		msg := &wire.Goodbye{}
		return msg, unmarshali0(msg, buf), nil
	default:
		return nil, 0, errors.Errorf("unknown ID %d", id)
	}
}

// MakePatch creates a patch.
func (m Marshaller) MakePatch(msgDst, msgSrc any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMakePatch(&retErr)

	switch msg2 := msgDst.(type) {
	case *wire.Frame:
		return id1, makePatchi1(msg2, msgSrc.(*wire.Frame), buf), nil
	case *wire.Goodbye:
		return id0, makePatchi0(msg2, msgSrc.(*wire.Goodbye), buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msgDst)
	}
}

// ApplyPatch applies patch.
func (m Marshaller) ApplyPatch(msg any, buf []byte) (retSize uint64, retErr error) {
	defer helpers.RecoverApplyPatch(&retErr)

	switch msg2 := msg.(type) {
	case *wire.Frame:
		return applyPatchi1(msg2, buf), nil
	case *wire.Goodbye:
		return applyPatchi0(msg2, buf), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

func sizei0(m *wire.Goodbye) uint64 {
	var n uint64 = 1
	{
		// Frames

		helpers.UInt64Size(m.Frames, &n)
	}
	return n
}

func marshali0(m *wire.Goodbye, b []byte) uint64 {
	var o uint64
	{
		// Frames

		helpers.UInt64Marshal(m.Frames, b, &o)
	}

	return o
}

func unmarshali0(m *wire.Goodbye, b []byte) uint64 {
	var o uint64
	{
		// Frames

		helpers.UInt64Unmarshal(&m.Frames, b, &o)
	}

	return o
}

func makePatchi0(m, mSrc *wire.Goodbye, b []byte) uint64 {
	var o uint64 = 1
	{
		// Frames

		if reflect.DeepEqual(m.Frames, mSrc.Frames) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.UInt64Marshal(m.Frames, b, &o)
		}
	}

	return o
}

func applyPatchi0(m *wire.Goodbye, b []byte) uint64 {
	var o uint64 = 1
	{
		// Frames

		if b[0]&0x01 != 0 {
			helpers.UInt64Unmarshal(&m.Frames, b, &o)
		}
	}

	return o
}

func sizei1(m *wire.Frame) uint64 {
	var n uint64 = 9
	{
		// Tag

		helpers.UInt64Size(m.Tag, &n)
	}
	{
		// Count

		helpers.UInt64Size(m.Count, &n)
	}
	{
		// Size

		helpers.UInt64Size(m.Size, &n)
	}
	{
		// Checksum

		helpers.UInt64Size(m.Checksum, &n)
	}
	return n
}

func marshali1(m *wire.Frame, b []byte) uint64 {
	var o uint64
	{
		// Channel

		b[o] = byte(m.Channel)
		o++
	}
	{
		// Kind

		b[o] = byte(m.Kind)
		o++
	}
	{
		// Op

		b[o] = byte(m.Op)
		o++
	}
	{
		// Element

		b[o] = byte(m.Element)
		o++
	}
	{
		// Status

		b[o] = byte(m.Status)
		o++
	}
	{
		// Tag

		helpers.UInt64Marshal(m.Tag, b, &o)
	}
	{
		// Count

		helpers.UInt64Marshal(m.Count, b, &o)
	}
	{
		// Size

		helpers.UInt64Marshal(m.Size, b, &o)
	}
	{
		// Checksum

		helpers.UInt64Marshal(m.Checksum, b, &o)
	}

	return o
}

func unmarshali1(m *wire.Frame, b []byte) uint64 {
	var o uint64
	{
		// Channel

		m.Channel = wire.Channel(b[o])
		o++
	}
	{
		// Kind

		m.Kind = wire.Kind(b[o])
		o++
	}
	{
		// Op

		m.Op = wire.Op(b[o])
		o++
	}
	{
		// Element

		m.Element = wire.Element(b[o])
		o++
	}
	{
		// Status

		m.Status = wire.Status(b[o])
		o++
	}
	{
		// Tag

		helpers.UInt64Unmarshal(&m.Tag, b, &o)
	}
	{
		// Count

		helpers.UInt64Unmarshal(&m.Count, b, &o)
	}
	{
		// Size

		helpers.UInt64Unmarshal(&m.Size, b, &o)
	}
	{
		// Checksum

		helpers.UInt64Unmarshal(&m.Checksum, b, &o)
	}

	return o
}

func makePatchi1(m, mSrc *wire.Frame, b []byte) uint64 {
	var o uint64 = 2
	{
		// Channel

		if reflect.DeepEqual(m.Channel, mSrc.Channel) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			b[o] = byte(m.Channel)
			o++
		}
	}
	{
		// Kind

		if reflect.DeepEqual(m.Kind, mSrc.Kind) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			b[o] = byte(m.Kind)
			o++
		}
	}
	{
		// Op

		if reflect.DeepEqual(m.Op, mSrc.Op) {
			b[0] &= 0xFB
		} else {
			b[0] |= 0x04
			b[o] = byte(m.Op)
			o++
		}
	}
	{
		// Element

		if reflect.DeepEqual(m.Element, mSrc.Element) {
			b[0] &= 0xF7
		} else {
			b[0] |= 0x08
			b[o] = byte(m.Element)
			o++
		}
	}
	{
		// Status

		if reflect.DeepEqual(m.Status, mSrc.Status) {
			b[0] &= 0xEF
		} else {
			b[0] |= 0x10
			b[o] = byte(m.Status)
			o++
		}
	}
	{
		// Tag

		if reflect.DeepEqual(m.Tag, mSrc.Tag) {
			b[0] &= 0xDF
		} else {
			b[0] |= 0x20
			helpers.UInt64Marshal(m.Tag, b, &o)
		}
	}
	{
		// Count

		if reflect.DeepEqual(m.Count, mSrc.Count) {
			b[0] &= 0xBF
		} else {
			b[0] |= 0x40
			helpers.UInt64Marshal(m.Count, b, &o)
		}
	}
	{
		// Size

		if reflect.DeepEqual(m.Size, mSrc.Size) {
			b[0] &= 0x7F
		} else {
			b[0] |= 0x80
			helpers.UInt64Marshal(m.Size, b, &o)
		}
	}
	{
		// Checksum

		if reflect.DeepEqual(m.Checksum, mSrc.Checksum) {
			b[1] &= 0xFE
		} else {
			b[1] |= 0x01
			helpers.UInt64Marshal(m.Checksum, b, &o)
		}
	}

	return o
}

func applyPatchi1(m *wire.Frame, b []byte) uint64 {
	var o uint64 = 2
	{
		// Channel

		if b[0]&0x01 != 0 {
			m.Channel = wire.Channel(b[o])
			o++
		}
	}
	{
		// Kind

		if b[0]&0x02 != 0 {
			m.Kind = wire.Kind(b[o])
			o++
		}
	}
	{
		// Op

		if b[0]&0x04 != 0 {
			m.Op = wire.Op(b[o])
			o++
		}
	}
	{
		// Element

		if b[0]&0x08 != 0 {
			m.Element = wire.Element(b[o])
			o++
		}
	}
	{
		// Status

		if b[0]&0x10 != 0 {
			m.Status = wire.Status(b[o])
			o++
		}
	}
	{
		// Tag

		if b[0]&0x20 != 0 {
			helpers.UInt64Unmarshal(&m.Tag, b, &o)
		}
	}
	{
		// Count

		if b[0]&0x40 != 0 {
			helpers.UInt64Unmarshal(&m.Count, b, &o)
		}
	}
	{
		// Size

		if b[0]&0x80 != 0 {
			helpers.UInt64Unmarshal(&m.Size, b, &o)
		}
	}
	{
		// Checksum

		if b[1]&0x01 != 0 {
			helpers.UInt64Unmarshal(&m.Checksum, b, &o)
		}
	}

	return o
}

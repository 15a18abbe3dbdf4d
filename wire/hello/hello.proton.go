package hello

import (
	"reflect"

	"github.com/outofforest/mpi/wire"
	"github.com/outofforest/proton"
	"github.com/outofforest/proton/helpers"
	"github.com/pkg/errors"
)

const (
	id0 uint64 = iota + 1
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
		wire.Hello{},
	}
}

// ID returns ID of message type.
func (m Marshaller) ID(msg any) (uint64, error) {
	switch msg.(type) {
	case *wire.Hello:
		return id0, nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Size computes the size of marshalled message.
func (m Marshaller) Size(msg any) (uint64, error) {
	switch msg2 := msg.(type) {
	case *wire.Hello:
		return sizei0(msg2), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Marshal marshals message.
func (m Marshaller) Marshal(msg any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMarshal(&retErr)

	switch msg2 := msg.(type) {
	case *wire.Hello:
		return id0, marshali0(msg2, buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Unmarshal unmarshals message.
func (m Marshaller) Unmarshal(id uint64, buf []byte) (retMsg any, retSize uint64, retErr error) {
	defer helpers.RecoverUnmarshal(&retErr)

	switch id {
	case id0:
		msg := &wire.Hello{}
		return msg, unmarshali0(msg, buf), nil
	default:
		return nil, 0, errors.Errorf("unknown ID %d", id)
	}
}

// MakePatch creates a patch.
func (m Marshaller) MakePatch(msgDst, msgSrc any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMakePatch(&retErr)

	switch msg2 := msgDst.(type) {
	case *wire.Hello:
		return id0, makePatchi0(msg2, msgSrc.(*wire.Hello), buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msgDst)
	}
}

// ApplyPatch applies patch.
func (m Marshaller) ApplyPatch(msg any, buf []byte) (retSize uint64, retErr error) {
	defer helpers.RecoverApplyPatch(&retErr)

	switch msg2 := msg.(type) {
	case *wire.Hello:
		return applyPatchi0(msg2, buf), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

func sizei0(m *wire.Hello) uint64 {
	var n uint64 = 4
	{
		// GroupID

		{
			l := uint64(len(m.GroupID))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// Fingerprint

		helpers.UInt64Size(m.Fingerprint, &n)
	}
	{
		// Rank

		helpers.UInt64Size(m.Rank, &n)
	}
	{
		// Size

		helpers.UInt64Size(m.Size, &n)
	}
	return n
}

func marshali0(m *wire.Hello, b []byte) uint64 {
	var o uint64
	{
		// GroupID

		{
			l := uint64(len(m.GroupID))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.GroupID)
			o += l
		}
	}
	{
		// Fingerprint

		helpers.UInt64Marshal(m.Fingerprint, b, &o)
	}
	{
		// Rank

		helpers.UInt64Marshal(m.Rank, b, &o)
	}
	{
		// Size

		helpers.UInt64Marshal(m.Size, b, &o)
	}

	return o
}

func unmarshali0(m *wire.Hello, b []byte) uint64 {
	var o uint64
	{
		// GroupID

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.GroupID = string(b[o : o+l])
				o += l
			}
		}
	}
	{
		// Fingerprint

		helpers.UInt64Unmarshal(&m.Fingerprint, b, &o)
	}
	{
		// Rank

		helpers.UInt64Unmarshal(&m.Rank, b, &o)
	}
	{
		// Size

		helpers.UInt64Unmarshal(&m.Size, b, &o)
	}

	return o
}

func makePatchi0(m, mSrc *wire.Hello, b []byte) uint64 {
	var o uint64 = 1
	{
		// GroupID

		if reflect.DeepEqual(m.GroupID, mSrc.GroupID) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			{
				l := uint64(len(m.GroupID))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.GroupID)
				o += l
			}
		}
	}
	{
		// Fingerprint

		if reflect.DeepEqual(m.Fingerprint, mSrc.Fingerprint) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			helpers.UInt64Marshal(m.Fingerprint, b, &o)
		}
	}
	{
		// Rank

		if reflect.DeepEqual(m.Rank, mSrc.Rank) {
			b[0] &= 0xFB
		} else {
			b[0] |= 0x04
			helpers.UInt64Marshal(m.Rank, b, &o)
		}
	}
	{
		// Size

		if reflect.DeepEqual(m.Size, mSrc.Size) {
			b[0] &= 0xF7
		} else {
			b[0] |= 0x08
			helpers.UInt64Marshal(m.Size, b, &o)
		}
	}

	return o
}

func applyPatchi0(m *wire.Hello, b []byte) uint64 {
	var o uint64 = 1
	{
		// GroupID

		if b[0]&0x01 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.GroupID = string(b[o : o+l])
					o += l
				}
			}
		}
	}
	{
		// Fingerprint

		if b[0]&0x02 != 0 {
			helpers.UInt64Unmarshal(&m.Fingerprint, b, &o)
		}
	}
	{
		// Rank

		if b[0]&0x04 != 0 {
			helpers.UInt64Unmarshal(&m.Rank, b, &o)
		}
	}
	{
		// Size

		if b[0]&0x08 != 0 {
			helpers.UInt64Unmarshal(&m.Size, b, &o)
		}
	}

	return o
}

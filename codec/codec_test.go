package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/mpi/types"
	"github.com/outofforest/mpi/wire"
	"github.com/outofforest/mpi/wire/p2p"
)

func TestScalars(t *testing.T) {
	requireT := require.New(t)

	c := NewObjectCodec(nil)
	for _, v := range []any{
		-1,
		int64(-1 << 40),
		uint64(1 << 63),
		3.25,
		"0123",
		[]byte{0x01, 0x02},
		[]byte{},
		true,
		false,
	} {
		frame, b, err := c.Encode(v)
		requireT.NoError(err)
		requireT.Equal(wire.KindScalar, frame.Kind)

		v2, err := c.Decode(frame, b)
		requireT.NoError(err)
		requireT.Equal(v, v2)
	}
}

func TestObjects(t *testing.T) {
	requireT := require.New(t)

	c := NewObjectCodec(p2p.NewMarshaller())

	frame, b, err := c.Encode(&wire.Goodbye{Frames: 10})
	requireT.NoError(err)
	requireT.Equal(wire.KindObject, frame.Kind)

	v, err := c.Decode(frame, b)
	requireT.NoError(err)
	requireT.Equal(&wire.Goodbye{Frames: 10}, v)

	frame, b, err = c.Encode(wire.Goodbye{Frames: 11})
	requireT.NoError(err)
	requireT.Equal(wire.KindObject, frame.Kind)

	v, err = c.Decode(frame, b)
	requireT.NoError(err)
	requireT.Equal(&wire.Goodbye{Frames: 11}, v)
}

func TestUnsupported(t *testing.T) {
	requireT := require.New(t)

	c := NewObjectCodec(p2p.NewMarshaller())

	_, _, err := c.Encode(nil)
	requireT.Error(err)

	_, _, err = c.Encode(&wire.Hello{})
	requireT.Error(err)

	_, _, err = c.Encode(complex64(1))
	requireT.Error(err)

	_, _, err = c.Encode([]int{1})
	requireT.Error(err)

	_, b, err := c.Encode(&wire.Goodbye{})
	requireT.NoError(err)

	_, err = NewObjectCodec(nil).Decode(wire.Frame{Kind: wire.KindObject}, b)
	requireT.Error(err)

	_, err = c.Decode(wire.Frame{Kind: wire.KindEmpty}, b)
	requireT.Error(err)

	_, err = c.Decode(wire.Frame{Kind: wire.KindObject}, nil)
	requireT.Error(err)

	_, err = c.Decode(wire.Frame{Kind: wire.KindNumber, Element: wire.ElementInt32, Count: 2}, make([]byte, 8))
	requireT.ErrorIs(err, types.ErrShapeMismatch)

	_, err = c.Decode(wire.Frame{Kind: wire.KindBuffer, Element: wire.ElementNone}, nil)
	requireT.ErrorIs(err, types.ErrShapeMismatch)
}

func TestNumbers(t *testing.T) {
	requireT := require.New(t)

	c := NewObjectCodec(nil)
	for _, v := range []any{
		int8(-8),
		int16(-16),
		int32(-32),
		uint8(8),
		uint16(16),
		uint32(32),
		float32(-1.5),
	} {
		frame, b, err := c.Encode(v)
		requireT.NoError(err)
		requireT.Equal(wire.KindNumber, frame.Kind)
		requireT.EqualValues(1, frame.Count)

		v2, err := c.Decode(frame, b)
		requireT.NoError(err)
		requireT.Equal(v, v2)
	}
}

func TestNumericSlices(t *testing.T) {
	requireT := require.New(t)

	c := NewObjectCodec(nil)

	data := []float64{1, -2.5, 1e100}
	frame, b, err := c.Encode(data)
	requireT.NoError(err)
	requireT.Equal(BufferFrame(data), frame)
	requireT.Equal(Bytes(data), b)

	v, err := c.Decode(frame, b)
	requireT.NoError(err)
	requireT.Equal(data, v)

	for _, v := range []any{
		[]int8{-1, 1},
		[]int16{-1, 1},
		[]int32{-1, 1},
		[]int64{-1, 1 << 50},
		[]uint16{1, 2},
		[]uint32{1, 2},
		[]uint64{1, 1 << 63},
		[]float32{0.5, -0.5},
		[]float64{},
	} {
		frame, b, err := c.Encode(v)
		requireT.NoError(err)
		requireT.Equal(wire.KindBuffer, frame.Kind)

		v2, err := c.Decode(frame, b)
		requireT.NoError(err)
		requireT.Equal(v, v2)
	}

	// Buffer of bytes sent in fixed mode is decoded as []byte.
	v, err = c.Decode(BufferFrame([]uint8{1, 2}), []byte{1, 2})
	requireT.NoError(err)
	requireT.Equal([]byte{1, 2}, v)
}

func TestElementOf(t *testing.T) {
	requireT := require.New(t)

	type myFloat float64

	requireT.Equal(wire.ElementInt8, ElementOf[int8]())
	requireT.Equal(wire.ElementInt64, ElementOf[int64]())
	requireT.Equal(wire.ElementUint8, ElementOf[byte]())
	requireT.Equal(wire.ElementUint64, ElementOf[uint64]())
	requireT.Equal(wire.ElementFloat32, ElementOf[float32]())
	requireT.Equal(wire.ElementFloat64, ElementOf[float64]())
	requireT.Equal(wire.ElementFloat64, ElementOf[myFloat]())
}

func TestBuffer(t *testing.T) {
	requireT := require.New(t)

	requireT.Nil(Bytes([]int32{}))

	src := []int32{1, -1, 1 << 30}
	b := Bytes(src)
	requireT.Len(b, 12)

	dst := make([]int32, 3)
	requireT.NoError(CopyInto(dst, b))
	requireT.Equal(src, dst)

	requireT.ErrorIs(CopyInto(make([]int32, 2), b), types.ErrShapeMismatch)
	requireT.ErrorIs(CopyInto(make([]int64, 3), b), types.ErrShapeMismatch)
}

func TestChain(t *testing.T) {
	requireT := require.New(t)

	var sender, receiver Chain

	frames := []wire.Frame{
		{Channel: wire.ChannelPointToPoint, Kind: wire.KindScalar, Tag: 1, Size: 3},
		{Channel: wire.ChannelCollective, Op: wire.OpBarrier, Tag: 1},
		{Channel: wire.ChannelPointToPoint, Kind: wire.KindScalar, Tag: 1, Size: 3},
	}
	payloads := [][]byte{{0x01, 0x02, 0x03}, nil, {0x01, 0x02, 0x03}}

	for i := range frames {
		frames[i].Checksum = sender.Next(&frames[i], payloads[i])
	}
	requireT.NotEqual(frames[0].Checksum, frames[2].Checksum)

	for i := range frames {
		requireT.NoError(receiver.Verify(&frames[i], payloads[i]))
	}
}

func TestChainCorruption(t *testing.T) {
	requireT := require.New(t)

	var sender, receiver Chain

	frame := wire.Frame{Kind: wire.KindScalar, Tag: 1, Size: 3}
	frame.Checksum = sender.Next(&frame, []byte{0x01, 0x02, 0x03})

	requireT.Error(receiver.Verify(&frame, []byte{0x01, 0x02, 0x04}))
}

func TestChainReorder(t *testing.T) {
	requireT := require.New(t)

	var sender, receiver Chain

	frame1 := wire.Frame{Tag: 1}
	frame1.Checksum = sender.Next(&frame1, nil)
	frame2 := wire.Frame{Tag: 2}
	frame2.Checksum = sender.Next(&frame2, nil)

	requireT.Error(receiver.Verify(&frame2, nil))
}

func TestUnpack(t *testing.T) {
	requireT := require.New(t)

	src := []float64{1.5, -2.5}
	frame := BufferFrame(src)
	requireT.Equal(wire.KindBuffer, frame.Kind)
	requireT.Equal(wire.ElementFloat64, frame.Element)
	requireT.EqualValues(2, frame.Count)

	dst := make([]float64, 2)
	requireT.NoError(Unpack(frame, Bytes(src), dst))
	requireT.Equal(src, dst)

	dst2, err := UnpackNew[float64](frame, Bytes(src))
	requireT.NoError(err)
	requireT.Equal(src, dst2)

	requireT.ErrorIs(Unpack(frame, Bytes(src), make([]float64, 3)), types.ErrShapeMismatch)
	requireT.ErrorIs(Unpack(frame, Bytes(src), make([]int64, 2)), types.ErrShapeMismatch)
	requireT.ErrorIs(Unpack(wire.Frame{Kind: wire.KindScalar}, nil, dst), types.ErrShapeMismatch)

	_, err = UnpackNew[float32](frame, Bytes(src))
	requireT.ErrorIs(err, types.ErrShapeMismatch)
}

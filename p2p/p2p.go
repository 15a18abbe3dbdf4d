package p2p

import (
	"context"

	"github.com/pkg/errors"

	"github.com/outofforest/mpi/codec"
	"github.com/outofforest/mpi/group"
	"github.com/outofforest/mpi/mailbox"
	"github.com/outofforest/mpi/types"
	"github.com/outofforest/mpi/wire"
)

// Send sends the value to the destination rank. Supported values are scalars, numbers, numeric slices
// and messages known to the marshaller configured for the group. Numeric slices travel exactly like
// buffers sent by SendBuffer, so either side may use the other mode.
func Send(ctx context.Context, g *group.Group, dst types.Rank, tag types.Tag, v any) error {
	frame, payload, err := g.Codec().Encode(v)
	if err != nil {
		return err
	}
	frame.Channel = wire.ChannelPointToPoint
	frame.Tag = tag
	return g.Post(ctx, dst, frame, payload)
}

// Receive receives the value sent by the source rank with the tag.
func Receive(ctx context.Context, g *group.Group, src types.Rank, tag types.Tag) (any, error) {
	msg, err := g.Fetch(ctx, src, wire.ChannelPointToPoint, tag)
	if err != nil {
		return nil, err
	}
	return Decode(g, msg)
}

// ReceiveAs receives the value and verifies its type.
func ReceiveAs[T any](ctx context.Context, g *group.Group, src types.Rank, tag types.Tag) (T, error) {
	v, err := Receive(ctx, g, src, tag)
	if err != nil {
		var t T
		return t, err
	}
	return As[T](v)
}

// SendBuffer sends the buffer of numbers to the destination rank.
// The receiver must provide a buffer of the same element type and length.
func SendBuffer[T codec.Numeric](ctx context.Context, g *group.Group, dst types.Rank, tag types.Tag, buf []T) error {
	frame := codec.BufferFrame(buf)
	frame.Channel = wire.ChannelPointToPoint
	frame.Tag = tag
	return g.Post(ctx, dst, frame, codec.Bytes(buf))
}

// ReceiveBuffer receives the buffer of numbers into buf.
func ReceiveBuffer[T codec.Numeric](
	ctx context.Context,
	g *group.Group,
	src types.Rank,
	tag types.Tag,
	buf []T,
) error {
	msg, err := g.Fetch(ctx, src, wire.ChannelPointToPoint, tag)
	if err != nil {
		return err
	}
	return codec.Unpack(msg.Frame, msg.Payload, buf)
}

// Decode decodes the dynamic payload of the message.
func Decode(g *group.Group, msg mailbox.Message) (any, error) {
	switch msg.Frame.Kind {
	case wire.KindScalar, wire.KindObject, wire.KindNumber, wire.KindBuffer:
		return g.Codec().Decode(msg.Frame, msg.Payload)
	default:
		return nil, errors.Wrapf(types.ErrShapeMismatch, "value expected, got payload of kind %d",
			msg.Frame.Kind)
	}
}

// As converts decoded value to T. Objects are decoded as pointers, so both T and *T are accepted.
func As[T any](v any) (T, error) {
	switch v := v.(type) {
	case T:
		return v, nil
	case *T:
		return *v, nil
	default:
		var t T
		return t, errors.Wrapf(types.ErrShapeMismatch, "value of type %T expected, got %T", t, v)
	}
}

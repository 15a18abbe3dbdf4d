package collective

import (
	"context"

	"github.com/pkg/errors"

	"github.com/outofforest/mpi/codec"
	"github.com/outofforest/mpi/group"
	"github.com/outofforest/mpi/mailbox"
	"github.com/outofforest/mpi/p2p"
	"github.com/outofforest/mpi/types"
	"github.com/outofforest/mpi/wire"
)

const barrierRoot types.Rank = 0

// Barrier blocks until all the ranks call it.
func Barrier(ctx context.Context, g *group.Group) error {
	return run(ctx, g, barrierRoot, func(ctx context.Context, c call) error {
		if g.Rank() != barrierRoot {
			if err := c.post(ctx, barrierRoot, wire.OpBarrier, wire.Frame{}, nil); err != nil {
				return err
			}
			_, err := c.fetch(ctx, barrierRoot, wire.OpRelease)
			return err
		}

		for _, r := range c.peers() {
			if _, err := c.fetch(ctx, r, wire.OpBarrier); err != nil {
				return err
			}
		}
		for _, r := range c.peers() {
			if err := c.post(ctx, r, wire.OpRelease, wire.Frame{}, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// Bcast sends the value of the root to all the ranks. Values passed by other ranks are ignored.
func Bcast[T any](ctx context.Context, g *group.Group, root types.Rank, v T) (T, error) {
	var result T
	err := run(ctx, g, root, func(ctx context.Context, c call) error {
		if g.Rank() != root {
			msg, err := c.fetch(ctx, root, wire.OpBcast)
			if err != nil {
				return err
			}
			result, err = decode[T](g, msg)
			return err
		}

		result = v
		frame, payload, err := encode(g, v)
		if err != nil {
			return c.abort(ctx, wire.OpBcast, err)
		}
		for _, r := range c.peers() {
			if err := c.post(ctx, r, wire.OpBcast, frame, payload); err != nil {
				return err
			}
		}
		return nil
	})
	return result, err
}

// Scatter distributes elements of data stored on root, so rank i receives data[i].
// Data must be present only on root and its length must be equal to the group size.
func Scatter[T any](ctx context.Context, g *group.Group, root types.Rank, data []T) (T, error) {
	var result T
	err := run(ctx, g, root, func(ctx context.Context, c call) error {
		if g.Rank() != root {
			msg, err := c.fetch(ctx, root, wire.OpScatter)
			if err != nil {
				return err
			}
			result, err = decode[T](g, msg)
			return err
		}

		if err := c.verifyShape(ctx, wire.OpScatter, len(data), g.Size()); err != nil {
			return err
		}

		// All the chunks are encoded upfront, so nothing is sent if any of them is invalid.
		frames := make([]wire.Frame, g.Size())
		payloads := make([][]byte, g.Size())
		for _, r := range c.peers() {
			var err error
			frames[r], payloads[r], err = encode(g, data[r])
			if err != nil {
				return c.abort(ctx, wire.OpScatter, errors.WithMessagef(err, "chunk of rank %d", r))
			}
		}
		for _, r := range c.peers() {
			if err := c.post(ctx, r, wire.OpScatter, frames[r], payloads[r]); err != nil {
				return err
			}
		}
		result = data[root]
		return nil
	})
	return result, err
}

// Gather collects values of all the ranks on root. The result is indexed by rank.
// Nil is returned on other ranks.
func Gather[T any](ctx context.Context, g *group.Group, root types.Rank, v T) ([]T, error) {
	var result []T
	err := run(ctx, g, root, func(ctx context.Context, c call) error {
		if g.Rank() != root {
			frame, payload, err := encode(g, v)
			if err != nil {
				if errPost := c.post(ctx, root, wire.OpGather, wire.Frame{Status: wire.StatusShapeMismatch},
					nil); errPost != nil {
					return errPost
				}
				return err
			}
			return c.post(ctx, root, wire.OpGather, frame, payload)
		}

		result = make([]T, g.Size())
		result[root] = v
		for _, r := range c.peers() {
			msg, err := c.fetch(ctx, r, wire.OpGather)
			if err != nil {
				return err
			}
			if result[r], err = decode[T](g, msg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ScatterBuffer distributes consecutive chunks of data stored on root. Length of data must be equal
// to the group size multiplied by the length of chunk.
func ScatterBuffer[T codec.Numeric](ctx context.Context, g *group.Group, root types.Rank, data, chunk []T) error {
	return run(ctx, g, root, func(ctx context.Context, c call) error {
		if g.Rank() != root {
			msg, err := c.fetch(ctx, root, wire.OpScatter)
			if err != nil {
				return err
			}
			return codec.Unpack(msg.Frame, msg.Payload, chunk)
		}

		n := len(chunk)
		if err := c.verifyShape(ctx, wire.OpScatter, len(data), g.Size()*n); err != nil {
			return err
		}
		for _, r := range c.peers() {
			part := data[int(r)*n : int(r+1)*n]
			if err := c.post(ctx, r, wire.OpScatter, codec.BufferFrame(part), codec.Bytes(part)); err != nil {
				return err
			}
		}
		copy(chunk, data[int(root)*n:int(root+1)*n])
		return nil
	})
}

// GatherBuffer collects chunks of all the ranks into data on root. Data is ignored on other ranks.
func GatherBuffer[T codec.Numeric](ctx context.Context, g *group.Group, root types.Rank, chunk, data []T) error {
	return run(ctx, g, root, func(ctx context.Context, c call) error {
		if g.Rank() != root {
			return c.post(ctx, root, wire.OpGather, codec.BufferFrame(chunk), codec.Bytes(chunk))
		}

		n := len(chunk)
		if len(data) != g.Size()*n {
			return errors.Wrapf(types.ErrShapeMismatch, "buffer of %d elements expected on root, got %d",
				g.Size()*n, len(data))
		}
		for _, r := range c.peers() {
			msg, err := c.fetch(ctx, r, wire.OpGather)
			if err != nil {
				return err
			}
			if err := codec.Unpack(msg.Frame, msg.Payload, data[int(r)*n:int(r+1)*n]); err != nil {
				return errors.WithMessagef(err, "chunk of rank %d", r)
			}
		}
		copy(data[int(root)*n:int(root+1)*n], chunk)
		return nil
	})
}

func encode(g *group.Group, v any) (wire.Frame, []byte, error) {
	frame, payload, err := g.Codec().Encode(v)
	if err != nil {
		return wire.Frame{}, nil, errors.Wrapf(types.ErrShapeMismatch, "encoding failed: %s", err)
	}
	return frame, payload, nil
}

func decode[T any](g *group.Group, msg mailbox.Message) (T, error) {
	v, err := p2p.Decode(g, msg)
	if err != nil {
		var t T
		return t, err
	}
	return p2p.As[T](v)
}

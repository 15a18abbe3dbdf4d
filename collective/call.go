package collective

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/mpi/group"
	"github.com/outofforest/mpi/helpers"
	"github.com/outofforest/mpi/mailbox"
	"github.com/outofforest/mpi/types"
	"github.com/outofforest/mpi/wire"
)

// call is a single invocation of the collective operation. All the frames it exchanges carry the same tag.
type call struct {
	g       *group.Group
	tag     types.Tag
	timeout time.Duration
}

func run(ctx context.Context, g *group.Group, root types.Rank, fn func(ctx context.Context, c call) error) error {
	c := call{
		g:       g,
		tag:     types.Tag(g.Sequence(wire.ChannelCollective)),
		timeout: g.Config().CollectiveTimeout,
	}

	if root < 0 || int(root) >= g.Size() {
		return errors.Wrapf(types.ErrSourceMismatch, "root %d is outside the group of size %d", root, g.Size())
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err := fn(callCtx, c)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(types.ErrCollectiveMismatch, "collective %d has not completed within %s", c.tag,
			c.timeout)
	}
	return err
}

func (c call) peers() []types.Rank {
	return helpers.Peers(c.g.Config())
}

func (c call) post(ctx context.Context, dst types.Rank, op wire.Op, frame wire.Frame, payload []byte) error {
	frame.Channel = wire.ChannelCollective
	frame.Op = op
	frame.Tag = c.tag
	return c.g.Post(ctx, dst, frame, payload)
}

func (c call) fetch(ctx context.Context, src types.Rank, op wire.Op) (mailbox.Message, error) {
	msg, err := c.g.Fetch(ctx, src, wire.ChannelCollective, c.tag)
	if err != nil {
		return mailbox.Message{}, err
	}
	if msg.Frame.Op != op {
		return mailbox.Message{}, errors.Wrapf(types.ErrCollectiveMismatch,
			"rank %d called operation %d while %d was expected", src, msg.Frame.Op, op)
	}
	if msg.Frame.Status == wire.StatusShapeMismatch {
		return mailbox.Message{}, errors.Wrapf(types.ErrShapeMismatch, "rank %d reported invalid shape", src)
	}
	return msg, nil
}

// verifyShape is called by root. If the length is invalid, all the other ranks are notified,
// so they fail too instead of waiting for their chunks.
func (c call) verifyShape(ctx context.Context, op wire.Op, length, expected int) error {
	if length == expected {
		return nil
	}
	return c.abort(ctx, op, errors.Wrapf(types.ErrShapeMismatch, "%d elements expected on root, got %d",
		expected, length))
}

// abort is called by root when it can't provide the data. Other ranks fail with ErrShapeMismatch.
func (c call) abort(ctx context.Context, op wire.Op, err error) error {
	for _, r := range c.peers() {
		if errPost := c.post(ctx, r, op, wire.Frame{Status: wire.StatusShapeMismatch}, nil); errPost != nil {
			return errPost
		}
	}
	return err
}

package group

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/mpi/codec"
	"github.com/outofforest/mpi/mailbox"
	"github.com/outofforest/mpi/transport"
	"github.com/outofforest/mpi/types"
	"github.com/outofforest/mpi/wire"
)

// New creates new process group. Config is validated and unset values are replaced by defaults.
func New(config types.Config, listener net.Listener) (*Group, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.WithDefaults()
	if listener == nil && config.Size() > 1 {
		return nil, errors.New("listener is required if group contains more than one rank")
	}

	mb := mailbox.New()
	return &Group{
		config:    config,
		mailbox:   mb,
		transport: transport.New(config, listener, mb),
		codec:     codec.NewObjectCodec(config.Marshaller),
	}, nil
}

// Group is the set of ranked processes exchanging messages.
type Group struct {
	config    types.Config
	mailbox   *mailbox.Mailbox
	transport *transport.Transport
	codec     *codec.ObjectCodec

	sequences [3]atomic.Uint64
}

// Run runs the links to the other ranks. It returns when context is canceled or the group failed.
func (g *Group) Run(ctx context.Context) error {
	return g.transport.Run(ctx)
}

// WaitReady waits until all the ranks are connected.
func (g *Group) WaitReady(ctx context.Context) error {
	timer := time.NewTimer(g.config.StartupTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	case <-g.transport.Failed():
		return errors.Wrapf(types.ErrStartup, "group failed: %s", g.transport.Err())
	case <-timer.C:
		return errors.Wrapf(types.ErrStartup, "%d of %d peers connected within %s",
			g.transport.Connected(), g.config.Size()-1, g.config.StartupTimeout)
	case <-g.transport.Ready():
		return nil
	}
}

// Rank returns the rank of the local process.
func (g *Group) Rank() types.Rank {
	return g.config.Rank
}

// Size returns the number of ranks in the group.
func (g *Group) Size() int {
	return g.config.Size()
}

// Config returns the config of the group.
func (g *Group) Config() types.Config {
	return g.config
}

// Codec returns the codec used to encode dynamic payloads.
func (g *Group) Codec() *codec.ObjectCodec {
	return g.codec
}

// Shutdown notifies all the peers that local rank terminates and waits for their acknowledgement.
func (g *Group) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	return g.transport.Close(ctx)
}

// Post sends the frame to the destination rank.
func (g *Group) Post(ctx context.Context, dst types.Rank, frame wire.Frame, payload []byte) error {
	return g.transport.Send(ctx, dst, frame, payload)
}

// Fetch receives the next frame sent by the source over the channel with the tag.
func (g *Group) Fetch(
	ctx context.Context,
	src types.Rank,
	channel wire.Channel,
	tag types.Tag,
) (mailbox.Message, error) {
	if src < 0 || int(src) >= g.config.Size() {
		return mailbox.Message{}, errors.Wrapf(types.ErrSourceMismatch, "rank %d is outside the group of size %d",
			src, g.config.Size())
	}
	return g.mailbox.Receive(ctx, mailbox.Key{
		Source:  src,
		Channel: channel,
		Tag:     tag,
	})
}

// Sequence returns next number of the sequence maintained for the channel.
// Every rank calling collective operations in the same order observes the same numbers.
func (g *Group) Sequence(channel wire.Channel) uint64 {
	return g.sequences[channel].Add(1)
}

package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/mpi/codec"
	"github.com/outofforest/mpi/helpers"
	"github.com/outofforest/mpi/mailbox"
	"github.com/outofforest/mpi/types"
	"github.com/outofforest/mpi/wire"
	"github.com/outofforest/mpi/wire/hello"
	"github.com/outofforest/mpi/wire/p2p"
	"github.com/outofforest/parallel"
	"github.com/outofforest/resonance"
)

const (
	// frameOverhead is the space reserved for the frame header on top of the payload.
	frameOverhead = 1024

	retryDelay = 50 * time.Millisecond
)

var errRejected = errors.New("connection rejected")

type envelope struct {
	Frame   wire.Frame
	Payload []byte
	Done    chan error
}

type link struct {
	Peer types.Rank

	// dialed is true if local rank opens the connection.
	dialed bool

	claimed         atomic.Bool
	sendCh          chan envelope
	goodbyeSent     chan struct{}
	goodbyeReceived chan struct{}
	done            chan struct{}
}

// New creates new transport. Listener might be nil if group consists of single rank.
func New(config types.Config, listener net.Listener, mb *mailbox.Mailbox) *Transport {
	links := make([]*link, config.Size())
	for _, r := range helpers.Peers(config) {
		links[r] = &link{
			Peer:            r,
			dialed:          r < config.Rank,
			sendCh:          make(chan envelope),
			goodbyeSent:     make(chan struct{}),
			goodbyeReceived: make(chan struct{}),
			done:            make(chan struct{}),
		}
	}

	t := &Transport{
		config:      config,
		listener:    listener,
		mailbox:     mb,
		fingerprint: helpers.Fingerprint(config),
		connConfig: resonance.Config{
			MaxMessageSize: config.MaxMessageSize + frameOverhead,
		},
		mHello:  hello.NewMarshaller(),
		mP2P:    p2p.NewMarshaller(),
		links:   links,
		ready:   make(chan struct{}),
		closing: make(chan struct{}),
		failed:  make(chan struct{}),
	}
	if config.Size() == 1 {
		close(t.ready)
	}
	return t
}

// Transport maintains links to all the other ranks of the group.
type Transport struct {
	config      types.Config
	listener    net.Listener
	mailbox     *mailbox.Mailbox
	fingerprint uint64
	connConfig  resonance.Config
	mHello      hello.Marshaller
	mP2P        p2p.Marshaller
	links       []*link

	connected atomic.Int64
	ready     chan struct{}

	closeOnce sync.Once
	closing   chan struct{}

	failOnce sync.Once
	failed   chan struct{}
	err      error
}

// Run runs the transport.
func (t *Transport) Run(ctx context.Context) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		// Links report lost peers until the transport itself is stopped.
		runCtx := ctx

		spawn("supervisor", parallel.Fail, func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return errors.WithStack(ctx.Err())
			case <-t.failed:
				return t.err
			}
		})
		if t.listener != nil {
			spawn("listener", parallel.Fail, func(ctx context.Context) error {
				return resonance.RunServer(ctx, t.listener, t.connConfig,
					func(ctx context.Context, c *resonance.Connection) error {
						err := t.handleLink(ctx, runCtx, nil, c)
						if errors.Is(err, errRejected) {
							logger.Get(ctx).Error("Connection rejected", zap.Error(err))
						}
						return err
					},
				)
			})
		}

		for _, l := range t.links {
			// Higher rank dials the lower one.
			if l == nil || !l.dialed {
				continue
			}
			spawn("connector", parallel.Continue, func(ctx context.Context) error {
				return t.dial(ctx, runCtx, l)
			})
		}

		return nil
	})
}

// Ready returns channel which is closed once links to all the peers are established.
func (t *Transport) Ready() <-chan struct{} {
	return t.ready
}

// Connected returns the number of established links.
func (t *Transport) Connected() int {
	return int(t.connected.Load())
}

// Failed returns channel which is closed when the transport failed.
func (t *Transport) Failed() <-chan struct{} {
	return t.failed
}

// Err returns the fatal error once the transport failed.
func (t *Transport) Err() error {
	select {
	case <-t.failed:
		return t.err
	default:
		return nil
	}
}

// Send sends frame to the peer. It returns once the frame and its payload are written to the connection,
// so the payload buffer might be reused.
func (t *Transport) Send(ctx context.Context, dst types.Rank, frame wire.Frame, payload []byte) error {
	if dst < 0 || int(dst) >= len(t.links) {
		return errors.Wrapf(types.ErrDestinationMismatch, "rank %d is outside the group of size %d",
			dst, len(t.links))
	}
	if uint64(len(payload)) > t.config.MaxMessageSize {
		return errors.Errorf("payload of %d bytes exceeds the limit of %d bytes", len(payload),
			t.config.MaxMessageSize)
	}
	frame.Size = uint64(len(payload))

	if dst == t.config.Rank {
		if err := t.Err(); err != nil {
			return err
		}
		t.mailbox.Deliver(mailbox.Key{
			Source:  dst,
			Channel: frame.Channel,
			Tag:     frame.Tag,
		}, mailbox.Message{
			Frame:   frame,
			Payload: append([]byte(nil), payload...),
		})
		return nil
	}

	l := t.links[dst]
	env := envelope{
		Frame:   frame,
		Payload: payload,
		Done:    make(chan error, 1),
	}

	select {
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	case <-t.failed:
		return t.err
	case <-l.done:
		return errors.Wrapf(types.ErrDestinationMismatch, "rank %d has shut down", dst)
	case l.sendCh <- env:
	}

	select {
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	case <-t.failed:
		return t.err
	case err := <-env.Done:
		return err
	}
}

// Close sends goodbye to all the peers and waits until all of them say goodbye too.
func (t *Transport) Close(ctx context.Context) error {
	t.closeOnce.Do(func() {
		close(t.closing)
	})

	for _, l := range t.links {
		if l == nil {
			continue
		}
		select {
		case <-ctx.Done():
			silent := lo.FilterMap(t.links, func(l *link, _ int) (types.Rank, bool) {
				if l == nil {
					return 0, false
				}
				select {
				case <-l.done:
					return 0, false
				default:
					return l.Peer, true
				}
			})
			return errors.Wrapf(types.ErrShutdownTimeout, "ranks %v have not acknowledged shutdown", silent)
		case <-t.failed:
			return t.err
		case <-l.done:
		}
	}

	if pending := t.mailbox.Pending(); len(pending) > 0 {
		logger.Get(ctx).Warn("Messages have never been received", zap.Any("pending", pending))
	}
	return nil
}

func (t *Transport) dial(ctx, runCtx context.Context, l *link) error {
	addr := t.config.Peers[l.Peer].Address
	for {
		err := resonance.RunClient(ctx, addr, t.connConfig,
			func(ctx context.Context, c *resonance.Connection) error {
				return t.handleLink(ctx, runCtx, l, c)
			},
		)
		if ctx.Err() != nil {
			return errors.WithStack(ctx.Err())
		}
		if l.claimed.Load() {
			return nil
		}
		if errors.Is(err, errRejected) {
			logger.Get(ctx).Error("Connection rejected", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-time.After(retryDelay):
		}
	}
}

func (t *Transport) handleLink(ctx, runCtx context.Context, expected *link, c *resonance.Connection) error {
	c.BufferReads()
	c.BufferWrites()

	if err := c.SendProton(&wire.Hello{
		GroupID:     t.config.GroupID,
		Fingerprint: t.fingerprint,
		Rank:        uint64(t.config.Rank),
		Size:        uint64(t.config.Size()),
	}, t.mHello); err != nil {
		return err
	}

	msg, err := c.ReceiveProton(t.mHello)
	if err != nil {
		return err
	}
	h, ok := msg.(*wire.Hello)
	if !ok {
		return errors.Wrapf(errRejected, "hello expected, got: %T", msg)
	}

	l, err := t.verifyHello(expected, h)
	if err != nil {
		return err
	}
	if !l.claimed.CompareAndSwap(false, true) {
		return errors.Wrapf(errRejected, "rank %d is already connected", l.Peer)
	}

	log := logger.Get(ctx).With(zap.Int("peer", int(l.Peer)))
	log.Info("Link established")

	if t.connected.Add(1) == int64(t.config.Size()-1) {
		close(t.ready)
	}

	err = t.runLink(ctx, l, c)
	close(l.done)

	select {
	case <-l.goodbyeReceived:
		log.Info("Link closed")
		return nil
	default:
	}

	// Connection context ends together with the socket, so the transport context decides.
	if runCtx.Err() == nil {
		if err == nil {
			err = errors.New("connection closed")
		}
		t.fail(errors.Wrapf(types.ErrPeerLost, "link to rank %d broke: %s", l.Peer, err))
	}
	return err
}

func (t *Transport) verifyHello(expected *link, h *wire.Hello) (*link, error) {
	switch {
	case h.GroupID != t.config.GroupID:
		return nil, errors.Wrapf(errRejected, "peer belongs to group %q, expected %q", h.GroupID, t.config.GroupID)
	case h.Size != uint64(t.config.Size()):
		return nil, errors.Wrapf(errRejected, "peer expects group of size %d, expected %d", h.Size, t.config.Size())
	case h.Fingerprint != t.fingerprint:
		return nil, errors.Wrapf(errRejected, "group fingerprint mismatch")
	case h.Rank >= uint64(len(t.links)) || t.links[h.Rank] == nil:
		return nil, errors.Wrapf(errRejected, "invalid peer rank %d", h.Rank)
	}

	l := t.links[h.Rank]
	switch {
	case expected == nil:
		if l.dialed {
			return nil, errors.Wrapf(errRejected, "rank %d should wait for my connection", l.Peer)
		}
	case l != expected:
		return nil, errors.Wrapf(errRejected, "rank %d expected, got %d", expected.Peer, l.Peer)
	}
	return l, nil
}

func (t *Transport) runLink(ctx context.Context, l *link, c *resonance.Connection) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("watchdog", parallel.Fail, func(ctx context.Context) error {
			defer c.Close()

			<-ctx.Done()
			return errors.WithStack(ctx.Err())
		})
		spawn("sender", parallel.Continue, func(ctx context.Context) error {
			var chain codec.Chain
			var frames uint64
			for {
				select {
				case <-ctx.Done():
					return errors.WithStack(ctx.Err())
				case <-t.closing:
					if !l.dialed {
						// Accepting side answers the goodbye, so the dialing side knows when to close.
						select {
						case <-ctx.Done():
							return errors.WithStack(ctx.Err())
						case <-l.goodbyeReceived:
						}
					}
					if err := c.SendProton(&wire.Goodbye{Frames: frames}, t.mP2P); err != nil {
						return err
					}
					close(l.goodbyeSent)
					return nil
				case env := <-l.sendCh:
					env.Frame.Checksum = chain.Next(&env.Frame, env.Payload)
					err := c.SendProton(&env.Frame, t.mP2P)
					if err == nil && env.Frame.Size > 0 {
						err = c.SendBytes(env.Payload)
					}
					env.Done <- err
					if err != nil {
						return err
					}
					frames++
				}
			}
		})
		spawn("receiver", parallel.Exit, func(ctx context.Context) error {
			var chain codec.Chain
			var frames uint64
			for {
				msg, err := c.ReceiveProton(t.mP2P)
				if err != nil {
					return err
				}

				switch msg := msg.(type) {
				case *wire.Frame:
					var payload []byte
					if msg.Size > 0 {
						raw, err := c.ReceiveBytes()
						if err != nil {
							return err
						}
						if uint64(len(raw)) != msg.Size {
							return errors.Errorf("payload of %d bytes expected, got %d", msg.Size, len(raw))
						}
						payload = append([]byte(nil), raw...)
					}
					if err := chain.Verify(msg, payload); err != nil {
						return err
					}
					frames++

					t.mailbox.Deliver(mailbox.Key{
						Source:  l.Peer,
						Channel: msg.Channel,
						Tag:     msg.Tag,
					}, mailbox.Message{
						Frame:   *msg,
						Payload: payload,
					})
				case *wire.Goodbye:
					if msg.Frames != frames {
						return errors.Errorf("peer sent %d frames, %d received", msg.Frames, frames)
					}
					close(l.goodbyeReceived)
					t.mailbox.Close(l.Peer)

					if l.dialed {
						select {
						case <-ctx.Done():
							return errors.WithStack(ctx.Err())
						case <-l.goodbyeSent:
							return nil
						}
					}

					// Dialing side closes the connection once it receives our goodbye.
					if _, err := c.ReceiveProton(t.mP2P); err == nil {
						return errors.New("unexpected message after goodbye")
					}
					return nil
				default:
					return errors.Errorf("unexpected message %T", msg)
				}
			}
		})

		return nil
	})
}

func (t *Transport) fail(err error) {
	t.failOnce.Do(func() {
		t.err = err
		t.mailbox.Fail(err)
		close(t.failed)
	})
}

package cluster

import (
	"context"
	"net"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/resonance"
)

// Link stores ranks connected by link.
type Link struct {
	Src *Rank
	Dst *Rank
}

// Pair stores information about connected pair of ranks.
type Pair struct {
	Link        Link
	SrcListener net.Listener
	DstListener net.Listener
}

// newMesh creates new mesh.
func newMesh(maxMsgSize uint64) *mesh {
	return &mesh{
		config: resonance.Config{
			MaxMessageSize: maxMsgSize,
		},
		listeners: map[*Rank]net.Listener{},
		links:     map[Link]*Pair{},
		ch:        make(chan any),
	}
}

// mesh forwards traffic between ranks, so links might be cut.
type mesh struct {
	config resonance.Config

	mu        sync.Mutex
	listeners map[*Rank]net.Listener
	links     map[Link]*Pair

	ch chan any
}

type startPair struct {
	Pair *Pair
}

type disablePair struct {
	Pair *Pair
	Done chan struct{}
}

type connection struct {
	Conn net.Conn
	Pair *Pair
}

// Listener returns listener for rank.
func (m *mesh) Listener(rank *Rank) (net.Listener, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.listener(rank)
}

// Pair returns a pair of connected endpoints.
func (m *mesh) Pair(ctx context.Context, src, dst *Rank) (*Pair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lnk := Link{Src: src, Dst: dst}
	p, exists := m.links[lnk]
	if !exists {
		dstL, err := m.listener(dst)
		if err != nil {
			return nil, err
		}
		srcL, err := net.Listen("tcp", "localhost:0")
		if err != nil {
			return nil, errors.WithStack(err)
		}

		p = &Pair{
			Link:        lnk,
			SrcListener: srcL,
			DstListener: dstL,
		}
		m.links[lnk] = p

		select {
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		case m.ch <- startPair{Pair: p}:
		}
	}

	return p, nil
}

// DisableLink cuts pair connection. Established connections are closed and new ones are refused.
func (m *mesh) DisableLink(ctx context.Context, src, dst *Rank) error {
	pair, err := m.Pair(ctx, src, dst)
	if err != nil {
		return err
	}

	cmd := disablePair{
		Pair: pair,
		Done: make(chan struct{}),
	}

	select {
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	case m.ch <- cmd:
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-cmd.Done:
		}
	}

	return nil
}

func (m *mesh) close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.listeners {
		_ = l.Close()
	}
}

func (m *mesh) run(ctx context.Context) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("supervisor", parallel.Fail, func(ctx context.Context) error {
			runningPairs := map[*Pair]*parallel.Group{}

			for {
				select {
				case <-ctx.Done():
					return errors.WithStack(ctx.Err())
				case cmd := <-m.ch:
					switch cmd := cmd.(type) {
					case connection:
						group := runningPairs[cmd.Pair]
						if group == nil {
							_ = cmd.Conn.Close()
							continue
						}
						group.Spawn("conn", parallel.Continue, func(ctx context.Context) error {
							return m.runConn(ctx, cmd.Conn, cmd.Pair)
						})
					case startPair:
						if _, exists := runningPairs[cmd.Pair]; exists {
							continue
						}
						runningPairs[cmd.Pair] = parallel.NewSubgroup(spawn, "connections", parallel.Continue)

						spawn("pair", parallel.Continue, func(ctx context.Context) error {
							return m.runForwarder(ctx, cmd.Pair)
						})
					case disablePair:
						err := func() error {
							defer close(cmd.Done)

							group := runningPairs[cmd.Pair]
							if group == nil {
								return nil
							}

							group.Exit(nil)
							if err := group.Wait(); err != nil {
								return err
							}
							runningPairs[cmd.Pair] = nil
							return nil
						}()
						if err != nil {
							return err
						}
					}
				}
			}
		})

		return nil
	})
}

func (m *mesh) runForwarder(ctx context.Context, pair *Pair) error {
	err := parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("listener", parallel.Fail, func(ctx context.Context) error {
			for {
				conn, err := pair.SrcListener.Accept()
				if ctx.Err() != nil {
					if err == nil {
						_ = conn.Close()
					}
					return errors.WithStack(ctx.Err())
				}
				if err != nil {
					return errors.WithStack(err)
				}

				select {
				case <-ctx.Done():
					_ = conn.Close()
					return errors.WithStack(ctx.Err())
				case m.ch <- connection{
					Conn: conn,
					Pair: pair,
				}:
				}
			}
		})
		spawn("watchdog", parallel.Fail, func(ctx context.Context) error {
			defer pair.SrcListener.Close()

			<-ctx.Done()
			return errors.WithStack(ctx.Err())
		})

		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logger.Get(ctx).Error("Forwarder failed", zap.Error(err))
	}
	return err
}

func (m *mesh) runConn(ctx context.Context, conn net.Conn, pair *Pair) error {
	_ = parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		conn2, err := net.Dial("tcp", pair.DstListener.Addr().String())
		if err != nil {
			_ = conn.Close()
			return errors.WithStack(err)
		}

		spawn("watchdog", parallel.Fail, func(ctx context.Context) error {
			defer conn.Close()
			defer conn2.Close()

			<-ctx.Done()
			return errors.WithStack(ctx.Err())
		})

		c1 := resonance.NewConnection(conn, m.config)
		c2 := resonance.NewConnection(conn2, m.config)

		spawn("c1", parallel.Fail, c1.Run)
		spawn("c2", parallel.Fail, c2.Run)

		c1.BufferReads()
		c1.BufferWrites()
		c2.BufferReads()
		c2.BufferWrites()

		spawn("copy1", parallel.Exit, func(ctx context.Context) error {
			return relay(c2, c1)
		})
		spawn("copy2", parallel.Exit, func(ctx context.Context) error {
			return relay(c1, c2)
		})

		return nil
	})
	return nil
}

func relay(dstC, srcC *resonance.Connection) error {
	for {
		msg, err := srcC.ReceiveRawBytes()
		if err != nil {
			return err
		}
		if err := dstC.SendRawBytes(msg); err != nil {
			return err
		}
	}
}

func (m *mesh) listener(rank *Rank) (net.Listener, error) {
	l, exists := m.listeners[rank]
	if !exists {
		var err error
		l, err = net.Listen("tcp", "localhost:0")
		if err != nil {
			return nil, errors.WithStack(err)
		}
		m.listeners[rank] = l
	}
	return l, nil
}

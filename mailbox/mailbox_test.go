package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/mpi/types"
	"github.com/outofforest/mpi/wire"
	"github.com/outofforest/parallel"
	"github.com/outofforest/qa"
)

func msg(b byte) Message {
	return Message{
		Frame:   wire.Frame{Size: 1},
		Payload: []byte{b},
	}
}

func TestFIFO(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	m := New()
	key1 := Key{Source: 1, Channel: wire.ChannelPointToPoint, Tag: 1}
	key2 := Key{Source: 1, Channel: wire.ChannelPointToPoint, Tag: 2}

	m.Deliver(key1, msg(1))
	m.Deliver(key2, msg(2))
	m.Deliver(key1, msg(3))

	requireT.Equal(map[types.Rank]int{1: 3}, m.Pending())

	v, err := m.Receive(ctx, key2)
	requireT.NoError(err)
	requireT.Equal(msg(2), v)

	v, err = m.Receive(ctx, key1)
	requireT.NoError(err)
	requireT.Equal(msg(1), v)

	v, err = m.Receive(ctx, key1)
	requireT.NoError(err)
	requireT.Equal(msg(3), v)

	requireT.Empty(m.Pending())
	requireT.Empty(m.queues)
}

func TestChannelsAreSeparated(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	m := New()
	m.Deliver(Key{Source: 0, Channel: wire.ChannelCollective, Tag: 1}, msg(1))

	ctx2, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	_, err := m.Receive(ctx2, Key{Source: 0, Channel: wire.ChannelPointToPoint, Tag: 1})
	requireT.ErrorIs(err, context.DeadlineExceeded)
	requireT.Len(m.queues, 1)
}

func TestBlockingReceive(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	m := New()
	key := Key{Source: 2, Tag: 5}

	requireT.NoError(parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("receiver", parallel.Exit, func(ctx context.Context) error {
			for i := range byte(10) {
				v, err := m.Receive(ctx, key)
				if err != nil {
					return err
				}
				if v.Payload[0] != i {
					return errors.Errorf("unexpected message %d, expected %d", v.Payload[0], i)
				}
			}
			return nil
		})
		spawn("sender", parallel.Continue, func(ctx context.Context) error {
			for i := range byte(10) {
				m.Deliver(key, msg(i))
			}
			return nil
		})
		return nil
	}))
}

func TestClose(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	m := New()
	key := Key{Source: 1, Tag: 1}
	m.Deliver(key, msg(1))
	m.Close(1)

	v, err := m.Receive(ctx, key)
	requireT.NoError(err)
	requireT.Equal(msg(1), v)

	_, err = m.Receive(ctx, key)
	requireT.ErrorIs(err, types.ErrSourceMismatch)

	m.Deliver(Key{Source: 2, Tag: 1}, msg(2))
	v, err = m.Receive(ctx, Key{Source: 2, Tag: 1})
	requireT.NoError(err)
	requireT.Equal(msg(2), v)
}

func TestCloseWakesWaiter(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	m := New()

	err := parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("receiver", parallel.Exit, func(ctx context.Context) error {
			_, err := m.Receive(ctx, Key{Source: 3})
			return err
		})
		spawn("closer", parallel.Continue, func(ctx context.Context) error {
			for {
				m.mu.Lock()
				q := m.queues[Key{Source: 3}]
				waiting := q != nil && q.waiters > 0
				m.mu.Unlock()
				if waiting {
					break
				}
				time.Sleep(time.Millisecond)
			}
			m.Close(3)
			return nil
		})
		return nil
	})
	requireT.ErrorIs(err, types.ErrSourceMismatch)
}

func TestFail(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	m := New()
	key := Key{Source: 1}
	m.Deliver(key, msg(1))

	errFatal := errors.Wrap(types.ErrPeerLost, "test")

	err := parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("receiver", parallel.Exit, func(ctx context.Context) error {
			_, err := m.Receive(ctx, Key{Source: 2})
			return err
		})
		spawn("failer", parallel.Continue, func(ctx context.Context) error {
			m.Fail(errFatal)
			m.Fail(errors.New("second"))
			return nil
		})
		return nil
	})
	requireT.ErrorIs(err, types.ErrPeerLost)

	m.Deliver(key, msg(2))

	v, err := m.Receive(ctx, key)
	requireT.NoError(err)
	requireT.Equal(msg(1), v)

	_, err = m.Receive(ctx, key)
	requireT.ErrorIs(err, types.ErrPeerLost)
	requireT.Empty(m.Pending())
}

package mailbox

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/outofforest/mpi/types"
	"github.com/outofforest/mpi/wire"
)

// Key identifies the stream of messages.
type Key struct {
	Source  types.Rank
	Channel wire.Channel
	Tag     types.Tag
}

// Message is the received frame together with its payload.
type Message struct {
	Frame   wire.Frame
	Payload []byte
}

type queue struct {
	messages []Message
	waiters  int
	signal   chan struct{}
}

// New creates new mailbox.
func New() *Mailbox {
	return &Mailbox{
		queues: map[Key]*queue{},
		closed: map[types.Rank]struct{}{},
	}
}

// Mailbox stores messages received from peers until they are consumed.
type Mailbox struct {
	mu     sync.Mutex
	queues map[Key]*queue
	closed map[types.Rank]struct{}
	err    error
}

// Deliver puts message into the queue. Messages delivered after mailbox failed are dropped.
func (m *Mailbox) Deliver(key Key, msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return
	}

	q := m.queue(key)
	q.messages = append(q.messages, msg)
	m.wake(q)
}

// Receive returns the oldest message stored under the key. It blocks until message arrives.
func (m *Mailbox) Receive(ctx context.Context, key Key) (Message, error) {
	for {
		m.mu.Lock()
		q := m.queue(key)
		if len(q.messages) > 0 {
			msg := q.messages[0]
			q.messages[0] = Message{}
			q.messages = q.messages[1:]
			m.release(key, q)
			m.mu.Unlock()
			return msg, nil
		}
		if m.err != nil {
			m.release(key, q)
			m.mu.Unlock()
			return Message{}, m.err
		}
		if _, closed := m.closed[key.Source]; closed {
			m.release(key, q)
			m.mu.Unlock()
			return Message{}, errors.Wrapf(types.ErrSourceMismatch, "rank %d has shut down", key.Source)
		}

		q.waiters++
		signal := q.signal
		m.mu.Unlock()

		var err error
		select {
		case <-ctx.Done():
			err = errors.WithStack(ctx.Err())
		case <-signal:
		}

		m.mu.Lock()
		q.waiters--
		if err != nil {
			m.release(key, q)
			m.mu.Unlock()
			return Message{}, err
		}
		m.mu.Unlock()
	}
}

// Close marks the source as shut down. Messages already stored might still be received.
func (m *Mailbox) Close(source types.Rank) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed[source] = struct{}{}
	for key, q := range m.queues {
		if key.Source == source {
			m.wake(q)
		}
	}
}

// Fail wakes up all the receivers and makes them return the error once messages already stored are received.
// Only the first error is kept.
func (m *Mailbox) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return
	}
	m.err = err
	for _, q := range m.queues {
		m.wake(q)
	}
}

// Pending returns the number of messages which have never been received, per source.
func (m *Mailbox) Pending() map[types.Rank]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := map[types.Rank]int{}
	for key, q := range m.queues {
		if len(q.messages) > 0 {
			pending[key.Source] += len(q.messages)
		}
	}
	return pending
}

func (m *Mailbox) queue(key Key) *queue {
	q := m.queues[key]
	if q == nil {
		q = &queue{
			signal: make(chan struct{}),
		}
		m.queues[key] = q
	}
	return q
}

func (m *Mailbox) release(key Key, q *queue) {
	if len(q.messages) == 0 && q.waiters == 0 {
		delete(m.queues, key)
	}
}

func (m *Mailbox) wake(q *queue) {
	close(q.signal)
	q.signal = make(chan struct{})
}

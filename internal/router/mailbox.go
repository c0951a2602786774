package router

import (
	"context"
	"sync"

	"github.com/ibeckermayer/credify/internal/message"
)

// Handler processes one envelope. A context's handler is never called
// concurrently with itself.
type Handler func(ctx context.Context, env message.Envelope)

// mailbox is an unbounded FIFO drained by a single goroutine.
type mailbox struct {
	id      message.ContextID
	handler Handler

	mu    sync.Mutex
	queue []message.Envelope
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newMailbox(id message.ContextID, h Handler) *mailbox {
	return &mailbox{
		id:      id,
		handler: h,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (m *mailbox) push(env message.Envelope) {
	m.mu.Lock()
	m.queue = append(m.queue, env)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) pop() (message.Envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return message.Envelope{}, false
	}
	env := m.queue[0]
	m.queue[0] = message.Envelope{}
	m.queue = m.queue[1:]
	return env, true
}

func (m *mailbox) close() {
	m.once.Do(func() { close(m.done) })
}

func (m *mailbox) run(ctx context.Context) {
	for {
		if env, ok := m.pop(); ok {
			m.handler(ctx, env)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-m.wake:
		}
	}
}

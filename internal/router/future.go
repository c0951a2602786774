package router

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ibeckermayer/credify/internal/message"
)

// Future is the deferred reply to a request.
type Future struct {
	id    uuid.UUID
	done  chan struct{}
	once  sync.Once
	reply message.Reply
}

func newFuture(id uuid.UUID) *Future {
	return &Future{id: id, done: make(chan struct{})}
}

// ID is the request's correlation id.
func (f *Future) ID() uuid.UUID { return f.id }

// resolve sets the reply. Only the first call has any effect.
func (f *Future) resolve(r message.Reply) bool {
	resolved := false
	f.once.Do(func() {
		f.reply = r
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the reply is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the reply arrives or ctx ends.
func (f *Future) Await(ctx context.Context) (message.Reply, error) {
	select {
	case <-f.done:
		return f.reply, nil
	case <-ctx.Done():
		return message.Reply{}, ctx.Err()
	}
}

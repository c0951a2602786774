// Package router is the background context: it delivers messages between
// contexts, keeps the result cache and answers popup checks.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ibeckermayer/credify/internal/analysis"
	"github.com/ibeckermayer/credify/internal/cache"
	"github.com/ibeckermayer/credify/internal/identity"
	"github.com/ibeckermayer/credify/internal/message"
)

var (
	// ErrUnknownContext is returned when sending to a context with no mailbox.
	ErrUnknownContext = errors.New("unknown context")
	// ErrRegistered is returned when a context id is registered twice.
	ErrRegistered = errors.New("context already registered")
)

// Options configure a Router.
type Options struct {
	// Host limits which tab URLs produce Navigated messages.
	Host   string
	Logger *slog.Logger
}

// Router owns the mailboxes, the pending requests and the tab URL table.
type Router struct {
	slot   *cache.Slot
	host   string
	logger *slog.Logger

	mu        sync.Mutex
	boxes     map[message.ContextID]*mailbox
	pending   map[uuid.UUID]*Future
	tabs      map[string]string
	activeTab string

	wg sync.WaitGroup
}

// New creates a router persisting analyses into slot.
func New(slot *cache.Slot, opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Host == "" {
		opts.Host = "reddit.com"
	}
	return &Router{
		slot:    slot,
		host:    opts.Host,
		logger:  opts.Logger,
		boxes:   make(map[message.ContextID]*mailbox),
		pending: make(map[uuid.UUID]*Future),
		tabs:    make(map[string]string),
	}
}

// Start registers the background context. Mailboxes stop when ctx ends.
func (r *Router) Start(ctx context.Context) error {
	_, err := r.Register(ctx, message.Background, r.handle)
	return err
}

// Wait blocks until every mailbox goroutine has returned.
func (r *Router) Wait() {
	r.wg.Wait()
}

// Register creates a mailbox for id drained by one goroutine running h.
func (r *Router) Register(ctx context.Context, id message.ContextID, h Handler) (unregister func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.boxes[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrRegistered, id)
	}
	box := newMailbox(id, h)
	r.boxes[id] = box

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		box.run(ctx)
	}()

	return func() {
		r.mu.Lock()
		if r.boxes[id] == box {
			delete(r.boxes, id)
		}
		r.mu.Unlock()
		box.close()
	}, nil
}

// Send queues env for its destination and returns immediately.
func (r *Router) Send(env message.Envelope) error {
	r.mu.Lock()
	box, ok := r.boxes[env.To]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContext, env.To)
	}
	box.push(env)
	return nil
}

// Request sends msg and returns a future for its single reply.
func (r *Router) Request(from, to message.ContextID, msg message.Message) (*Future, error) {
	env := message.New(from, to, msg)
	f := newFuture(env.ID)

	r.mu.Lock()
	r.pending[env.ID] = f
	r.mu.Unlock()

	if err := r.Send(env); err != nil {
		r.forget(env.ID)
		return nil, err
	}
	return f, nil
}

// Call sends a request and waits for its reply.
func (r *Router) Call(ctx context.Context, from, to message.ContextID, msg message.Message) (message.Reply, error) {
	f, err := r.Request(from, to, msg)
	if err != nil {
		return message.Reply{}, err
	}
	reply, err := f.Await(ctx)
	if err != nil {
		r.forget(f.ID())
	}
	return reply, err
}

// Resolve delivers the reply for request id. It reports false when the
// request is unknown or was already answered; such replies are dropped.
func (r *Router) Resolve(id uuid.UUID, reply message.Reply) bool {
	r.mu.Lock()
	f, ok := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("dropping reply", "correlation_id", id)
		return false
	}
	return f.resolve(reply)
}

func (r *Router) forget(id uuid.UUID) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// Pending returns how many requests await a reply.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Router) handle(ctx context.Context, env message.Envelope) {
	switch m := env.Msg.(type) {
	case message.AnalysisCompleted:
		result := m.Result
		result.ItemID = m.ItemID
		result.ContainerID = m.ContainerID
		if err := r.slot.Put(ctx, result); err != nil {
			r.logger.Error("failed to persist analysis", "item_id", m.ItemID, "error", err)
			return
		}
		r.logger.Info("analysis stored", "item_id", m.ItemID, "subreddit", m.ContainerID, "score", result.Score)

	case message.CheckCurrent:
		target := m.TargetContextID
		if target == "" {
			if tab, ok := r.ActiveTab(); ok {
				target = message.TabContext(tab)
			}
		}
		if err := r.Send(message.New(message.Background, target, message.ForceAnalyze{})); err != nil {
			r.logger.Debug("force analyze not delivered", "error", err)
		}
		r.Resolve(env.ID, message.ReplyFor(r.slot.Get()))

	default:
		r.logger.Debug("ignoring message", "kind", env.Msg.Kind(), "from", env.From)
	}
}

// TabUpdated records a tab's new URL. When the URL is on the configured
// host, the tab's content context is told it navigated.
func (r *Router) TabUpdated(tabID, url string) {
	r.mu.Lock()
	prev := r.tabs[tabID]
	r.tabs[tabID] = url
	r.activeTab = tabID
	r.mu.Unlock()

	if url == prev || !identity.OnHost(url, r.host) {
		return
	}
	nav := message.NavigatedTo(url)
	if err := r.Send(message.New(message.Background, message.TabContext(tabID), nav)); err != nil {
		r.logger.Debug("navigation not delivered", "tab_id", tabID, "error", err)
	}
}

// ActiveURL returns the last URL seen for tabID.
func (r *Router) ActiveURL(tabID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	url, ok := r.tabs[tabID]
	return url, ok
}

// ActiveTab returns the most recently updated tab.
func (r *Router) ActiveTab() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeTab, r.activeTab != ""
}

// Cached returns the result currently in the cache slot.
func (r *Router) Cached() (analysis.Result, bool) {
	return r.slot.Get()
}

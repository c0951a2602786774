// Package watch turns bursts of page mutations into one coalesced rescan.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"
	"golang.org/x/net/html"

	"github.com/ibeckermayer/credify/internal/dom"
	"github.com/ibeckermayer/credify/internal/inject"
	"github.com/ibeckermayer/credify/internal/locate"
)

// DefaultDelay is the quiet period before a rescan fires.
const DefaultDelay = 500 * time.Millisecond

// Source yields the tree to scan.
type Source interface {
	Document(ctx context.Context) (*dom.Document, error)
}

// Injector is satisfied by *inject.Controller.
type Injector interface {
	EnsureInjected(ctx context.Context, itemID string) inject.State
}

// Options tune a Watcher.
type Options struct {
	Delay  time.Duration
	Logger *slog.Logger
}

// Watcher debounces change notifications and rescans the page for posts.
type Watcher struct {
	ctx      context.Context
	cancel   context.CancelFunc
	source   Source
	injector Injector
	logger   *slog.Logger
	schedule func(f func())

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// New creates a watcher. Rescans triggered by Notify run under ctx.
func New(ctx context.Context, source Source, injector Injector, opts Options) *Watcher {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Watcher{
		ctx:      ctx,
		cancel:   cancel,
		source:   source,
		injector: injector,
		logger:   opts.Logger,
		schedule: debounce.New(opts.Delay),
	}
}

// Notify records that the page changed. Each call restarts the quiet period;
// only the last call in a burst leads to a rescan.
func (w *Watcher) Notify() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.schedule(func() { w.Rescan(w.ctx) })
}

// Attach subscribes to mutations of an in-memory document.
func (w *Watcher) Attach(doc *dom.Document) (cancel func()) {
	return doc.Observe(func(dom.Mutation) { w.Notify() })
}

// Rescan lists every post on the page and ensures each has a control.
// Each post is handled on its own goroutine so one slow post does not hold
// up the others. It returns the number of posts found.
func (w *Watcher) Rescan(ctx context.Context) int {
	doc, err := w.source.Document(ctx)
	if err != nil {
		w.logger.Debug("rescan skipped", "error", err)
		return 0
	}
	var ids []string
	doc.Read(func(root *html.Node) { ids = locate.Items(root) })

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return 0
	}
	for _, id := range ids {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.injector.EnsureInjected(ctx, id)
		}()
	}
	if len(ids) > 0 {
		w.logger.Debug("rescan", "items", len(ids))
	}
	return len(ids)
}

// Stop drops any pending rescan, cancels running ones and waits for them.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.schedule(func() {})
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
}

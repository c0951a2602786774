// Package content is the per-tab content context. It owns the tab's
// injection controller, mutation watcher and overlay, and answers the
// background's navigation and analysis messages.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/ibeckermayer/credify/internal/analysis"
	"github.com/ibeckermayer/credify/internal/identity"
	"github.com/ibeckermayer/credify/internal/inject"
	"github.com/ibeckermayer/credify/internal/locate"
	"github.com/ibeckermayer/credify/internal/message"
	"github.com/ibeckermayer/credify/internal/overlay"
	"github.com/ibeckermayer/credify/internal/watch"
)

// Analyzer is satisfied by *analysis.Pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, id identity.Identity, title string) analysis.Result
}

// Cache is the read side of the result cache. *cache.Slot satisfies it.
type Cache interface {
	For(itemID string) (analysis.Result, bool)
}

// Sender delivers messages to other contexts. *router.Router satisfies it.
type Sender interface {
	Send(env message.Envelope) error
}

// Options configure an Agent.
type Options struct {
	TabID    string
	Surface  inject.Surface
	Renderer overlay.Renderer
	Analyzer Analyzer
	Cache    Cache
	Sender   Sender

	Inject   inject.Options
	Debounce time.Duration
	// Settle delays the initial scan so the page can finish its first paint.
	Settle time.Duration
	Logger *slog.Logger
}

// Agent is the content context of one tab.
type Agent struct {
	id       message.ContextID
	surface  inject.Surface
	analyzer Analyzer
	cache    Cache
	sender   Sender
	settle   time.Duration
	logger   *slog.Logger

	controller *inject.Controller
	watcher    *watch.Watcher
	overlay    *overlay.Machine

	ctx     context.Context
	cancel  context.CancelFunc
	workMu  sync.Mutex
	stopped bool
	wg      sync.WaitGroup

	mu         sync.Mutex
	current    identity.Identity
	hasCurrent bool
}

// New creates the agent for opts.TabID. Background work stops when ctx ends
// or Stop is called.
func New(ctx context.Context, opts Options) *Agent {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("tab_id", opts.TabID)

	ctx, cancel := context.WithCancel(ctx)
	a := &Agent{
		id:       message.TabContext(opts.TabID),
		surface:  opts.Surface,
		analyzer: opts.Analyzer,
		cache:    opts.Cache,
		sender:   opts.Sender,
		settle:   opts.Settle,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	injectOpts := opts.Inject
	if injectOpts.Logger == nil {
		injectOpts.Logger = logger.With("component", "inject")
	}
	a.controller = inject.NewController(opts.Surface, injectOpts)
	a.watcher = watch.New(ctx, opts.Surface, a.controller, watch.Options{
		Delay:  opts.Debounce,
		Logger: logger.With("component", "watch"),
	})
	a.overlay = overlay.NewMachine(opts.Renderer, logger.With("component", "overlay"))
	return a
}

// ID is the agent's mailbox id.
func (a *Agent) ID() message.ContextID { return a.id }

// Controller exposes the injection controller for diagnostics.
func (a *Agent) Controller() *inject.Controller { return a.controller }

// Watcher is notified by the page's mutation events.
func (a *Agent) Watcher() *watch.Watcher { return a.watcher }

// Overlay exposes the overlay state machine.
func (a *Agent) Overlay() *overlay.Machine { return a.overlay }

// Current returns the post the tab is showing, if it shows a single post.
func (a *Agent) Current() (identity.Identity, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current, a.hasCurrent
}

// Start schedules the initial scan after the settle delay.
func (a *Agent) Start() {
	a.goWork(func(ctx context.Context) {
		t := time.NewTimer(a.settle)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		a.initialScan(ctx)
	})
}

// Stop cancels background work and waits for it.
func (a *Agent) Stop() {
	a.workMu.Lock()
	a.stopped = true
	a.workMu.Unlock()

	a.cancel()
	a.watcher.Stop()
	a.wg.Wait()
}

// DocumentReplaced is called when the tab loads a new document. Controls
// from the old document are gone, so injection state starts over.
func (a *Agent) DocumentReplaced() {
	a.controller.Reset()
	if err := a.overlay.Dismiss(a.ctx, overlay.ReasonCloseControl); err != nil {
		a.logger.Debug("overlay not removed", "error", err)
	}
	a.Start()
}

// Handle is the agent's mailbox handler. Long work runs on its own
// goroutine so the mailbox keeps draining.
func (a *Agent) Handle(_ context.Context, env message.Envelope) {
	switch m := env.Msg.(type) {
	case message.Navigated:
		a.navigated(m)
	case message.ForceAnalyze:
		id, ok := a.Current()
		if !ok {
			a.logger.Debug("force analyze without a current post")
			return
		}
		a.goWork(func(ctx context.Context) {
			if a.controller.EnsureInjected(ctx, id.ItemID) != inject.Injected {
				return
			}
			a.analyze(ctx, id)
		})
	default:
		a.logger.Debug("ignoring message", "kind", env.Msg.Kind())
	}
}

func (a *Agent) navigated(m message.Navigated) {
	id, ok := m.Identity()

	a.mu.Lock()
	a.current, a.hasCurrent = id, ok
	a.mu.Unlock()

	if !ok {
		a.goWork(func(ctx context.Context) { a.watcher.Rescan(ctx) })
		return
	}
	a.logger.Info("navigated to post", "item_id", id.ItemID, "subreddit", id.ContainerID)
	a.goWork(func(ctx context.Context) {
		if a.controller.EnsureInjected(ctx, id.ItemID) != inject.Injected {
			return
		}
		a.analyze(ctx, id)
	})
}

// Activate handles a click on the control for itemID.
func (a *Agent) Activate(ctx context.Context, itemID string) error {
	if r, ok := a.cache.For(itemID); ok {
		return a.overlay.Present(ctx, r)
	}

	if err := a.overlay.Open(ctx, itemID); err != nil {
		return fmt.Errorf("open overlay: %w", err)
	}
	id, err := a.identityFor(ctx, itemID)
	if err != nil {
		return err
	}
	r := a.analyze(ctx, id)
	if _, err := a.overlay.ShowResult(ctx, r); err != nil {
		return fmt.Errorf("show result: %w", err)
	}
	return nil
}

// Dismiss closes the overlay.
func (a *Agent) Dismiss(ctx context.Context, reason overlay.Reason) error {
	return a.overlay.Dismiss(ctx, reason)
}

// ActivateAsync runs Activate on the agent's own goroutine pool. Page event
// callbacks use it so they never block.
func (a *Agent) ActivateAsync(itemID string) {
	a.goWork(func(ctx context.Context) {
		if err := a.Activate(ctx, itemID); err != nil {
			a.logger.Warn("activation failed", "item_id", itemID, "error", err)
		}
	})
}

// DismissAsync is Dismiss for page event callbacks.
func (a *Agent) DismissAsync(reason overlay.Reason) {
	a.goWork(func(ctx context.Context) {
		if err := a.Dismiss(ctx, reason); err != nil {
			a.logger.Warn("dismiss failed", "error", err)
		}
	})
}

func (a *Agent) initialScan(ctx context.Context) {
	n := a.watcher.Rescan(ctx)
	a.logger.Debug("initial scan", "items", n)

	doc, err := a.surface.Document(ctx)
	if err != nil {
		return
	}
	if id, ok := identity.Parse(doc.URL()); ok {
		a.controller.EnsureInjected(ctx, id.ItemID)
	}
}

// identityFor pairs itemID with its subreddit, preferring the current post.
func (a *Agent) identityFor(ctx context.Context, itemID string) (identity.Identity, error) {
	if cur, ok := a.Current(); ok && cur.ItemID == itemID {
		return cur, nil
	}
	doc, err := a.surface.Document(ctx)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("read document: %w", err)
	}
	id := identity.Identity{ItemID: itemID}
	pageURL := doc.URL()
	doc.Read(func(root *html.Node) { id.ContainerID = locate.Container(root, itemID, pageURL) })
	return id, nil
}

// analyze runs the pipeline for id and reports the result to the
// background, which stores it in the cache.
func (a *Agent) analyze(ctx context.Context, id identity.Identity) analysis.Result {
	title := locate.UnknownTitle
	if doc, err := a.surface.Document(ctx); err == nil {
		pageURL, pageTitle := doc.URL(), doc.Title()
		doc.Read(func(root *html.Node) { title = locate.Title(root, id.ItemID, pageURL, pageTitle) })
	}

	r := a.analyzer.Analyze(ctx, id, title)
	env := message.New(a.id, message.Background, message.AnalysisCompleted{
		ItemID:      id.ItemID,
		ContainerID: id.ContainerID,
		Result:      r,
	})
	if err := a.sender.Send(env); err != nil {
		a.logger.Warn("analysis not reported", "item_id", id.ItemID, "error", err)
	}
	return r
}

func (a *Agent) goWork(fn func(ctx context.Context)) {
	a.workMu.Lock()
	defer a.workMu.Unlock()
	if a.stopped {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(a.ctx)
	}()
}

// Package inject places at most one Credify control per post, retrying
// while the page is still rendering.
package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/ibeckermayer/credify/internal/dom"
	"github.com/ibeckermayer/credify/internal/locate"
	"github.com/ibeckermayer/credify/internal/retry"
)

// State is the injection lifecycle of one post id.
type State int

const (
	Unseen State = iota
	Pending
	Injected
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Injected:
		return "injected"
	case Failed:
		return "failed"
	default:
		return "unseen"
	}
}

var (
	// ErrItemNotFound means the post element is not in the tree yet.
	ErrItemNotFound = errors.New("post element not found")
	// ErrNoActionBar means the post has no recognisable action bar yet.
	ErrNoActionBar = errors.New("action bar not found")

	errItemVanished = errors.New("post element vanished")
	// errSuperseded means the id's state was reset while the attempt ran.
	errSuperseded = errors.New("injection attempt superseded")
)

// Default retry policies: the post search and the action bar search.
var (
	DefaultItemPolicy = retry.Policy{Attempts: 20, Delay: 500 * time.Millisecond}
	DefaultBarPolicy  = retry.Policy{Attempts: 10, Delay: 200 * time.Millisecond}
)

// Options tune a Controller.
type Options struct {
	ItemPolicy retry.Policy
	BarPolicy  retry.Policy
	Logger     *slog.Logger
	// OnInjected runs after a control has been materialised for an id.
	OnInjected func(itemID string)
}

// Controller tracks injection state per post id for one page.
type Controller struct {
	surface    Surface
	itemPolicy retry.Policy
	barPolicy  retry.Policy
	logger     *slog.Logger
	onInjected func(string)

	mu     sync.Mutex
	states map[string]State

	// insertMu serialises the final guard check and the insert.
	insertMu sync.Mutex
}

// NewController creates a controller injecting into surface.
func NewController(surface Surface, opts Options) *Controller {
	c := &Controller{
		surface:    surface,
		itemPolicy: opts.ItemPolicy,
		barPolicy:  opts.BarPolicy,
		logger:     opts.Logger,
		onInjected: opts.OnInjected,
		states:     make(map[string]State),
	}
	if c.itemPolicy.Attempts == 0 {
		c.itemPolicy = DefaultItemPolicy
	}
	if c.barPolicy.Attempts == 0 {
		c.barPolicy = DefaultBarPolicy
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// State returns the current state of itemID.
func (c *Controller) State(itemID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[itemID]
}

// Snapshot copies the state map.
func (c *Controller) Snapshot() map[string]State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]State, len(c.states))
	for k, v := range c.states {
		out[k] = v
	}
	return out
}

// Reset forgets every id. Called when the page loads a new document.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.states = make(map[string]State)
	c.mu.Unlock()
}

// begin moves itemID to Pending if no attempt is running and no control
// exists. It reports whether the caller owns the attempt.
func (c *Controller) begin(itemID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.states[itemID] {
	case Pending, Injected:
		return false
	}
	c.states[itemID] = Pending
	return true
}

func (c *Controller) settle(itemID string, s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.states[itemID] == Injected {
		return
	}
	c.states[itemID] = s
}

// EnsureInjected makes sure itemID has exactly one control on the page.
// Concurrent and repeated calls are safe; only one attempt runs per id and
// a Failed id is attempted again. The returned state is the id's state
// when the call finished.
func (c *Controller) EnsureInjected(ctx context.Context, itemID string) State {
	if itemID == "" {
		return Unseen
	}
	if !c.begin(itemID) {
		return c.State(itemID)
	}

	err := retry.Do(ctx, c.itemPolicy, func(ctx context.Context, attempt int) error {
		return c.attempt(ctx, itemID)
	})
	if errors.Is(err, errSuperseded) {
		c.logger.Debug("injection attempt superseded", "item_id", itemID)
		return c.State(itemID)
	}
	if err != nil {
		c.settle(itemID, Failed)
		if errors.Is(err, ErrItemNotFound) || errors.Is(err, context.Canceled) {
			c.logger.Debug("control not injected", "item_id", itemID, "error", err)
		} else {
			c.logger.Warn("control not injected", "item_id", itemID, "error", err)
		}
		return c.State(itemID)
	}
	return c.State(itemID)
}

func (c *Controller) attempt(ctx context.Context, itemID string) error {
	doc, err := c.surface.Document(ctx)
	if err != nil {
		return retry.Retryable(fmt.Errorf("read document: %w", err))
	}

	var (
		present bool
		item    *html.Node
	)
	doc.Read(func(root *html.Node) {
		if present = locate.HasControl(root, itemID); !present {
			item = locate.Item(root, itemID)
		}
	})
	if present {
		c.settle(itemID, Injected)
		return nil
	}
	if item == nil {
		return retry.Retryable(ErrItemNotFound)
	}

	p, doc, err := c.resolve(ctx, doc, item, itemID)
	if errors.Is(err, errItemVanished) {
		return retry.Retryable(ErrItemNotFound)
	}
	if err != nil {
		return err
	}
	return c.materialise(ctx, doc, p)
}

// resolve finds the action bar for item, refreshing the document between
// attempts. When no bar appears it falls back to an adjacent placement.
func (c *Controller) resolve(ctx context.Context, doc *dom.Document, item *html.Node, itemID string) (Placement, *dom.Document, error) {
	var p Placement
	err := retry.Do(ctx, c.barPolicy, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			fresh, err := c.surface.Document(ctx)
			if err != nil {
				return retry.Retryable(err)
			}
			doc = fresh
			doc.Read(func(root *html.Node) { item = locate.Item(root, itemID) })
			if item == nil {
				return errItemVanished
			}
		}

		var bar *html.Node
		doc.Read(func(root *html.Node) {
			bar = locate.ActionBar(item)
			p.Theme = locate.DetectTheme(root)
		})
		if bar == nil {
			return retry.Retryable(ErrNoActionBar)
		}
		p = Placement{ItemID: itemID, Anchor: bar, Mode: InToolbar, Theme: p.Theme}
		return nil
	})
	switch {
	case err == nil:
		return p, doc, nil
	case errors.Is(err, retry.ErrExhausted):
		return Placement{ItemID: itemID, Anchor: item, Mode: Adjacent, Theme: p.Theme}, doc, nil
	default:
		return p, doc, err
	}
}

func (c *Controller) materialise(ctx context.Context, doc *dom.Document, p Placement) error {
	c.insertMu.Lock()
	defer c.insertMu.Unlock()

	if c.State(p.ItemID) != Pending {
		return errSuperseded
	}
	var present bool
	doc.Read(func(root *html.Node) { present = locate.HasControl(root, p.ItemID) })
	if present {
		c.settle(p.ItemID, Injected)
		return nil
	}

	if err := c.surface.Insert(ctx, doc, p); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return retry.Retryable(fmt.Errorf("insert %s control: %w", p.Mode, err))
	}
	c.settle(p.ItemID, Injected)
	c.logger.Debug("control injected", "item_id", p.ItemID, "mode", p.Mode.String())
	if c.onInjected != nil {
		c.onInjected(p.ItemID)
	}
	return nil
}

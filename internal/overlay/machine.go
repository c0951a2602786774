// Package overlay drives the single credibility overlay shown over a page.
package overlay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ibeckermayer/credify/internal/analysis"
)

// State of the overlay.
type State int

const (
	Closed State = iota
	Loading
	Result
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Result:
		return "result"
	default:
		return "closed"
	}
}

// Reason says how the user dismissed the overlay.
type Reason string

const (
	ReasonCloseControl Reason = "close"
	ReasonBackdrop     Reason = "backdrop"
	ReasonCancelKey    Reason = "escape"
)

// Renderer draws and removes the overlay. Each Render call replaces
// whatever overlay is currently drawn.
type Renderer interface {
	RenderLoading(ctx context.Context, itemID string) error
	RenderResult(ctx context.Context, r analysis.Result) error
	Remove(ctx context.Context) error
}

// Machine is the overlay state machine. At most one overlay exists.
type Machine struct {
	renderer Renderer
	logger   *slog.Logger

	mu     sync.Mutex
	state  State
	itemID string
}

// NewMachine returns a closed machine drawing through r.
func NewMachine(r Renderer, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Machine{renderer: r, logger: logger}
}

// State returns the current state and the item the overlay is for.
func (m *Machine) State() (State, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.itemID
}

// Active reports whether the overlay is open for itemID.
func (m *Machine) Active(itemID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != Closed && m.itemID == itemID
}

// Open destroys any existing overlay and shows the loading state for itemID.
func (m *Machine) Open(ctx context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.destroy(ctx); err != nil {
		return err
	}
	if err := m.renderer.RenderLoading(ctx, itemID); err != nil {
		return err
	}
	m.state, m.itemID = Loading, itemID
	return nil
}

// ShowResult moves to the result state when r belongs to the open overlay.
// Results for any other item, or arriving after dismissal, are ignored.
func (m *Machine) ShowResult(ctx context.Context, r analysis.Result) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Closed || m.itemID != r.ItemID {
		m.logger.Debug("stale result ignored", "item_id", r.ItemID, "active", m.itemID, "state", m.state.String())
		return false, nil
	}
	if err := m.renderer.RenderResult(ctx, r); err != nil {
		return false, err
	}
	m.state = Result
	return true, nil
}

// Present shows a result straight away, skipping the loading state. Used
// when the result is already cached.
func (m *Machine) Present(ctx context.Context, r analysis.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.destroy(ctx); err != nil {
		return err
	}
	if err := m.renderer.RenderResult(ctx, r); err != nil {
		return err
	}
	m.state, m.itemID = Result, r.ItemID
	return nil
}

// Dismiss closes the overlay from any state.
func (m *Machine) Dismiss(ctx context.Context, reason Reason) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Closed {
		return nil
	}
	m.logger.Debug("overlay dismissed", "item_id", m.itemID, "reason", string(reason))
	return m.destroy(ctx)
}

func (m *Machine) destroy(ctx context.Context) error {
	if m.state == Closed {
		return nil
	}
	m.state, m.itemID = Closed, ""
	return m.renderer.Remove(ctx)
}

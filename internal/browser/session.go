package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/credify/internal/analysis"
	"github.com/ibeckermayer/credify/internal/dom"
	"github.com/ibeckermayer/credify/internal/inject"
	"github.com/ibeckermayer/credify/internal/locate"
	"github.com/ibeckermayer/credify/internal/overlay"
)

// Handlers receive page events. Each call runs on its own goroutine, so a
// handler may drive the page again.
type Handlers struct {
	// DocumentReplaced fires when the main frame loads a new document.
	DocumentReplaced func(url string)
	// URLChanged fires on same-document navigation (history.pushState).
	URLChanged func(url string)
	// Mutated fires on structural DOM changes.
	Mutated func()
	// Activate fires when a control is clicked.
	Activate func(itemID string)
	// Dismiss fires when the user closes the overlay.
	Dismiss func(reason overlay.Reason)
}

// SessionOptions configure a Session.
type SessionOptions struct {
	Headless    bool
	UserDataDir string
	// Cookies are set before the first navigation.
	Cookies []*network.Cookie
	Logger  *slog.Logger
}

// Session owns one Chrome instance and the tab credify works in.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *slog.Logger

	mu        sync.RWMutex
	handlers  Handlers
	mainFrame cdp.FrameID
}

var (
	_ inject.Surface   = (*Session)(nil)
	_ overlay.Renderer = (*Session)(nil)
)

// NewSession starts the browser, opens a tab and installs the page bindings.
func NewSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, Options(opts.Headless, opts.UserDataDir)...)
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger,
	}
	chromedp.ListenTarget(tabCtx, s.dispatch)

	err := chromedp.Run(tabCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range opts.Cookies {
				err := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(c.Path).
					WithSecure(c.Secure).
					WithHTTPOnly(c.HTTPOnly).
					WithSameSite(c.SameSite).
					Do(ctx)
				if err != nil {
					return fmt.Errorf("set cookie %s: %w", c.Name, err)
				}
			}
			return nil
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, name := range []string{ActivateBinding, DismissBinding} {
				if err := runtime.AddBinding(name).Do(ctx); err != nil {
					return fmt.Errorf("add binding %s: %w", name, err)
				}
			}
			return nil
		}),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return s, nil
}

// TabID identifies the session's tab.
func (s *Session) TabID() string {
	if c := chromedp.FromContext(s.ctx); c != nil && c.Target != nil {
		return string(c.Target.TargetID)
	}
	return ""
}

// SetHandlers replaces the page event handlers.
func (s *Session) SetHandlers(h Handlers) {
	s.mu.Lock()
	s.handlers = h
	s.mu.Unlock()
}

// Navigate loads url in the tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Location returns the tab's current URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, chromedp.Location(&url))
	return url, err
}

// Cookies returns every cookie the browser holds.
func (s *Session) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	return cookies, err
}

// Close shuts the tab and the browser.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
}

// Done is closed when the browser goes away.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Document snapshots the live page with shadow roots pierced.
func (s *Session) Document(ctx context.Context) (*dom.Document, error) {
	var root *cdp.Node
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		root, err = cdpdom.GetDocument().WithDepth(-1).WithPierce(true).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot document: %w", err)
	}
	return dom.FromCDP(root), nil
}

// Insert materialises p's control on the live page, next to the node the
// snapshot recorded for p.Anchor.
func (s *Session) Insert(ctx context.Context, doc *dom.Document, p inject.Placement) error {
	backendID, ok := doc.BackendID(p.Anchor)
	if !ok {
		return dom.ErrDetached
	}
	position := "beforeend"
	if p.Mode == inject.Adjacent {
		position = "afterend"
	}
	fn := fmt.Sprintf(insertControlFn, jsString(p.Markup()), jsString(position), jsString(p.ItemID))

	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := cdpdom.ResolveNode().WithBackendNodeID(backendID).Do(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", dom.ErrDetached, err)
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		switch string(res.Value) {
		case `"ok"`:
			return nil
		case `"detached"`:
			return dom.ErrDetached
		default:
			return fmt.Errorf("control for %s not inserted: %s", p.ItemID, res.Value)
		}
	}))
}

// Restyle recolours the controls already on the page.
func (s *Session) Restyle(ctx context.Context, theme locate.Theme) error {
	colors, err := json.Marshal(theme.Colors())
	if err != nil {
		return err
	}
	return s.eval(ctx, fmt.Sprintf(restyleJS, colors))
}

func (s *Session) RenderLoading(ctx context.Context, itemID string) error {
	markup, err := overlay.LoadingMarkup(itemID)
	if err != nil {
		return err
	}
	return s.renderOverlay(ctx, markup)
}

func (s *Session) RenderResult(ctx context.Context, r analysis.Result) error {
	markup, err := overlay.ResultMarkup(r)
	if err != nil {
		return err
	}
	return s.renderOverlay(ctx, markup)
}

func (s *Session) Remove(ctx context.Context) error {
	return s.eval(ctx, fmt.Sprintf(removeOverlayJS, jsString(overlay.ModalClass)))
}

func (s *Session) renderOverlay(ctx context.Context, markup string) error {
	return s.eval(ctx, fmt.Sprintf(renderOverlayJS,
		jsString(markup),
		jsString(overlay.Stylesheet),
		jsString(overlay.StyleID),
		jsString(overlay.ModalClass),
		jsString(overlay.CloseClass),
	))
}

func (s *Session) eval(ctx context.Context, expr string) error {
	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(expr, &ok)); err != nil {
		return err
	}
	if !ok {
		return errors.New("page script returned false")
	}
	return nil
}

// run executes actions on the tab, abandoning them when either ctx or the
// session ends.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// dispatch is the target listener. It must not block or call chromedp, so
// every handler is started on a goroutine.
func (s *Session) dispatch(ev any) {
	s.mu.RLock()
	h := s.handlers
	s.mu.RUnlock()

	switch ev := ev.(type) {
	case *page.EventFrameNavigated:
		if ev.Frame == nil || ev.Frame.ParentID != "" {
			return
		}
		s.mu.Lock()
		s.mainFrame = ev.Frame.ID
		s.mu.Unlock()
		if h.DocumentReplaced != nil {
			go h.DocumentReplaced(ev.Frame.URL + ev.Frame.URLFragment)
		}
	case *page.EventNavigatedWithinDocument:
		s.mu.RLock()
		main := s.mainFrame
		s.mu.RUnlock()
		if main != "" && ev.FrameID != main {
			return
		}
		if h.URLChanged != nil {
			go h.URLChanged(ev.URL)
		}
	case *cdpdom.EventChildNodeInserted, *cdpdom.EventChildNodeRemoved,
		*cdpdom.EventDocumentUpdated, *cdpdom.EventShadowRootPushed:
		if h.Mutated != nil {
			go h.Mutated()
		}
	case *cdpdom.EventAttributeModified:
		if ev.Name != "theme" {
			return
		}
		go s.themeChanged(ev.NodeID, ev.Value)
	case *runtime.EventBindingCalled:
		switch ev.Name {
		case ActivateBinding:
			if h.Activate != nil {
				go h.Activate(ev.Payload)
			}
		case DismissBinding:
			if h.Dismiss != nil {
				go h.Dismiss(overlay.Reason(ev.Payload))
			}
		}
	}
}

// themeChanged restyles the controls when the app shell switches theme.
// Other elements carrying a theme attribute are ignored.
func (s *Session) themeChanged(nodeID cdp.NodeID, value string) {
	var node *cdp.Node
	err := s.run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		node, err = cdpdom.DescribeNode().WithNodeID(nodeID).Do(ctx)
		return err
	}))
	if err != nil {
		s.logger.Debug("theme node not resolved", "node_id", int64(nodeID), "error", err)
		return
	}
	theme, ok := shellTheme(node, value)
	if !ok {
		return
	}
	if err := s.Restyle(s.ctx, theme); err != nil {
		s.logger.Debug("restyle failed", "theme", string(theme), "error", err)
	}
}

// shellTheme reports the theme value when node is the app shell.
func shellTheme(node *cdp.Node, value string) (locate.Theme, bool) {
	if node == nil {
		return "", false
	}
	name := node.LocalName
	if name == "" {
		name = node.NodeName
	}
	if !strings.EqualFold(name, locate.AppShell) {
		return "", false
	}
	if value == string(locate.ThemeDark) {
		return locate.ThemeDark, true
	}
	return locate.ThemeLight, true
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

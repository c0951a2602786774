package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/credify/internal/browser"
)

// LoginURL is the page the login window opens.
const LoginURL = "https://www.reddit.com/login/"

// ErrLoginTimeout is returned when the user does not finish logging in.
var ErrLoginTimeout = errors.New("login timeout exceeded")

// Manager handles the Reddit login used by the annotated browser.
type Manager struct {
	cookieStore *CookieStore
	userDataDir string
	logger      *slog.Logger
}

// NewManager creates a new auth manager
func NewManager(cookieStore *CookieStore, userDataDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{cookieStore: cookieStore, userDataDir: userDataDir, logger: logger}
}

// IsAuthenticated checks if we have valid stored credentials
func (m *Manager) IsAuthenticated() bool {
	return m.cookieStore.IsValid()
}

// Login opens a visible browser window for the user to log in to Reddit
// and stores the session cookies once the login completes.
func (m *Manager) Login(ctx context.Context) error {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, browser.Options(false, m.loginProfile())...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(LoginURL)); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}
	m.logger.Info("waiting for reddit login")

	cookies, err := m.waitForLogin(browserCtx)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := m.cookieStore.Save(cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	m.logger.Info("reddit login stored", "path", m.cookieStore.Path())
	return nil
}

// loginProfile keeps the login window off the daemon's profile, which is
// locked while the daemon's browser runs.
func (m *Manager) loginProfile() string {
	if m.userDataDir == "" {
		return ""
	}
	return m.userDataDir + "-login"
}

// waitForLogin polls until the browser holds a Reddit session.
func (m *Manager) waitForLogin(ctx context.Context) ([]*network.Cookie, error) {
	timeout := time.After(5 * time.Minute)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return nil, ErrLoginTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			cookies, err := extractCookies(ctx)
			if err != nil {
				continue
			}
			if HasSession(cookies) {
				return cookies, nil
			}
		}
	}
}

// extractCookies gets all cookies from the browser
func extractCookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)
	return cookies, err
}

// Logout clears stored credentials
func (m *Manager) Logout() error {
	return m.cookieStore.Clear()
}

// Cookies returns the stored cookies to seed a new browser session. A
// missing store yields no cookies.
func (m *Manager) Cookies() []*network.Cookie {
	cookies, err := m.cookieStore.Cookies()
	if err != nil {
		m.logger.Debug("no stored cookies", "error", err)
		return nil
	}
	return cookies
}

package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/ibeckermayer/credify/internal/config"
)

// Reddit session cookies. A logged-in browser carries both.
const (
	SessionCookie = "reddit_session"
	TokenCookie   = "token_v2"
)

// CookieStore persists the Reddit session cookies between runs.
type CookieStore struct {
	path string
	now  func() time.Time
}

// StoredCookies represents the persisted cookie data
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// NewCookieStore creates a cookie store at the given path
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path, now: time.Now}
}

// DefaultCookieStorePath returns the default path for cookie storage
func DefaultCookieStorePath() (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cookies.json"), nil
}

// Path is where the cookies are stored.
func (cs *CookieStore) Path() string { return cs.path }

// Save persists the Reddit cookies among cookies.
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	if err := os.MkdirAll(filepath.Dir(cs.path), 0o700); err != nil {
		return err
	}

	reddit := RedditCookies(cookies)

	// The session ends when the first auth cookie expires
	var earliestExpiry time.Time
	for _, c := range reddit {
		if !isAuthCookie(c.Name) || c.Expires <= 0 {
			continue
		}
		exp := time.Unix(int64(c.Expires), 0)
		if earliestExpiry.IsZero() || exp.Before(earliestExpiry) {
			earliestExpiry = exp
		}
	}

	stored := StoredCookies{
		Cookies:    reddit,
		CapturedAt: cs.now(),
		ExpiresAt:  earliestExpiry,
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(cs.path, data, 0o600)
}

// Load retrieves cookies from disk
func (cs *CookieStore) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}

	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// IsValid reports whether both auth cookies are stored and unexpired.
// Session cookies without an expiry count as valid.
func (cs *CookieStore) IsValid() bool {
	stored, err := cs.Load()
	if err != nil {
		return false
	}
	if !stored.ExpiresAt.IsZero() && cs.now().After(stored.ExpiresAt) {
		return false
	}
	return HasSession(stored.Cookies)
}

// Clear removes stored cookies
func (cs *CookieStore) Clear() error {
	err := os.Remove(cs.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Cookies returns the stored Reddit cookies.
func (cs *CookieStore) Cookies() ([]*network.Cookie, error) {
	stored, err := cs.Load()
	if err != nil {
		return nil, err
	}
	return RedditCookies(stored.Cookies), nil
}

// RedditCookies keeps the cookies scoped to reddit.com.
func RedditCookies(cookies []*network.Cookie) []*network.Cookie {
	var out []*network.Cookie
	for _, c := range cookies {
		d := strings.TrimPrefix(c.Domain, ".")
		if d == "reddit.com" || strings.HasSuffix(d, ".reddit.com") {
			out = append(out, c)
		}
	}
	return out
}

// HasSession reports whether cookies carry a non-empty value for both auth
// cookies.
func HasSession(cookies []*network.Cookie) bool {
	var session, token bool
	for _, c := range cookies {
		if c.Value == "" {
			continue
		}
		switch c.Name {
		case SessionCookie:
			session = true
		case TokenCookie:
			token = true
		}
	}
	return session && token
}

func isAuthCookie(name string) bool {
	return name == SessionCookie || name == TokenCookie
}

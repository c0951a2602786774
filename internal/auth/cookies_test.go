package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redditCookies(expires time.Time) []*network.Cookie {
	return []*network.Cookie{
		{Name: SessionCookie, Value: "s", Domain: ".reddit.com", Expires: float64(expires.Unix())},
		{Name: TokenCookie, Value: "t", Domain: "www.reddit.com", Expires: float64(expires.Unix())},
		{Name: "other", Value: "x", Domain: ".example.com"},
	}
}

func TestSaveKeepsOnlyRedditCookies(t *testing.T) {
	cs := NewCookieStore(filepath.Join(t.TempDir(), "nested", "cookies.json"))
	exp := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	require.NoError(t, cs.Save(redditCookies(exp)))

	stored, err := cs.Load()
	require.NoError(t, err)
	assert.Len(t, stored.Cookies, 2)
	assert.True(t, stored.ExpiresAt.Equal(exp))
	assert.True(t, cs.IsValid())

	cookies, err := cs.Cookies()
	require.NoError(t, err)
	assert.Len(t, cookies, 2)
}

func TestExpiredSessionIsInvalid(t *testing.T) {
	cs := NewCookieStore(filepath.Join(t.TempDir(), "cookies.json"))
	require.NoError(t, cs.Save(redditCookies(time.Now().Add(-time.Hour))))
	assert.False(t, cs.IsValid())
}

func TestMissingTokenIsInvalid(t *testing.T) {
	cs := NewCookieStore(filepath.Join(t.TempDir(), "cookies.json"))
	require.NoError(t, cs.Save([]*network.Cookie{{Name: SessionCookie, Value: "s", Domain: "reddit.com"}}))
	assert.False(t, cs.IsValid())
}

func TestClearIsIdempotent(t *testing.T) {
	cs := NewCookieStore(filepath.Join(t.TempDir(), "cookies.json"))
	assert.NoError(t, cs.Clear())
	assert.False(t, cs.IsValid())

	m := NewManager(cs, "", nil)
	assert.False(t, m.IsAuthenticated())
	assert.Nil(t, m.Cookies())
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/credify/internal/analysis"
	"github.com/ibeckermayer/credify/internal/cache"
	"github.com/ibeckermayer/credify/internal/ipc"
	"github.com/ibeckermayer/credify/internal/popup"
	"github.com/ibeckermayer/credify/internal/router"
)

type fakeDaemon struct {
	router *router.Router
	slot   *cache.Slot
	popup  *popup.Popup
}

func (d *fakeDaemon) Popup() *popup.Popup              { return d.popup }
func (d *fakeDaemon) Cached() (analysis.Result, bool) { return d.slot.Get() }
func (d *fakeDaemon) Status(context.Context) ipc.StatusResponse {
	return ipc.StatusResponse{
		PID:            42,
		StartedAt:      time.Now().Add(-time.Hour),
		TabID:          "7",
		Endpoint:       "http://localhost:8000/fact-check",
		ServiceHealthy: true,
		Injected:       1200,
	}
}

func isolateConfig(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(home, ".cache"))
}

func startDaemon(t *testing.T) (string, *fakeDaemon) {
	t.Helper()
	isolateConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	slot := cache.New(nil)
	r := router.New(slot, router.Options{})
	require.NoError(t, r.Start(ctx))
	d := &fakeDaemon{router: r, slot: slot, popup: popup.New(r, popup.Options{})}

	socket := filepath.Join(t.TempDir(), "credify.sock")
	srv, err := ipc.NewServer(ctx, socket, d, nil)
	if err != nil && strings.Contains(err.Error(), "operation not permitted") {
		t.Skipf("skipping IPC server test: %v", err)
	}
	require.NoError(t, err)
	srv.Serve()
	t.Cleanup(srv.Close)
	return socket, d
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseCommand(t *testing.T) {
	out, err := execute(t, "parse", "https://www.reddit.com/r/news/comments/abc123/some_title/")
	require.NoError(t, err)
	assert.Contains(t, out, "news")
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "r/news - Post ID: abc123")
	assert.Contains(t, out, "yes")
}

func TestParseCommandNotAPost(t *testing.T) {
	out, err := execute(t, "parse", "https://www.reddit.com/r/news/")
	require.NoError(t, err)
	assert.Contains(t, out, "Not a single-post view")
}

func TestParseCommandRequiresURL(t *testing.T) {
	_, err := execute(t, "parse")
	assert.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	socket, d := startDaemon(t)
	d.router.TabUpdated("7", "https://www.reddit.com/r/news/comments/abc/title/")
	require.NoError(t, d.slot.Put(context.Background(), analysis.Result{ItemID: "abc", Score: 7.5, Flags: []string{"satire"}}))

	out, err := execute(t, "--socket", socket, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "r/news - Post ID: abc")
	assert.Contains(t, out, "Score: 7.5/10")
	assert.Contains(t, out, "Flags: satire")
}

func TestCheckCommandReportsUnavailable(t *testing.T) {
	socket, d := startDaemon(t)
	d.router.TabUpdated("7", "https://www.reddit.com/r/news/comments/abc/title/")

	out, err := execute(t, "--socket", socket, "check")
	require.Error(t, err)
	assert.Contains(t, out, popup.Unavailable)
	assert.Contains(t, err.Error(), "check failed")
}

func TestLastCommand(t *testing.T) {
	socket, d := startDaemon(t)

	out, err := execute(t, "--socket", socket, "last")
	require.NoError(t, err)
	assert.Contains(t, out, "No analysis available")

	require.NoError(t, d.slot.Put(context.Background(), analysis.Result{
		ItemID: "abc", ContainerID: "news", Title: "Is this true?", Score: 2,
		Timestamp: time.Now().Add(-2 * time.Hour).UnixMilli(),
	}))
	out, err = execute(t, "--socket", socket, "last")
	require.NoError(t, err)
	assert.Contains(t, out, "Is this true?")
	assert.Contains(t, out, "2/10")
	assert.Contains(t, out, "negative")
	assert.Contains(t, out, "2 hours ago")
}

func TestStatusCommandJSON(t *testing.T) {
	socket, _ := startDaemon(t)

	out, err := execute(t, "--socket", socket, "status", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"pid": 42`)
	assert.Contains(t, out, `"injected": 1200`)
}

func TestStatusCommandTable(t *testing.T) {
	socket, _ := startDaemon(t)

	out, err := execute(t, "--socket", socket, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "1,200 injected")
	assert.Contains(t, out, "healthy")
}

func TestMissingSocket(t *testing.T) {
	isolateConfig(t)
	socket := filepath.Join(t.TempDir(), "missing.sock")

	_, err := execute(t, "--socket", socket, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Contains(t, err.Error(), "credify run")
}

func TestOpenTargetCreatesDefaultConfig(t *testing.T) {
	isolateConfig(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	ctx := newCommandContext(new(string), &path)

	got, err := openTarget(ctx, "config")
	require.NoError(t, err)
	assert.Equal(t, path, got)
	_, err = os.Stat(path)
	assert.NoError(t, err)

	_, err = openTarget(ctx, "nope")
	assert.Error(t, err)
}

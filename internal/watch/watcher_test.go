package watch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/ibeckermayer/credify/internal/dom"
	"github.com/ibeckermayer/credify/internal/inject"
	"github.com/ibeckermayer/credify/internal/locate"
	"github.com/ibeckermayer/credify/internal/retry"
	"github.com/ibeckermayer/credify/internal/watch"
)

type recordingInjector struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingInjector) EnsureInjected(_ context.Context, itemID string) inject.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, itemID)
	return inject.Injected
}

func (r *recordingInjector) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recordingInjector) seen(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c == id {
			return true
		}
	}
	return false
}

func newWatcher(t *testing.T, markup string) (*watch.Watcher, *dom.Document, *recordingInjector) {
	t.Helper()
	doc, err := dom.ParseString(markup)
	require.NoError(t, err)
	inj := &recordingInjector{}
	w := watch.New(context.Background(), inject.NewDocumentSurface(doc), inj, watch.Options{Delay: 20 * time.Millisecond})
	t.Cleanup(w.Stop)
	return w, doc, inj
}

func TestBurstCoalescesIntoOneRescan(t *testing.T) {
	w, _, inj := newWatcher(t, `<shreddit-post id="t3_a"></shreddit-post><shreddit-post id="t3_b"></shreddit-post>`)

	for range 10 {
		w.Notify()
	}

	assert.Eventually(t, func() bool { return inj.count() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, inj.count())
}

func TestAttachRescansOnMutation(t *testing.T) {
	w, doc, inj := newWatcher(t, `<div id="feed"></div>`)
	cancel := w.Attach(doc)
	defer cancel()

	var feed *html.Node
	doc.Read(func(root *html.Node) { feed = dom.Query(root, "#feed") })
	post := &html.Node{Type: html.ElementNode, Data: "shreddit-post", Attr: []html.Attribute{{Key: "id", Val: "t3_new"}}}
	require.NoError(t, doc.AppendChild(feed, post))

	assert.Eventually(t, func() bool { return inj.seen("new") }, time.Second, 5*time.Millisecond)
}

func TestRescanReturnsItemCount(t *testing.T) {
	w, _, inj := newWatcher(t, `<shreddit-post id="t3_a"></shreddit-post><shreddit-post id="t3_b"></shreddit-post>`)

	assert.Equal(t, 2, w.Rescan(context.Background()))
	assert.Eventually(t, func() bool { return inj.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestStopDropsPendingRescan(t *testing.T) {
	w, _, inj := newWatcher(t, `<shreddit-post id="t3_a"></shreddit-post>`)

	w.Notify()
	w.Stop()
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, inj.count())

	w.Notify()
	assert.Zero(t, w.Rescan(context.Background()))
}

func TestMutationBurstRetriesFailedItem(t *testing.T) {
	doc, err := dom.ParseString(`<div id="feed"></div>`)
	require.NoError(t, err)
	surface := inject.NewDocumentSurface(doc)
	c := inject.NewController(surface, inject.Options{
		ItemPolicy: retry.Policy{Attempts: 2},
		BarPolicy:  retry.Policy{Attempts: 1},
	})
	w := watch.New(context.Background(), surface, c, watch.Options{Delay: 20 * time.Millisecond})
	t.Cleanup(w.Stop)

	require.Equal(t, inject.Failed, c.EnsureInjected(context.Background(), "late"))

	cancel := w.Attach(doc)
	defer cancel()

	var feed *html.Node
	doc.Read(func(root *html.Node) { feed = dom.Query(root, "#feed") })
	post := &html.Node{Type: html.ElementNode, Data: "shreddit-post", Attr: []html.Attribute{{Key: "id", Val: "t3_late"}}}
	require.NoError(t, doc.AppendChild(feed, post))

	assert.Eventually(t, func() bool { return c.State("late") == inject.Injected }, time.Second, 5*time.Millisecond)
	var n int
	doc.Read(func(root *html.Node) { n = len(dom.QueryAll(root, "."+locate.ControlClass)) })
	assert.Equal(t, 1, n)
}

package inject_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/ibeckermayer/credify/internal/dom"
	"github.com/ibeckermayer/credify/internal/inject"
	"github.com/ibeckermayer/credify/internal/locate"
	"github.com/ibeckermayer/credify/internal/retry"
)

type countingSurface struct {
	inject.Surface
	documents atomic.Int32
	inserts   atomic.Int32
}

func (s *countingSurface) Document(ctx context.Context) (*dom.Document, error) {
	s.documents.Add(1)
	return s.Surface.Document(ctx)
}

func (s *countingSurface) Insert(ctx context.Context, doc *dom.Document, p inject.Placement) error {
	s.inserts.Add(1)
	return s.Surface.Insert(ctx, doc, p)
}

func fastOptions() inject.Options {
	return inject.Options{
		ItemPolicy: retry.Policy{Attempts: 20},
		BarPolicy:  retry.Policy{Attempts: 10},
	}
}

func controls(doc *dom.Document) []*html.Node {
	var out []*html.Node
	doc.Read(func(root *html.Node) { out = dom.QueryAll(root, "."+locate.ControlClass) })
	return out
}

func TestEnsureInjectedIntoActionBar(t *testing.T) {
	doc, err := dom.ParseString(`<shreddit-post id="t3_abc"><div data-testid="post-actions" id="bar"></div></shreddit-post>`)
	require.NoError(t, err)

	var hooked []string
	opts := fastOptions()
	opts.OnInjected = func(id string) { hooked = append(hooked, id) }
	c := inject.NewController(inject.NewDocumentSurface(doc), opts)

	assert.Equal(t, inject.Injected, c.EnsureInjected(context.Background(), "abc"))
	got := controls(doc)
	require.Len(t, got, 1)
	assert.Equal(t, "bar", dom.Attr(got[0].Parent, "id"))
	assert.Equal(t, "abc", dom.Attr(got[0], locate.ControlIDAttr))
	assert.Equal(t, inject.ControlLabel, dom.TextContent(got[0]))
	assert.Equal(t, []string{"abc"}, hooked)
}

func TestEnsureInjectedConcurrentCallsInjectOnce(t *testing.T) {
	doc, err := dom.ParseString(`<shreddit-post id="t3_abc"><div data-testid="post-actions"></div></shreddit-post>`)
	require.NoError(t, err)
	surface := &countingSurface{Surface: inject.NewDocumentSurface(doc)}
	c := inject.NewController(surface, fastOptions())

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.EnsureInjected(context.Background(), "abc")
		}()
	}
	wg.Wait()

	assert.Len(t, controls(doc), 1)
	assert.Equal(t, int32(1), surface.inserts.Load())
	assert.Equal(t, inject.Injected, c.State("abc"))

	c.EnsureInjected(context.Background(), "abc")
	assert.Len(t, controls(doc), 1)
}

func TestEnsureInjectedGivesUpAfterBoundedAttempts(t *testing.T) {
	doc, err := dom.ParseString(`<div></div>`)
	require.NoError(t, err)
	surface := &countingSurface{Surface: inject.NewDocumentSurface(doc)}
	c := inject.NewController(surface, fastOptions())

	assert.Equal(t, inject.Failed, c.EnsureInjected(context.Background(), "missing"))
	assert.Equal(t, int32(20), surface.documents.Load())
	assert.Zero(t, surface.inserts.Load())
	assert.Empty(t, controls(doc))
}

func TestEnsureInjectedRetriesAfterFailure(t *testing.T) {
	doc, err := dom.ParseString(`<div id="feed"></div>`)
	require.NoError(t, err)
	c := inject.NewController(inject.NewDocumentSurface(doc), fastOptions())

	require.Equal(t, inject.Failed, c.EnsureInjected(context.Background(), "late"))

	var feed *html.Node
	doc.Read(func(root *html.Node) { feed = dom.Query(root, "#feed") })
	post := &html.Node{Type: html.ElementNode, Data: "shreddit-post", Attr: []html.Attribute{{Key: "id", Val: "t3_late"}}}
	require.NoError(t, doc.AppendChild(feed, post))

	assert.Equal(t, inject.Injected, c.EnsureInjected(context.Background(), "late"))
	assert.Len(t, controls(doc), 1)
}

func TestEnsureInjectedFallsBackToAdjacentContainer(t *testing.T) {
	doc, err := dom.ParseString(`<div id="feed"><shreddit-post id="t3_abc"></shreddit-post><p id="next"></p></div>`)
	require.NoError(t, err)
	c := inject.NewController(inject.NewDocumentSurface(doc), inject.Options{
		ItemPolicy: retry.Policy{Attempts: 2},
		BarPolicy:  retry.Policy{Attempts: 3},
	})

	assert.Equal(t, inject.Injected, c.EnsureInjected(context.Background(), "abc"))

	var container *html.Node
	doc.Read(func(root *html.Node) { container = dom.Query(root, "."+locate.ContainerClass) })
	require.NotNil(t, container)
	assert.Equal(t, "t3_abc", dom.Attr(container.PrevSibling, "id"))
	assert.Equal(t, "next", dom.Attr(container.NextSibling, "id"))
	assert.Len(t, controls(doc), 1)
}

func TestEnsureInjectedRespectsExistingControl(t *testing.T) {
	doc, err := dom.ParseString(`<shreddit-post id="t3_abc"><div data-testid="post-actions">
		<button class="credi-btn" data-post-id="abc"></button></div></shreddit-post>`)
	require.NoError(t, err)
	surface := &countingSurface{Surface: inject.NewDocumentSurface(doc)}
	c := inject.NewController(surface, fastOptions())

	assert.Equal(t, inject.Injected, c.EnsureInjected(context.Background(), "abc"))
	assert.Zero(t, surface.inserts.Load())
	assert.Len(t, controls(doc), 1)
}

func TestResetForgetsStates(t *testing.T) {
	doc, err := dom.ParseString(`<div></div>`)
	require.NoError(t, err)
	c := inject.NewController(inject.NewDocumentSurface(doc), inject.Options{ItemPolicy: retry.Policy{Attempts: 1}})

	c.EnsureInjected(context.Background(), "x")
	assert.Equal(t, map[string]inject.State{"x": inject.Failed}, c.Snapshot())
	c.Reset()
	assert.Empty(t, c.Snapshot())
	assert.Equal(t, inject.Unseen, c.State("x"))
}

type resettingSurface struct {
	inject.Surface
	once    sync.Once
	onFetch func()
}

func (s *resettingSurface) Document(ctx context.Context) (*dom.Document, error) {
	s.once.Do(s.onFetch)
	return s.Surface.Document(ctx)
}

func TestResetDuringAttemptReportsCurrentState(t *testing.T) {
	doc, err := dom.ParseString(`<shreddit-post id="t3_abc"><div data-testid="post-actions"></div></shreddit-post>`)
	require.NoError(t, err)
	surface := &resettingSurface{Surface: inject.NewDocumentSurface(doc)}
	c := inject.NewController(surface, fastOptions())
	surface.onFetch = c.Reset

	assert.Equal(t, inject.Unseen, c.EnsureInjected(context.Background(), "abc"))
	assert.Equal(t, inject.Unseen, c.State("abc"))
	assert.Empty(t, controls(doc))

	assert.Equal(t, inject.Injected, c.EnsureInjected(context.Background(), "abc"))
	assert.Len(t, controls(doc), 1)
}

func TestPlacementMarkup(t *testing.T) {
	p := inject.Placement{ItemID: "abc", Mode: inject.Adjacent, Theme: locate.ThemeDark}
	markup := p.Markup()
	assert.Contains(t, markup, `class="credi-button-container"`)
	assert.Contains(t, markup, `data-post-id="abc"`)
	assert.Contains(t, markup, inject.ControlLabel)
}

package overlay_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/ibeckermayer/credify/internal/analysis"
	"github.com/ibeckermayer/credify/internal/dom"
	"github.com/ibeckermayer/credify/internal/overlay"
)

func newMachine(t *testing.T) (*overlay.Machine, *dom.Document) {
	t.Helper()
	doc, err := dom.ParseString(`<html><head></head><body><main></main></body></html>`)
	require.NoError(t, err)
	return overlay.NewMachine(overlay.NewDocumentRenderer(doc), nil), doc
}

func modals(doc *dom.Document) []*html.Node {
	var out []*html.Node
	doc.Read(func(root *html.Node) { out = dom.QueryAll(root, "."+overlay.ModalClass) })
	return out
}

func TestOpenThenResult(t *testing.T) {
	ctx := context.Background()
	m, doc := newMachine(t)

	require.NoError(t, m.Open(ctx, "abc"))
	state, item := m.State()
	assert.Equal(t, overlay.Loading, state)
	assert.Equal(t, "abc", item)
	require.Len(t, modals(doc), 1)
	assert.Equal(t, "loading", dom.Attr(modals(doc)[0], "data-state"))

	shown, err := m.ShowResult(ctx, analysis.Result{ItemID: "abc", Score: 7.3, Flags: []string{"Verified"}})
	require.NoError(t, err)
	assert.True(t, shown)
	state, _ = m.State()
	assert.Equal(t, overlay.Result, state)

	got := modals(doc)
	require.Len(t, got, 1)
	assert.Equal(t, "positive", dom.Attr(got[0], "data-band"))
	assert.Contains(t, dom.TextContent(got[0]), "7.3/10")
	assert.Contains(t, dom.TextContent(got[0]), "Verified")
}

func TestResultForOtherItemIsIgnored(t *testing.T) {
	ctx := context.Background()
	m, doc := newMachine(t)

	require.NoError(t, m.Open(ctx, "abc"))
	shown, err := m.ShowResult(ctx, analysis.Result{ItemID: "other"})
	require.NoError(t, err)
	assert.False(t, shown)
	state, _ := m.State()
	assert.Equal(t, overlay.Loading, state)
	assert.Equal(t, "loading", dom.Attr(modals(doc)[0], "data-state"))
}

func TestResultAfterDismissIsIgnored(t *testing.T) {
	ctx := context.Background()
	m, doc := newMachine(t)

	require.NoError(t, m.Open(ctx, "abc"))
	require.NoError(t, m.Dismiss(ctx, overlay.ReasonBackdrop))
	shown, err := m.ShowResult(ctx, analysis.Result{ItemID: "abc"})
	require.NoError(t, err)
	assert.False(t, shown)
	assert.Empty(t, modals(doc))
}

func TestDismissFromEveryState(t *testing.T) {
	ctx := context.Background()
	for _, reason := range []overlay.Reason{overlay.ReasonCloseControl, overlay.ReasonBackdrop, overlay.ReasonCancelKey} {
		m, doc := newMachine(t)
		require.NoError(t, m.Dismiss(ctx, reason))

		require.NoError(t, m.Open(ctx, "a"))
		require.NoError(t, m.Dismiss(ctx, reason))
		state, _ := m.State()
		assert.Equal(t, overlay.Closed, state)
		assert.Empty(t, modals(doc))

		require.NoError(t, m.Present(ctx, analysis.Result{ItemID: "a", Score: 2}))
		require.NoError(t, m.Dismiss(ctx, reason))
		assert.Empty(t, modals(doc))
	}
}

func TestAtMostOneOverlay(t *testing.T) {
	ctx := context.Background()
	m, doc := newMachine(t)

	require.NoError(t, m.Open(ctx, "a"))
	require.NoError(t, m.Open(ctx, "b"))
	require.NoError(t, m.Present(ctx, analysis.Result{ItemID: "c", Score: 5}))

	got := modals(doc)
	require.Len(t, got, 1)
	assert.Equal(t, "c", dom.Attr(got[0], "data-post-id"))
	assert.Equal(t, "caution", dom.Attr(got[0], "data-band"))
	assert.True(t, m.Active("c"))
	assert.False(t, m.Active("a"))

	var styles []*html.Node
	doc.Read(func(root *html.Node) { styles = dom.QueryAll(root, "#"+overlay.StyleID) })
	assert.Len(t, styles, 1)
}

func TestResultMarkupEscapes(t *testing.T) {
	markup, err := overlay.ResultMarkup(analysis.Result{ItemID: "a", Title: `<script>alert(1)</script>`, Score: 1})
	require.NoError(t, err)
	assert.NotContains(t, markup, "<script>")
	assert.Contains(t, markup, "No Issues Detected")
	assert.Contains(t, markup, `data-band="negative"`)
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "7.3", overlay.FormatScore(7.3))
	assert.Equal(t, "5", overlay.FormatScore(5))
	assert.Equal(t, "10", overlay.FormatScore(10))
}

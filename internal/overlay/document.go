package overlay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ibeckermayer/credify/internal/analysis"
	"github.com/ibeckermayer/credify/internal/dom"
)

var bodyContext = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

// DocumentRenderer draws the overlay into an in-memory document's body.
type DocumentRenderer struct {
	doc *dom.Document
}

var _ Renderer = (*DocumentRenderer)(nil)

// NewDocumentRenderer renders into doc.
func NewDocumentRenderer(doc *dom.Document) *DocumentRenderer {
	return &DocumentRenderer{doc: doc}
}

func (r *DocumentRenderer) RenderLoading(_ context.Context, itemID string) error {
	markup, err := LoadingMarkup(itemID)
	if err != nil {
		return err
	}
	return r.render(markup)
}

func (r *DocumentRenderer) RenderResult(_ context.Context, res analysis.Result) error {
	markup, err := ResultMarkup(res)
	if err != nil {
		return err
	}
	return r.render(markup)
}

func (r *DocumentRenderer) Remove(context.Context) error {
	var modals []*html.Node
	r.doc.Read(func(root *html.Node) { modals = dom.QueryAll(root, "."+ModalClass) })
	for _, n := range modals {
		r.doc.Remove(n)
	}
	return nil
}

func (r *DocumentRenderer) render(markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), bodyContext)
	if err != nil {
		return fmt.Errorf("parse overlay markup: %w", err)
	}
	if err := r.Remove(context.Background()); err != nil {
		return err
	}

	var body, style *html.Node
	r.doc.Read(func(root *html.Node) {
		body = dom.Body(root)
		style = dom.Query(root, "#"+StyleID)
	})
	if body == nil {
		return errors.New("document has no body")
	}
	if style == nil {
		style = &html.Node{Type: html.ElementNode, Data: "style", DataAtom: atom.Style, Attr: []html.Attribute{{Key: "id", Val: StyleID}}}
		style.AppendChild(&html.Node{Type: html.TextNode, Data: Stylesheet})
		if err := r.doc.AppendChild(body, style); err != nil {
			return err
		}
	}
	for _, n := range nodes {
		if err := r.doc.AppendChild(body, n); err != nil {
			return err
		}
	}
	return nil
}

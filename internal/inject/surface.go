package inject

import (
	"context"
	"fmt"

	"github.com/ibeckermayer/credify/internal/dom"
)

// Surface is the page the controller injects into.
type Surface interface {
	// Document returns a view of the current tree. Live pages return a fresh
	// snapshot per call; in-memory pages return the same document.
	Document(ctx context.Context) (*dom.Document, error)
	// Insert materialises exactly one control at p. It returns
	// dom.ErrDetached when the anchor left the tree since it was resolved.
	Insert(ctx context.Context, doc *dom.Document, p Placement) error
}

// DocumentSurface injects into an in-memory dom.Document.
type DocumentSurface struct {
	doc *dom.Document
}

// NewDocumentSurface wraps doc.
func NewDocumentSurface(doc *dom.Document) *DocumentSurface {
	return &DocumentSurface{doc: doc}
}

// Document returns the wrapped document.
func (s *DocumentSurface) Document(context.Context) (*dom.Document, error) {
	return s.doc, nil
}

// Insert appends the control to the action bar, or inserts an adjacent
// container after the post.
func (s *DocumentSurface) Insert(_ context.Context, doc *dom.Document, p Placement) error {
	switch p.Mode {
	case InToolbar:
		return doc.AppendChild(p.Anchor, ControlNode(p.ItemID, p.Theme))
	case Adjacent:
		return doc.InsertAfter(p.Anchor, ContainerNode(p.ItemID, p.Theme))
	default:
		return fmt.Errorf("unknown placement mode %d", p.Mode)
	}
}

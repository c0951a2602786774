// Package dom models the observed page as an x/net/html tree.
//
// Attached shadow roots are represented the way declarative shadow DOM
// serialises them: a <template shadowrootmode="open|closed"> child of the
// host element. Light-tree queries never enter those templates; deep queries
// do. Documents built from a pierced CDP snapshot remember each node's
// BackendNodeID so that mutations can be replayed on the live page.
package dom

import (
	"io"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"golang.org/x/net/html"
)

// MutationKind distinguishes structural changes.
type MutationKind int

const (
	ChildInserted MutationKind = iota
	ChildRemoved
)

// Mutation describes one structural change to a Document.
type Mutation struct {
	Kind   MutationKind
	Parent *html.Node
	Node   *html.Node
}

// Document is a page tree guarded by a RWMutex.
type Document struct {
	mu      sync.RWMutex
	root    *html.Node
	url     string
	backend map[*html.Node]cdp.BackendNodeID

	obsMu     sync.Mutex
	observers map[int]func(Mutation)
	nextObs   int
}

func newDocument(root *html.Node) *Document {
	return &Document{
		root:      root,
		backend:   make(map[*html.Node]cdp.BackendNodeID),
		observers: make(map[int]func(Mutation)),
	}
}

// Parse builds a Document from HTML. Declarative shadow roots in the markup
// become attached shadow roots.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return newDocument(root), nil
}

// ParseString is Parse for in-memory markup.
func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

// URL returns the document URL, if known.
func (d *Document) URL() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.url
}

// SetURL records the document URL.
func (d *Document) SetURL(u string) {
	d.mu.Lock()
	d.url = u
	d.mu.Unlock()
}

// Title returns the text of the document's <title> element.
func (d *Document) Title() string {
	var title string
	d.Read(func(root *html.Node) {
		if n := Query(root, "title"); n != nil {
			title = strings.TrimSpace(TextContent(n))
		}
	})
	return title
}

// Read runs fn with the tree locked for reading. Nodes must not be retained
// for mutation outside Document methods.
func (d *Document) Read(fn func(root *html.Node)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(d.root)
}

// BackendID returns the live-page node id recorded for n.
func (d *Document) BackendID(n *html.Node) (cdp.BackendNodeID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.backend[n]
	return id, ok
}

// AppendChild appends child to parent and notifies observers.
func (d *Document) AppendChild(parent, child *html.Node) error {
	d.mu.Lock()
	if !attached(d.root, parent) {
		d.mu.Unlock()
		return ErrDetached
	}
	parent.AppendChild(child)
	d.mu.Unlock()

	d.notify(Mutation{Kind: ChildInserted, Parent: parent, Node: child})
	return nil
}

// InsertAfter inserts node as the next sibling of ref and notifies observers.
func (d *Document) InsertAfter(ref, node *html.Node) error {
	d.mu.Lock()
	if !attached(d.root, ref) || ref.Parent == nil {
		d.mu.Unlock()
		return ErrDetached
	}
	parent := ref.Parent
	parent.InsertBefore(node, ref.NextSibling)
	d.mu.Unlock()

	d.notify(Mutation{Kind: ChildInserted, Parent: parent, Node: node})
	return nil
}

// Remove detaches n from the tree and notifies observers.
func (d *Document) Remove(n *html.Node) {
	d.mu.Lock()
	parent := n.Parent
	if parent == nil {
		d.mu.Unlock()
		return
	}
	parent.RemoveChild(n)
	d.mu.Unlock()

	d.notify(Mutation{Kind: ChildRemoved, Parent: parent, Node: n})
}

// Observe registers fn for every mutation made through this Document.
func (d *Document) Observe(fn func(Mutation)) (cancel func()) {
	d.obsMu.Lock()
	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn
	d.obsMu.Unlock()

	return func() {
		d.obsMu.Lock()
		delete(d.observers, id)
		d.obsMu.Unlock()
	}
}

func (d *Document) notify(m Mutation) {
	d.obsMu.Lock()
	fns := make([]func(Mutation), 0, len(d.observers))
	for _, fn := range d.observers {
		fns = append(fns, fn)
	}
	d.obsMu.Unlock()

	for _, fn := range fns {
		fn(m)
	}
}

// Attached reports whether n is still connected to root.
func (d *Document) Attached(n *html.Node) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return attached(d.root, n)
}

func attached(root, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

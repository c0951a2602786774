package dom

import (
	"errors"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrDetached is returned when a mutation targets a node no longer in the tree.
var ErrDetached = errors.New("node is detached from the document")

const shadowModeAttr = "shadowrootmode"

var selectorCache sync.Map // string -> cascadia.Selector

func compile(selector string) cascadia.Selector {
	if s, ok := selectorCache.Load(selector); ok {
		return s.(cascadia.Selector)
	}
	s, err := cascadia.Compile(selector)
	if err != nil {
		// Selectors are compile-time constants or built with Quote.
		panic("dom: invalid selector " + selector + ": " + err.Error())
	}
	selectorCache.Store(selector, s)
	return s
}

// Quote renders s as a CSS string literal for attribute selectors.
func Quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return `"` + r.Replace(s) + `"`
}

// IsShadowRoot reports whether n represents an attached shadow root.
func IsShadowRoot(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || n.DataAtom != atom.Template {
		return false
	}
	_, ok := AttrOK(n, shadowModeAttr)
	return ok
}

// ShadowRoot returns the shadow root attached to host, or nil.
func ShadowRoot(host *html.Node) *html.Node {
	if host == nil {
		return nil
	}
	for c := host.FirstChild; c != nil; c = c.NextSibling {
		if IsShadowRoot(c) {
			return c
		}
	}
	return nil
}

// Host returns the element a shadow root is attached to.
func Host(shadowRoot *html.Node) *html.Node {
	if !IsShadowRoot(shadowRoot) {
		return nil
	}
	return shadowRoot.Parent
}

// AttrOK returns the value of attribute key on n.
func AttrOK(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Attr returns the value of attribute key on n, or "".
func Attr(n *html.Node, key string) string {
	v, _ := AttrOK(n, key)
	return v
}

// Matches reports whether element n matches selector.
func Matches(n *html.Node, selector string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	return compile(selector).Match(n)
}

// Query returns the first light-tree descendant of scope matching selector.
// Shadow roots of descendants are not entered; when scope is itself a shadow
// root its children are searched.
func Query(scope *html.Node, selector string) *html.Node {
	sel := compile(selector)
	var found *html.Node
	walk(scope, false, func(n *html.Node) bool {
		if sel.Match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// QueryAll returns every light-tree descendant of scope matching selector.
func QueryAll(scope *html.Node, selector string) []*html.Node {
	sel := compile(selector)
	var found []*html.Node
	walk(scope, false, func(n *html.Node) bool {
		if sel.Match(n) {
			found = append(found, n)
		}
		return true
	})
	return found
}

// QueryDeep is Query that also traverses every nested shadow root.
func QueryDeep(scope *html.Node, selector string) *html.Node {
	sel := compile(selector)
	var found *html.Node
	walk(scope, true, func(n *html.Node) bool {
		if sel.Match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// ShadowRoots returns every shadow root reachable from scope, outermost first.
func ShadowRoots(scope *html.Node) []*html.Node {
	var roots []*html.Node
	walk(scope, true, func(n *html.Node) bool {
		if sr := ShadowRoot(n); sr != nil {
			roots = append(roots, sr)
		}
		return true
	})
	return roots
}

// walk visits element descendants of scope in document order until visit
// returns false. Shadow roots are entered only when deep is set.
func walk(scope *html.Node, deep bool, visit func(*html.Node) bool) bool {
	if scope == nil {
		return true
	}
	for c := scope.FirstChild; c != nil; c = c.NextSibling {
		if IsShadowRoot(c) {
			if deep && !walk(c, deep, visit) {
				return false
			}
			continue
		}
		if c.Type == html.ElementNode && !visit(c) {
			return false
		}
		if !walk(c, deep, visit) {
			return false
		}
	}
	return true
}

// Closest returns n or its nearest ancestor matching selector, stopping at
// the enclosing shadow root.
func Closest(n *html.Node, selector string) *html.Node {
	sel := compile(selector)
	for p := n; p != nil && !IsShadowRoot(p); p = p.Parent {
		if p.Type == html.ElementNode && sel.Match(p) {
			return p
		}
	}
	return nil
}

// NextElementSiblings returns up to k element siblings following n.
func NextElementSiblings(n *html.Node, k int) []*html.Node {
	var out []*html.Node
	for s := n.NextSibling; s != nil && len(out) < k; s = s.NextSibling {
		if s.Type == html.ElementNode && !IsShadowRoot(s) {
			out = append(out, s)
		}
	}
	return out
}

// TextContent concatenates the light-tree text below n.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if IsShadowRoot(c) {
			continue
		}
		sb.WriteString(TextContent(c))
	}
	return sb.String()
}

// Body returns the document's <body>, or nil.
func Body(root *html.Node) *html.Node {
	return Query(root, "body")
}

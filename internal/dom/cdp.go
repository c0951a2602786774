package dom

import (
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// FromCDP converts a pierced DevTools snapshot (DOM.getDocument with
// depth -1 and pierce set) into a Document. Open and closed shadow roots
// become declarative shadow templates; user-agent shadow roots are skipped.
func FromCDP(root *cdp.Node) *Document {
	doc := newDocument(&html.Node{Type: html.DocumentNode})
	if root == nil {
		return doc
	}
	doc.url = root.DocumentURL
	doc.backend[doc.root] = root.BackendNodeID
	for _, c := range root.Children {
		if n := doc.convert(c); n != nil {
			doc.root.AppendChild(n)
		}
	}
	return doc
}

func (d *Document) convert(n *cdp.Node) *html.Node {
	var out *html.Node
	switch n.NodeType {
	case cdp.NodeTypeElement:
		name := strings.ToLower(n.LocalName)
		if name == "" {
			name = strings.ToLower(n.NodeName)
		}
		out = &html.Node{Type: html.ElementNode, Data: name, DataAtom: atom.Lookup([]byte(name))}
		for i := 0; i+1 < len(n.Attributes); i += 2 {
			out.Attr = append(out.Attr, html.Attribute{Key: n.Attributes[i], Val: n.Attributes[i+1]})
		}
		for _, sr := range n.ShadowRoots {
			if sr.ShadowRootType == cdp.ShadowRootTypeUserAgent {
				continue
			}
			tmpl := &html.Node{
				Type:     html.ElementNode,
				Data:     "template",
				DataAtom: atom.Template,
				Attr:     []html.Attribute{{Key: shadowModeAttr, Val: sr.ShadowRootType.String()}},
			}
			d.backend[tmpl] = sr.BackendNodeID
			for _, c := range sr.Children {
				if child := d.convert(c); child != nil {
					tmpl.AppendChild(child)
				}
			}
			out.AppendChild(tmpl)
		}
	case cdp.NodeTypeText:
		out = &html.Node{Type: html.TextNode, Data: n.NodeValue}
	case cdp.NodeTypeComment:
		out = &html.Node{Type: html.CommentNode, Data: n.NodeValue}
	case cdp.NodeTypeDocumentType:
		out = &html.Node{Type: html.DoctypeNode, Data: n.NodeName}
	default:
		return nil
	}

	d.backend[out] = n.BackendNodeID
	for _, c := range n.Children {
		if child := d.convert(c); child != nil {
			out.AppendChild(child)
		}
	}
	return out
}

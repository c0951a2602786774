package inject

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ibeckermayer/credify/internal/locate"
)

// ControlLabel is the visible text of the injected button.
const ControlLabel = "Credify Post"

// Mode says where a control is materialised relative to its anchor.
type Mode int

const (
	// InToolbar appends the control to the post's action bar.
	InToolbar Mode = iota
	// Adjacent inserts a container holding the control right after the post.
	Adjacent
)

func (m Mode) String() string {
	if m == Adjacent {
		return "adjacent"
	}
	return "toolbar"
}

// Placement is a resolved insertion point for one post's control.
type Placement struct {
	ItemID string
	Anchor *html.Node
	Mode   Mode
	Theme  locate.Theme
}

func buttonStyle(c locate.Colors) string {
	return fmt.Sprintf("padding: 12px 24px; margin: 0; border-radius: 24px; background: %s; color: white; "+
		"border: none; cursor: pointer; font-size: 16px; font-weight: bold; min-width: 180px; "+
		"display: flex; align-items: center; justify-content: center; gap: 6px;", c.ButtonBg)
}

func containerStyle(c locate.Colors) string {
	return fmt.Sprintf("padding: 16px; background: %s; border-top: 1px solid %s; display: flex; "+
		"align-items: center; justify-content: center; gap: 8px;", c.ContainerBg, c.ContainerBorder)
}

// ControlNode builds the button bound to itemID.
func ControlNode(itemID string, theme locate.Theme) *html.Node {
	btn := &html.Node{
		Type:     html.ElementNode,
		Data:     "button",
		DataAtom: atom.Button,
		Attr: []html.Attribute{
			{Key: "type", Val: "button"},
			{Key: "class", Val: locate.ControlClass},
			{Key: locate.ControlIDAttr, Val: itemID},
			{Key: "style", Val: buttonStyle(theme.Colors())},
		},
	}
	btn.AppendChild(&html.Node{Type: html.TextNode, Data: ControlLabel})
	return btn
}

// ContainerNode builds the adjacent container wrapping a control.
func ContainerNode(itemID string, theme locate.Theme) *html.Node {
	div := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: "class", Val: locate.ContainerClass},
			{Key: locate.ControlIDAttr, Val: itemID},
			{Key: "style", Val: containerStyle(theme.Colors())},
		},
	}
	div.AppendChild(ControlNode(itemID, theme))
	return div
}

// Markup renders the node that p materialises.
func (p Placement) Markup() string {
	n := ControlNode(p.ItemID, p.Theme)
	if p.Mode == Adjacent {
		n = ContainerNode(p.ItemID, p.Theme)
	}
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

package locate

import (
	"golang.org/x/net/html"

	"github.com/ibeckermayer/credify/internal/dom"
)

// Theme is the host page's colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Colors holds the control palette for a theme.
type Colors struct {
	ButtonBg        string
	ButtonHover     string
	ContainerBg     string
	ContainerBorder string
}

// DetectTheme reads the theme attribute of the app shell.
func DetectTheme(root *html.Node) Theme {
	if shell := dom.Query(root, AppShell); shell != nil && dom.Attr(shell, "theme") == "dark" {
		return ThemeDark
	}
	return ThemeLight
}

// Colors returns the palette for t.
func (t Theme) Colors() Colors {
	if t == ThemeDark {
		return Colors{
			ButtonBg:        "rgb(77, 200, 143)",
			ButtonHover:     "rgb(57, 180, 123)",
			ContainerBg:     "#1A1A1B",
			ContainerBorder: "#343536",
		}
	}
	return Colors{
		ButtonBg:        "rgb(77, 200, 143)",
		ButtonHover:     "rgb(57, 180, 123)",
		ContainerBg:     "#f6f7f8",
		ContainerBorder: "#edeff1",
	}
}

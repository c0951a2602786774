// Package locate finds posts, their action bars and their titles in a page
// tree whose layout differs between Reddit's rendering paths.
//
// Every function here treats "not found" as a normal answer: during initial
// paint the post or its toolbar may simply not exist yet.
package locate

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/ibeckermayer/credify/internal/dom"
	"github.com/ibeckermayer/credify/internal/identity"
)

// UnknownTitle is returned when no title source matches.
const UnknownTitle = "Unknown Post"

// pageTitlePattern matches document titles of the form "<title> : r/<sub>".
var pageTitlePattern = regexp.MustCompile(`^(.+?)\s*:\s*r/`)

// Item returns the element representing the post, or nil.
//
// The light tree is searched first, by post id attribute and then by a
// permalink inside an article. If neither layout matches, every attached
// shadow root is searched with the same rules.
func Item(root *html.Node, itemID string) *html.Node {
	if root == nil || itemID == "" {
		return nil
	}
	if n := itemIn(root, itemID); n != nil {
		return n
	}
	for _, sr := range dom.ShadowRoots(root) {
		if n := itemIn(sr, itemID); n != nil {
			return n
		}
	}
	return nil
}

func itemIn(scope *html.Node, itemID string) *html.Node {
	byID := PostElement + "[" + PostIDAttribute + "*=" + dom.Quote(itemID) + "]"
	if n := dom.Query(scope, byID); n != nil {
		return n
	}

	byLink := ArticleElement + " a[href*=" + dom.Quote(permalinkFragment(itemID)) + "]"
	if link := dom.Query(scope, byLink); link != nil {
		if article := dom.Closest(link, ArticleElement); article != nil {
			return article
		}
	}
	return nil
}

func permalinkFragment(itemID string) string {
	return "/" + identity.Marker + "/" + itemID + "/"
}

// ActionBar returns the natural insertion point for a control on item:
// a toolbar in its shadow root, an action row in its light subtree, or an
// action row among its next few siblings. nil means the caller should
// synthesise an adjacent container.
func ActionBar(item *html.Node) *html.Node {
	if item == nil {
		return nil
	}
	if sr := dom.ShadowRoot(item); sr != nil {
		if bar := dom.Query(sr, ShadowToolbar); bar != nil {
			return bar
		}
	}
	for _, sel := range ActionBarSelectors {
		if bar := dom.Query(item, sel); bar != nil {
			return bar
		}
	}
	for _, sib := range dom.NextElementSiblings(item, SiblingLookahead) {
		if dom.Matches(sib, SiblingActions) {
			return sib
		}
	}
	return nil
}

// Items returns the ids of every post currently rendered in the light tree,
// in document order and without duplicates.
func Items(root *html.Node) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, n := range dom.QueryAll(root, PostWithID) {
		id := identity.FromElementID(dom.Attr(n, PostIDAttribute))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// HasControl reports whether a control or control container for itemID is
// already rendered anywhere in the tree, shadow roots included.
func HasControl(root *html.Node, itemID string) bool {
	attr := "[" + ControlIDAttr + "=" + dom.Quote(itemID) + "]"
	return dom.QueryDeep(root, "."+ControlClass+attr) != nil ||
		dom.QueryDeep(root, "."+ContainerClass+attr) != nil
}

// Title extracts the post title, trying the post's attribute, its light
// subtree, its shadow root and finally the document title when the page is
// the post's own page.
func Title(root *html.Node, itemID, pageURL, pageTitle string) string {
	post := Item(root, itemID)
	if post == nil {
		return UnknownTitle
	}

	if t := strings.TrimSpace(dom.Attr(post, TitleAttribute)); t != "" {
		return t
	}

	for _, sel := range TitleSelectors {
		if el := dom.Query(post, sel); el != nil {
			if t := strings.TrimSpace(dom.TextContent(el)); t != "" {
				return t
			}
		}
	}

	if sr := dom.ShadowRoot(post); sr != nil {
		if el := dom.Query(sr, ShadowTitle); el != nil {
			if t := strings.TrimSpace(dom.TextContent(el)); t != "" {
				return t
			}
		}
	}

	if strings.Contains(pathOf(pageURL), permalinkFragment(itemID)) {
		if m := pageTitlePattern.FindStringSubmatch(pageTitle); m != nil {
			return strings.TrimSpace(m[1])
		}
	}

	return UnknownTitle
}

func pathOf(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		return u.Path
	}
	return raw
}

// Container returns the subreddit a post belongs to. The post's own
// attributes win; otherwise the page URL is used when it is under /r/<sub>/.
func Container(root *html.Node, itemID, pageURL string) string {
	if post := Item(root, itemID); post != nil {
		if c := strings.TrimSpace(dom.Attr(post, ContainerAttribute)); c != "" {
			return c
		}
		if c := strings.TrimSpace(dom.Attr(post, PrefixedContainerAttribute)); c != "" {
			return strings.TrimPrefix(c, "r/")
		}
	}
	segs := strings.Split(strings.Trim(pathOf(pageURL), "/"), "/")
	if len(segs) >= 2 && segs[0] == "r" {
		return segs[1]
	}
	return ""
}

// SPDX-License-Identifier: GPL-3.0-or-later

// Package dom wraps golang.org/x/net/html with the small set of queries
// the page heuristics need: class/attribute lookups, text collection and
// a stable CSS path usable as a row handle on the live page.
package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

func Parse(src string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("could not parse document: %w", err)
	}

	return doc, nil
}

func Attr(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

func HasAttr(n *html.Node, name string) bool {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return true
		}
	}
	return false
}

func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// Text returns the concatenated text content of a node with runs of
// whitespace collapsed to single spaces.
func Text(n *html.Node) string {
	var sb strings.Builder
	collectText(n, &sb)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteString(" ")
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

// FindAll returns every element below root satisfying pred, in document
// order. Root itself is not considered.
func FindAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	found := []*html.Node{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && pred(c) {
				found = append(found, c)
			}
			walk(c)
		}
	}
	walk(root)
	return found
}

func First(root *html.Node, pred func(*html.Node) bool) *html.Node {
	all := FindAll(root, pred)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

func ByClass(root *html.Node, class string) []*html.Node {
	return FindAll(root, func(n *html.Node) bool { return HasClass(n, class) })
}

func ByTag(root *html.Node, tag string) []*html.Node {
	return FindAll(root, func(n *html.Node) bool { return n.Data == tag })
}

// HasAncestor reports whether any ancestor of n satisfies pred.
func HasAncestor(n *html.Node, pred func(*html.Node) bool) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && pred(p) {
			return true
		}
	}
	return false
}

// Path derives a CSS selector for the node from its position in the
// tree. The selector resolves the same element on the live page via
// document.querySelector as long as the page has not mutated since the
// snapshot was taken.
func Path(n *html.Node) string {
	segments := []string{}
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if cur.Data == "html" {
			segments = append([]string{"html"}, segments...)
			break
		}
		segments = append([]string{fmt.Sprintf("%s:nth-child(%d)", cur.Data, childIndex(cur))}, segments...)
	}
	return strings.Join(segments, " > ")
}

func childIndex(n *html.Node) int {
	index := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode {
			index++
		}
	}
	return index
}

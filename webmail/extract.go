// SPDX-License-Identifier: GPL-3.0-or-later
package webmail

import (
	"strings"

	"github.com/sweepkit/go-webmail-sweeper/dom"

	"golang.org/x/net/html"
)

var monthPrefixes = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// looksLikeDateToken rejects the trailing date shown on the badge line.
// The host renders dates as "Sep 12", "12:40" or "2024-09-12", so a
// leading digit or month abbreviation disqualifies a sender candidate.
func looksLikeDateToken(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return false
	}

	if text[0] >= '0' && text[0] <= '9' {
		return true
	}

	lowered := strings.ToLower(text)
	for _, month := range monthPrefixes {
		if strings.HasPrefix(lowered, month) {
			return true
		}
	}

	return false
}

// extractSender pulls the sender name out of a row. The host has no
// semantic markup for it, only a truncated-text style class shared by
// several fields, so this works positionally: prefer the badge line
// (sender + date + labels), fall back to any truncated text outside the
// subject region.
func extractSender(row *html.Node) string {
	badge := dom.First(row, func(n *html.Node) bool { return dom.HasClass(n, classBadgeLine) })
	if badge != nil {
		for _, candidate := range leafElements(badge) {
			if dom.HasClass(candidate, classRoleLabel) || insideRoleLabel(candidate) {
				continue
			}
			text := dom.Text(candidate)
			if len(text) > 0 && !looksLikeDateToken(text) {
				return text
			}
		}
		return ""
	}

	for _, candidate := range dom.ByClass(row, classTruncate) {
		if dom.HasClass(candidate, classSubject) || insideSubject(candidate) {
			continue
		}
		text := dom.Text(candidate)
		if len(text) > 0 && !looksLikeDateToken(text) {
			return text
		}
	}

	return ""
}

func extractSubject(row *html.Node) string {
	subject := dom.First(row, func(n *html.Node) bool { return dom.HasClass(n, classSubject) })
	if subject == nil {
		return ""
	}
	return dom.Text(subject)
}

// leafElements returns the elements below n without element children,
// in document order. Text on the badge line always sits in such leaves.
func leafElements(n *html.Node) []*html.Node {
	return dom.FindAll(n, func(c *html.Node) bool {
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.ElementNode {
				return false
			}
		}
		return true
	})
}

func insideRoleLabel(n *html.Node) bool {
	return dom.HasAncestor(n, func(p *html.Node) bool { return dom.HasClass(p, classRoleLabel) })
}

func insideSubject(n *html.Node) bool {
	return dom.HasAncestor(n, func(p *html.Node) bool { return dom.HasClass(p, classSubject) })
}

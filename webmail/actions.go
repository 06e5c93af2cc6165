// SPDX-License-Identifier: GPL-3.0-or-later
package webmail

import (
	"fmt"
	"strings"
	"time"

	"github.com/sweepkit/go-webmail-sweeper/dom"
	"github.com/sweepkit/go-webmail-sweeper/domain"

	"golang.org/x/net/html"
)

// Known toolbar label variants per action. The host has renamed these
// controls across redesigns, so every variant is tried in order.
var actionLabels = map[domain.Action][]string{
	domain.ActionTrash:      {"Trash", "Delete", "Move to Trash"},
	domain.ActionArchive:    {"Archive", "Move to Archive"},
	domain.ActionMarkRead:   {"Mark read", "Mark as read"},
	domain.ActionMarkUnread: {"Mark unread", "Mark as unread"},
	domain.ActionMove:       {"Move", "Move to", "Move to folder"},
}

// InvokeAction locates the toolbar control for the action and triggers
// it. The returned bool reports whether the control was found; a missing
// control is not an error, the caller decides how to degrade.
func (p *Page) InvokeAction(action domain.Action, targetFolder string) (bool, error) {
	if action == domain.ActionSelectOnly {
		return true, nil
	}

	doc, err := p.currentDocument()
	if err != nil {
		return false, err
	}

	selector := findActionControl(doc, actionLabels[action])
	if len(selector) == 0 {
		p.l.WithField("action", string(action)).Warn("Action control not found on page")
		return false, nil
	}

	if action == domain.ActionMove {
		return p.moveToFolder(selector, targetFolder)
	}

	_, err = p.client.Evaluate(clickScript(selector))
	if err != nil {
		return false, fmt.Errorf("could not click %s control: %w", action, err)
	}

	if action.RemovesRows() {
		time.Sleep(p.settleLong)
	} else {
		time.Sleep(p.settleShort)
	}

	return true, nil
}

// moveToFolder drives the move sub-flow: open the move menu, wait for
// the folder dropdown to render, pick the target entry. If the dropdown
// never appears the move is aborted and the menu is closed again rather
// than left half-open.
func (p *Page) moveToFolder(moveSelector, targetFolder string) (bool, error) {
	_, err := p.client.Evaluate(clickScript(moveSelector))
	if err != nil {
		return false, fmt.Errorf("could not open move menu: %w", err)
	}

	menu, err := p.waitFolderMenu()
	if err != nil {
		return false, err
	}
	if menu == nil {
		p.l.Warn("Folder menu did not appear, aborting move")
		if closeErr := p.closeFolderMenu(); closeErr != nil {
			p.l.WithField("error", closeErr).Warn("Could not close move menu after failed open")
		}
		return false, nil
	}

	entry := findFolderEntry(menu, targetFolder)
	if entry == nil {
		p.l.WithField("folder", targetFolder).Warn("Target folder not found in move menu")
		if closeErr := p.closeFolderMenu(); closeErr != nil {
			p.l.WithField("error", closeErr).Warn("Could not close move menu after missing folder")
		}
		return false, nil
	}

	_, err = p.client.Evaluate(clickScript(dom.Path(entry)))
	if err != nil {
		return false, fmt.Errorf("could not click folder entry: %w", err)
	}

	// folder moves take visibly longer to reflect than mark-read
	time.Sleep(p.settleLong)
	return true, nil
}

// ListFolders opens the move menu read-only, enumerates its entries and
// closes it again. The menu must never stay open as a side effect of
// this query.
func (p *Page) ListFolders() ([]*domain.Folder, error) {
	doc, err := p.currentDocument()
	if err != nil {
		return nil, err
	}

	moveSelector := findActionControl(doc, actionLabels[domain.ActionMove])
	if len(moveSelector) == 0 {
		return nil, fmt.Errorf("move control not found on page")
	}

	_, err = p.client.Evaluate(clickScript(moveSelector))
	if err != nil {
		return nil, fmt.Errorf("could not open move menu: %w", err)
	}

	menu, err := p.waitFolderMenu()
	if err != nil {
		return nil, err
	}
	if menu == nil {
		return nil, fmt.Errorf("folder menu did not appear")
	}

	folders := folderEntries(menu)

	err = p.closeFolderMenu()
	if err != nil {
		return nil, fmt.Errorf("could not close move menu: %w", err)
	}

	p.l.WithField("folders", len(folders)).Debug("Discovered folders")
	return folders, nil
}

func (p *Page) currentDocument() (*html.Node, error) {
	src, err := p.client.HTML()
	if err != nil {
		return nil, fmt.Errorf("could not fetch page markup: %w", err)
	}

	doc, err := dom.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("could not parse page markup: %w", err)
	}

	return doc, nil
}

// waitFolderMenu polls for the folder dropdown container with a bounded
// attempt budget. A nil node without error means it never rendered.
func (p *Page) waitFolderMenu() (*html.Node, error) {
	for attempt := 0; attempt < p.menuAttempts; attempt++ {
		doc, err := p.currentDocument()
		if err != nil {
			return nil, err
		}

		menu := dom.First(doc, func(n *html.Node) bool {
			return dom.HasClass(n, classFolderMenu) || dom.HasAttr(n, attrFolderMenu)
		})
		if menu != nil {
			return menu, nil
		}

		time.Sleep(p.pollInterval)
	}

	return nil, nil
}

// closeFolderMenu clicks outside the menu and falls back to an explicit
// close control if the menu is still present afterwards.
func (p *Page) closeFolderMenu() error {
	_, err := p.client.Evaluate(`document.body.click()`)
	if err != nil {
		return fmt.Errorf("could not click outside menu: %w", err)
	}

	open, err := p.folderMenuOpen()
	if err != nil {
		return err
	}
	if !open {
		return nil
	}

	doc, err := p.currentDocument()
	if err != nil {
		return err
	}

	closeControl := dom.First(doc, func(n *html.Node) bool {
		return dom.HasClass(n, classMenuClose) || dom.Attr(n, "aria-label") == "Close"
	})
	if closeControl == nil {
		return fmt.Errorf("menu still open and no close control found")
	}

	_, err = p.client.Evaluate(clickScript(dom.Path(closeControl)))
	if err != nil {
		return fmt.Errorf("could not click close control: %w", err)
	}

	open, err = p.folderMenuOpen()
	if err != nil {
		return err
	}
	if open {
		return fmt.Errorf("menu still open after close control")
	}

	return nil
}

func (p *Page) folderMenuOpen() (bool, error) {
	open, err := p.client.EvalBool(fmt.Sprintf(
		`document.querySelector('.%s, [%s]') !== null`,
		classFolderMenu, attrFolderMenu,
	))
	if err != nil {
		return false, fmt.Errorf("could not check menu state: %w", err)
	}
	return open, nil
}

// findActionControl resolves a toolbar button by its label. For every
// label variant: exact title match, then exact aria-label match, then a
// case-insensitive substring scan across all buttons. First hit wins.
func findActionControl(doc *html.Node, labels []string) string {
	buttons := dom.FindAll(doc, func(n *html.Node) bool {
		return n.Data == "button" || dom.Attr(n, "role") == "button"
	})

	for _, label := range labels {
		for _, button := range buttons {
			if dom.Attr(button, "title") == label {
				return dom.Path(button)
			}
		}
		for _, button := range buttons {
			if dom.Attr(button, "aria-label") == label {
				return dom.Path(button)
			}
		}

		lowered := strings.ToLower(label)
		for _, button := range buttons {
			haystack := strings.ToLower(dom.Attr(button, "title") + " " + dom.Attr(button, "aria-label") + " " + dom.Text(button))
			if strings.Contains(haystack, lowered) {
				return dom.Path(button)
			}
		}
	}

	return ""
}

func findFolderEntry(menu *html.Node, targetFolder string) *html.Node {
	for _, entry := range folderEntryNodes(menu) {
		if dom.Attr(entry, attrFolderId) == targetFolder {
			return entry
		}
		if stripIndent(dom.Text(entry)) == targetFolder {
			return entry
		}
	}
	return nil
}

func folderEntryNodes(menu *html.Node) []*html.Node {
	return dom.FindAll(menu, func(n *html.Node) bool {
		return dom.HasAttr(n, attrFolderId)
	})
}

// folderEntries derives a stable identifier from the encoded attribute
// and a human label from the entry text, stripped of the nesting indent
// the host prepends to sub-folders.
func folderEntries(menu *html.Node) []*domain.Folder {
	folders := []*domain.Folder{}
	for _, entry := range folderEntryNodes(menu) {
		name := dom.Attr(entry, attrFolderId)
		display := stripIndent(dom.Text(entry))
		if len(name) == 0 {
			name = display
		}
		if len(name) == 0 {
			continue
		}
		folders = append(folders, &domain.Folder{Name: name, DisplayName: display})
	}
	return folders
}

func stripIndent(text string) string {
	return strings.TrimSpace(strings.TrimLeft(text, "  ·>—–-"))
}

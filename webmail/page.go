// SPDX-License-Identifier: GPL-3.0-or-later

// Package webmail adapts the host mail client's page to domain.MailPage.
// The host exposes no API, so everything in here works off markup
// heuristics against DOM snapshots and small scripts evaluated in the
// live tab. All class and attribute names the heuristics rely on are
// collected below; nothing outside this package knows about them.
package webmail

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweepkit/go-webmail-sweeper/dom"
	"github.com/sweepkit/go-webmail-sweeper/domain"
	"github.com/sweepkit/go-webmail-sweeper/log"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

// Host page vocabulary. The mail client tags rows and controls with
// these classes/attributes; they are heuristics, not a contract.
const (
	classList      = "mail-list"
	classRow       = "mail-row"
	classBadgeLine = "row-badge"
	classRoleLabel = "badge-label"
	classTruncate  = "truncate-text"
	classSubject   = "row-subject"

	classCheckbox = "row-select-check"
	attrCheckbox  = "data-select-checkbox"

	classFolderMenu = "folder-menu"
	attrFolderMenu  = "data-folder-menu"
	attrFolderId    = "data-folder-id"
	classMenuClose  = "menu-close"
)

// ScriptClient runs scripts in the live tab. Implemented by
// browser.Client.
type ScriptClient interface {
	HTML() (string, error)
	Evaluate(expression string) (json.RawMessage, error)
	EvalString(expression string) (string, error)
	EvalBool(expression string) (bool, error)
	EvalInt(expression string) (int, error)
}

type Page struct {
	client ScriptClient

	settleShort  time.Duration
	settleLong   time.Duration
	pollInterval time.Duration
	menuAttempts int

	// checkbox selector per row, rebuilt on every snapshot
	checkboxes map[domain.RowRef]string

	l *logrus.Logger
}

func NewPage(client ScriptClient) *Page {
	return &Page{
		client:       client,
		settleShort:  400 * time.Millisecond,
		settleLong:   1500 * time.Millisecond,
		pollInterval: 250 * time.Millisecond,
		menuAttempts: 20,
		checkboxes:   map[domain.RowRef]string{},
		l:            log.Logger(log.LOG_PAGE),
	}
}

// SetDelays overrides the settle delays applied after invoking actions.
// Short covers mark-read/unread, long covers trash/archive/move which
// take visibly longer to reflect on the page.
func (p *Page) SetDelays(short, long time.Duration) {
	p.settleShort = short
	p.settleLong = long
}

// SetPolling overrides the bounded-poll parameters used when waiting for
// the folder menu and for rows to disappear.
func (p *Page) SetPolling(interval time.Duration, menuAttempts int) {
	p.pollInterval = interval
	p.menuAttempts = menuAttempts
}

func (p *Page) ScrollToTop() error {
	_, err := p.client.Evaluate(fmt.Sprintf(
		`(() => { const list = document.querySelector('.%s'); if (list) { list.scrollTop = 0; } window.scrollTo(0, 0); return true; })()`,
		classList,
	))
	if err != nil {
		return fmt.Errorf("could not reset list scroll position: %w", err)
	}
	return nil
}

func (p *Page) CollectRows() ([]*domain.MailRow, error) {
	src, err := p.client.HTML()
	if err != nil {
		return nil, fmt.Errorf("could not fetch page markup: %w", err)
	}

	doc, err := dom.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("could not parse page markup: %w", err)
	}

	rowNodes := dom.ByClass(doc, classRow)
	rows := make([]*domain.MailRow, 0, len(rowNodes))
	p.checkboxes = map[domain.RowRef]string{}
	for _, rowNode := range rowNodes {
		ref := domain.RowRef(dom.Path(rowNode))
		rows = append(rows, &domain.MailRow{
			Ref:     ref,
			Sender:  extractSender(rowNode),
			Subject: extractSubject(rowNode),
		})

		if checkbox := findCheckbox(rowNode); checkbox != nil {
			p.checkboxes[ref] = dom.Path(checkbox)
		}
	}

	p.l.WithField("rows", len(rows)).Debug("Collected visible rows")
	return rows, nil
}

func (p *Page) SelectedCount() (int, error) {
	count, err := p.client.EvalInt(fmt.Sprintf(
		`document.querySelectorAll('.%s input[type=checkbox]:checked, input.%s:checked, [%s]:checked').length`,
		classRow, classCheckbox, attrCheckbox,
	))
	if err != nil {
		return 0, fmt.Errorf("could not count selected rows: %w", err)
	}
	return count, nil
}

// WaitRowsGone polls until none of the rows resolve on the page anymore.
// The host removes rows asynchronously after trash/archive/move, so this
// is the observable "action has settled" signal.
func (p *Page) WaitRowsGone(refs []domain.RowRef, timeout time.Duration) error {
	remaining := map[domain.RowRef]bool{}
	for _, ref := range refs {
		remaining[ref] = true
	}

	deadline := time.Now().Add(timeout)
	for len(remaining) > 0 {
		for ref := range remaining {
			gone, err := p.client.EvalBool(fmt.Sprintf(
				`document.querySelector(%q) === null`, string(ref),
			))
			if err != nil {
				return fmt.Errorf("could not check row presence: %w", err)
			}
			if gone {
				delete(remaining, ref)
			}
		}

		if len(remaining) == 0 {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%d rows still present after %v", len(remaining), timeout)
		}
		time.Sleep(p.pollInterval)
	}

	return nil
}

func findCheckbox(row *html.Node) *html.Node {
	// most specific lookup first
	if n := dom.First(row, func(n *html.Node) bool { return dom.HasClass(n, classCheckbox) }); n != nil {
		return n
	}
	if n := dom.First(row, func(n *html.Node) bool { return dom.HasAttr(n, attrCheckbox) }); n != nil {
		return n
	}
	return dom.First(row, func(n *html.Node) bool {
		return n.Data == "input" && dom.Attr(n, "type") == "checkbox"
	})
}

// SPDX-License-Identifier: GPL-3.0-or-later
package webmail

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sweepkit/go-webmail-sweeper/dom"
	"github.com/sweepkit/go-webmail-sweeper/domain"
	"github.com/sweepkit/go-webmail-sweeper/log"

	"github.com/stretchr/testify/assert"
	"golang.org/x/net/html"
)

func TestMain(m *testing.M) {
	log.InitLogging("error")
	m.Run()
}

var quotedSelector = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)

// fakeScript emulates the live tab: HTML snapshots come from a mutable
// string, clicks and forced state changes are recorded and applied to a
// simple checkbox state table.
type fakeScript struct {
	html     string
	menuHtml string
	menuOpen bool

	// selector that opens the folder menu when clicked
	menuToggle string

	checked        map[string]bool
	clickRegisters bool
	clicks         []string
	forces         []string

	gone map[string]bool
}

func newFakeScript(html string) *fakeScript {
	return &fakeScript{
		html:           html,
		checked:        map[string]bool{},
		gone:           map[string]bool{},
		clickRegisters: true,
	}
}

func (f *fakeScript) selectorOf(expression string) string {
	match := quotedSelector.FindString(expression)
	if len(match) == 0 {
		return ""
	}
	selector, err := strconv.Unquote(match)
	if err != nil {
		return ""
	}
	return selector
}

func (f *fakeScript) HTML() (string, error) {
	if f.menuOpen {
		return strings.Replace(f.html, "</body>", f.menuHtml+"</body>", 1), nil
	}
	return f.html, nil
}

func (f *fakeScript) Evaluate(expression string) (json.RawMessage, error) {
	switch {
	case strings.Contains(expression, "document.body.click()"):
		f.menuOpen = false
	case strings.Contains(expression, "el.click()"):
		selector := f.selectorOf(expression)
		f.clicks = append(f.clicks, selector)
		if selector == f.menuToggle {
			f.menuOpen = true
		} else if f.clickRegisters {
			f.checked[selector] = true
		}
	case strings.Contains(expression, "dispatchEvent"):
		selector := f.selectorOf(expression)
		f.forces = append(f.forces, selector)
		f.checked[selector] = strings.Contains(expression, "el.checked = true")
	}
	return json.RawMessage(`true`), nil
}

func (f *fakeScript) EvalString(expression string) (string, error) {
	return f.HTML()
}

func (f *fakeScript) EvalBool(expression string) (bool, error) {
	switch {
	case strings.Contains(expression, "el.checked"):
		return f.checked[f.selectorOf(expression)], nil
	case strings.Contains(expression, "=== null"):
		return f.gone[f.selectorOf(expression)], nil
	case strings.Contains(expression, "!== null"):
		return f.menuOpen, nil
	}
	return false, fmt.Errorf("unexpected bool expression: %s", expression)
}

func (f *fakeScript) EvalInt(expression string) (int, error) {
	count := 0
	for _, checked := range f.checked {
		if checked {
			count++
		}
	}
	return count, nil
}

const listMarkup = `<html><body>
<button title="Archive"></button>
<button title="Move"></button>
<div class="mail-list">
	<div class="mail-row">
		<input type="checkbox" class="row-select-check">
		<div class="row-badge"><span class="truncate-text">Alice Smith</span><span>Sep 12</span></div>
		<div class="row-subject">Your Invoice</div>
	</div>
	<div class="mail-row">
		<input type="checkbox" class="row-select-check">
		<div class="row-badge"><span class="truncate-text">Bob Jones</span><span>Sep 11</span></div>
		<div class="row-subject">Newsletter</div>
	</div>
	<div class="mail-row">
		<div class="row-badge"><span class="truncate-text">Carol King</span><span>Sep 10</span></div>
		<div class="row-subject">No Checkbox Here</div>
	</div>
</div>
</body></html>`

func newTestPage(fake *fakeScript) *Page {
	page := NewPage(fake)
	page.SetDelays(0, 0)
	page.SetPolling(time.Millisecond, 3)
	return page
}

func TestPage_CollectRows(t *testing.T) {
	fake := newFakeScript(listMarkup)
	page := newTestPage(fake)

	rows, err := page.CollectRows()
	assert.NoError(t, err)
	assert.Len(t, rows, 3)

	assert.Equal(t, "Alice Smith", rows[0].Sender)
	assert.Equal(t, "Your Invoice", rows[0].Subject)
	assert.Equal(t, "Bob Jones", rows[1].Sender)
	assert.Equal(t, "Newsletter", rows[1].Subject)
	assert.Equal(t, "Carol King", rows[2].Sender)

	for _, row := range rows {
		assert.False(t, row.Processed)
		assert.NotEmpty(t, row.Ref)
	}

	// rows with a checkbox got one mapped, the third did not
	assert.Len(t, page.checkboxes, 2)
}

func TestPage_SelectRows_ClickRegisters(t *testing.T) {
	fake := newFakeScript(listMarkup)
	page := newTestPage(fake)

	rows, err := page.CollectRows()
	assert.NoError(t, err)

	err = page.SelectRows([]domain.RowRef{rows[0].Ref, rows[1].Ref})
	assert.NoError(t, err)

	assert.Len(t, fake.clicks, 2)
	assert.Empty(t, fake.forces)

	count, err := page.SelectedCount()
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPage_SelectRows_ForcesWhenClickSwallowed(t *testing.T) {
	fake := newFakeScript(listMarkup)
	fake.clickRegisters = false
	page := newTestPage(fake)

	rows, err := page.CollectRows()
	assert.NoError(t, err)

	err = page.SelectRows([]domain.RowRef{rows[0].Ref})
	assert.NoError(t, err)

	assert.Len(t, fake.clicks, 1)
	assert.Len(t, fake.forces, 1)
	assert.True(t, fake.checked[fake.forces[0]])
}

func TestPage_SelectRows_AlreadySelectedIsIdempotent(t *testing.T) {
	fake := newFakeScript(listMarkup)
	page := newTestPage(fake)

	rows, err := page.CollectRows()
	assert.NoError(t, err)

	assert.NoError(t, page.SelectRows([]domain.RowRef{rows[0].Ref}))
	assert.NoError(t, page.SelectRows([]domain.RowRef{rows[0].Ref}))

	assert.Len(t, fake.clicks, 1)
}

func TestPage_SelectRows_SkipsRowWithoutCheckbox(t *testing.T) {
	fake := newFakeScript(listMarkup)
	page := newTestPage(fake)

	rows, err := page.CollectRows()
	assert.NoError(t, err)

	err = page.SelectRows([]domain.RowRef{rows[2].Ref})
	assert.NoError(t, err)
	assert.Empty(t, fake.clicks)
}

func TestPage_WaitRowsGone(t *testing.T) {
	fake := newFakeScript(listMarkup)
	page := newTestPage(fake)

	rows, err := page.CollectRows()
	assert.NoError(t, err)

	fake.gone[string(rows[0].Ref)] = true
	fake.gone[string(rows[1].Ref)] = true

	err = page.WaitRowsGone([]domain.RowRef{rows[0].Ref, rows[1].Ref}, 50*time.Millisecond)
	assert.NoError(t, err)
}

func TestPage_WaitRowsGoneTimesOut(t *testing.T) {
	fake := newFakeScript(listMarkup)
	page := newTestPage(fake)

	rows, err := page.CollectRows()
	assert.NoError(t, err)

	err = page.WaitRowsGone([]domain.RowRef{rows[0].Ref}, 5*time.Millisecond)
	assert.EqualError(t, err, "1 rows still present after 5ms")
}

func TestPage_InvokeActionMarkRead(t *testing.T) {
	fake := newFakeScript(listMarkup)
	page := newTestPage(fake)

	found, err := page.InvokeAction(domain.ActionArchive, "")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, fake.clicks, 1)
}

func TestPage_InvokeActionControlMissing(t *testing.T) {
	fake := newFakeScript(`<html><body><div class="mail-list"></div></body></html>`)
	page := newTestPage(fake)

	found, err := page.InvokeAction(domain.ActionTrash, "")
	assert.NoError(t, err)
	assert.False(t, found)
}

func moveButtonSelector(t *testing.T) string {
	doc, err := dom.Parse(listMarkup)
	assert.NoError(t, err)
	move := dom.First(doc, func(n *html.Node) bool { return dom.Attr(n, "title") == "Move" })
	assert.NotNil(t, move)
	return dom.Path(move)
}

const menuMarkup = `<div class="folder-menu">
	<button data-folder-id="inbox">inbox</button>
	<button data-folder-id="archive.sub1">&nbsp;&nbsp;&mdash; sub1</button>
</div>`

func TestPage_MoveToFolder(t *testing.T) {
	fake := newFakeScript(listMarkup)
	fake.menuHtml = menuMarkup
	fake.menuToggle = moveButtonSelector(t)
	page := newTestPage(fake)

	found, err := page.InvokeAction(domain.ActionMove, "archive.sub1")
	assert.NoError(t, err)
	assert.True(t, found)

	// move button first, folder entry second
	assert.Len(t, fake.clicks, 2)
	assert.Equal(t, fake.menuToggle, fake.clicks[0])
}

func TestPage_MoveToFolderMenuNeverAppears(t *testing.T) {
	fake := newFakeScript(listMarkup)
	// menuToggle unset: clicking Move never opens anything
	page := newTestPage(fake)

	found, err := page.InvokeAction(domain.ActionMove, "archive.sub1")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestPage_MoveToFolderTargetMissing(t *testing.T) {
	fake := newFakeScript(listMarkup)
	fake.menuHtml = menuMarkup
	fake.menuToggle = moveButtonSelector(t)
	page := newTestPage(fake)

	found, err := page.InvokeAction(domain.ActionMove, "nonexistent")
	assert.NoError(t, err)
	assert.False(t, found)
	// menu was closed again
	assert.False(t, fake.menuOpen)
}

func TestPage_ListFolders(t *testing.T) {
	fake := newFakeScript(listMarkup)
	fake.menuHtml = menuMarkup
	fake.menuToggle = moveButtonSelector(t)
	page := newTestPage(fake)

	folders, err := page.ListFolders()
	assert.NoError(t, err)
	assert.Equal(t, []*domain.Folder{
		{Name: "inbox", DisplayName: "inbox"},
		{Name: "archive.sub1", DisplayName: "sub1"},
	}, folders)

	// read-only query must not leave the menu open
	assert.False(t, fake.menuOpen)
}

func TestPage_ClearSelection(t *testing.T) {
	fake := newFakeScript(listMarkup)
	page := newTestPage(fake)

	rows, err := page.CollectRows()
	assert.NoError(t, err)
	assert.NoError(t, page.SelectRows([]domain.RowRef{rows[0].Ref}))

	assert.NoError(t, page.ClearSelection())
}

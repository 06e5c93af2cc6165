// SPDX-License-Identifier: GPL-3.0-or-later
package webmail

import (
	"fmt"

	"github.com/sweepkit/go-webmail-sweeper/domain"

	"github.com/sirupsen/logrus"
)

// SelectRows turns on the selection checkbox of each row from the last
// snapshot. A plain click is tried first; when the host swallows it the
// checked state is forced directly and change/input events are emitted
// so the host's view layer notices the mutation (setting element state
// alone does not trigger its change detection).
func (p *Page) SelectRows(refs []domain.RowRef) error {
	for _, ref := range refs {
		selector, ok := p.checkboxes[ref]
		if !ok {
			p.l.WithField("row", string(ref)).Warn("No selection checkbox found for row, skipping")
			continue
		}

		checked, err := p.client.EvalBool(checkedScript(selector))
		if err != nil {
			return fmt.Errorf("could not read checkbox state: %w", err)
		}
		if checked {
			continue
		}

		_, err = p.client.Evaluate(clickScript(selector))
		if err != nil {
			return fmt.Errorf("could not click checkbox: %w", err)
		}

		checked, err = p.client.EvalBool(checkedScript(selector))
		if err != nil {
			return fmt.Errorf("could not verify checkbox state: %w", err)
		}
		if !checked {
			p.l.WithFields(logrus.Fields{"row": string(ref)}).Debug("Click did not register, forcing checkbox state")
			_, err = p.client.Evaluate(forceCheckedScript(selector, true))
			if err != nil {
				return fmt.Errorf("could not force checkbox state: %w", err)
			}
		}
	}

	return nil
}

// ClearSelection deselects every selected row checkbox, with the same
// synthetic notification events as SelectRows.
func (p *Page) ClearSelection() error {
	_, err := p.client.Evaluate(fmt.Sprintf(
		`(() => {
			const boxes = document.querySelectorAll('.%s input[type=checkbox]:checked, input.%s:checked, [%s]:checked');
			for (const box of boxes) {
				box.checked = false;
				box.dispatchEvent(new Event('input', {bubbles: true}));
				box.dispatchEvent(new Event('change', {bubbles: true}));
			}
			return boxes.length;
		})()`,
		classRow, classCheckbox, attrCheckbox,
	))
	if err != nil {
		return fmt.Errorf("could not clear selection: %w", err)
	}
	return nil
}

func checkedScript(selector string) string {
	return fmt.Sprintf(`(() => { const el = document.querySelector(%q); return !!(el && el.checked); })()`, selector)
}

func clickScript(selector string) string {
	return fmt.Sprintf(`(() => { const el = document.querySelector(%q); if (!el) { return false; } el.click(); return true; })()`, selector)
}

func forceCheckedScript(selector string, checked bool) string {
	return fmt.Sprintf(
		`(() => {
			const el = document.querySelector(%q);
			if (!el) { return false; }
			el.checked = %t;
			el.dispatchEvent(new Event('input', {bubbles: true}));
			el.dispatchEvent(new Event('change', {bubbles: true}));
			return true;
		})()`,
		selector, checked,
	)
}

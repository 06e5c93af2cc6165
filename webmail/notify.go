// SPDX-License-Identifier: GPL-3.0-or-later
package webmail

import "fmt"

const notificationMillis = 4000

// ShowNotification injects a transient overlay with the run summary.
// Purely cosmetic; callers ignore failures.
func (p *Page) ShowNotification(message string) error {
	_, err := p.client.Evaluate(fmt.Sprintf(
		`(() => {
			const note = document.createElement('div');
			note.textContent = %q;
			note.style.cssText = 'position:fixed;top:16px;right:16px;z-index:99999;'
				+ 'background:#1f2933;color:#fff;padding:10px 16px;border-radius:6px;'
				+ 'font:13px sans-serif;box-shadow:0 2px 8px rgba(0,0,0,.3)';
			document.body.appendChild(note);
			setTimeout(() => note.remove(), %d);
			return true;
		})()`,
		message, notificationMillis,
	))
	if err != nil {
		return fmt.Errorf("could not show notification: %w", err)
	}
	return nil
}

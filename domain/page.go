// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "time"

// MailPage is the boundary to the host webmail UI. Every assumption
// about the page's markup lives behind this interface so the matching
// and orchestration logic never touches DOM details.
type MailPage interface {
	// ScrollToTop forces the message list back to its top so a
	// following CollectRows sees the full loaded set, not a mid-scroll
	// window.
	ScrollToTop() error

	// CollectRows snapshots every currently visible message row in DOM
	// order with sender/subject already extracted.
	CollectRows() ([]*MailRow, error)

	// SelectedCount reports how many rows are currently selected on the
	// page, regardless of who selected them.
	SelectedCount() (int, error)

	// SelectRows toggles the selection checkbox of each given row on.
	// Rows already selected are left untouched; rows whose checkbox
	// cannot be found are skipped.
	SelectRows(refs []RowRef) error

	// ClearSelection deselects every selected row.
	ClearSelection() error

	// InvokeAction triggers the host UI control for the action. The
	// returned bool reports whether the control was found at all.
	InvokeAction(action Action, targetFolder string) (bool, error)

	// WaitRowsGone blocks until none of the given rows resolve on the
	// page anymore, or the timeout elapses.
	WaitRowsGone(refs []RowRef, timeout time.Duration) error

	// ListFolders enumerates the folders offered by the move menu. The
	// menu is closed again before returning.
	ListFolders() ([]*Folder, error)

	// ShowNotification displays a transient on-page message.
	ShowNotification(message string) error
}

// SPDX-License-Identifier: GPL-3.0-or-later
package domain

// RowRef is an opaque handle to a single message row on the host page.
// It stays resolvable only until the page mutates underneath it.
type RowRef string

// MailRow is one visible message captured at snapshot time. Sender and
// subject are extracted once and never re-read; the host page may change
// after actions run.
type MailRow struct {
	Ref     RowRef
	Sender  string
	Subject string

	// Processed flips to true once a rule has acted on the row. Rows
	// selected by a select-only rule stay unprocessed so later rules may
	// still match them.
	Processed bool
}

type RuleResult struct {
	Rule  string `json:"rule"`
	Count int    `json:"count"`
}

type RunResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Results []RuleResult `json:"results"`
}

type Folder struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

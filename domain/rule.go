// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type MatchType string

const (
	MatchSubjectExact     = MatchType("subject-exact")
	MatchSubjectContains  = MatchType("subject-contains")
	MatchSenderExact      = MatchType("sender-exact")
	MatchSenderContains   = MatchType("sender-contains")
	MatchSenderAndSubject = MatchType("sender-and-subject")
)

type Action string

const (
	ActionTrash      = Action("trash")
	ActionArchive    = Action("archive")
	ActionMarkRead   = Action("mark-read")
	ActionMarkUnread = Action("mark-unread")
	ActionMove       = Action("move-to-folder")
	ActionSelectOnly = Action("select-only")
)

// RemovesRows reports whether the action makes matched rows disappear
// from the visible list once the host page has settled.
func (a Action) RemovesRows() bool {
	return a == ActionTrash || a == ActionArchive || a == ActionMove
}

// ValueList holds rule match values. Older rule sets stored a single
// string where newer ones store a list, so unmarshalling accepts both.
type ValueList []string

func (v *ValueList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*v = ValueList{single}
		return nil
	}

	return fmt.Errorf("value must be a string or a list of strings")
}

// Normalized returns the values with empty entries removed.
func (v ValueList) Normalized() []string {
	values := []string{}
	for _, value := range v {
		if len(strings.TrimSpace(value)) > 0 {
			values = append(values, value)
		}
	}
	return values
}

type Rule struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	MatchType MatchType `json:"matchType"`

	MatchValues   ValueList `json:"matchValues,omitempty"`
	SenderValues  ValueList `json:"senderValues,omitempty"`
	SubjectValues ValueList `json:"subjectValues,omitempty"`

	Action       Action `json:"action"`
	TargetFolder string `json:"targetFolder,omitempty"`
	Enabled      bool   `json:"enabled"`
}

func (r *Rule) Validate() error {
	if len(strings.TrimSpace(r.Name)) == 0 {
		return fmt.Errorf("rule name must not be empty")
	}

	switch r.MatchType {
	case MatchSubjectExact, MatchSubjectContains, MatchSenderExact, MatchSenderContains, MatchSenderAndSubject:
	default:
		return fmt.Errorf("unknown match type %q", r.MatchType)
	}

	switch r.Action {
	case ActionTrash, ActionArchive, ActionMarkRead, ActionMarkUnread, ActionSelectOnly:
	case ActionMove:
		if len(strings.TrimSpace(r.TargetFolder)) == 0 {
			return fmt.Errorf("targetFolder must not be empty for move-to-folder rules")
		}
	default:
		return fmt.Errorf("unknown action %q", r.Action)
	}

	return nil
}

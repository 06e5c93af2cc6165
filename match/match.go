// SPDX-License-Identifier: GPL-3.0-or-later
package match

import (
	"strings"

	"github.com/sweepkit/go-webmail-sweeper/domain"
)

// Matches decides whether a snapshot row satisfies a rule's predicate.
// Exact variants compare case-sensitively, contains variants compare
// case-insensitively. Unknown match types never match.
func Matches(row *domain.MailRow, rule *domain.Rule) bool {
	switch rule.MatchType {
	case domain.MatchSubjectExact:
		return anyEquals(row.Subject, rule.MatchValues.Normalized())
	case domain.MatchSubjectContains:
		return anyContains(row.Subject, rule.MatchValues.Normalized())
	case domain.MatchSenderExact:
		return anyEquals(row.Sender, rule.MatchValues.Normalized())
	case domain.MatchSenderContains:
		return anyContains(row.Sender, rule.MatchValues.Normalized())
	case domain.MatchSenderAndSubject:
		return anyContains(row.Sender, rule.SenderValues.Normalized()) &&
			anyContains(row.Subject, rule.SubjectValues.Normalized())
	}

	return false
}

func anyEquals(field string, values []string) bool {
	for _, value := range values {
		if field == value {
			return true
		}
	}
	return false
}

func anyContains(field string, values []string) bool {
	lowered := strings.ToLower(field)
	for _, value := range values {
		if strings.Contains(lowered, strings.ToLower(value)) {
			return true
		}
	}
	return false
}

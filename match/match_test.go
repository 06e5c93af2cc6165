// SPDX-License-Identifier: GPL-3.0-or-later
package match

import (
	"testing"

	"github.com/sweepkit/go-webmail-sweeper/domain"

	"github.com/stretchr/testify/assert"
)

func row(sender, subject string) *domain.MailRow {
	return &domain.MailRow{Ref: "row", Sender: sender, Subject: subject}
}

func TestMatches_SubjectContains(t *testing.T) {
	rule := &domain.Rule{MatchType: domain.MatchSubjectContains, MatchValues: domain.ValueList{"foo"}}

	assert.True(t, Matches(row("", "Foo Bar"), rule))
	assert.True(t, Matches(row("", "foo"), rule))
	assert.False(t, Matches(row("", "Bar"), rule))
}

func TestMatches_SubjectExactIsCaseSensitive(t *testing.T) {
	rule := &domain.Rule{MatchType: domain.MatchSubjectExact, MatchValues: domain.ValueList{"Weekly Report"}}

	assert.True(t, Matches(row("", "Weekly Report"), rule))
	assert.False(t, Matches(row("", "weekly report"), rule))
	assert.False(t, Matches(row("", "Weekly Report 2"), rule))
}

func TestMatches_Sender(t *testing.T) {
	exact := &domain.Rule{MatchType: domain.MatchSenderExact, MatchValues: domain.ValueList{"Alice Smith"}}
	contains := &domain.Rule{MatchType: domain.MatchSenderContains, MatchValues: domain.ValueList{"alice"}}

	assert.True(t, Matches(row("Alice Smith", ""), exact))
	assert.False(t, Matches(row("alice smith", ""), exact))
	assert.True(t, Matches(row("Alice Smith", ""), contains))
	assert.False(t, Matches(row("Bob Jones", ""), contains))
}

func TestMatches_SenderAndSubject(t *testing.T) {
	rule := &domain.Rule{
		MatchType:     domain.MatchSenderAndSubject,
		SenderValues:  domain.ValueList{"alice"},
		SubjectValues: domain.ValueList{"invoice"},
	}

	assert.True(t, Matches(row("Alice Smith", "Your Invoice"), rule))
	assert.False(t, Matches(row("Alice Smith", "Newsletter"), rule))
	assert.False(t, Matches(row("Bob Jones", "Your Invoice"), rule))
}

func TestMatches_SenderAndSubjectEmptySideNeverMatches(t *testing.T) {
	rule := &domain.Rule{
		MatchType:     domain.MatchSenderAndSubject,
		SenderValues:  domain.ValueList{"alice"},
		SubjectValues: domain.ValueList{},
	}

	assert.False(t, Matches(row("Alice Smith", "anything"), rule))
}

func TestMatches_MultipleValuesAreOrSemantics(t *testing.T) {
	rule := &domain.Rule{MatchType: domain.MatchSubjectContains, MatchValues: domain.ValueList{"newsletter", "digest"}}

	assert.True(t, Matches(row("", "Morning Digest"), rule))
	assert.True(t, Matches(row("", "Weekly Newsletter"), rule))
	assert.False(t, Matches(row("", "Invoice"), rule))
}

func TestMatches_EmptyValuesNeverMatch(t *testing.T) {
	for _, matchType := range []domain.MatchType{
		domain.MatchSubjectExact,
		domain.MatchSubjectContains,
		domain.MatchSenderExact,
		domain.MatchSenderContains,
	} {
		rule := &domain.Rule{MatchType: matchType, MatchValues: domain.ValueList{"", "  "}}
		assert.False(t, Matches(row("anything", "anything"), rule), string(matchType))
	}
}

func TestMatches_UnknownMatchTypeFailsClosed(t *testing.T) {
	rule := &domain.Rule{MatchType: "subject-regex", MatchValues: domain.ValueList{"anything"}}

	assert.False(t, Matches(row("anything", "anything"), rule))
}

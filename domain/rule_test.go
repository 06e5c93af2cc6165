// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueList_UnmarshalLegacySingleString(t *testing.T) {
	var rule Rule
	err := json.Unmarshal([]byte(`{"name":"old","matchType":"subject-contains","matchValues":"Newsletter","action":"archive","enabled":true}`), &rule)

	assert.NoError(t, err)
	assert.Equal(t, ValueList{"Newsletter"}, rule.MatchValues)
}

func TestValueList_UnmarshalList(t *testing.T) {
	var rule Rule
	err := json.Unmarshal([]byte(`{"name":"new","matchType":"sender-contains","matchValues":["a","b"],"action":"trash","enabled":true}`), &rule)

	assert.NoError(t, err)
	assert.Equal(t, ValueList{"a", "b"}, rule.MatchValues)
}

func TestValueList_UnmarshalRejectsOtherShapes(t *testing.T) {
	var values ValueList
	err := values.UnmarshalJSON([]byte(`{"not":"a list"}`))

	assert.EqualError(t, err, "value must be a string or a list of strings")
}

func TestValueList_Normalized(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ValueList{"a", "", "  ", "b"}.Normalized())
	assert.Equal(t, []string{}, ValueList{}.Normalized())
}

func TestRule_Validate(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		err  string
	}{
		{"ok", Rule{Name: "r", MatchType: MatchSubjectContains, Action: ActionArchive}, ""},
		{"emptyname", Rule{MatchType: MatchSubjectContains, Action: ActionArchive}, "rule name must not be empty"},
		{"badmatchtype", Rule{Name: "r", MatchType: "subject-regex", Action: ActionArchive}, `unknown match type "subject-regex"`},
		{"badaction", Rule{Name: "r", MatchType: MatchSenderExact, Action: "shred"}, `unknown action "shred"`},
		{"movewithoutfolder", Rule{Name: "r", MatchType: MatchSenderExact, Action: ActionMove}, "targetFolder must not be empty for move-to-folder rules"},
		{"movewithfolder", Rule{Name: "r", MatchType: MatchSenderExact, Action: ActionMove, TargetFolder: "archive.sub1"}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rule.Validate()
			if len(tc.err) == 0 {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tc.err)
			}
		})
	}
}

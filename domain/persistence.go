// SPDX-License-Identifier: GPL-3.0-or-later
package domain

type RuleStore interface {
	Close() error
	AllRules() ([]*Rule, error)
	EnabledRules() ([]*Rule, error)
	SaveRule(rule *Rule) (*Rule, error)
	DeleteRule(id string) error
	ReplaceRules(rules []*Rule) error
}

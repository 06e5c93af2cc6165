// SPDX-License-Identifier: GPL-3.0-or-later
package sweeper

import (
	"fmt"
	"time"

	"github.com/sweepkit/go-webmail-sweeper/domain"
	"github.com/sweepkit/go-webmail-sweeper/log"
	"github.com/sweepkit/go-webmail-sweeper/match"

	"github.com/sirupsen/logrus"
)

type Sweeper struct {
	page domain.MailPage

	configuration *configuration

	l *logrus.Logger
}

func NewSweeper(page domain.MailPage, configFunc ...ConfigFunc) (*Sweeper, error) {
	config := defaultConfiguration()
	for _, f := range configFunc {
		err := f(config)
		if err != nil {
			return nil, fmt.Errorf("error applying configuration: %w", err)
		}
	}

	return &Sweeper{
		page:          page,
		configuration: config,
		l:             log.Logger(log.LOG_SWEEPER),
	}, nil
}

// runState carries everything one orchestration pass accumulates.
// Processed refs outlive per-rule snapshots so rows that survive an
// action (mark-read) are never acted on twice; selectionAllowance
// tolerates rows an earlier select-only rule intentionally left
// selected.
type runState struct {
	results            []domain.RuleResult
	processed          map[domain.RowRef]bool
	snapshot           []*domain.MailRow
	selectionAllowance int
	total              int
}

// Run applies the rules in list order against the visible message list
// and aggregates per-rule match counts. Rules are expected to be
// pre-filtered to enabled ones; disabled rules are skipped defensively.
// Actions already taken on the page are never rolled back, so a failure
// result still carries the counts of rules that completed.
func (s *Sweeper) Run(rules []*domain.Rule) (result *domain.RunResult) {
	state := &runState{
		results:   []domain.RuleResult{},
		processed: map[domain.RowRef]bool{},
	}

	defer func() {
		if fault := recover(); fault != nil {
			s.l.WithField("fault", fault).Error("Run aborted by unexpected fault")
			result = &domain.RunResult{
				Success: false,
				Message: fmt.Sprintf("unexpected fault: %v", fault),
				Results: state.results,
			}
		}
	}()

	if s.configuration.SingleSnapshot && !s.configuration.DryRun {
		for _, rule := range rules {
			if rule.Enabled && rule.Action != domain.ActionSelectOnly {
				return &domain.RunResult{
					Success: false,
					Message: fmt.Sprintf("single-snapshot mode only supports select-only rules, rule %q wants %s", rule.Name, rule.Action),
					Results: state.results,
				}
			}
		}
	}

	for _, rule := range rules {
		if !rule.Enabled {
			s.l.WithField("rule", rule.Name).Debug("Skipping disabled rule")
			continue
		}

		count, err := s.runRule(rule, state)
		if err != nil {
			s.l.WithFields(logrus.Fields{"rule": rule.Name, "error": err}).Error("Rule failed, aborting remaining rules")
			return &domain.RunResult{
				Success: false,
				Message: fmt.Sprintf("rule %q failed: %s", rule.Name, err),
				Results: state.results,
			}
		}

		state.results = append(state.results, domain.RuleResult{Rule: rule.Name, Count: count})
		state.total += count
	}

	message := "no matches"
	if state.total > 0 {
		message = fmt.Sprintf("Processed %d mails", state.total)
	}

	return &domain.RunResult{
		Success: true,
		Message: message,
		Results: state.results,
	}
}

func (s *Sweeper) runRule(rule *domain.Rule, state *runState) (int, error) {
	start := time.Now()

	rows, err := s.currentRows(state)
	if err != nil {
		return 0, err
	}

	matches := []*domain.MailRow{}
	for _, row := range rows {
		if row.Processed {
			continue
		}
		if match.Matches(row, rule) {
			matches = append(matches, row)
		}
	}

	s.l.WithFields(logrus.Fields{"rule": rule.Name, "rows": len(rows), "matches": len(matches)}).Debug("Evaluated rule")
	if len(matches) == 0 {
		return 0, nil
	}

	refs := make([]domain.RowRef, len(matches))
	for i, row := range matches {
		refs[i] = row.Ref
	}

	if rule.Action != domain.ActionSelectOnly && !s.configuration.DryRun && state.selectionAllowance > 0 {
		// the host control acts on the page's entire selection, so rows
		// earlier select-only rules left selected must be deselected
		// before this rule's action can run
		err = s.page.ClearSelection()
		if err != nil {
			return 0, fmt.Errorf("could not clear leftover selection: %w", err)
		}
		state.selectionAllowance = 0
	}

	err = s.page.SelectRows(refs)
	if err != nil {
		return 0, fmt.Errorf("could not select matches: %w", err)
	}

	time.Sleep(s.configuration.SettleDelay)

	if rule.Action == domain.ActionSelectOnly || s.configuration.DryRun {
		if s.configuration.DryRun && rule.Action != domain.ActionSelectOnly {
			s.l.WithFields(logrus.Fields{"rule": rule.Name, "action": rule.Action, "matches": len(matches)}).Info("Not invoking action due to dry-run")
		}
		// selection is left on the page on purpose, the precondition
		// check of later rules must tolerate it and a later mutating
		// rule deselects it before acting
		state.selectionAllowance += len(matches)
		return len(matches), nil
	}

	found, err := s.page.InvokeAction(rule.Action, rule.TargetFolder)
	if err != nil {
		return 0, fmt.Errorf("could not invoke %s: %w", rule.Action, err)
	}

	if !found {
		s.l.WithFields(logrus.Fields{"rule": rule.Name, "action": rule.Action}).Warn("Action control not found, skipping rule's action")
		err = s.page.ClearSelection()
		if err != nil {
			return 0, fmt.Errorf("could not clear selection after missing control: %w", err)
		}
		return len(matches), nil
	}

	for _, row := range matches {
		row.Processed = true
		state.processed[row.Ref] = true
	}

	if rule.Action.RemovesRows() {
		err = s.page.WaitRowsGone(refs, s.configuration.RowsGoneTimeout)
		if err != nil {
			// bounded wait elapsed, move on regardless
			s.l.WithFields(logrus.Fields{"rule": rule.Name, "error": err}).Warn("Rows still visible after action")
		}
	} else {
		time.Sleep(s.configuration.SettleDelay)
	}

	s.l.WithFields(logrus.Fields{"rule": rule.Name, "action": rule.Action, "matches": len(matches), "duration": time.Since(start)}).Info("Applied rule")
	return len(matches), nil
}

// currentRows supplies the snapshot a rule evaluates against. The
// default re-collects before every rule since actions mutate the list
// and stale row handles must not be acted on; single-snapshot mode
// reuses one collection pass for the whole run.
func (s *Sweeper) currentRows(state *runState) ([]*domain.MailRow, error) {
	if s.configuration.SingleSnapshot {
		if state.snapshot == nil {
			rows, err := s.collect()
			if err != nil {
				return nil, err
			}
			state.snapshot = rows
		}
		return state.snapshot, nil
	}

	err := s.ensureSelectionClear(state.selectionAllowance)
	if err != nil {
		return nil, err
	}

	rows, err := s.collect()
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if state.processed[row.Ref] {
			row.Processed = true
		}
	}

	return rows, nil
}

func (s *Sweeper) collect() ([]*domain.MailRow, error) {
	err := s.page.ScrollToTop()
	if err != nil {
		return nil, fmt.Errorf("could not scroll to top: %w", err)
	}

	rows, err := s.page.CollectRows()
	if err != nil {
		return nil, fmt.Errorf("could not collect rows: %w", err)
	}

	return rows, nil
}

// ensureSelectionClear guards against external interference: anything
// selected beyond what this run's own select-only rules left behind
// means a user is working in the tab, and acting on their selection
// would be destructive.
func (s *Sweeper) ensureSelectionClear(allowance int) error {
	selected := 0
	for attempt := 0; attempt <= s.configuration.SelectionRetries; attempt++ {
		count, err := s.page.SelectedCount()
		if err != nil {
			return fmt.Errorf("could not check selection state: %w", err)
		}

		if count <= allowance {
			return nil
		}
		selected = count

		time.Sleep(s.configuration.RetryInterval)
	}

	return fmt.Errorf("%d rows are selected on the page, clear the selection and run again", selected)
}

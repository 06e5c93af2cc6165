// SPDX-License-Identifier: GPL-3.0-or-later
package sweeper

import (
	"fmt"
	"time"
)

type ConfigFunc func(c *configuration) error

// DryRun evaluates and selects matches but never invokes actions and
// never marks rows processed.
func DryRun() ConfigFunc {
	return func(c *configuration) error {
		c.DryRun = true

		return nil
	}
}

// SingleSnapshot collects the visible set once and lets every rule
// filter against it instead of re-snapshotting per rule. Only valid for
// runs that never remove rows (select-only or dry-run); Run refuses
// mutating rules in this mode.
func SingleSnapshot() ConfigFunc {
	return func(c *configuration) error {
		c.SingleSnapshot = true

		return nil
	}
}

func SettleDelay(delay time.Duration) ConfigFunc {
	return func(c *configuration) error {
		if delay < 0 {
			return fmt.Errorf("SettleDelay cannot be negative")
		}

		c.SettleDelay = delay
		return nil
	}
}

func RowsGoneTimeout(timeout time.Duration) ConfigFunc {
	return func(c *configuration) error {
		if timeout <= 0 {
			return fmt.Errorf("RowsGoneTimeout must be positive")
		}

		c.RowsGoneTimeout = timeout
		return nil
	}
}

func SelectionRetries(retries int, interval time.Duration) ConfigFunc {
	return func(c *configuration) error {
		if retries < 0 {
			return fmt.Errorf("SelectionRetries cannot be negative")
		}

		c.SelectionRetries = retries
		c.RetryInterval = interval
		return nil
	}
}

type configuration struct {
	DryRun         bool
	SingleSnapshot bool

	SettleDelay      time.Duration
	RowsGoneTimeout  time.Duration
	SelectionRetries int
	RetryInterval    time.Duration
}

func defaultConfiguration() *configuration {
	return &configuration{
		SettleDelay:      300 * time.Millisecond,
		RowsGoneTimeout:  10 * time.Second,
		SelectionRetries: 5,
		RetryInterval:    500 * time.Millisecond,
	}
}

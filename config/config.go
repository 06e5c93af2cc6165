// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Database string

	// webSocketDebuggerUrl of the tab running the mail client, as
	// reported by the browser's /json endpoint
	DevToolsURL string

	Listen string

	DryRun bool

	SettleShortMs    int
	SettleLongMs     int
	SelectionRetries int

	Loglevel *string
}

func ReadConfig(filename string) (*Config, error) {
	config := &Config{
		Database:         "rules.db",
		Listen:           "127.0.0.1:8078",
		SettleShortMs:    400,
		SettleLongMs:     1500,
		SelectionRetries: 5,
		DryRun:           true,
	}

	_, err := toml.DecodeFile(filename, config)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if err := validateNonEmptyStringField(c.Database, "Database name must not be empty, set to a filename for the sqlite database"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.DevToolsURL, "DevToolsURL must not be empty, set to the webSocketDebuggerUrl of the mail client tab"); err != nil {
		return err
	}

	if !strings.HasPrefix(c.DevToolsURL, "ws://") && !strings.HasPrefix(c.DevToolsURL, "wss://") {
		return fmt.Errorf("DevToolsURL must be a ws:// or wss:// url")
	}

	if err := validateNonEmptyStringField(c.Listen, "Listen must not be empty, set to host:port for the local api"); err != nil {
		return err
	}

	if c.SettleShortMs < 0 || c.SettleLongMs < 0 {
		return fmt.Errorf("settle delays cannot be negative")
	}

	if c.SelectionRetries < 0 {
		return fmt.Errorf("SelectionRetries cannot be negative")
	}

	return nil
}

func validateNonEmptyStringField(field string, err string) error {
	if len(strings.TrimSpace(field)) == 0 {
		return errors.New(err)
	}

	return nil
}

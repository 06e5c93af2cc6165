// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"time"

	"github.com/sweepkit/go-webmail-sweeper/browser"
	"github.com/sweepkit/go-webmail-sweeper/config"
	"github.com/sweepkit/go-webmail-sweeper/log"
	"github.com/sweepkit/go-webmail-sweeper/persistence"
	"github.com/sweepkit/go-webmail-sweeper/server"
	"github.com/sweepkit/go-webmail-sweeper/sweeper"
	"github.com/sweepkit/go-webmail-sweeper/webmail"

	"github.com/sirupsen/logrus"
)

func main() {
	log.InitLogging("debug")
	logger := log.Logger(log.LOG_MAIN)

	conf, err := config.ReadConfig("config.toml")
	if err != nil {
		logger.WithField("error", err).Fatal("Could not load config")
	}

	if conf.Loglevel != nil {
		log.SetLogLevel(*conf.Loglevel)
	}

	p, err := persistence.NewPersistence(conf.Database)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not connect to database")
	}
	defer p.Close()

	client, err := browser.Connect(conf.DevToolsURL)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not connect to browser")
	}
	defer client.Close()

	page := webmail.NewPage(client)
	page.SetDelays(time.Duration(conf.SettleShortMs)*time.Millisecond, time.Duration(conf.SettleLongMs)*time.Millisecond)

	configs := []sweeper.ConfigFunc{}
	if conf.DryRun {
		configs = append(configs, sweeper.DryRun())
	}
	configs = append(configs,
		sweeper.SelectionRetries(conf.SelectionRetries, 500*time.Millisecond),
		sweeper.SettleDelay(time.Duration(conf.SettleShortMs)*time.Millisecond),
	)

	sw, err := sweeper.NewSweeper(page, configs...)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not start sweeper")
	}

	if conf.DryRun {
		logger.Warn("Dry-run is enabled, no actions will be invoked on the page")
	}

	logger.WithFields(logrus.Fields{"listen": conf.Listen, "devtools": conf.DevToolsURL, "dryrun": conf.DryRun}).Info("Starting")
	s := server.NewServer(p, page, sw)
	err = s.Run(conf.Listen)
	if err != nil {
		logger.WithField("error", err).Fatal("Server failed")
	}
}

// SPDX-License-Identifier: GPL-3.0-or-later

// Package server exposes the engine to the extension surfaces over a
// local JSON api. The /api/message endpoint mirrors the message-passing
// shape the popup speaks: one request object with an action field.
package server

import (
	"net/http"
	"sync"

	"github.com/sweepkit/go-webmail-sweeper/domain"
	"github.com/sweepkit/go-webmail-sweeper/log"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Runner executes one orchestration pass. Implemented by
// sweeper.Sweeper.
type Runner interface {
	Run(rules []*domain.Rule) *domain.RunResult
}

type Server struct {
	engine *gin.Engine
	store  domain.RuleStore
	page   domain.MailPage
	runner Runner

	// one run at a time; overlapping run requests are rejected
	running sync.Mutex

	l *logrus.Logger
}

func NewServer(store domain.RuleStore, page domain.MailPage, runner Runner) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		store:  store,
		page:   page,
		runner: runner,
		l:      log.Logger(log.LOG_SERVER),
	}

	api := engine.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		api.POST("/message", s.handleMessage)

		api.GET("/rules", s.listRules)
		api.POST("/rules", s.createRule)
		api.PUT("/rules/:id", s.updateRule)
		api.DELETE("/rules/:id", s.deleteRule)
		api.GET("/rules/export", s.exportRules)
		api.POST("/rules/import", s.importRules)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run(listen string) error {
	s.l.WithField("listen", listen).Info("Serving api")
	return s.engine.Run(listen)
}

type message struct {
	Action string         `json:"action"`
	Rules  []*domain.Rule `json:"rules"`
}

func (s *Server) handleMessage(c *gin.Context) {
	msg := message{}
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch msg.Action {
	case "ping":
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case "getFolders":
		s.getFolders(c)
	case "runRules":
		s.runRules(c, msg.Rules)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action " + msg.Action})
	}
}

func (s *Server) getFolders(c *gin.Context) {
	folders, err := s.page.ListFolders()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

func (s *Server) runRules(c *gin.Context, rules []*domain.Rule) {
	if !s.running.TryLock() {
		c.JSON(http.StatusConflict, domain.RunResult{
			Success: false,
			Message: "a run is already in progress",
			Results: []domain.RuleResult{},
		})
		return
	}
	defer s.running.Unlock()

	if rules == nil {
		stored, err := s.store.EnabledRules()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		rules = stored
	}

	s.l.WithField("rules", len(rules)).Info("Starting run")
	result := s.runner.Run(rules)

	// cosmetic side effect, never allowed to change the result
	if err := s.page.ShowNotification(result.Message); err != nil {
		s.l.WithField("error", err).Warn("Could not show notification")
	}

	s.l.WithFields(logrus.Fields{"success": result.Success, "message": result.Message}).Info("Run finished")
	c.JSON(http.StatusOK, result)
}

func (s *Server) listRules(c *gin.Context) {
	rules, err := s.store.AllRules()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (s *Server) createRule(c *gin.Context) {
	rule := domain.Rule{}
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := s.store.SaveRule(&rule)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, saved)
}

func (s *Server) updateRule(c *gin.Context) {
	rule := domain.Rule{}
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule.Id = c.Param("id")
	saved, err := s.store.SaveRule(&rule)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, saved)
}

func (s *Server) deleteRule(c *gin.Context) {
	err := s.store.DeleteRule(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) exportRules(c *gin.Context) {
	rules, err := s.store.AllRules()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

type importRequest struct {
	Rules []*domain.Rule `json:"rules"`
}

func (s *Server) importRules(c *gin.Context) {
	req := importRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.ReplaceRules(req.Rules); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": len(req.Rules)})
}

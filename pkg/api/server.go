// Package api exposes the control plane's HTTP surface: the Alertmanager
// webhook, reply processing, and read endpoints for rules, playbooks,
// runs, and approvals.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/medik/pkg/approval"
	"github.com/codeready-toolchain/medik/pkg/executor"
	"github.com/codeready-toolchain/medik/pkg/ingress"
	"github.com/codeready-toolchain/medik/pkg/playbook"
	"github.com/codeready-toolchain/medik/pkg/rules"
	"github.com/codeready-toolchain/medik/pkg/storage"
)

// Server is the HTTP API server.
type Server struct {
	processor *ingress.Processor
	approvals *approval.Manager
	engine    *rules.Engine
	registry  *playbook.Registry
	executor  *executor.Executor
	db        *storage.Client

	httpServer *http.Server
}

// NewServer creates the API server. db may be nil when no database is
// configured; history endpoints then report the store as disabled.
func NewServer(
	processor *ingress.Processor,
	approvals *approval.Manager,
	engine *rules.Engine,
	registry *playbook.Registry,
	exec *executor.Executor,
	db *storage.Client,
) *Server {
	return &Server{
		processor: processor,
		approvals: approvals,
		engine:    engine,
		registry:  registry,
		executor:  exec,
		db:        db,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), securityHeaders())

	router.GET("/healthz", s.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/webhooks/alertmanager", s.AlertmanagerWebhook)
		v1.POST("/replies", s.ProcessReply)

		v1.GET("/rules", s.ListRules)
		v1.POST("/rules", s.AddRule)
		v1.DELETE("/rules/:id", s.RemoveRule)

		v1.GET("/playbooks", s.ListPlaybooks)
		v1.GET("/runs/:id", s.GetRun)
		v1.GET("/approvals", s.ListApprovals)
		v1.GET("/events", s.RecentEvents)
	}
	return router
}

// Start runs the HTTP server on addr. Blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

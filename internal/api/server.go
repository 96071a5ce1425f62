// Package api exposes the webhook HTTP surface: one POST route per tenant,
// a per-tenant health check, and process liveness.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marcAnfuso/api-casinos/internal/biz/domain"
	"github.com/marcAnfuso/api-casinos/internal/biz/repo"
	"github.com/marcAnfuso/api-casinos/internal/biz/usecase"
)

// Processor handles one normalized event for a resolved tenant.
type Processor interface {
	Process(ctx context.Context, tenant *domain.Tenant, ev *domain.Event) (usecase.Outcome, error)
}

// Resolver selects tenant configuration for a webhook route.
type Resolver interface {
	Known(route string) bool
	Entries(route string) []*domain.Tenant
	Resolve(ctx context.Context, route string, leadID int64) (*domain.Tenant, error)
}

// WebhookResponse is the JSON envelope for every webhook reply.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Server is the webhook HTTP server.
type Server struct {
	resolver Resolver
	proof    Processor
	journal  repo.JournalRepo

	engine *gin.Engine
	server *http.Server
	port   int
}

// NewServer creates the HTTP server. journal may be nil.
func NewServer(resolver Resolver, proof Processor, journal repo.JournalRepo, port int, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		resolver: resolver,
		proof:    proof,
		journal:  journal,
		port:     port,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if debug {
		engine.Use(gin.Logger())
	}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.POST("/webhook/:tenant", s.handleWebhook)
	engine.GET("/webhook/:tenant", s.handleTenantHealth)

	s.engine = engine
	return s
}

// Handler returns the underlying HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

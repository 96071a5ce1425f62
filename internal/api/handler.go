package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/marcAnfuso/api-casinos/internal/biz/repo"
	"github.com/marcAnfuso/api-casinos/internal/biz/usecase"
	"github.com/marcAnfuso/api-casinos/internal/webhook"
)

// handleWebhook processes one inbound CRM webhook delivery.
//
// The CRM retries aggressively on non-2xx, so every parseable event is
// answered 200, including "nothing to do" and upstream failures. 4xx is
// reserved for genuinely malformed bodies, 404 for unconfigured tenants.
func (s *Server) handleWebhook(c *gin.Context) {
	route := c.Param("tenant")
	if !s.resolver.Known(route) {
		c.JSON(http.StatusNotFound, WebhookResponse{
			Success: false,
			Message: "unknown tenant: " + route,
		})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, WebhookResponse{Success: false, Message: "unreadable request body"})
		return
	}

	ev, err := webhook.Normalize(c.ContentType(), body)
	switch {
	case errors.Is(err, webhook.ErrUnrecognized):
		c.JSON(http.StatusBadRequest, WebhookResponse{Success: false, Message: "unrecognized payload format"})
		return
	case errors.Is(err, webhook.ErrNoLead):
		// Non-actionable, but the sender must not retry it.
		c.JSON(http.StatusOK, WebhookResponse{Success: true, Message: "no lead in event, nothing to do"})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, WebhookResponse{Success: false, Message: "invalid payload"})
		return
	}

	if !ev.Incoming {
		c.JSON(http.StatusOK, WebhookResponse{Success: true, Message: "outgoing message, nothing to do"})
		return
	}

	ctx := c.Request.Context()
	tenant, err := s.resolver.Resolve(ctx, route, ev.LeadID)
	if err != nil {
		if errors.Is(err, usecase.ErrPipelineMismatch) {
			log.Printf("[Webhook] route=%s lead=%d dropped: %v", route, ev.LeadID, err)
			c.JSON(http.StatusOK, WebhookResponse{Success: true, Message: "event outside configured pipelines, dropped"})
			return
		}
		log.Printf("[Webhook] route=%s lead=%d resolve failed: %v", route, ev.LeadID, err)
		c.JSON(http.StatusOK, WebhookResponse{Success: false, Message: "tenant resolution unavailable, event skipped"})
		return
	}

	outcome, err := s.proof.Process(ctx, tenant, ev)
	if err != nil {
		log.Printf("[Webhook] tenant=%s lead=%d processing failed: %v", tenant.Name, ev.LeadID, err)
		c.JSON(http.StatusOK, WebhookResponse{Success: false, Message: "event could not be evaluated, no changes made"})
		return
	}

	s.record(c, tenant.Name, outcome)

	log.Printf("[Webhook] tenant=%s lead=%d source=%s action=%s stage=%d retries=%d",
		tenant.Name, ev.LeadID, ev.Source, outcome.Action, outcome.StageID, outcome.RetryCount)

	c.JSON(http.StatusOK, WebhookResponse{
		Success: true,
		Message: "event processed",
		Data: gin.H{
			"lead_id":     outcome.LeadID,
			"action":      outcome.Action,
			"stage_id":    outcome.StageID,
			"retry_count": outcome.RetryCount,
		},
	})
}

// record journals the delivery. Best-effort: the journal is an audit aid.
func (s *Server) record(c *gin.Context, tenant string, outcome usecase.Outcome) {
	if s.journal == nil {
		return
	}
	rec := repo.DeliveryRecord{
		ID:        uuid.NewString(),
		Tenant:    tenant,
		LeadID:    outcome.LeadID,
		Action:    string(outcome.Action),
		Outcome:   outcome.Reason,
		CreatedAt: time.Now(),
	}
	if err := s.journal.Record(c.Request.Context(), rec); err != nil {
		log.Printf("[Webhook] journal write failed: %v", err)
	}
}

// handleTenantHealth reports tenant configuration status. Secrets are never
// included.
func (s *Server) handleTenantHealth(c *gin.Context) {
	route := c.Param("tenant")
	entries := s.resolver.Entries(route)
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, WebhookResponse{
			Success: false,
			Message: "unknown tenant: " + route,
		})
		return
	}

	configs := make([]gin.H, 0, len(entries))
	for _, t := range entries {
		cfg := gin.H{
			"name":        t.Name,
			"subdomain":   t.Subdomain,
			"max_retries": t.MaxRetries,
			"backend":     t.Backend != nil,
			"attribution": t.Attribution != nil,
		}
		if t.PipelineID != 0 {
			cfg["pipeline_id"] = t.PipelineID
		}
		if s.journal != nil {
			if stats, err := s.journal.TenantStats(c.Request.Context(), t.Name); err == nil {
				cfg["deliveries"] = stats
			}
		}
		configs = append(configs, cfg)
	}

	c.JSON(http.StatusOK, WebhookResponse{
		Success: true,
		Message: "tenant configured",
		Data:    gin.H{"route": route, "tenants": configs},
	})
}

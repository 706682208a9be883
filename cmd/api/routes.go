package main

import (
	"voice-agent-admin/internal/httpapi"
	"voice-agent-admin/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: should be protected by provider signature validation in production.
	r.POST("/webhooks/voice", h.VoiceWebhook)
	r.GET("/webhooks/voice/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy", "service": "voice webhook handler"})
	})

	v1 := r.Group("/api/v1")

	// Token issuance is the only unauthenticated v1 surface.
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
	}

	protected := v1.Group("")
	protected.Use(authMW)
	{
		// AGENT CONFIGURATION routes
		configs := protected.Group("/agent-configs")
		{
			configs.GET("", rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleViewer), h.ListAgentConfigs)
			configs.GET("/active/current", rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleViewer), h.GetActiveAgentConfig)
			configs.GET("/:id", rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleViewer), h.GetAgentConfig)

			configs.POST("", rbac.RequireAnyRole(rbac.RoleOperator), h.CreateAgentConfig)
			configs.PUT("/:id", rbac.RequireAnyRole(rbac.RoleOperator), h.UpdateAgentConfig)
			configs.DELETE("/:id", rbac.RequireAnyRole(rbac.RoleOperator), h.DeleteAgentConfig)
			configs.POST("/:id/activate", rbac.RequireAnyRole(rbac.RoleOperator), h.ActivateAgentConfig)
			configs.POST("/:id/publish", rbac.RequireAnyRole(rbac.RoleOperator), h.PublishAgentConfig)
		}

		// PROVIDER AGENT routes (read-only pass-through)
		agents := protected.Group("/agents")
		agents.Use(rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleViewer))
		{
			agents.GET("", h.ListProviderAgents)
			agents.GET("/:agent_id", h.GetProviderAgent)
		}

		// CALL routes
		callsGroup := protected.Group("/calls")
		{
			callsGroup.GET("", rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleViewer), h.ListCalls)
			callsGroup.GET("/agent/:config_id", rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleViewer), h.ListCallsForConfig)
			callsGroup.GET("/:call_id", rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleViewer), h.GetCall)
			callsGroup.GET("/:call_id/status", rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleViewer), h.GetCallStatus)

			callsGroup.POST("/trigger", rbac.RequireAnyRole(rbac.RoleOperator), h.TriggerCall)
			callsGroup.POST("/web-call", rbac.RequireAnyRole(rbac.RoleOperator), h.CreateWebCall)
			callsGroup.POST("/:call_id/end", rbac.RequireAnyRole(rbac.RoleOperator), h.EndCall)
			callsGroup.DELETE("/:call_id", rbac.RequireAnyRole(rbac.RoleOperator), h.DeleteCall)
		}

		// REPORT routes
		reports := protected.Group("/reports")
		reports.Use(rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleViewer))
		{
			reports.GET("/calls", h.CallsReport)
		}
	}
}

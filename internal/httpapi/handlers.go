package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"voice-agent-admin/internal/agentconfig"
	"voice-agent-admin/internal/auth"
	"voice-agent-admin/internal/calls"
	"voice-agent-admin/internal/reporting"
	"voice-agent-admin/internal/voice"
	"voice-agent-admin/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth    *auth.Manager
	Configs *agentconfig.Service
	Calls   *calls.Service
	Voice   *voice.Client
	Reports *reporting.Service

	// Deduper is optional; nil disables webhook replay suppression.
	Deduper *utils.EventDeduper
}

// --- Auth ---

type loginRequest struct {
	OperatorID  string `json:"operator_id"`
	OperatorKey string `json:"operator_key"`
	Role        string `json:"role"`
}

// Login exchanges the shared operator key for a JWT token pair.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.OperatorID == "" || req.OperatorKey == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "operator_id and operator_key required"})
		return
	}
	if err := h.Auth.CheckOperatorKey(req.OperatorKey); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid operator key"})
		return
	}
	role := req.Role
	if role == "" {
		role = "operator"
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.OperatorID, role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	Role         string `json:"role"`
}

// Refresh exchanges a refresh token for a new pair. The role is re-stated
// by the caller since refresh tokens do not carry one.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	role := req.Role
	if role == "" {
		role = "operator"
	}
	pair, err := h.Auth.IssuePair(time.Now(), claims.OperatorID, role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Agent configurations ---

func (h Handlers) CreateAgentConfig(c *gin.Context) {
	var cfg agentconfig.AgentConfiguration
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	created, err := h.Configs.Create(c.Request.Context(), cfg)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h Handlers) ListAgentConfigs(c *gin.Context) {
	list, err := h.Configs.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h Handlers) GetAgentConfig(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	cfg, err := h.Configs.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h Handlers) GetActiveAgentConfig(c *gin.Context) {
	cfg, err := h.Configs.GetActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h Handlers) UpdateAgentConfig(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var patch agentconfig.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cfg, err := h.Configs.Update(c.Request.Context(), id, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h Handlers) DeleteAgentConfig(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Configs.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h Handlers) ActivateAgentConfig(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	cfg, err := h.Configs.Activate(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h Handlers) PublishAgentConfig(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	cfg, err := h.Configs.Publish(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// --- Provider agents (pass-through) ---

func (h Handlers) ListProviderAgents(c *gin.Context) {
	agents, err := h.Voice.ListAgents(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, agents)
}

func (h Handlers) GetProviderAgent(c *gin.Context) {
	agent, err := h.Voice.GetAgent(c.Request.Context(), c.Param("agent_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

// --- Calls ---

type triggerCallRequest struct {
	DriverName           string `json:"driver_name"`
	PhoneNumber          string `json:"phone_number"`
	LoadNumber           string `json:"load_number"`
	AgentConfigID        int64  `json:"agent_config_id"`
	DeliveryAddress      string `json:"delivery_address,omitempty"`
	ExpectedDeliveryTime string `json:"expected_delivery_time,omitempty"`
	SpecialInstructions  string `json:"special_instructions,omitempty"`
}

func (h Handlers) TriggerCall(c *gin.Context) {
	var req triggerCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rec, err := h.Calls.Trigger(c.Request.Context(), calls.TriggerRequest{
		DriverName:           req.DriverName,
		PhoneNumber:          req.PhoneNumber,
		LoadNumber:           req.LoadNumber,
		AgentConfigID:        req.AgentConfigID,
		DeliveryAddress:      req.DeliveryAddress,
		ExpectedDeliveryTime: req.ExpectedDeliveryTime,
		SpecialInstructions:  req.SpecialInstructions,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h Handlers) ListCalls(c *gin.Context) {
	limit := queryInt(c, "limit")
	if configID := queryInt64(c, "agent_config_id"); configID > 0 {
		list, err := h.Calls.ListByConfig(c.Request.Context(), configID, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
		return
	}
	list, err := h.Calls.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h Handlers) GetCall(c *gin.Context) {
	rec, err := h.Calls.Get(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) DeleteCall(c *gin.Context) {
	if err := h.Calls.Delete(c.Request.Context(), c.Param("call_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListCallsForConfig lists the call records that reference one
// configuration.
func (h Handlers) ListCallsForConfig(c *gin.Context) {
	configID, err := strconv.ParseInt(c.Param("config_id"), 10, 64)
	if err != nil || configID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid config id"})
		return
	}
	list, err := h.Calls.ListByConfig(c.Request.Context(), configID, queryInt(c, "limit"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h Handlers) GetCallStatus(c *gin.Context) {
	view, err := h.Calls.GetStatus(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h Handlers) EndCall(c *gin.Context) {
	rec, err := h.Calls.EndCall(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type webCallRequest struct {
	AgentConfigID int64 `json:"agent_config_id"`
}

// CreateWebCall relays a browser-join token for the configuration's
// published agent. Nothing is persisted; web calls are test sessions.
func (h Handlers) CreateWebCall(c *gin.Context) {
	var req webCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AgentConfigID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "agent_config_id required"})
		return
	}
	agentID, err := h.Configs.ExternalAgentID(c.Request.Context(), req.AgentConfigID)
	if err != nil {
		writeError(c, err)
		return
	}
	if agentID == "" {
		writeError(c, calls.ErrConfigNotPublished)
		return
	}
	web, err := h.Voice.CreateWebCall(c.Request.Context(), voice.WebCallRequest{AgentID: agentID})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, web)
}

// --- Reports ---

func (h Handlers) CallsReport(c *gin.Context) {
	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		AgentConfigID: queryInt64(c, "agent_config_id"),
		Limit:         queryInt(c, "limit"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- helpers ---

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}

func queryInt64(c *gin.Context, key string) int64 {
	n, _ := strconv.ParseInt(c.Query(key), 10, 64)
	return n
}

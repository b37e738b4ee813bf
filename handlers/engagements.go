package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matchbase/marketplace/internal/engagement"
	"github.com/matchbase/marketplace/internal/gate"
	"github.com/matchbase/marketplace/internal/models"
)

type EngagementsHandler struct {
	gate *gate.Gate
	svc  *engagement.Service
}

func NewEngagementsHandler(g *gate.Gate, svc *engagement.Service) *EngagementsHandler {
	return &EngagementsHandler{gate: g, svc: svc}
}

func (h *EngagementsHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/engagements/:kind/:index/:id", h.Add)
	rg.DELETE("/engagements/:kind/:index/:id", h.Remove)
	rg.POST("/requests/:id", h.Request)
	rg.PUT("/requests/:id", h.Respond)
}

// actor authorizes the caller against req. New engagement needs a full
// subscription; withdrawing and answering stay open to lapsed accounts.
func (h *EngagementsHandler) actor(c *gin.Context, req gate.Requirements) (engagement.Actor, bool) {
	cl := caller(c)
	if _, err := h.gate.Check(c.Request.Context(), cl, req); err != nil {
		respondError(c, err)
		return engagement.Actor{}, false
	}
	return engagement.Actor{UID: cl.UID, Kind: cl.Kind}, true
}

func (h *EngagementsHandler) Add(c *gin.Context) {
	actor, ok := h.actor(c, gate.Write)
	if !ok {
		return
	}
	kind := models.EngagementKind(c.Param("kind"))
	if kind == models.EngageRequest {
		badRequest(c, "use the requests endpoint")
		return
	}
	changed, err := h.svc.Add(c.Request.Context(), actor, kind, c.Param("index"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

func (h *EngagementsHandler) Remove(c *gin.Context) {
	actor, ok := h.actor(c, gate.Manage)
	if !ok {
		return
	}
	changed, err := h.svc.Remove(c.Request.Context(), actor, models.EngagementKind(c.Param("kind")), c.Param("index"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

// counterpart is the account kind a caller of kind sends requests to.
func counterpart(kind models.AccountKind) models.AccountKind {
	if kind == models.KindOrganization {
		return models.KindIndividual
	}
	return models.KindOrganization
}

// Request sends a request from the caller to the account :id of the other kind.
func (h *EngagementsHandler) Request(c *gin.Context) {
	actor, ok := h.actor(c, gate.Write)
	if !ok {
		return
	}
	target := counterpart(actor.Kind)
	if _, err := h.gate.Account(c.Request.Context(), target, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	changed, err := h.svc.Add(c.Request.Context(), actor, models.EngageRequest, string(target), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

// Respond answers the pending request sent to the caller by :id with
// {"status": "enable"|"disable"}.
func (h *EngagementsHandler) Respond(c *gin.Context) {
	actor, ok := h.actor(c, gate.Manage)
	if !ok {
		return
	}
	var req struct {
		Status models.Status `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.svc.Respond(c.Request.Context(), actor, c.Param("id"), req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

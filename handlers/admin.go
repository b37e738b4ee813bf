package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/matchbase/marketplace/internal/accounts"
	"github.com/matchbase/marketplace/internal/apperr"
	"github.com/matchbase/marketplace/internal/engagement"
	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/internal/oplog"
	"github.com/matchbase/marketplace/internal/projection"
	"github.com/matchbase/marketplace/internal/reconcile"
)

// AdminHandler serves operator endpoints behind a service token.
type AdminHandler struct {
	accounts   *accounts.Service
	reconciler *reconcile.Reconciler
	writer     *projection.Writer
	log        *oplog.Log
	engagement *engagement.Service
}

func NewAdminHandler(a *accounts.Service, r *reconcile.Reconciler, w *projection.Writer, log *oplog.Log, e *engagement.Service) *AdminHandler {
	return &AdminHandler{accounts: a, reconciler: r, writer: w, log: log, engagement: e}
}

func (h *AdminHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/reconcile", h.ReconcileAll)
	rg.POST("/reconcile/:uid", h.Reconcile)
	rg.POST("/repair", h.Repair)
	rg.GET("/logs", h.Logs)
	rg.POST("/subscriptions", h.Subscription)
	rg.POST("/accounts/:index/:id/status", h.SetStatus)
	rg.GET("/counters", h.Counters)
}

func limitParam(c *gin.Context, def int) int {
	n, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Reconcile handles POST /reconcile/:uid?index=. Without an index both
// account kinds are tried.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	kinds := []models.AccountKind{models.KindOrganization, models.KindIndividual}
	if idx := c.Query("index"); idx != "" {
		kinds = []models.AccountKind{models.AccountKind(idx)}
		if !kinds[0].Valid() {
			badRequest(c, "unknown index")
			return
		}
	}
	var err error
	for _, kind := range kinds {
		var rep *reconcile.Report
		rep, err = h.reconciler.ReconcileAccount(c.Request.Context(), kind, c.Param("uid"))
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"report": rep})
			return
		}
		if !apperr.IsKind(err, apperr.KindNotFound) {
			break
		}
	}
	respondError(c, err)
}

func (h *AdminHandler) ReconcileAll(c *gin.Context) {
	sum, err := h.reconciler.ReconcileAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": sum})
}

func (h *AdminHandler) Repair(c *gin.Context) {
	res, err := h.writer.Repair(c.Request.Context(), limitParam(c, 500))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"repair": res})
}

func (h *AdminHandler) Logs(c *gin.Context) {
	entries, err := h.log.Pending(c.Request.Context(), c.DefaultQuery("kind", oplog.KindProjection), limitParam(c, 100))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries})
}

// Subscription applies a billing transition posted by the payment webhook relay.
func (h *AdminHandler) Subscription(c *gin.Context) {
	var ev accounts.SubscriptionEvent
	if err := c.ShouldBindJSON(&ev); err != nil || ev.UID == "" {
		badRequest(c, "uid and status are required")
		return
	}
	a, err := h.accounts.ApplySubscription(c.Request.Context(), ev)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": a})
}

func (h *AdminHandler) SetStatus(c *gin.Context) {
	var req struct {
		Status models.Status `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	kind := models.AccountKind(c.Param("index"))
	if !kind.Valid() {
		badRequest(c, "unknown index")
		return
	}
	if err := h.accounts.SetStatus(c.Request.Context(), kind, c.Param("id"), req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Counters handles GET /counters?kind=&index=&objectID=&uid=&window=.
func (h *AdminHandler) Counters(c *gin.Context) {
	w, err := engagement.ParseWindow(c.Query("window"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	kind := models.EngagementKind(c.Query("kind"))
	if kind == "" {
		badRequest(c, "kind is required")
		return
	}
	n, err := h.engagement.Count(c.Request.Context(), engagement.Counter{
		Kind:     kind,
		Index:    c.Query("index"),
		ObjectID: c.Query("objectID"),
		UID:      c.Query("uid"),
		Window:   w,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "window": w, "count": n})
}

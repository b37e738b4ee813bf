package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/matchbase/marketplace/internal/listings"
)

type ListingsHandler struct {
	svc *listings.Service
}

func NewListingsHandler(svc *listings.Service) *ListingsHandler {
	return &ListingsHandler{svc: svc}
}

// Register mounts the listing routes on a caller-kind group.
func (h *ListingsHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/listings")
	l.GET("/:index", h.Search)
	l.GET("/:index/:id", h.Get)
	l.POST("/:index", h.Create)
	l.POST("/:index/batch", h.Batch)
	l.PATCH("/:index/:id", h.Update)
	l.DELETE("/:index/:id", h.Delete)

	rg.GET("/me/listings/:index", h.Owned)
	rg.GET("/me/likes/:index", h.Liked)
}

// Search handles GET /listings/:index?q=&handles=&location=&remote=&position=&uid=&page=
func (h *ListingsHandler) Search(c *gin.Context) {
	q := listings.Query{
		Text:     c.Query("q"),
		Location: c.Query("location"),
		Remote:   c.Query("remote"),
		Position: c.Query("position"),
		UID:      c.Query("uid"),
		Page:     pageParam(c),
	}
	if hs := c.Query("handles"); hs != "" {
		q.Handles = strings.Split(hs, ",")
	}
	views, page, err := h.svc.Search(c.Request.Context(), caller(c), c.Param("index"), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": views, "hit": page})
}

func (h *ListingsHandler) Get(c *gin.Context) {
	v, err := h.svc.Get(c.Request.Context(), caller(c), c.Param("index"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": v})
}

// Batch handles POST /listings/:index/batch with {"ids": [...], "page": n}.
func (h *ListingsHandler) Batch(c *gin.Context) {
	var req struct {
		IDs  []string `json:"ids"`
		Page int      `json:"page"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	views, page, err := h.svc.Batch(c.Request.Context(), caller(c), c.Param("index"), req.IDs, req.Page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": views, "hit": page})
}

func (h *ListingsHandler) Owned(c *gin.Context) {
	views, page, err := h.svc.Owned(c.Request.Context(), caller(c), c.Param("index"), pageParam(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": views, "hit": page})
}

func (h *ListingsHandler) Liked(c *gin.Context) {
	views, page, err := h.svc.Liked(c.Request.Context(), caller(c), c.Param("index"), pageParam(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": views, "hit": page})
}

func (h *ListingsHandler) Create(c *gin.Context) {
	var in listings.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	l, err := h.svc.Create(c.Request.Context(), caller(c), c.Param("index"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": l})
}

func (h *ListingsHandler) Update(c *gin.Context) {
	var in listings.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	l, err := h.svc.Update(c.Request.Context(), caller(c), c.Param("index"), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": l})
}

func (h *ListingsHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), caller(c), c.Param("index"), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

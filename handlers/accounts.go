package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matchbase/marketplace/internal/accounts"
	"github.com/matchbase/marketplace/internal/models"
)

type AccountsHandler struct {
	svc *accounts.Service
}

func NewAccountsHandler(svc *accounts.Service) *AccountsHandler {
	return &AccountsHandler{svc: svc}
}

// Register mounts the account routes on a caller-kind group.
func (h *AccountsHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/accounts/:index", h.Search)
	rg.GET("/accounts/:index/:id", h.Get)

	rg.GET("/me", h.Me)
	rg.POST("/me", h.SignUp)
	rg.PATCH("/me", h.UpdateProfile)
	rg.DELETE("/me", h.Delete)
	rg.POST("/me/agree", h.AcceptTerms)
	rg.POST("/me/icon", h.UploadIcon)

	rg.POST("/children/:id", h.LinkChild)
	rg.DELETE("/children/:id", h.UnlinkChild)
}

// RegisterIcons mounts the public icon redirect, which image tags reach
// without credentials.
func (h *AccountsHandler) RegisterIcons(r gin.IRouter) {
	r.GET("/api/v1/icons/:index/:id", h.Icon)
}

func (h *AccountsHandler) Search(c *gin.Context) {
	views, page, err := h.svc.Search(c.Request.Context(), caller(c), models.AccountKind(c.Param("index")), c.Query("q"), pageParam(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": views, "hit": page})
}

func (h *AccountsHandler) Get(c *gin.Context) {
	v, err := h.svc.Get(c.Request.Context(), caller(c), models.AccountKind(c.Param("index")), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": v})
}

func (h *AccountsHandler) Me(c *gin.Context) {
	v, err := h.svc.Me(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": v})
}

// SignUp handles POST /me.
func (h *AccountsHandler) SignUp(c *gin.Context) {
	var in accounts.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	a, err := h.svc.Register(c.Request.Context(), caller(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": a})
}

func (h *AccountsHandler) UpdateProfile(c *gin.Context) {
	var in accounts.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	a, err := h.svc.UpdateProfile(c.Request.Context(), caller(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": a})
}

func (h *AccountsHandler) AcceptTerms(c *gin.Context) {
	if err := h.svc.AcceptTerms(c.Request.Context(), caller(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AccountsHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), caller(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadIcon handles a multipart upload in the "file" field.
func (h *AccountsHandler) UploadIcon(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "unreadable file")
		return
	}
	defer f.Close()
	path, err := h.svc.UploadIcon(c.Request.Context(), caller(c), f, fh.Size, fh.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"icon": path})
}

func (h *AccountsHandler) Icon(c *gin.Context) {
	u, err := h.svc.IconURL(c.Request.Context(), models.AccountKind(c.Param("index")), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, u)
}

func (h *AccountsHandler) LinkChild(c *gin.Context) {
	if err := h.svc.LinkChild(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AccountsHandler) UnlinkChild(c *gin.Context) {
	if err := h.svc.UnlinkChild(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/pkg/middleware"
)

// Router bundles the route handlers and the middleware guarding them.
type Router struct {
	Listings    *ListingsHandler
	Accounts    *AccountsHandler
	Engagements *EngagementsHandler
	Admin       *AdminHandler

	// Auth authenticates domain callers; AdminAuth authenticates service
	// tokens. RateLimit is optional.
	Auth      gin.HandlerFunc
	AdminAuth gin.HandlerFunc
	RateLimit gin.HandlerFunc
}

// Register mounts /api/v1/companys and /api/v1/persons (the caller's account
// kind follows from the group), /api/v1/admin and the public icon route.
func (rt Router) Register(r *gin.Engine) {
	for _, kind := range []models.AccountKind{models.KindOrganization, models.KindIndividual} {
		chain := []gin.HandlerFunc{rt.Auth, AsKind(kind)}
		if rt.RateLimit != nil {
			chain = append(chain, rt.RateLimit)
		}
		g := r.Group("/api/v1/"+string(kind), chain...)
		rt.Listings.Register(g)
		rt.Accounts.Register(g)
		rt.Engagements.Register(g)
	}
	rt.Accounts.RegisterIcons(r)

	if rt.Admin != nil && rt.AdminAuth != nil {
		rt.Admin.Register(r.Group("/api/v1/admin", rt.AdminAuth, middleware.RequireScope(middleware.ScopeAdmin)))
	}
}

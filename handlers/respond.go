package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/matchbase/marketplace/internal/apperr"
	"github.com/matchbase/marketplace/internal/gate"
	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/pkg/logger"
	"github.com/matchbase/marketplace/pkg/middleware"
)

const kindKey = "accountKind"

// AsKind marks every request of a route group as made by an account of kind.
func AsKind(kind models.AccountKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(kindKey, kind)
		c.Next()
	}
}

func caller(c *gin.Context) gate.Caller {
	kind, _ := c.Get(kindKey)
	k, _ := kind.(models.AccountKind)
	return gate.Caller{UID: middleware.Subject(c), Kind: k}
}

type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
	Origin  string      `json:"origin"`
}

// respondError writes err as {"error": {kind, message, origin}}. Errors
// outside the taxonomy are logged and reported without detail.
func respondError(c *gin.Context, err error) {
	if e, ok := apperr.As(err); ok {
		if e.Kind == apperr.KindDataLoss {
			logger.Errorw("request failed", "path", c.FullPath(), "origin", e.Origin, "err", err)
		}
		c.JSON(apperr.HTTPStatus(e.Kind), gin.H{"error": errorBody{Kind: e.Kind, Message: e.Message, Origin: e.Origin}})
		return
	}
	logger.Errorw("request failed", "path", c.FullPath(), "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": errorBody{Kind: "internal", Message: "internal error"}})
}

func badRequest(c *gin.Context, message string) {
	respondError(c, apperr.InvalidArgument(apperr.OriginObjectID, message))
}

// pageParam reads the zero-based ?page= parameter.
func pageParam(c *gin.Context) int {
	p, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || p < 0 {
		return 0
	}
	return p
}

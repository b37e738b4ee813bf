package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the marketplace API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>marketplace API - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Paths are relative to /api/v1/{companys|persons}; the caller's account kind
// is the first path segment.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "marketplace", "version": "v1" },
  "servers": [ { "url": "/api/v1/companys" }, { "url": "/api/v1/persons" } ],
  "components": {
    "schemas": {
      "Error": { "type": "object", "properties": { "error": { "type": "object", "properties": { "kind": {"type":"string"}, "message": {"type":"string"}, "origin": {"type":"string"} } } } },
      "Hit": { "type": "object", "properties": { "currentPage": {"type":"integer"}, "posts": {"type":"integer"}, "pages": {"type":"integer"} } }
    },
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer" } }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/listings/{index}": {
      "get": { "summary": "Search public listings", "responses": { "200": { "description": "posts and hit" } } },
      "post": { "summary": "Create a listing", "responses": { "201": { "description": "created" }, "403": { "description": "subscription or limit" } } }
    },
    "/listings/{index}/{id}": {
      "get": { "summary": "Listing detail", "responses": { "200": { "description": "post" }, "404": { "description": "not found" } } },
      "patch": { "summary": "Update own listing", "responses": { "200": { "description": "updated" } } },
      "delete": { "summary": "Delete own listing", "responses": { "204": { "description": "deleted" } } }
    },
    "/listings/{index}/batch": { "post": { "summary": "Page of listings by object id", "responses": { "200": { "description": "posts and hit" } } } },
    "/engagements/{kind}/{index}/{id}": {
      "post": { "summary": "Like, output, entry, history or follow", "responses": { "200": { "description": "changed" }, "403": { "description": "subscription" }, "404": { "description": "target not found" } } },
      "delete": { "summary": "Undo an engagement", "responses": { "200": { "description": "changed" } } }
    },
    "/requests/{id}": {
      "post": { "summary": "Send a request to an account of the other kind", "responses": { "200": { "description": "changed" }, "403": { "description": "subscription" }, "404": { "description": "target not found" } } },
      "put": { "summary": "Answer a request", "responses": { "204": { "description": "answered" } } }
    },
    "/accounts/{index}": { "get": { "summary": "Search accounts", "responses": { "200": { "description": "users and hit" } } } },
    "/accounts/{index}/{id}": { "get": { "summary": "Account detail", "responses": { "200": { "description": "user" } } } },
    "/me": {
      "get": { "summary": "Own account", "responses": { "200": { "description": "user" } } },
      "post": { "summary": "Register", "responses": { "201": { "description": "user" } } },
      "patch": { "summary": "Edit profile", "responses": { "200": { "description": "user" } } },
      "delete": { "summary": "Delete own account", "responses": { "204": { "description": "deleted" } } }
    },
    "/me/agree": { "post": { "summary": "Accept the terms of use", "responses": { "200": { "description": "user" } } } },
    "/me/icon": { "post": { "summary": "Upload profile icon", "responses": { "200": { "description": "icon path" } } } },
    "/me/listings/{index}": { "get": { "summary": "Own listings", "responses": { "200": { "description": "posts and hit" } } } },
    "/me/likes/{index}": { "get": { "summary": "Liked listings", "responses": { "200": { "description": "posts and hit" } } } },
    "/children/{id}": {
      "post": { "summary": "Group an organization under the caller", "responses": { "204": { "description": "linked" } } },
      "delete": { "summary": "Ungroup an organization", "responses": { "204": { "description": "unlinked" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`

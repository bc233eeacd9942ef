package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the site API.
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
    <title>churchsite API - Swagger</title>
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

// Minimal OpenAPI document describing the public, auth and editor endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "churchsite", "version": "v1.0.0" },
  "paths": {
    "/auth/anonymous": {
      "post": { "summary": "Sign in anonymously", "responses": { "200": { "description": "tokens returned" } } }
    },
    "/auth/login": {
      "post": {
        "summary": "Password login or authorization code exchange",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"mode":{"type":"string","enum":["password","auth_code"]},"username":{"type":"string"},"password":{"type":"string"},"code":{"type":"string"},"redirect_uri":{"type":"string"}}}}}},
        "responses": { "200": { "description": "tokens returned" }, "401": { "description": "authentication failed" } }
      }
    },
    "/auth/refresh": {
      "post": { "summary": "Rotate refresh token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refreshToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "new token pair" }, "401": { "description": "invalid refresh" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Logout and revoke tokens", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refreshToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "logged out" } } }
    },
    "/api/v1/me": {
      "get": { "summary": "Current principal and admin flag", "responses": { "200": { "description": "user" }, "401": { "description": "unauthenticated" } } }
    },
    "/api/site": { "get": { "summary": "Site document prepared for display", "responses": { "200": { "description": "site" } } } },
    "/api/site/stream": { "get": { "summary": "Server-sent site updates", "responses": { "200": { "description": "event stream" } } } },
    "/api/hero-images": { "get": { "summary": "Hero carousel images", "responses": { "200": { "description": "images" } } } },
    "/api/site/sections/{key}": {
      "put": { "summary": "Save one section (admins only)", "responses": { "200": { "description": "saved" }, "403": { "description": "not an admin" }, "404": { "description": "unknown section" } } }
    },
    "/api/contact": {
      "post": { "summary": "Submit a contact message", "responses": { "201": { "description": "stored" }, "400": { "description": "invalid message" }, "429": { "description": "rate limited" } } }
    },
    "/api/editor/sessions": { "post": { "summary": "Open an editor session (admins only)", "responses": { "201": { "description": "session opened" }, "403": { "description": "not an admin" } } } },
    "/api/editor/sessions/{id}": { "delete": { "summary": "Close an editor session", "responses": { "204": { "description": "closed" } } } },
    "/api/editor/sessions/{id}/events": { "get": { "summary": "Server-sent draft, upload status and toast events", "responses": { "200": { "description": "event stream" } } } },
    "/api/editor/sessions/{id}/uploads": { "get": { "summary": "Upload status per section", "responses": { "200": { "description": "statuses" } } } },
    "/api/editor/sessions/{id}/sections/{key}": {
      "get": { "summary": "Section draft", "responses": { "200": { "description": "draft" } } },
      "put": { "summary": "Replace the draft of an object section", "responses": { "200": { "description": "draft" } } }
    },
    "/api/editor/sessions/{id}/sections/{key}/edit": { "post": { "summary": "Enter edit mode", "responses": { "200": { "description": "editing" } } } },
    "/api/editor/sessions/{id}/sections/{key}/cancel": { "post": { "summary": "Discard unsaved edits", "responses": { "200": { "description": "draft reset" } } } },
    "/api/editor/sessions/{id}/sections/{key}/save": { "post": { "summary": "Persist the draft", "responses": { "200": { "description": "saved" } } } },
    "/api/editor/sessions/{id}/sections/{key}/items": { "post": { "summary": "Add a list item", "responses": { "201": { "description": "item id" } } } },
    "/api/editor/sessions/{id}/sections/{key}/items/{itemId}": {
      "patch": { "summary": "Update a list item", "responses": { "200": { "description": "updated" } } },
      "delete": { "summary": "Delete a list item", "responses": { "204": { "description": "deleted" } } }
    },
    "/api/editor/sessions/{id}/sections/{key}/uploads": {
      "post": { "summary": "Upload an image (multipart field file, optional itemId)", "responses": { "200": { "description": "url bound to draft" }, "400": { "description": "not an image" }, "413": { "description": "too large" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/contact"
)

type ContactHandler struct {
	svc *contact.Service
}

func NewContactHandler(svc *contact.Service) *ContactHandler {
	return &ContactHandler{svc: svc}
}

// Register mounts POST /api/contact behind the given middlewares (rate limits).
func (h *ContactHandler) Register(r *gin.Engine, mw ...gin.HandlerFunc) {
	r.POST("/api/contact", append(mw, h.Submit)...)
}

func (h *ContactHandler) Submit(c *gin.Context) {
	var form contact.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.svc.Submit(c.Request.Context(), form)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": m.ID, "message": "Thank you, we will be in touch soon"})
}

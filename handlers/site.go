package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/admins"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/carousel"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/page"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/site"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/site/repository"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/middleware"
)

// SiteHandler serves the public site document and the admin save path.
type SiteHandler struct {
	repo      repository.Repository
	admins    *admins.AllowList
	hero      []carousel.Image
	keepAlive time.Duration
}

func NewSiteHandler(repo repository.Repository, allow *admins.AllowList, hero []carousel.Image) *SiteHandler {
	return &SiteHandler{repo: repo, admins: allow, hero: hero, keepAlive: 25 * time.Second}
}

func (h *SiteHandler) Register(r *gin.Engine, auth gin.HandlerFunc) {
	r.GET("/api/site", h.Get)
	r.GET("/api/site/stream", h.Stream)
	r.GET("/api/hero-images", h.HeroImages)
	r.PUT("/api/site/sections/:key", auth, h.SaveSection)
}

// Get returns the current document prepared for display.
func (h *SiteHandler) Get(c *gin.Context) {
	doc, exists, err := h.repo.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if exists {
		doc, _ = site.Migrate(doc)
		doc = site.WithDefaults(doc)
	} else {
		doc = site.Defaults()
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists, "site": site.ForDisplay(doc)})
}

// Stream pushes every document change as a server-sent "site" event.
func (h *SiteHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	ctrl := page.New(h.repo, h.admins, page.Options{})

	updates := make(chan site.Document, 1)
	cancel := ctrl.Subscribe(func(d site.Document) {
		select {
		case <-updates:
		default:
		}
		updates <- d
	})
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ctrl.Run(ctx)
	}()
	defer func() { <-done }()

	ping := time.NewTicker(h.keepAlive)
	defer ping.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case d := <-updates:
			c.SSEvent("site", site.ForDisplay(d))
			return true
		case <-ping.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}

func (h *SiteHandler) HeroImages(c *gin.Context) {
	images := h.hero
	if images == nil {
		images = []carousel.Image{}
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

// SaveSection writes one section for the authenticated admin.
func (h *SiteHandler) SaveSection(c *gin.Context) {
	var payload any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctrl := page.New(h.repo, h.admins, page.Options{User: middleware.Subject(c)})
	key := site.SectionKey(c.Param("key"))
	if err := ctrl.SaveSection(c.Request.Context(), key, payload); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"section": key, "saved": true})
}

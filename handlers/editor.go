package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/admins"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/draft"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/editor"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/page"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/site"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/upload"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/middleware"
)

// EditorHandler exposes edit mode. Only admins may open sessions.
type EditorHandler struct {
	store     *editor.Store
	admins    *admins.AllowList
	readyWait time.Duration
	keepAlive time.Duration
}

func NewEditorHandler(store *editor.Store, allow *admins.AllowList) *EditorHandler {
	return &EditorHandler{store: store, admins: allow, readyWait: 5 * time.Second, keepAlive: 25 * time.Second}
}

func (h *EditorHandler) Register(r *gin.Engine, auth gin.HandlerFunc) {
	g := r.Group("/api/editor/sessions", auth)
	g.POST("", h.Open)
	g.DELETE("/:id", h.Close)
	g.GET("/:id/events", h.session(h.Events))
	g.GET("/:id/uploads", h.session(h.UploadStatus))

	s := g.Group("/:id/sections/:key")
	s.GET("", h.section(h.GetSection))
	s.PUT("", h.section(h.PutSection))
	s.POST("/edit", h.section(h.BeginEdit))
	s.POST("/cancel", h.section(h.CancelEdit))
	s.POST("/save", h.section(h.Save))
	s.POST("/items", h.section(h.AddItem))
	s.PATCH("/items/:itemId", h.section(h.UpdateItem))
	s.DELETE("/items/:itemId", h.section(h.DeleteItem))
	s.POST("/uploads", h.section(h.Upload))
}

func (h *EditorHandler) Open(c *gin.Context) {
	sub := middleware.Subject(c)
	if !h.admins.IsAdmin(sub) {
		writeError(c, page.ErrPermissionDenied)
		return
	}
	sess := h.store.Open(sub)
	select {
	case <-sess.Ready():
	case <-time.After(h.readyWait):
	case <-c.Request.Context().Done():
	}
	c.JSON(http.StatusCreated, gin.H{"id": sess.ID(), "site": sess.Document()})
}

func (h *EditorHandler) Close(c *gin.Context) {
	if err := h.store.Close(c.Param("id"), middleware.Subject(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type sessionFunc func(c *gin.Context, s *editor.Session)

type sectionFunc func(c *gin.Context, s *editor.Session, sec *draft.Section)

func (h *EditorHandler) session(fn sessionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := h.store.Get(c.Param("id"), middleware.Subject(c))
		if err != nil {
			writeError(c, err)
			return
		}
		fn(c, s)
	}
}

func (h *EditorHandler) section(fn sectionFunc) gin.HandlerFunc {
	return h.session(func(c *gin.Context, s *editor.Session) {
		sec, err := s.Section(site.SectionKey(c.Param("key")))
		if err != nil {
			writeError(c, err)
			return
		}
		fn(c, s, sec)
	})
}

// Events streams statuses, toasts and draft changes as server-sent events.
func (h *EditorHandler) Events(c *gin.Context, s *editor.Session) {
	ctx := c.Request.Context()
	events := s.Events(ctx)
	ping := time.NewTicker(h.keepAlive)
	defer ping.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(e.Kind), e)
			return true
		case <-ping.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}

func (h *EditorHandler) UploadStatus(c *gin.Context, s *editor.Session) {
	c.JSON(http.StatusOK, s.UploadStatus())
}

func sectionView(sec *draft.Section) gin.H {
	return gin.H{
		"key":      sec.Key(),
		"draft":    sec.Draft(),
		"external": sec.External(),
		"editing":  sec.Editing(),
		"pending":  sec.Pending(),
	}
}

func (h *EditorHandler) GetSection(c *gin.Context, _ *editor.Session, sec *draft.Section) {
	c.JSON(http.StatusOK, sectionView(sec))
}

// PutSection replaces the local draft without saving it.
func (h *EditorHandler) PutSection(c *gin.Context, _ *editor.Session, sec *draft.Section) {
	var v any
	if err := c.ShouldBindJSON(&v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sec.SetDraft(v)
	c.JSON(http.StatusOK, sectionView(sec))
}

func (h *EditorHandler) BeginEdit(c *gin.Context, _ *editor.Session, sec *draft.Section) {
	sec.BeginEdit()
	c.JSON(http.StatusOK, sectionView(sec))
}

func (h *EditorHandler) CancelEdit(c *gin.Context, _ *editor.Session, sec *draft.Section) {
	sec.CancelEdit()
	c.JSON(http.StatusOK, sectionView(sec))
}

// Save persists the draft. "overwrote" is set when another editor saved the
// section after this one entered edit mode.
func (h *EditorHandler) Save(c *gin.Context, s *editor.Session, sec *draft.Section) {
	stale := sec.Stale()
	if err := sec.Save(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	if stale {
		logger.Warnf("editor session %s: %s saved over a newer version", s.ID(), sec.Key())
	}
	view := sectionView(sec)
	view["overwrote"] = stale
	c.JSON(http.StatusOK, view)
}

func (h *EditorHandler) AddItem(c *gin.Context, _ *editor.Session, sec *draft.Section) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := sec.AddItem(c.Request.Context(), fields)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *EditorHandler) UpdateItem(c *gin.Context, _ *editor.Session, sec *draft.Section) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := sec.UpdateItem(c.Request.Context(), c.Param("itemId"), fields); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sectionView(sec))
}

func (h *EditorHandler) DeleteItem(c *gin.Context, _ *editor.Session, sec *draft.Section) {
	if err := sec.DeleteItem(c.Request.Context(), c.Param("itemId")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Upload accepts multipart "file" and an optional "itemId" (empty binds to
// the pending new item).
func (h *EditorHandler) Upload(c *gin.Context, s *editor.Session, sec *draft.Section) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f := upload.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open:        func() (io.ReadCloser, error) { return fh.Open() },
	}
	res, err := s.Upload(c.Request.Context(), sec.Key(), f, c.PostForm("itemId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": res.URL, "reused": res.Reused, "digest": res.Digest})
}

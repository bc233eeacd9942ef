package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/admins"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/oidc"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/sessions"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/tokens"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/middleware"
)

// LoginRequest selects password or single sign-on login.
type LoginRequest struct {
	Mode        string `json:"mode" binding:"required"` // "password" | "auth_code"
	Username    string `json:"username"`
	Password    string `json:"password"`
	Code        string `json:"code"`         // authorization code
	RedirectURI string `json:"redirect_uri"` // redirect uri used in auth code flow
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// IdentityProvider authenticates users against the external provider.
type IdentityProvider interface {
	PasswordLogin(ctx context.Context, username, password string) (oidc.Identity, error)
	ExchangeCode(ctx context.Context, code, redirectURI string) (oidc.Identity, error)
}

// AuthHandler holds dependencies
type AuthHandler struct {
	sessionsSvc *sessions.Service
	issuer      *tokens.Issuer
	idp         IdentityProvider
	admins      *admins.AllowList
	refreshTTL  time.Duration
}

// NewAuthHandler wires the auth routes. idp may be nil, in which case only
// anonymous sign-in is available.
func NewAuthHandler(s *sessions.Service, issuer *tokens.Issuer, idp IdentityProvider, allow *admins.AllowList, refreshTTL time.Duration) *AuthHandler {
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &AuthHandler{sessionsSvc: s, issuer: issuer, idp: idp, admins: allow, refreshTTL: refreshTTL}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup, mw ...gin.HandlerFunc) {
	a := rg.Group("/auth", mw...)
	a.POST("/anonymous", h.Anonymous)
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
}

// Anonymous signs a visitor in without credentials.
func (h *AuthHandler) Anonymous(c *gin.Context) {
	h.issue(c, tokens.NewAnonymous())
}

// Login implements password grant and authorization-code exchange
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.idp == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "identity provider not configured"})
		return
	}

	var (
		id  oidc.Identity
		err error
	)
	switch req.Mode {
	case "password":
		if req.Username == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required for password mode"})
			return
		}
		id, err = h.idp.PasswordLogin(c.Request.Context(), req.Username, req.Password)
	case "auth_code":
		if req.Code == "" || req.RedirectURI == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "code and redirect_uri required for auth_code mode"})
			return
		}
		id, err = h.idp.ExchangeCode(c.Request.Context(), req.Code, req.RedirectURI)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported mode"})
		return
	}
	if err != nil {
		logger.Warnf("login (%s) failed: %v", req.Mode, err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}
	h.issue(c, tokens.Principal{Sub: id.Sub, Name: id.Name, Email: id.Email})
}

func (h *AuthHandler) issue(c *gin.Context, p tokens.Principal) {
	access, err := h.issuer.GenerateAccessToken(p)
	if err != nil {
		logger.Errorf("failed to create access token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	owner := sessions.Owner{Sub: p.Sub, Name: p.Name, Email: p.Email, Anonymous: p.Anonymous}
	rft, err := h.sessionsSvc.CreateSession(c.Request.Context(), owner, h.refreshTTL)
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  access,
		"refreshToken": rft,
		"expiresIn":    int(h.issuer.TTL().Seconds()),
		"user":         h.userView(p),
	})
}

// Refresh rotates the refresh token and returns a new access token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	next, sess, err := h.sessionsSvc.Rotate(c.Request.Context(), req.RefreshToken, h.refreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	p := tokens.Principal{Sub: sess.Sub, Name: sess.Name, Email: sess.Email, Anonymous: sess.Anonymous}
	access, err := h.issuer.GenerateAccessToken(p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": access, "refreshToken": next, "expiresIn": int(h.issuer.TTL().Seconds())})
}

// Logout invalidates the refresh token and blacklists the presented access
// token for the rest of its lifetime.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if at, ok := middleware.BearerToken(c); ok {
		if exp, err := tokenExpiry(at); err == nil {
			if ttl := time.Until(exp); ttl > 0 {
				if err := sessions.BlacklistAccessToken(c.Request.Context(), at, ttl); err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to blacklist access token"})
					return
				}
			}
		}
	}
	if err := h.sessionsSvc.DeleteRefresh(c.Request.Context(), req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated principal and its admin capability.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, _ := middleware.Claims(c)
	p, ok := tokens.PrincipalFromClaims(claims)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token has no subject"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": h.userView(p)})
}

func (h *AuthHandler) userView(p tokens.Principal) gin.H {
	return gin.H{
		"sub":       p.Sub,
		"name":      p.Name,
		"email":     p.Email,
		"anonymous": p.Anonymous,
		"admin":     h.admins.IsAdmin(p.Sub),
	}
}

// tokenExpiry reads exp without verifying the signature; it only sizes the
// blacklist entry.
func tokenExpiry(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errors.New("exp claim not present")
	}
	return exp.Time, nil
}

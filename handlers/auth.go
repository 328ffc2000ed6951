package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quantlens/quantlens/backend/gateway/internal/config"
	"github.com/quantlens/quantlens/backend/gateway/internal/plans"
	"github.com/quantlens/quantlens/backend/gateway/internal/sessions"
	"github.com/quantlens/quantlens/backend/gateway/internal/tokens"
	"github.com/quantlens/quantlens/backend/gateway/internal/users"
	"github.com/quantlens/quantlens/backend/gateway/pkg/logger"
	"github.com/quantlens/quantlens/backend/gateway/pkg/middleware"
)

// LoginRequest carries password-mode login credentials.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	DeviceID string `json:"device_id"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg      *config.Config
	usersSvc *users.Service
	mgr      *sessions.Manager
	verifier tokens.Verifier
}

func NewAuthHandler(cfg *config.Config, u *users.Service, m *sessions.Manager, v tokens.Verifier) *AuthHandler {
	return &AuthHandler{cfg: cfg, usersSvc: u, mgr: m, verifier: v}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/logout", h.Logout)
	a.POST("/logout-all", h.LogoutAll)
	a.GET("/sessions", h.Sessions)
}

// Login authenticates the credentials, mints an access token carrying the
// subscription claims and creates the server-side session the gate validates
// on every subsequent request.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := h.usersSvc.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if err == users.ErrInvalidCredentials {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed", "code": "UNAUTHORIZED"})
			return
		}
		logger.Errorf("login: user lookup failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "user store unavailable"})
		return
	}

	access, err := tokens.IssueAccessToken(h.cfg.JWT.Secret, u.ID, u.Plan, u.Status, h.cfg.JWT.AccessTokenTTL)
	if err != nil {
		logger.Errorf("login: token mint failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	sessionID := uuid.NewString()
	sess := &sessions.Session{
		UserID:      u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        u.Role,
		Permissions: u.Permissions,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		DeviceID:    req.DeviceID,
	}
	if err := h.mgr.CreateSession(c.Request.Context(), sessionID, sess); err != nil {
		logger.Errorf("login: failed to create session: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to create session"})
		return
	}

	maxAge := int(h.cfg.Sessions.MaxAge.Seconds())
	secure := h.secureCookies()
	c.SetCookie(middleware.AccessTokenCookie, access, maxAge, "/", "", secure, true)
	c.SetCookie(middleware.SessionIDCookie, sessionID, maxAge, "/", "", secure, true)

	c.JSON(http.StatusOK, gin.H{
		"session_id":   sessionID,
		"access_token": access,
		"user": gin.H{
			"id":       u.ID,
			"username": u.Username,
			"email":    u.Email,
			"plan":     u.Plan,
			"status":   u.Status,
		},
	})
}

// Logout destroys the caller's session and expires both cookies.
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID, err := c.Cookie(middleware.SessionIDCookie)
	if err != nil || sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no session"})
		return
	}
	destroyed, err := h.mgr.DestroySession(c.Request.Context(), sessionID)
	if err != nil {
		logger.Errorf("logout: destroy failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
		return
	}
	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"ok": true, "destroyed": destroyed})
}

// LogoutAll destroys every other session of the authenticated user
// ("log out everywhere else"), keeping the current one.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	claims, sessionID, ok := h.identify(c)
	if !ok {
		return
	}
	count, err := h.mgr.DestroyUserSessions(c.Request.Context(), claims.UserID(), sessionID)
	if err != nil {
		logger.Errorf("logout-all: destroy failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "destroyed": count})
}

// Sessions enumerates the caller's live sessions.
func (h *AuthHandler) Sessions(c *gin.Context) {
	claims, current, ok := h.identify(c)
	if !ok {
		return
	}
	ids, err := h.mgr.GetUserSessions(c.Request.Context(), claims.UserID())
	if err != nil {
		logger.Errorf("sessions: enumeration failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
		return
	}
	out := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		s, err := h.mgr.GetSession(c.Request.Context(), id)
		if err != nil || s == nil {
			continue
		}
		out = append(out, gin.H{
			"session_id":    id,
			"login_time":    s.LoginTime,
			"last_activity": s.LastActivity,
			"ip_address":    s.IPAddress,
			"user_agent":    s.UserAgent,
			"device_id":     s.DeviceID,
			"current":       id == current,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// identify resolves the caller from the gate's context when present, falling
// back to verifying the credentials directly (POST routes bypass the gate).
func (h *AuthHandler) identify(c *gin.Context) (*plans.Claims, string, bool) {
	sessionID, err := c.Cookie(middleware.SessionIDCookie)
	if err != nil || sessionID == "" {
		unauthorized(c)
		return nil, "", false
	}

	if v, ok := c.Get(middleware.ContextClaims); ok {
		if claims, ok2 := v.(*plans.Claims); ok2 {
			return claims, sessionID, true
		}
	}

	raw, err := c.Cookie(middleware.AccessTokenCookie)
	if err != nil || raw == "" {
		unauthorized(c)
		return nil, "", false
	}
	claims, err := h.verifier.Verify(c.Request.Context(), raw)
	if err != nil {
		unauthorized(c)
		return nil, "", false
	}
	sess, err := h.mgr.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
		c.Abort()
		return nil, "", false
	}
	if sess == nil || sess.UserID != claims.UserID() {
		unauthorized(c)
		return nil, "", false
	}
	return claims, sessionID, true
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "code": "UNAUTHORIZED"})
}

// clearAuthCookies expires both auth cookies with the same Secure attribute
// Login set them with; browsers refuse to drop a Secure cookie otherwise.
func (h *AuthHandler) clearAuthCookies(c *gin.Context) {
	secure := h.secureCookies()
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", secure, true)
	c.SetCookie(middleware.SessionIDCookie, "", -1, "/", "", secure, true)
}

func (h *AuthHandler) secureCookies() bool {
	return h.cfg.Server.Environment == "production"
}

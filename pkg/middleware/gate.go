package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quantlens/quantlens/backend/gateway/internal/plans"
	"github.com/quantlens/quantlens/backend/gateway/internal/routes"
	"github.com/quantlens/quantlens/backend/gateway/internal/sessions"
	"github.com/quantlens/quantlens/backend/gateway/internal/tokens"
	"github.com/quantlens/quantlens/backend/gateway/pkg/logger"
	"github.com/quantlens/quantlens/backend/gateway/pkg/metrics"
)

// Headers attached to the forwarded request for downstream consumption.
const (
	HeaderUserID             = "x-user-id"
	HeaderSubscriptionPlan   = "x-user-subscription-plan"
	HeaderSubscriptionStatus = "x-user-subscription-status"
)

// Cookie names consumed by the gate.
const (
	AccessTokenCookie = "access_token"
	SessionIDCookie   = "session_id"
)

// Context keys set on granted requests.
const (
	ContextClaims    = "claims"
	ContextSession   = "session"
	ContextSessionID = "sessionID"
)

// GateOptions carries the redirect targets of the dispatcher.
type GateOptions struct {
	LoginPath     string
	DashboardPath string
	LandingPath   string
	PricingPath   string
}

// DefaultGateOptions matches the dashboard's routing layout.
func DefaultGateOptions() GateOptions {
	return GateOptions{
		LoginPath:     "/auth/login",
		DashboardPath: "/dashboard",
		LandingPath:   "/landing",
		PricingPath:   "/pricing",
	}
}

// Gate returns the request dispatcher: it classifies the path, verifies the
// bearer token, validates session existence and ownership, applies the
// subscription gate and resolves one of {continue, redirect, 401, 403}.
// It holds no per-request state outside the gin context, so one instance
// serves all requests.
func Gate(ver tokens.Verifier, mgr *sessions.Manager, tbl *routes.Table, opts GateOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		if tbl.Bypass(c.Request.Method, path) {
			metrics.GateDecisions.WithLabelValues("bypass").Inc()
			c.Next()
			return
		}

		claims, sessionID, session, ok := authenticate(c, ver, mgr)
		if !ok {
			// store outage already rendered a 503; never fail open
			return
		}
		authed := claims != nil && session != nil

		// root is resolved before classification
		if path == "/" {
			if authed {
				redirect(c, opts.DashboardPath)
			} else {
				redirect(c, opts.LandingPath)
			}
			return
		}

		d := tbl.Classify(path)

		if d.Category == routes.CategoryAuthOnly {
			// authentication-sensitive pages must never be cached
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			if authed {
				redirect(c, opts.DashboardPath)
				return
			}
			metrics.GateDecisions.WithLabelValues("continue").Inc()
			c.Next()
			return
		}

		if d.Category == routes.CategoryPublic {
			if authed {
				grant(c, claims, sessionID, session)
			}
			metrics.GateDecisions.WithLabelValues("continue").Inc()
			c.Next()
			return
		}

		// free-protected, paid-protected and unclassified paths all need a
		// session from here on
		if !authed {
			if isAPIPath(path) {
				unauthorized(c, "authentication required")
				return
			}
			if d.Category == routes.CategoryDefault {
				redirect(c, opts.LandingPath)
				return
			}
			redirect(c, opts.LoginPath+"?redirect="+url.QueryEscape(path))
			return
		}

		if d.Category == routes.CategoryPaidProtected && !plans.Satisfies(claims, d.RequiredPlan) {
			metrics.GateDecisions.WithLabelValues("upgrade_required").Inc()
			upgradeURL := opts.PricingPath + "?upgrade=true&feature=" + url.QueryEscape(path)
			if isAPIPath(path) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":         "subscription upgrade required",
					"code":          "SUBSCRIPTION_REQUIRED",
					"required_plan": d.RequiredPlan,
					"current_path":  path,
					"upgrade_url":   upgradeURL,
				})
				return
			}
			c.Redirect(http.StatusFound, upgradeURL)
			c.Abort()
			return
		}

		// best-effort activity bump; a failure never blocks the request
		if _, err := mgr.UpdateActivity(c.Request.Context(), sessionID); err != nil {
			logger.Warnf("gate: activity update failed for session %s: %v", sessionID, err)
		}

		grant(c, claims, sessionID, session)
		metrics.GateDecisions.WithLabelValues("continue").Inc()
		c.Next()
	}
}

// authenticate extracts the bearer token and session cookie, verifies the
// token and loads the session, requiring the session to be owned by the
// token's subject (defense against session fixation). A nil claims/session
// pair with ok=true means "unauthenticated"; ok=false means the request has
// been terminated (store outage, fail closed).
func authenticate(c *gin.Context, ver tokens.Verifier, mgr *sessions.Manager) (*plans.Claims, string, *sessions.Session, bool) {
	raw := bearerToken(c)
	sessionID, err := c.Cookie(SessionIDCookie)
	if err != nil || raw == "" || sessionID == "" {
		return nil, "", nil, true
	}

	claims, err := ver.Verify(c.Request.Context(), raw)
	if err != nil {
		logger.Debugf("gate: token rejected: %v", err)
		return nil, "", nil, true
	}

	session, err := mgr.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		// only a confirmed "not found" counts as absence; an I/O error denies
		logger.Errorf("gate: session lookup failed: %v", err)
		metrics.GateDecisions.WithLabelValues("store_unavailable").Inc()
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error": "session store unavailable",
			"code":  "STORE_UNAVAILABLE",
		})
		return nil, "", nil, false
	}
	if session == nil || session.UserID != claims.UserID() {
		return nil, "", nil, true
	}
	return claims, sessionID, session, true
}

// bearerToken prefers the access_token cookie and falls back to the
// Authorization header.
func bearerToken(c *gin.Context) string {
	if v, err := c.Cookie(AccessTokenCookie); err == nil && v != "" {
		return v
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// grant attaches the identity headers and context values consumed downstream.
func grant(c *gin.Context, claims *plans.Claims, sessionID string, session *sessions.Session) {
	c.Request.Header.Set(HeaderUserID, claims.UserID())
	c.Request.Header.Set(HeaderSubscriptionPlan, string(claims.SubscriptionPlan))
	c.Request.Header.Set(HeaderSubscriptionStatus, string(claims.SubscriptionStatus))
	c.Set(ContextClaims, claims)
	c.Set(ContextSession, session)
	c.Set(ContextSessionID, sessionID)
}

func redirect(c *gin.Context, target string) {
	metrics.GateDecisions.WithLabelValues("redirect").Inc()
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

func unauthorized(c *gin.Context, msg string) {
	metrics.GateDecisions.WithLabelValues("unauthorized").Inc()
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": "UNAUTHORIZED"})
}

func isAPIPath(p string) bool {
	return strings.HasPrefix(p, "/api/")
}

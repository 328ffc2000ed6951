package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/quantlens/quantlens/backend/gateway/internal/kvstore"
	"github.com/quantlens/quantlens/backend/gateway/internal/plans"
	"github.com/quantlens/quantlens/backend/gateway/internal/routes"
	"github.com/quantlens/quantlens/backend/gateway/internal/sessions"
	"github.com/quantlens/quantlens/backend/gateway/internal/tokens"
)

const gateSecret = "gate-test-secret-32-bytes-long-ok"

type gateFixture struct {
	engine *gin.Engine
	mgr    *sessions.Manager
	redis  *mr.Miniredis
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	mgr := sessions.NewManager(kvstore.NewRedisStore(client, "t:"), sessions.DefaultOptions())

	engine := gin.New()
	engine.Use(Gate(tokens.NewHMACVerifier(gateSecret), mgr, routes.NewTable(routes.Config{}), DefaultGateOptions()))
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"plan":   c.Request.Header.Get(HeaderSubscriptionPlan),
			"status": c.Request.Header.Get(HeaderSubscriptionStatus),
			"userId": c.Request.Header.Get(HeaderUserID),
		})
	})
	return &gateFixture{engine: engine, mgr: mgr, redis: m}
}

// login creates a session and mints a matching token, returning the cookies.
func (f *gateFixture) login(t *testing.T, userID string, plan plans.Plan, status plans.Status) []*http.Cookie {
	t.Helper()
	sessionID := "sess-" + userID
	require.NoError(t, f.mgr.CreateSession(context.Background(), sessionID, &sessions.Session{
		UserID:    userID,
		Username:  userID,
		Email:     userID + "@example.com",
		Role:      "user",
		IPAddress: "203.0.113.7",
		UserAgent: "test-agent",
	}))
	raw, err := tokens.IssueAccessToken(gateSecret, userID, plan, status, 10*time.Minute)
	require.NoError(t, err)
	return []*http.Cookie{
		{Name: AccessTokenCookie, Value: raw},
		{Name: SessionIDCookie, Value: sessionID},
	}
}

func (f *gateFixture) get(path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rw := httptest.NewRecorder()
	f.engine.ServeHTTP(rw, req)
	return rw
}

func TestGate_FreePlanRedirectedToPricing(t *testing.T) {
	f := newGateFixture(t)
	cookies := f.login(t, "user-a", plans.PlanFree, plans.StatusActive)

	rw := f.get("/dashboard/analytics", cookies)
	require.Equal(t, http.StatusFound, rw.Code)
	require.Equal(t, "/pricing?upgrade=true&feature="+url.QueryEscape("/dashboard/analytics"), rw.Header().Get("Location"))
}

func TestGate_MissingTokenRedirectedToLogin(t *testing.T) {
	f := newGateFixture(t)

	rw := f.get("/dashboard", nil)
	require.Equal(t, http.StatusFound, rw.Code)
	require.Equal(t, "/auth/login?redirect="+url.QueryEscape("/dashboard"), rw.Header().Get("Location"))
}

func TestGate_PremiumContinuesWithHeaders(t *testing.T) {
	f := newGateFixture(t)
	cookies := f.login(t, "user-c", plans.PlanPremium, plans.StatusActive)

	rw := f.get("/dashboard/institutional", cookies)
	require.Equal(t, http.StatusOK, rw.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	require.Equal(t, "premium", body["plan"])
	require.Equal(t, "active", body["status"])
	require.Equal(t, "user-c", body["userId"])
}

func TestGate_AuthenticatedOnAuthRouteRedirected(t *testing.T) {
	f := newGateFixture(t)
	cookies := f.login(t, "user-d", plans.PlanFree, plans.StatusActive)

	rw := f.get("/auth/login", cookies)
	require.Equal(t, http.StatusFound, rw.Code)
	require.Equal(t, "/dashboard", rw.Header().Get("Location"))
	require.Equal(t, "no-cache, no-store, must-revalidate", rw.Header().Get("Cache-Control"))
}

func TestGate_UnauthenticatedOnAuthRouteContinues(t *testing.T) {
	f := newGateFixture(t)

	rw := f.get("/auth/login", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "no-cache, no-store, must-revalidate", rw.Header().Get("Cache-Control"))
}

func TestGate_SessionOwnerMismatchTreatedAsUnauthenticated(t *testing.T) {
	f := newGateFixture(t)
	cookies := f.login(t, "victim", plans.PlanPremium, plans.StatusActive)

	// token belongs to a different subject than the session owner
	raw, err := tokens.IssueAccessToken(gateSecret, "attacker", plans.PlanPremium, plans.StatusActive, 10*time.Minute)
	require.NoError(t, err)
	cookies[0] = &http.Cookie{Name: AccessTokenCookie, Value: raw}

	rw := f.get("/dashboard", cookies)
	require.Equal(t, http.StatusFound, rw.Code)
	require.Equal(t, "/auth/login?redirect="+url.QueryEscape("/dashboard"), rw.Header().Get("Location"))
}

func TestGate_InvalidTokenTreatedAsUnauthenticated(t *testing.T) {
	f := newGateFixture(t)
	cookies := f.login(t, "user-x", plans.PlanBasic, plans.StatusActive)
	cookies[0] = &http.Cookie{Name: AccessTokenCookie, Value: "not-a-jwt"}

	rw := f.get("/dashboard", cookies)
	require.Equal(t, http.StatusFound, rw.Code)
	require.Contains(t, rw.Header().Get("Location"), "/auth/login?redirect=")
}

func TestGate_ExpiredSubscriptionCollapsesToFree(t *testing.T) {
	f := newGateFixture(t)
	cookies := f.login(t, "user-exp", plans.PlanPremium, plans.StatusExpired)

	rw := f.get("/dashboard/institutional", cookies)
	require.Equal(t, http.StatusFound, rw.Code)
	require.Contains(t, rw.Header().Get("Location"), "/pricing?upgrade=true")

	// free-protected routes still work
	rw = f.get("/dashboard", cookies)
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestGate_RootRedirects(t *testing.T) {
	f := newGateFixture(t)

	rw := f.get("/", nil)
	require.Equal(t, http.StatusFound, rw.Code)
	require.Equal(t, "/landing", rw.Header().Get("Location"))

	cookies := f.login(t, "user-root", plans.PlanFree, plans.StatusActive)
	rw = f.get("/", cookies)
	require.Equal(t, http.StatusFound, rw.Code)
	require.Equal(t, "/dashboard", rw.Header().Get("Location"))
}

func TestGate_UnknownPathRedirectsToLanding(t *testing.T) {
	f := newGateFixture(t)

	rw := f.get("/no/such/page", nil)
	require.Equal(t, http.StatusFound, rw.Code)
	require.Equal(t, "/landing", rw.Header().Get("Location"))
}

func TestGate_PublicPathContinuesUnauthenticated(t *testing.T) {
	f := newGateFixture(t)

	rw := f.get("/pricing", nil)
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestGate_ObservabilityEndpointsNeedNoSession(t *testing.T) {
	f := newGateFixture(t)

	// scrapers and probes carry no cookies; these must never redirect
	for _, path := range []string{"/metrics", "/api/health", "/api/ready"} {
		rw := f.get(path, nil)
		require.Equal(t, http.StatusOK, rw.Code, "path %s", path)
		require.Empty(t, rw.Header().Get("Location"), "path %s", path)
	}
}

func TestGate_BypassSkipsAllChecks(t *testing.T) {
	f := newGateFixture(t)

	for _, path := range []string{"/_next/chunk.js", "/static/app.css", "/favicon.ico"} {
		rw := f.get(path, nil)
		require.Equal(t, http.StatusOK, rw.Code, "path %s", path)
	}

	// non-GET requests pass through unexamined
	req := httptest.NewRequest(http.MethodPost, "/api/portfolio", nil)
	rw := httptest.NewRecorder()
	f.engine.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestGate_APIUnauthorizedJSON(t *testing.T) {
	f := newGateFixture(t)

	rw := f.get("/api/portfolio/positions", nil)
	require.Equal(t, http.StatusUnauthorized, rw.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	require.Equal(t, "UNAUTHORIZED", body["code"])
}

func TestGate_APIForbiddenJSON(t *testing.T) {
	f := newGateFixture(t)
	cookies := f.login(t, "user-api", plans.PlanFree, plans.StatusActive)

	rw := f.get("/api/institutional/flows", cookies)
	require.Equal(t, http.StatusForbidden, rw.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	require.Equal(t, "SUBSCRIPTION_REQUIRED", body["code"])
	require.Equal(t, "premium", body["required_plan"])
	require.Equal(t, "/api/institutional/flows", body["current_path"])
	require.Contains(t, body["upgrade_url"], "/pricing?upgrade=true")
}

func TestGate_StoreOutageFailsClosed(t *testing.T) {
	f := newGateFixture(t)
	cookies := f.login(t, "user-out", plans.PlanPremium, plans.StatusActive)

	f.redis.Close()

	rw := f.get("/dashboard", cookies)
	require.Equal(t, http.StatusServiceUnavailable, rw.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	require.Equal(t, "STORE_UNAVAILABLE", body["code"])
}

func TestGate_ProtectedHitBumpsActivity(t *testing.T) {
	f := newGateFixture(t)
	cookies := f.login(t, "user-act", plans.PlanBasic, plans.StatusActive)

	before, err := f.mgr.GetSession(context.Background(), "sess-user-act")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	rw := f.get("/dashboard", cookies)
	require.Equal(t, http.StatusOK, rw.Code)

	after, err := f.mgr.GetSession(context.Background(), "sess-user-act")
	require.NoError(t, err)
	require.Greater(t, after.LastActivity, before.LastActivity)
}

func TestGate_BearerHeaderAccepted(t *testing.T) {
	f := newGateFixture(t)
	cookies := f.login(t, "user-hdr", plans.PlanBasic, plans.StatusActive)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+cookies[0].Value)
	req.AddCookie(cookies[1])
	rw := httptest.NewRecorder()
	f.engine.ServeHTTP(rw, req)

	require.Equal(t, http.StatusOK, rw.Code)
}

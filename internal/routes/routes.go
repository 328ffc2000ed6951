package routes

import (
	"net/http"
	"path"
	"strings"

	"github.com/quantlens/quantlens/backend/gateway/internal/plans"
)

// Category is the access class a path falls into.
type Category int

const (
	// CategoryPublic needs no session.
	CategoryPublic Category = iota
	// CategoryAuthOnly is reachable only by unauthenticated callers
	// (login, register, password flows).
	CategoryAuthOnly
	// CategoryFreeProtected requires a valid session but no specific plan.
	CategoryFreeProtected
	// CategoryPaidProtected requires a valid session and a minimum plan.
	CategoryPaidProtected
	// CategoryDefault is anything not explicitly classified; unauthenticated
	// callers are sent to the public landing page (fail-closed).
	CategoryDefault
)

// Decision is the classification result for one path.
type Decision struct {
	Category     Category
	RequiredPlan plans.Plan
}

// Rule maps a path or path prefix to the minimum plan it requires.
type Rule struct {
	Path   string
	Prefix bool
	Plan   plans.Plan
}

// Table is the ordered route-rule table, built once at startup and passed to
// the dispatcher. Exact matches win over prefixes; the first matching prefix
// in declaration order wins otherwise.
type Table struct {
	exact    map[string]plans.Plan
	prefixes []Rule

	authOnly      []string
	freeProtected []string
	public        []string
}

// Config declares a table. Zero-value slices fall back to the defaults below.
type Config struct {
	Rules         []Rule
	AuthOnly      []string
	FreeProtected []string
	Public        []string
}

// DefaultRules is the paid-route table for the dashboard plus its API
// equivalents.
var DefaultRules = []Rule{
	{Path: "/dashboard/analytics", Plan: plans.PlanBasic},
	{Path: "/dashboard/ai-insights", Plan: plans.PlanBasic},
	{Path: "/dashboard/social-trading", Plan: plans.PlanBasic},
	{Path: "/dashboard/institutional", Plan: plans.PlanPremium},
	{Path: "/dashboard/watchlist/premium", Plan: plans.PlanPremium},
	{Path: "/api/analytics", Prefix: true, Plan: plans.PlanBasic},
	{Path: "/api/ai-insights", Prefix: true, Plan: plans.PlanBasic},
	{Path: "/api/social-trading", Prefix: true, Plan: plans.PlanBasic},
	{Path: "/api/institutional", Prefix: true, Plan: plans.PlanPremium},
	{Path: "/api/watchlist/premium", Prefix: true, Plan: plans.PlanPremium},
}

var defaultAuthOnly = []string{"/auth/login", "/auth/register", "/auth/forgot-password", "/auth/reset-password"}

var defaultFreeProtected = []string{"/dashboard", "/settings", "/profile", "/api/portfolio", "/api/watchlist"}

var defaultPublic = []string{"/landing", "/pricing", "/about", "/terms", "/privacy", "/api/health", "/api/ready", "/metrics"}

// NewTable builds the lookup structures once. Prefix rules keep their
// declaration order.
func NewTable(cfg Config) *Table {
	t := &Table{exact: make(map[string]plans.Plan)}
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules
	}
	for _, r := range rules {
		if r.Prefix {
			t.prefixes = append(t.prefixes, r)
		} else {
			t.exact[r.Path] = r.Plan
		}
	}
	t.authOnly = cfg.AuthOnly
	if t.authOnly == nil {
		t.authOnly = defaultAuthOnly
	}
	t.freeProtected = cfg.FreeProtected
	if t.freeProtected == nil {
		t.freeProtected = defaultFreeProtected
	}
	t.public = cfg.Public
	if t.public == nil {
		t.public = defaultPublic
	}
	return t
}

// Bypass reports whether the request should pass through unexamined: mutating
// methods, static assets, framework-internal paths and anything with a file
// extension.
func (t *Table) Bypass(method, p string) bool {
	if method != http.MethodGet && method != http.MethodHead {
		return true
	}
	for _, prefix := range []string{"/_next/", "/static/", "/assets/", "/__internal/"} {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	if p == "/favicon.ico" || p == "/robots.txt" {
		return true
	}
	// API routes carry extensions like /api/export/report.csv and must still
	// be gated, so the extension heuristic only applies outside /api.
	if !strings.HasPrefix(p, "/api/") && path.Ext(p) != "" {
		return true
	}
	return false
}

// RequiredPlan resolves the minimum plan a paid-protected path needs. Exact
// match takes precedence; otherwise the first matching prefix wins.
func (t *Table) RequiredPlan(p string) (plans.Plan, bool) {
	if plan, ok := t.exact[p]; ok {
		return plan, true
	}
	for _, r := range t.prefixes {
		if p == r.Path || strings.HasPrefix(p, r.Path+"/") {
			return r.Plan, true
		}
	}
	return "", false
}

// Classify categorizes a path in priority order. Bypass and the root-path
// special case are handled by the dispatcher before this is consulted.
func (t *Table) Classify(p string) Decision {
	if matchesAny(p, t.authOnly) {
		return Decision{Category: CategoryAuthOnly}
	}
	if plan, ok := t.RequiredPlan(p); ok {
		return Decision{Category: CategoryPaidProtected, RequiredPlan: plan}
	}
	if matchesAny(p, t.freeProtected) {
		return Decision{Category: CategoryFreeProtected, RequiredPlan: plans.PlanFree}
	}
	if matchesAny(p, t.public) {
		return Decision{Category: CategoryPublic}
	}
	return Decision{Category: CategoryDefault}
}

// matchesAny treats every listed path as covering its own subtree.
func matchesAny(p string, list []string) bool {
	for _, base := range list {
		if p == base || strings.HasPrefix(p, base+"/") {
			return true
		}
	}
	return false
}

package plans

import "github.com/golang-jwt/jwt/v5"

// Plan is a subscription tier. Tiers are totally ordered: free < basic < premium.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusTrial     Status = "trial"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

var planLevels = map[Plan]int{
	PlanFree:    0,
	PlanBasic:   1,
	PlanPremium: 2,
}

// Level returns the ordinal of p in the tier order. Unknown plans rank below
// free so a garbled claim can never unlock anything.
func Level(p Plan) int {
	if l, ok := planLevels[p]; ok {
		return l
	}
	return -1
}

// Valid reports whether p names a known tier.
func (p Plan) Valid() bool {
	_, ok := planLevels[p]
	return ok
}

// Claims is the verified payload of an access token as the gate consumes it.
type Claims struct {
	SubscriptionPlan   Plan   `json:"subscription_plan"`
	SubscriptionStatus Status `json:"subscription_status"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string { return c.Subject }

// Effective returns the plan the subscription actually grants: an expired or
// cancelled subscription collapses to free regardless of the stored plan.
func (c *Claims) Effective() Plan {
	if c.SubscriptionStatus == StatusExpired || c.SubscriptionStatus == StatusCancelled {
		return PlanFree
	}
	return c.SubscriptionPlan
}

// Satisfies reports whether the claims meet the required tier.
func Satisfies(c *Claims, required Plan) bool {
	return Level(c.Effective()) >= Level(required)
}

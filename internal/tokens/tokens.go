package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quantlens/quantlens/backend/gateway/internal/plans"
)

// ErrTokenInvalid covers every verification failure: bad signature, expired
// exp, structurally invalid payload. Verification is never retried; the
// dispatcher treats the caller as unauthenticated and moves on.
var ErrTokenInvalid = errors.New("token invalid")

// Verifier validates a raw bearer credential and extracts its claims.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*plans.Claims, error)
}

// HMACVerifier validates HS256-signed tokens against a server-held secret.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(ctx context.Context, raw string) (*plans.Claims, error) {
	claims := &plans.Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}

// IssueAccessToken mints a signed HS256 access token carrying the subscription
// claims the gate consumes.
func IssueAccessToken(secret, sub string, plan plans.Plan, status plans.Status, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &plans.Claims{
		SubscriptionPlan:   plan,
		SubscriptionStatus: status,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(secret))
}

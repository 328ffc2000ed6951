package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/quantlens/quantlens/backend/gateway/internal/plans"
)

const testSecret = "test-secret-32-bytes-should-be-long-enough"

func TestHMACVerifier_RoundTrip(t *testing.T) {
	raw, err := IssueAccessToken(testSecret, "user-123", plans.PlanBasic, plans.StatusActive, 2*time.Minute)
	require.NoError(t, err)

	v := NewHMACVerifier(testSecret)
	claims, err := v.Verify(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.UserID())
	require.Equal(t, plans.PlanBasic, claims.SubscriptionPlan)
	require.Equal(t, plans.StatusActive, claims.SubscriptionStatus)
}

func TestHMACVerifier_WrongSecret(t *testing.T) {
	raw, err := IssueAccessToken(testSecret, "u2", plans.PlanFree, plans.StatusActive, 2*time.Minute)
	require.NoError(t, err)

	v := NewHMACVerifier("different-secret-xxxxxxxxxxxxxxxx")
	_, err = v.Verify(context.Background(), raw)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestHMACVerifier_Expired(t *testing.T) {
	raw, err := IssueAccessToken(testSecret, "u3", plans.PlanPremium, plans.StatusActive, -time.Minute)
	require.NoError(t, err)

	v := NewHMACVerifier(testSecret)
	_, err = v.Verify(context.Background(), raw)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestHMACVerifier_Malformed(t *testing.T) {
	v := NewHMACVerifier(testSecret)
	for _, raw := range []string{"", "garbage", "a.b", "a.b.c"} {
		_, err := v.Verify(context.Background(), raw)
		require.ErrorIs(t, err, ErrTokenInvalid, "raw=%q", raw)
	}
}

func TestHMACVerifier_RejectsAlgNone(t *testing.T) {
	// an unsigned token must never verify, even with a matching payload
	claims := &plans.Claims{
		SubscriptionPlan:   plans.PlanPremium,
		SubscriptionStatus: plans.StatusActive,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "attacker",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	raw, err := jt.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	v := NewHMACVerifier(testSecret)
	_, err = v.Verify(context.Background(), raw)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestHMACVerifier_MissingSubject(t *testing.T) {
	raw, err := IssueAccessToken(testSecret, "", plans.PlanFree, plans.StatusActive, time.Minute)
	require.NoError(t, err)

	v := NewHMACVerifier(testSecret)
	_, err = v.Verify(context.Background(), raw)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantlens/quantlens/backend/gateway/internal/models"
	"github.com/quantlens/quantlens/backend/gateway/internal/plans"
)

func TestService_RegisterAndAuthenticate(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	u := &models.User{
		ID:       "u-1",
		Username: "trader",
		Email:    "trader@example.com",
		Role:     "user",
		Plan:     plans.PlanBasic,
		Status:   plans.StatusActive,
	}
	require.NoError(t, svc.Register(ctx, u, "s3cret-password"))

	got, err := svc.Authenticate(ctx, "trader", "s3cret-password")
	require.NoError(t, err)
	require.Equal(t, "u-1", got.ID)
	require.Equal(t, plans.PlanBasic, got.Plan)

	_, err = svc.Authenticate(ctx, "trader", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "s3cret-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_GetByID(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, &models.User{ID: "u-2", Username: "x"}, "pw"))

	got, err := svc.GetByID(ctx, "u-2")
	require.NoError(t, err)
	require.NotNil(t, got)

	missing, err := svc.GetByID(ctx, "u-none")
	require.NoError(t, err)
	require.Nil(t, missing)
}

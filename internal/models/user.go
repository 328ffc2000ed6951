package models

import (
	"time"

	"github.com/quantlens/quantlens/backend/gateway/internal/plans"
)

// User represents a dashboard account as the login flow consumes it. The gate
// itself never reads this; it only sees the claims minted at login.
type User struct {
	ID           string       `bson:"_id,omitempty" json:"id"`
	Username     string       `bson:"username" json:"username"`
	Email        string       `bson:"email" json:"email"`
	Role         string       `bson:"role" json:"role"`
	Permissions  []string     `bson:"permissions" json:"permissions"`
	PasswordHash string       `bson:"passwordHash" json:"-"`
	Plan         plans.Plan   `bson:"plan" json:"plan"`
	Status       plans.Status `bson:"status" json:"status"`
	CreatedAt    time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time    `bson:"updatedAt" json:"updatedAt"`
}

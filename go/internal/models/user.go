package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole defines the role of a user.
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// User represents a contest participant. Wallet holds the virtual
// currency balance used for bidding; it is debited only at auction
// settlement and never goes negative.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	TeamName  string    `json:"team_name"`
	Role      UserRole  `json:"role"`
	Wallet    int       `json:"wallet"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

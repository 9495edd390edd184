package core

import (
	"context"
	"strings"
	"time"
)

// User is a till operator. Sales and goods receipts reference the operator who recorded them.
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserInput carries the fields for CreateUser.
type UserInput struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// UserService manages operator records.
type UserService interface {
	CreateUser(ctx context.Context, in UserInput) (*User, error)

	// GetByUsername finds a user by username, active or not.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID returns a user by primary key.
	GetByID(ctx context.Context, userID int) (*User, error)

	ListUsers(ctx context.Context) ([]User, error)

	// SetActive enables or disables an operator. Disabled operators cannot record sales.
	SetActive(ctx context.Context, userID int, active bool) (*User, error)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

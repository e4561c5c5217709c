package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	IsAdmin     bool      `json:"is_admin"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Principal is the authenticated identity handed to every operation by the
// identity collaborator. The engine trusts it as-is and never authenticates.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Admin  bool
}

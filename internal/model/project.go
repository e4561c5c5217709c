package model

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus is a closed enumeration; raw strings never cross the
// service boundary.
type ProjectStatus string

const (
	ProjectStatusOpen   ProjectStatus = "open"
	ProjectStatusClosed ProjectStatus = "closed"
)

type Project struct {
	ID         uuid.UUID     `json:"id"`
	HostUserID uuid.UUID     `json:"host_user_id"`
	Title      string        `json:"title"`
	Status     ProjectStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

func (p *Project) IsOpen() bool {
	return p.Status == ProjectStatusOpen
}

func (p *Project) IsHostedBy(userID uuid.UUID) bool {
	return p.HostUserID == userID
}

package domain

import "time"

// User is the domain model for registered accounts.
type User struct {
	ID             int64
	Username       string
	Email          string
	HashedPassword string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

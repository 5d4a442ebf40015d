package users

import "time"

// User is the managed account record. PasswordHash is write-only and never
// rendered; CreatedBy is set once at creation and only drives visibility
// scoping.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedBy    *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

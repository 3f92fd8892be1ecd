package user

import "time"

// User is a sales rep or back-office admin.
type User struct {
	ID           uint
	Email        string
	Name         string
	PasswordHash string
	Role         string
	TeamID       uint
	OrgID        uint
	CreatedAt    time.Time
}

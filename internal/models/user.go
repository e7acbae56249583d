package models

import "time"

// DefaultFullName is used when the identity provider has no display name
const DefaultFullName = "Unknown"

// RoleMember is assigned to users who join a family before creating a profile
const RoleMember = "member"

// User is the profile of an authenticated principal
type User struct {
	ID          string // identity provider subject
	Email       string
	FullName    string
	Role        string
	FamilyID    *int64
	CoinBalance int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasFamily reports whether the user is linked to a family
func (u *User) HasFamily() bool {
	return u.FamilyID != nil && *u.FamilyID > 0
}

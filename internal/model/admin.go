package model

import "time"

// RoleAdmin is the only role an identity can hold.
const RoleAdmin = "admin"

// Admin is the single administrative identity that manages the blog.
// Passwords are stored as bcrypt hashes.
type Admin struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"` // bcrypt hash, never expose
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// User is the public view of an identity, as carried in session tokens and
// returned by the auth endpoints.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// User returns the public view of a.
func (a *Admin) User() User {
	return User{ID: a.ID, Username: a.Username, Role: a.Role}
}

package model

import "time"

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// User is a fully resolved account: identity, credentials, role set and,
// when loaded through a session join, the live session.
type User struct {
	ID           int      `json:"id"`
	Username     string   `json:"username"`
	PasswordHash string   `json:"-"` // Not exposed
	Roles        []Role   `json:"roles"`
	Session      *Session `json:"-"`
}

// HasRole reports whether the user holds the given role. Roles are checked
// by value; a user may hold both Teacher and Student.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Session struct {
	Token   string    `json:"-"`
	UserID  int       `json:"-"`
	Expires time.Time `json:"-"`
}

// UserInfo is the minimal owner embedding used in sheet and solution
// metadata: enough for display, nothing sensitive.
type UserInfo struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

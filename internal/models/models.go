package models

import "time"

type User struct {
	ID                 string
	Username           string
	UsernameKey        string
	FullName           string
	Email              string
	Roles              []string
	PasswordHash       string
	CreatedAt          time.Time
	AcceptedPoliciesAt time.Time
}

// PublicUser is the view of a User that may leave the process.
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) Public() PublicUser {
	roles := make([]string, len(u.Roles))
	copy(roles, u.Roles)
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Email:     u.Email,
		Roles:     roles,
		CreatedAt: u.CreatedAt,
	}
}

type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// IssuedSession is what a caller gets back from issuing a session.
type IssuedSession struct {
	Token      string
	ExpiresAt  time.Time
	TTLSeconds int
}

package domain

import "time"

// Session is the in-memory identity of a logged-in user. It is passed
// explicitly to every engine call and never written to disk.
type Session struct {
	ID       string
	UserID   int64
	Username string
	Role     Role
	IssuedAt time.Time
	Token    string
}

// IsAgent reports whether the session belongs to an agent.
func (s *Session) IsAgent() bool { return s != nil && s.Role.IsAgent() }

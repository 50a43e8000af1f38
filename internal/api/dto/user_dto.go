package dto

import "time"

// RegisterRequest carries the raw registration prompts.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"-"`
	Role     string `json:"role"`
}

// LoginRequest carries the raw login prompts.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"-"`
}

// UserResponse describes an account without its digest.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// SessionResponse describes a fresh session and what happened while the
// user was away.
type SessionResponse struct {
	SessionID string           `json:"session_id"`
	UserID    int64            `json:"user_id"`
	Username  string           `json:"username"`
	Role      string           `json:"role"`
	IssuedAt  time.Time        `json:"issued_at"`
	Notices   []NoticeResponse `json:"notices"`
}

// NoticeResponse is one notice for a ticket owner.
type NoticeResponse struct {
	TicketID int64     `json:"ticket_id"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

package domain

import (
	"errors"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists every status in lifecycle order.
var TicketStatuses = []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusClosed}

// ParseTicketStatus converts raw input into a TicketStatus.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	for _, s := range TicketStatuses {
		if string(s) == normalized {
			return s, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further mutation is allowed.
func (s TicketStatus) IsTerminal() bool { return s == TicketStatusClosed }

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress, TicketStatusClosed},
	TicketStatusInProgress: {TicketStatusClosed},
	TicketStatusClosed:     {},
}

// CanTransition reports whether next is an allowed edge from s.
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s in one step.
func (s TicketStatus) NextStatuses() []TicketStatus {
	return append([]TicketStatus(nil), allowedTransitions[s]...)
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// TicketPriorities lists every priority from lowest to highest.
var TicketPriorities = []TicketPriority{TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh}

// ParseTicketPriority converts raw input into a TicketPriority.
func ParseTicketPriority(raw string) (TicketPriority, bool) {
	normalized := TicketPriority(strings.ToLower(strings.TrimSpace(raw)))
	for _, p := range TicketPriorities {
		if p == normalized {
			return p, true
		}
	}
	return "", false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          int64          `json:"id"`
	OwnerID     int64          `json:"owner_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    TicketPriority `json:"priority"`
	Status      TicketStatus   `json:"status"`
	AssigneeID  *int64         `json:"assignee_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// RecordID returns the ticket's id.
func (t Ticket) RecordID() int64 { return t.ID }

// Validate rejects records that cannot have been written by this program.
func (t Ticket) Validate() error {
	if t.ID <= 0 || t.OwnerID <= 0 {
		return errors.New("ticket id and owner id must be positive")
	}
	if t.Title == "" {
		return errors.New("ticket record missing title")
	}
	if _, ok := ParseTicketStatus(string(t.Status)); !ok {
		return errors.New("ticket record has unknown status")
	}
	if _, ok := ParseTicketPriority(string(t.Priority)); !ok {
		return errors.New("ticket record has unknown priority")
	}
	return nil
}

// IsOwnedBy reports whether userID created the ticket.
func (t *Ticket) IsOwnedBy(userID int64) bool { return t.OwnerID == userID }

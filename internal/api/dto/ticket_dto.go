package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// EditTicketRequest lists raw replacement values. Nil fields are kept.
type EditTicketRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// TicketListQuery captures listing filters typed at the prompt. Empty
// strings match everything.
type TicketListQuery struct {
	Status       string
	Priority     string
	AssignedToMe bool
}

// TicketSummary is one row of a listing.
type TicketSummary struct {
	ID         int64                 `json:"id"`
	OwnerID    int64                 `json:"owner_id"`
	Title      string                `json:"title"`
	Status     domain.TicketStatus   `json:"status"`
	Priority   domain.TicketPriority `json:"priority"`
	AssigneeID *int64                `json:"assignee_id"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID           int64                 `json:"id"`
	OwnerID      int64                 `json:"owner_id"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Status       domain.TicketStatus   `json:"status"`
	Priority     domain.TicketPriority `json:"priority"`
	AssigneeID   *int64                `json:"assignee_id"`
	NextStatuses []domain.TicketStatus `json:"next_statuses"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// TicketSummaryFrom maps a ticket to a listing row.
func TicketSummaryFrom(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:         t.ID,
		OwnerID:    t.OwnerID,
		Title:      t.Title,
		Status:     t.Status,
		Priority:   t.Priority,
		AssigneeID: t.AssigneeID,
		UpdatedAt:  t.UpdatedAt,
	}
}

// TicketDetailFrom maps a ticket to its full view.
func TicketDetailFrom(t *domain.Ticket) *TicketDetailResponse {
	return &TicketDetailResponse{
		ID:           t.ID,
		OwnerID:      t.OwnerID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       t.Status,
		Priority:     t.Priority,
		AssigneeID:   t.AssigneeID,
		NextStatuses: t.Status.NextStatuses(),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

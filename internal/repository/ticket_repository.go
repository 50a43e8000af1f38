package repository

import (
	"cmp"
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/persistence"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// TicketFilter narrows a listing. Nil and empty fields match everything.
type TicketFilter struct {
	OwnerID    *int64
	AssigneeID *int64
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
}

func (f TicketFilter) matches(ticket domain.Ticket) bool {
	if f.OwnerID != nil && ticket.OwnerID != *f.OwnerID {
		return false
	}
	if f.AssigneeID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *f.AssigneeID) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, ticket.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !slices.Contains(f.Priorities, ticket.Priority) {
		return false
	}
	return true
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	table *persistence.Table[domain.Ticket]
}

// NewTicketRepository returns a repository backed by the JSON-lines file at path.
func NewTicketRepository(path string, logger *zap.Logger) TicketRepository {
	return &ticketRepository{table: persistence.NewTable[domain.Ticket](path, logger)}
}

// Create assigns the next id and appends the ticket.
func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	id, err := r.table.NextID(ctx)
	if err != nil {
		return err
	}
	ticket.ID = id
	return r.table.Append(ctx, *ticket)
}

// Update replaces the stored ticket with the same id.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	tickets, err := r.table.List(ctx)
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(tickets, func(t domain.Ticket) bool { return t.ID == ticket.ID })
	if idx < 0 {
		return apperrors.NewNotFound("ticket", map[string]any{"id": ticket.ID})
	}
	tickets[idx] = *ticket
	return r.table.Rewrite(ctx, tickets)
}

// Delete removes the ticket. The file is left untouched when id is unknown.
func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	tickets, err := r.table.List(ctx)
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(slices.Clone(tickets), func(t domain.Ticket) bool { return t.ID == id })
	if len(kept) == len(tickets) {
		return apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return r.table.Rewrite(ctx, kept)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, found, err := r.table.Find(ctx, func(t domain.Ticket) bool { return t.ID == id })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return &ticket, nil
}

// List returns matching tickets ordered by id.
func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for ticket, err := range r.table.All(ctx) {
		if err != nil {
			return nil, err
		}
		if filter.matches(ticket) {
			result = append(result, ticket)
		}
	}
	slices.SortFunc(result, func(a, b domain.Ticket) int { return cmp.Compare(a.ID, b.ID) })
	return result, nil
}

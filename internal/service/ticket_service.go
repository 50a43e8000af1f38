package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/validation"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows. Every call loads what it
// needs from the repositories; nothing is cached between calls.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	authorizer *auth.Authorizer
	audit      *audit.Recorder
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Authorizer *auth.Authorizer
	Audit      *audit.Recorder
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// TicketCreateInput describes ticket creation payload. Title and
// Description are raw text and are sanitized by the service.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// TicketEditInput lists the fields to change. Nil fields are left alone.
type TicketEditInput struct {
	Title       *string
	Description *string
	Priority    *domain.TicketPriority
	Status      *domain.TicketStatus
}

// IsEmpty reports whether no field was requested.
func (in TicketEditInput) IsEmpty() bool {
	return in.Title == nil && in.Description == nil && in.Priority == nil && in.Status == nil
}

// TicketListFilter narrows a listing beyond the caller's ownership scope.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	AssigneeID *int64
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		authorizer: deps.Authorizer,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// auditAction maps an access-controlled action to the name used in denial
// details.
var auditAction = map[auth.Action]string{
	auth.ActionView:         "TICKET_VIEW",
	auth.ActionList:         "TICKET_LIST",
	auth.ActionCreate:       string(domain.ActionTicketCreate),
	auth.ActionEdit:         string(domain.ActionTicketUpdate),
	auth.ActionChangeStatus: string(domain.ActionTicketStatusChange),
	auth.ActionAssign:       string(domain.ActionTicketAssigneeChange),
	auth.ActionDelete:       string(domain.ActionTicketDelete),
}

// authorize checks one action and audits a denial.
func (s *TicketService) authorize(ctx context.Context, session *domain.Session, action auth.Action, target auth.Target) error {
	decision := s.authorizer.Authorize(session, action, target)
	if decision.Allowed {
		return nil
	}
	s.recordDenial(ctx, session, action, target, decision)
	return decision.Err(action, target)
}

// recordDenial logs and audits a refused action.
func (s *TicketService) recordDenial(ctx context.Context, session *domain.Session, action auth.Action, target auth.Target, decision auth.Decision) {
	entityID := ""
	if target.Ticket != nil {
		entityID = ticketRef(target.Ticket.ID)
	}
	s.logger.Info("access denied",
		zap.String("action", string(action)),
		zap.String("ticket_id", entityID),
		zap.String("reason", decision.Reason.String()))
	_ = s.audit.Session(ctx, validSession(session, decision), audit.Event{
		Action:   domain.ActionAccessDenied,
		Entity:   domain.EntityTicket,
		EntityID: entityID,
		Status:   domain.AuditDenied,
		Details:  fmt.Sprintf("%s: %s", auditAction[action], decision.Reason),
	})
}

// validSession drops the actor of a session that failed verification so a
// forged identity is not written to the audit trail.
func validSession(session *domain.Session, decision auth.Decision) *domain.Session {
	if decision.Reason == auth.ReasonNoSession {
		return nil
	}
	return session
}

// Create opens a new ticket owned by the caller.
func (s *TicketService) Create(ctx context.Context, session *domain.Session, input TicketCreateInput) (*domain.Ticket, error) {
	if err := s.authorize(ctx, session, auth.ActionCreate, auth.Target{}); err != nil {
		return nil, err
	}
	title, err := validation.Title(input.Title)
	if err != nil {
		return nil, err
	}
	description, err := validation.Description(input.Description)
	if err != nil {
		return nil, err
	}
	priority, err := validation.Priority(string(input.Priority))
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ticket := &domain.Ticket{
		OwnerID:     session.UserID,
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      domain.TicketStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	if err := s.recordSuccess(ctx, session, domain.ActionTicketCreate, ticket,
		fmt.Sprintf("title=%s, priority=%s", validation.Truncate(ticket.Title, 50), ticket.Priority)); err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.EventTicketCreated, ticket, events.ActorFrom(session), now,
		events.TicketCreatedPayload{Priority: ticket.Priority, Title: ticket.Title}))
	return ticket, nil
}

// Get returns one ticket the caller may see.
func (s *TicketService) Get(ctx context.Context, session *domain.Session, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, session, auth.ActionView, auth.Target{Ticket: ticket}); err != nil {
		return nil, err
	}
	return ticket, nil
}

// List returns the caller's tickets, or every ticket for agents, by id.
func (s *TicketService) List(ctx context.Context, session *domain.Session, filter TicketListFilter) ([]domain.Ticket, error) {
	if err := s.authorize(ctx, session, auth.ActionList, auth.Target{}); err != nil {
		return nil, err
	}
	return s.tickets.List(ctx, repository.TicketFilter{
		OwnerID:    auth.ListScope(session),
		AssigneeID: filter.AssigneeID,
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
	})
}

// Edit applies the requested field changes. Fields equal to the current
// value are ignored; an edit that changes nothing writes nothing.
func (s *TicketService) Edit(ctx context.Context, session *domain.Session, id int64, input TicketEditInput) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.IsEmpty() {
		if err := s.authorize(ctx, session, auth.ActionView, auth.Target{Ticket: ticket}); err != nil {
			return nil, err
		}
		return ticket, nil
	}
	if err := s.authorize(ctx, session, auth.ActionEdit, auth.Target{Ticket: ticket}); err != nil {
		return nil, err
	}

	updated := *ticket
	var changedText []string
	if input.Title != nil {
		title, err := validation.Title(*input.Title)
		if err != nil {
			return nil, err
		}
		if title != ticket.Title {
			updated.Title = title
			changedText = append(changedText, "title")
		}
	}
	if input.Description != nil {
		description, err := validation.Description(*input.Description)
		if err != nil {
			return nil, err
		}
		if description != ticket.Description {
			updated.Description = description
			changedText = append(changedText, "description")
		}
	}
	if input.Priority != nil {
		priority, err := validation.Priority(string(*input.Priority))
		if err != nil {
			return nil, err
		}
		updated.Priority = priority
	}
	if input.Status != nil && *input.Status != ticket.Status {
		if err := s.authorize(ctx, session, auth.ActionChangeStatus,
			auth.Target{Ticket: ticket, NewStatus: *input.Status}); err != nil {
			return nil, err
		}
		updated.Status = *input.Status
	}

	statusChanged := updated.Status != ticket.Status
	priorityChanged := updated.Priority != ticket.Priority
	if len(changedText) == 0 && !statusChanged && !priorityChanged {
		return ticket, nil
	}

	now := s.now().UTC()
	updated.UpdatedAt = now
	if err := s.tickets.Update(ctx, &updated); err != nil {
		return nil, err
	}

	actor := events.ActorFrom(session)
	var auditErr error
	if len(changedText) > 0 {
		auditErr = errors.Join(auditErr, s.recordSuccess(ctx, session, domain.ActionTicketUpdate, &updated,
			fmt.Sprintf("Ticket %d: changed %s", updated.ID, strings.Join(changedText, " and "))))
		s.publish(ctx, events.New(events.EventTicketUpdated, &updated, actor, now,
			events.TicketUpdatedPayload{Fields: changedText}))
	}
	if priorityChanged {
		auditErr = errors.Join(auditErr, s.recordSuccess(ctx, session, domain.ActionTicketPriorityChange, &updated,
			fmt.Sprintf("Ticket %d: %s -> %s", updated.ID, ticket.Priority, updated.Priority)))
		s.publish(ctx, events.New(events.EventTicketPriorityChanged, &updated, actor, now,
			events.TicketPriorityChangedPayload{OldPriority: ticket.Priority, NewPriority: updated.Priority}))
	}
	if statusChanged {
		auditErr = errors.Join(auditErr, s.recordSuccess(ctx, session, domain.ActionTicketStatusChange, &updated,
			fmt.Sprintf("Ticket %d: %s -> %s", updated.ID, ticket.Status, updated.Status)))
		s.publish(ctx, events.New(events.EventTicketStatusChanged, &updated, actor, now,
			events.TicketStatusChangedPayload{OldStatus: ticket.Status, NewStatus: updated.Status}))
	}
	if auditErr != nil {
		return nil, auditErr
	}
	return &updated, nil
}

// Assign sets the ticket's assignee. Only agents may assign, and only to a
// user whose stored role is agent.
func (s *TicketService) Assign(ctx context.Context, session *domain.Session, id, agentID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, session, auth.ActionAssign, auth.Target{Ticket: ticket}); err != nil {
		return nil, err
	}
	assignee, err := s.users.GetByID(ctx, agentID)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.recordDenial(ctx, session, auth.ActionAssign, auth.Target{Ticket: ticket},
			auth.Decision{Reason: auth.ReasonAssigneeNotAgent})
		return nil, apperrors.NewInvalidAssignee("no user with that id", map[string]any{"user_id": agentID})
	}
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, session, auth.ActionAssign, auth.Target{Ticket: ticket, Assignee: assignee}); err != nil {
		return nil, err
	}
	return s.setAssignee(ctx, session, ticket, &assignee.ID)
}

// Unassign clears the ticket's assignee.
func (s *TicketService) Unassign(ctx context.Context, session *domain.Session, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, session, auth.ActionAssign, auth.Target{Ticket: ticket}); err != nil {
		return nil, err
	}
	return s.setAssignee(ctx, session, ticket, nil)
}

func (s *TicketService) setAssignee(ctx context.Context, session *domain.Session, ticket *domain.Ticket, assigneeID *int64) (*domain.Ticket, error) {
	if sameAssignee(ticket.AssigneeID, assigneeID) {
		return ticket, nil
	}
	now := s.now().UTC()
	updated := *ticket
	updated.AssigneeID = assigneeID
	updated.UpdatedAt = now
	if err := s.tickets.Update(ctx, &updated); err != nil {
		return nil, err
	}
	if err := s.recordSuccess(ctx, session, domain.ActionTicketAssigneeChange, &updated,
		fmt.Sprintf("Ticket %d: %s -> %s", updated.ID, assigneeLabel(ticket.AssigneeID), assigneeLabel(assigneeID))); err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.EventTicketAssigned, &updated, events.ActorFrom(session), now,
		events.TicketAssignedPayload{OldAssigneeID: ticket.AssigneeID, NewAssigneeID: assigneeID}))
	return &updated, nil
}

// Delete removes a closed ticket. Only agents may delete.
func (s *TicketService) Delete(ctx context.Context, session *domain.Session, id int64) error {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, session, auth.ActionDelete, auth.Target{Ticket: ticket}); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.recordSuccess(ctx, session, domain.ActionTicketDelete, ticket, "ticket deleted"); err != nil {
		return err
	}
	s.publish(ctx, events.New(events.EventTicketDeleted, ticket, events.ActorFrom(session), s.now().UTC(),
		events.TicketDeletedPayload{Title: ticket.Title}))
	return nil
}

func (s *TicketService) recordSuccess(ctx context.Context, session *domain.Session, action domain.AuditAction, ticket *domain.Ticket, details string) error {
	return s.audit.Session(ctx, session, audit.Event{
		Action:   action,
		Entity:   domain.EntityTicket,
		EntityID: ticketRef(ticket.ID),
		Status:   domain.AuditSuccess,
		Details:  details,
	})
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func ticketRef(id int64) string { return strconv.FormatInt(id, 10) }

func sameAssignee(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func assigneeLabel(id *int64) string {
	if id == nil {
		return "unassigned"
	}
	return strconv.FormatInt(*id, 10)
}

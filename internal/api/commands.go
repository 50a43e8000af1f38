// Package api is the command surface the shell talks to. Every method takes
// the raw strings typed at the prompt and returns a dto payload or an error
// that errorutil.UserMessage can render safely.
package api

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/validation"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// DefaultAuditTail is how many audit entries AuditTrail shows when no count
// is given.
const DefaultAuditTail = 20

// Commands wires the services behind the shell.
type Commands struct {
	auth          *service.AuthService
	tickets       *service.TicketService
	demos         *service.DemoService
	notifications *service.NotificationService
	authorizer    *auth.Authorizer
	audit         *audit.Recorder
	auditPath     string
	logger        *zap.Logger
}

// Dependencies bundles what Commands needs.
type Dependencies struct {
	AuthService         *service.AuthService
	TicketService       *service.TicketService
	DemoService         *service.DemoService
	NotificationService *service.NotificationService
	Authorizer          *auth.Authorizer
	Audit               *audit.Recorder
	AuditPath           string
	Logger              *zap.Logger
}

// NewCommands builds the command surface.
func NewCommands(deps Dependencies) *Commands {
	c := &Commands{
		auth:          deps.AuthService,
		tickets:       deps.TicketService,
		demos:         deps.DemoService,
		notifications: deps.NotificationService,
		authorizer:    deps.Authorizer,
		audit:         deps.Audit,
		auditPath:     deps.AuditPath,
		logger:        deps.Logger,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Register creates an account.
func (c *Commands) Register(ctx context.Context, req dto.RegisterRequest) (*dto.UserResponse, error) {
	user, err := c.auth.Register(ctx, req.Username, req.Password, req.Role)
	if err != nil {
		return nil, err
	}
	return &dto.UserResponse{ID: user.ID, Username: user.Username, Role: string(user.Role)}, nil
}

// Login opens a session. The session is returned separately because only
// the shell holds it; the response carries what is shown.
func (c *Commands) Login(ctx context.Context, req dto.LoginRequest) (*domain.Session, *dto.SessionResponse, error) {
	session, err := c.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, nil, err
	}
	resp := &dto.SessionResponse{
		SessionID: session.ID,
		UserID:    session.UserID,
		Username:  session.Username,
		Role:      string(session.Role),
		IssuedAt:  session.IssuedAt,
	}
	if c.notifications != nil {
		resp.Notices = noticesFrom(c.notifications.Drain(session.UserID))
	}
	return session, resp, nil
}

// Logout ends the session. It always succeeds.
func (c *Commands) Logout(ctx context.Context, session *domain.Session) error {
	return c.auth.Logout(ctx, session)
}

// CreateTicket opens a ticket owned by the caller.
func (c *Commands) CreateTicket(ctx context.Context, session *domain.Session, req dto.CreateTicketRequest) (*dto.TicketDetailResponse, error) {
	ticket, err := c.tickets.Create(ctx, session, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.TicketPriority(req.Priority),
	})
	if err != nil {
		return nil, err
	}
	return dto.TicketDetailFrom(ticket), nil
}

// ListTickets lists what the caller may see.
func (c *Commands) ListTickets(ctx context.Context, session *domain.Session, query dto.TicketListQuery) ([]dto.TicketSummary, error) {
	var filter service.TicketListFilter
	if strings.TrimSpace(query.Status) != "" {
		status, err := validation.Status(query.Status)
		if err != nil {
			return nil, err
		}
		filter.Statuses = []domain.TicketStatus{status}
	}
	if strings.TrimSpace(query.Priority) != "" {
		priority, err := validation.Priority(query.Priority)
		if err != nil {
			return nil, err
		}
		filter.Priorities = []domain.TicketPriority{priority}
	}
	if query.AssignedToMe && session != nil {
		id := session.UserID
		filter.AssigneeID = &id
	}

	tickets, err := c.tickets.List(ctx, session, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.TicketSummaryFrom(&tickets[i]))
	}
	return items, nil
}

// ViewTicket shows one ticket.
func (c *Commands) ViewTicket(ctx context.Context, session *domain.Session, rawID string) (*dto.TicketDetailResponse, error) {
	id, err := validation.ID(rawID, "ticket id")
	if err != nil {
		return nil, err
	}
	ticket, err := c.tickets.Get(ctx, session, id)
	if err != nil {
		return nil, err
	}
	return dto.TicketDetailFrom(ticket), nil
}

// EditTicket changes the fields present in req.
func (c *Commands) EditTicket(ctx context.Context, session *domain.Session, rawID string, req dto.EditTicketRequest) (*dto.TicketDetailResponse, error) {
	id, err := validation.ID(rawID, "ticket id")
	if err != nil {
		return nil, err
	}
	input := service.TicketEditInput{Title: req.Title, Description: req.Description}
	if req.Priority != nil {
		priority, err := validation.Priority(*req.Priority)
		if err != nil {
			return nil, err
		}
		input.Priority = &priority
	}
	if req.Status != nil {
		status, err := validation.Status(*req.Status)
		if err != nil {
			return nil, err
		}
		input.Status = &status
	}
	ticket, err := c.tickets.Edit(ctx, session, id, input)
	if err != nil {
		return nil, err
	}
	return dto.TicketDetailFrom(ticket), nil
}

// AssignTicket assigns a ticket to an agent.
func (c *Commands) AssignTicket(ctx context.Context, session *domain.Session, rawID, rawAgentID string) (*dto.TicketDetailResponse, error) {
	id, err := validation.ID(rawID, "ticket id")
	if err != nil {
		return nil, err
	}
	agentID, err := validation.ID(rawAgentID, "agent id")
	if err != nil {
		return nil, err
	}
	ticket, err := c.tickets.Assign(ctx, session, id, agentID)
	if err != nil {
		return nil, err
	}
	return dto.TicketDetailFrom(ticket), nil
}

// UnassignTicket clears a ticket's assignee.
func (c *Commands) UnassignTicket(ctx context.Context, session *domain.Session, rawID string) (*dto.TicketDetailResponse, error) {
	id, err := validation.ID(rawID, "ticket id")
	if err != nil {
		return nil, err
	}
	ticket, err := c.tickets.Unassign(ctx, session, id)
	if err != nil {
		return nil, err
	}
	return dto.TicketDetailFrom(ticket), nil
}

// DeleteTicket removes a closed ticket.
func (c *Commands) DeleteTicket(ctx context.Context, session *domain.Session, rawID string) error {
	id, err := validation.ID(rawID, "ticket id")
	if err != nil {
		return err
	}
	return c.tickets.Delete(ctx, session, id)
}

// RunSecurityDemo runs demo 1, 2 or 3 with the answers to its prompts:
// an index for 1, two counts for 2, free text for 3.
func (c *Commands) RunSecurityDemo(ctx context.Context, session *domain.Session, rawDemo string, inputs ...string) (*dto.DemoResponse, error) {
	if !c.authorizer.Authenticated(session) {
		return nil, apperrors.NewForbidden("please log in first")
	}
	input := func(i int) string {
		if i < len(inputs) {
			return inputs[i]
		}
		return ""
	}

	var (
		result *service.DemoResult
		err    error
	)
	switch strings.TrimSpace(rawDemo) {
	case "1":
		result, err = c.demos.IndexLookup(ctx, session, input(0))
	case "2":
		result, err = c.demos.TicketLimit(ctx, session, input(0), input(1))
	case "3":
		result, err = c.demos.InjectionEcho(ctx, session, input(0))
	default:
		return nil, apperrors.NewValidationError("demo must be 1, 2 or 3", map[string]any{"field": "demo"})
	}
	if err != nil {
		return nil, err
	}
	return &dto.DemoResponse{Demo: int(result.Demo), Lines: result.Lines}, nil
}

// SessionValid reports whether session is still accepted, i.e. its token
// verifies and has not expired.
func (c *Commands) SessionValid(session *domain.Session) bool {
	return c.authorizer.Authenticated(session)
}

// Notices returns the caller's notices. With all set, notices already shown
// are included.
func (c *Commands) Notices(_ context.Context, session *domain.Session, all bool) ([]dto.NoticeResponse, error) {
	if !c.authorizer.Authenticated(session) {
		return nil, apperrors.NewForbidden("please log in first")
	}
	if c.notifications == nil {
		return nil, nil
	}
	if all {
		return noticesFrom(c.notifications.All(session.UserID)), nil
	}
	return noticesFrom(c.notifications.Drain(session.UserID)), nil
}

// AuditTrail returns the last entries of the audit log. Agents only.
func (c *Commands) AuditTrail(ctx context.Context, session *domain.Session, rawLimit string) ([]dto.AuditEntryResponse, error) {
	if err := c.requireAuditAccess(ctx, session, "AUDIT_VIEW"); err != nil {
		return nil, err
	}
	limit := int64(DefaultAuditTail)
	if strings.TrimSpace(rawLimit) != "" {
		n, err := validation.ID(rawLimit, "count")
		if err != nil {
			return nil, err
		}
		limit = n
	}
	entries, err := audit.Tail(ctx, c.auditPath, audit.Filter{}, int(limit), c.logger)
	if err != nil {
		return nil, err
	}
	out := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.AuditEntryResponse{
			Timestamp: e.Timestamp,
			UserID:    e.UserID,
			Username:  e.Username,
			Role:      e.Role,
			Action:    string(e.Action),
			Entity:    string(e.Entity),
			EntityID:  e.EntityID,
			Status:    string(e.Status),
			Details:   e.Details,
		})
	}
	return out, nil
}

// VerifyAudit checks the audit hash chain. Agents only.
func (c *Commands) VerifyAudit(ctx context.Context, session *domain.Session) (*dto.VerifyAuditResponse, error) {
	if err := c.requireAuditAccess(ctx, session, "AUDIT_VERIFY"); err != nil {
		return nil, err
	}
	result, err := audit.Verify(ctx, c.auditPath)
	if err != nil {
		return nil, err
	}
	return &dto.VerifyAuditResponse{
		Entries:  result.Entries,
		Valid:    result.Valid,
		BrokenAt: result.BrokenAt,
		Reason:   result.Reason,
	}, nil
}

func (c *Commands) requireAuditAccess(ctx context.Context, session *domain.Session, action string) error {
	decision := c.authorizer.Authorize(session, auth.ActionReadAudit, auth.Target{})
	if decision.Allowed {
		return nil
	}
	if decision.Reason == auth.ReasonNoSession {
		session = nil
	}
	if c.audit != nil {
		_ = c.audit.Session(ctx, session, audit.Event{
			Action:  domain.ActionAccessDenied,
			Entity:  domain.EntityUser,
			Status:  domain.AuditDenied,
			Details: action + ": " + decision.Reason.String(),
		})
	}
	return decision.Err(auth.ActionReadAudit, auth.Target{})
}

func noticesFrom(notices []service.Notice) []dto.NoticeResponse {
	out := make([]dto.NoticeResponse, 0, len(notices))
	for _, n := range notices {
		out = append(out, dto.NoticeResponse{TicketID: n.TicketID, Message: n.Message, At: n.At})
	}
	return out
}

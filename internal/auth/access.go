package auth

import (
	"fmt"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// Action names an operation checked by the Authorizer.
type Action string

const (
	ActionView         Action = "view"
	ActionList         Action = "list"
	ActionCreate       Action = "create"
	ActionEdit         Action = "edit"
	ActionChangeStatus Action = "change_status"
	ActionAssign       Action = "assign"
	ActionDelete       Action = "delete"
	ActionReadAudit    Action = "read_audit"
)

// Target carries what the action applies to. Ticket is nil for list and
// create. Assignee is nil when clearing the assignee.
type Target struct {
	Ticket    *domain.Ticket
	NewStatus domain.TicketStatus
	Assignee  *domain.User
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// DenyReason describes why an authorization check was denied.
type DenyReason int

const (
	ReasonNone DenyReason = iota
	ReasonNoSession
	ReasonMissingTarget
	ReasonNotOwner
	ReasonRoleRequired
	ReasonTicketClosed
	ReasonInvalidTransition
	ReasonAssigneeNotAgent
	ReasonNotClosed
)

// String returns a human-readable reason.
func (r DenyReason) String() string {
	switch r {
	case ReasonNone:
		return "allowed"
	case ReasonNoSession:
		return "no valid session"
	case ReasonMissingTarget:
		return "no target ticket"
	case ReasonNotOwner:
		return "ticket belongs to another user"
	case ReasonRoleRequired:
		return "agent role required"
	case ReasonTicketClosed:
		return "ticket is closed"
	case ReasonInvalidTransition:
		return "status change not allowed"
	case ReasonAssigneeNotAgent:
		return "assignee is not an agent"
	case ReasonNotClosed:
		return "ticket is not closed"
	default:
		return fmt.Sprintf("DenyReason(%d)", int(r))
	}
}

func allow() Decision                 { return Decision{Allowed: true} }
func deny(reason DenyReason) Decision { return Decision{Reason: reason} }

// Authorizer decides whether a session may perform an action. It has no
// side effects; callers record the outcome in the audit log.
type Authorizer struct {
	tokens *TokenManager
}

// NewAuthorizer builds an Authorizer. When tokens is non-nil every session
// must carry a token issued by it.
func NewAuthorizer(tokens *TokenManager) *Authorizer {
	return &Authorizer{tokens: tokens}
}

// Authenticated reports whether session is a logged-in identity: a known
// role, a positive user id and, when tokens are configured, a token issued
// for exactly these fields.
func (a *Authorizer) Authenticated(session *domain.Session) bool {
	if session == nil || session.UserID <= 0 {
		return false
	}
	if _, ok := domain.ParseRole(string(session.Role)); !ok {
		return false
	}
	if a != nil && a.tokens != nil {
		if err := a.tokens.Verify(session); err != nil {
			return false
		}
	}
	return true
}

// Authorize applies the role and ownership table to one request.
func (a *Authorizer) Authorize(session *domain.Session, action Action, target Target) Decision {
	if !a.Authenticated(session) {
		return deny(ReasonNoSession)
	}

	agent := session.IsAgent()
	switch action {
	case ActionList, ActionCreate:
		return allow()
	case ActionReadAudit:
		if !agent {
			return deny(ReasonRoleRequired)
		}
		return allow()
	}

	ticket := target.Ticket
	if ticket == nil {
		return deny(ReasonMissingTarget)
	}
	owner := ticket.IsOwnedBy(session.UserID)

	switch action {
	case ActionView:
		if agent || owner {
			return allow()
		}
		return deny(ReasonNotOwner)

	case ActionEdit:
		if !agent && !owner {
			return deny(ReasonNotOwner)
		}
		if ticket.Status.IsTerminal() {
			return deny(ReasonTicketClosed)
		}
		return allow()

	case ActionChangeStatus:
		if !agent && !owner {
			return deny(ReasonNotOwner)
		}
		if ticket.Status.IsTerminal() {
			return deny(ReasonTicketClosed)
		}
		if !ticket.Status.CanTransition(target.NewStatus) {
			return deny(ReasonInvalidTransition)
		}
		return allow()

	case ActionAssign:
		if !agent {
			return deny(ReasonRoleRequired)
		}
		if ticket.Status.IsTerminal() {
			return deny(ReasonTicketClosed)
		}
		if target.Assignee != nil && !target.Assignee.Role.IsAgent() {
			return deny(ReasonAssigneeNotAgent)
		}
		return allow()

	case ActionDelete:
		if !agent {
			return deny(ReasonRoleRequired)
		}
		if ticket.Status != domain.TicketStatusClosed {
			return deny(ReasonNotClosed)
		}
		return allow()
	}
	return deny(ReasonRoleRequired)
}

// ListScope returns the owner filter a session's listing is limited to, or
// nil when the session may see every ticket.
func ListScope(session *domain.Session) *int64 {
	if session.IsAgent() {
		return nil
	}
	ownerID := session.UserID
	return &ownerID
}

// Err converts a denial into the error reported to the caller. It returns
// nil for allowed decisions.
func (d Decision) Err(action Action, target Target) error {
	if d.Allowed {
		return nil
	}
	if action == ActionDelete && d.Reason != ReasonNoSession {
		switch d.Reason {
		case ReasonNotClosed:
			return apperrors.NewDeletionNotAllowed("only closed tickets can be deleted")
		default:
			return apperrors.NewDeletionNotAllowed("only agents can delete tickets")
		}
	}
	switch d.Reason {
	case ReasonTicketClosed:
		return apperrors.NewTerminalState("ticket is closed and can no longer change")
	case ReasonInvalidTransition:
		from := ""
		if target.Ticket != nil {
			from = string(target.Ticket.Status)
		}
		return apperrors.NewInvalidTransition(from, string(target.NewStatus))
	case ReasonAssigneeNotAgent:
		details := map[string]any{}
		if target.Assignee != nil {
			details["user_id"] = target.Assignee.ID
		}
		return apperrors.NewInvalidAssignee("tickets can only be assigned to agents", details)
	case ReasonNoSession:
		return apperrors.NewForbidden("please log in again")
	case ReasonRoleRequired:
		return apperrors.NewForbidden("this action requires the agent role")
	default:
		return apperrors.NewForbidden(d.Reason.String())
	}
}

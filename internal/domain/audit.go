package domain

import "time"

// AuditAction identifies the security-relevant action being recorded.
type AuditAction string

const (
	ActionRegister             AuditAction = "REGISTER"
	ActionLogin                AuditAction = "LOGIN"
	ActionLoginFailed          AuditAction = "LOGIN_FAILED"
	ActionLogout               AuditAction = "LOGOUT"
	ActionTicketCreate         AuditAction = "TICKET_CREATE"
	ActionTicketUpdate         AuditAction = "TICKET_UPDATE"
	ActionTicketStatusChange   AuditAction = "TICKET_STATUS_CHANGE"
	ActionTicketPriorityChange AuditAction = "TICKET_PRIORITY_CHANGE"
	ActionTicketAssigneeChange AuditAction = "TICKET_ASSIGNEE_CHANGE"
	ActionTicketDelete         AuditAction = "TICKET_DELETE"
	ActionSecurityDemo         AuditAction = "SECURITY_DEMO"
	ActionAccessDenied         AuditAction = "ACCESS_DENIED"
)

// AuditEntity names the kind of object an audit entry refers to.
type AuditEntity string

const (
	EntityUser    AuditEntity = "user"
	EntityTicket  AuditEntity = "ticket"
	EntitySession AuditEntity = "session"
	EntityDemo    AuditEntity = "demo"
)

// AuditStatus is the outcome of the recorded action.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditDenied  AuditStatus = "denied"
	AuditError   AuditStatus = "error"
)

// Actor fields used for entries written without a session.
const (
	AnonymousUserID = "anonymous"
	UnknownActor    = "unknown"
)

// AuditEntry is one immutable line of the audit trail. PrevHash and Hash
// chain each entry to the one before it.
type AuditEntry struct {
	Timestamp time.Time
	UserID    string
	Username  string
	Role      string
	Action    AuditAction
	Entity    AuditEntity
	EntityID  string
	Status    AuditStatus
	Details   string
	PrevHash  string
	Hash      string
}

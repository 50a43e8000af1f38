package dto

import "time"

// AuditEntryResponse is one audit line as shown to agents.
type AuditEntryResponse struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	Status    string    `json:"status"`
	Details   string    `json:"details"`
}

// VerifyAuditResponse reports the audit chain check.
type VerifyAuditResponse struct {
	Entries  int    `json:"entries"`
	Valid    bool   `json:"valid"`
	BrokenAt int    `json:"broken_at,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// DemoResponse is the output of a security demo.
type DemoResponse struct {
	Demo  int      `json:"demo"`
	Lines []string `json:"lines"`
}

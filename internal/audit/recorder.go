package audit

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Recorder fills in the actor fields of an entry from a session, or from
// the anonymous actor when there is none.
type Recorder struct {
	sink   Sink
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder wraps sink.
func NewRecorder(sink Sink, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{sink: sink, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Event describes what happened, without the actor.
type Event struct {
	Action   domain.AuditAction
	Entity   domain.AuditEntity
	EntityID string
	Status   domain.AuditStatus
	Details  string
}

// Session records ev on behalf of session. A nil session is anonymous.
func (r *Recorder) Session(ctx context.Context, session *domain.Session, ev Event) error {
	if session == nil {
		return r.Anonymous(ctx, domain.UnknownActor, ev)
	}
	return r.record(ctx, domain.AuditEntry{
		UserID:   strconv.FormatInt(session.UserID, 10),
		Username: session.Username,
		Role:     string(session.Role),
	}, ev)
}

// User records ev on behalf of an account that has no session yet, such as
// a registration or a successful login.
func (r *Recorder) User(ctx context.Context, user *domain.User, ev Event) error {
	return r.record(ctx, domain.AuditEntry{
		UserID:   strconv.FormatInt(user.ID, 10),
		Username: user.Username,
		Role:     string(user.Role),
	}, ev)
}

// Anonymous records ev with no known account. username is what the caller
// claimed to be, if anything.
func (r *Recorder) Anonymous(ctx context.Context, username string, ev Event) error {
	if username == "" {
		username = domain.UnknownActor
	}
	return r.record(ctx, domain.AuditEntry{
		UserID:   domain.AnonymousUserID,
		Username: username,
		Role:     domain.UnknownActor,
	}, ev)
}

func (r *Recorder) record(ctx context.Context, entry domain.AuditEntry, ev Event) error {
	entry.Timestamp = r.now()
	entry.Action = ev.Action
	entry.Entity = ev.Entity
	entry.EntityID = ev.EntityID
	entry.Status = ev.Status
	entry.Details = ev.Details
	if err := r.sink.Record(ctx, entry); err != nil {
		r.logger.Error("audit entry not recorded",
			zap.String("action", string(ev.Action)),
			zap.String("entity_id", ev.EntityID),
			zap.Error(err))
		return err
	}
	return nil
}

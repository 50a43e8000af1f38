package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// testClock advances one second per reading.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type testEnv struct {
	ctx         context.Context
	dir         string
	ticketsPath string
	auditPath   string
	users       repository.UserRepository
	tickets     repository.TicketRepository
	auth        *AuthService
	svc         *TicketService
	notices     *NotificationService
	demo        *DemoService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)
	clock := &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}

	env := &testEnv{
		ctx:         context.Background(),
		dir:         dir,
		ticketsPath: filepath.Join(dir, "data", "tickets.jsonl"),
		auditPath:   filepath.Join(dir, "logs", "audit.log"),
	}
	env.users = repository.NewUserRepository(filepath.Join(dir, "data", "users.jsonl"), logger)
	env.tickets = repository.NewTicketRepository(env.ticketsPath, logger)

	tokens, err := auth.NewTokenManager("test-secret", 60)
	require.NoError(t, err)
	tokens.WithClock(clock.Now)
	hasher, err := auth.NewHasher(auth.SchemeSHA256, 0)
	require.NoError(t, err)

	recorder := audit.NewRecorder(audit.NewFileLog(env.auditPath, logger), logger).WithClock(clock.Now)
	dispatcher := events.NewInMemoryDispatcher(logger)
	env.notices = NewNotificationService(dispatcher, logger)
	env.notices.RegisterHandlers()

	env.auth = NewAuthService(AuthDependencies{
		UserRepo:     env.users,
		Hasher:       hasher,
		TokenManager: tokens,
		Audit:        recorder,
		Logger:       logger,
		Clock:        clock.Now,
	})
	env.svc = NewTicketService(TicketDependencies{
		TicketRepo: env.tickets,
		UserRepo:   env.users,
		Authorizer: auth.NewAuthorizer(tokens),
		Audit:      recorder,
		Dispatcher: dispatcher,
		Logger:     logger,
		Clock:      clock.Now,
	})
	env.demo = NewDemoService(recorder)
	return env
}

// signUp registers and logs in.
func (e *testEnv) signUp(t *testing.T, username string, role domain.Role) (*domain.User, *domain.Session) {
	t.Helper()
	user, err := e.auth.Register(e.ctx, username, username+"-pw1", string(role))
	require.NoError(t, err)
	session, err := e.auth.Login(e.ctx, username, username+"-pw1")
	require.NoError(t, err)
	return user, session
}

func (e *testEnv) createTicket(t *testing.T, session *domain.Session, title string) *domain.Ticket {
	t.Helper()
	ticket, err := e.svc.Create(e.ctx, session, TicketCreateInput{
		Title:       title,
		Description: "details for " + title,
		Priority:    domain.TicketPriorityMedium,
	})
	require.NoError(t, err)
	return ticket
}

func (e *testEnv) auditEntries(t *testing.T, actions ...domain.AuditAction) []domain.AuditEntry {
	t.Helper()
	entries, err := audit.Tail(e.ctx, e.auditPath, audit.Filter{Actions: actions}, 0, nil)
	require.NoError(t, err)
	return entries
}

func ptr[T any](v T) *T { return &v }

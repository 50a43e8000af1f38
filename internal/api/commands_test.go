package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func newCommands(t *testing.T) *Commands {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Storage.DataDir = dir + "/data"
	cfg.Storage.LogDir = dir + "/logs"
	cfg.Auth.SessionSecret = "test-secret"
	cmds, err := Build(&cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return cmds
}

func login(t *testing.T, c *Commands, username, password, role string) *domain.Session {
	t.Helper()
	ctx := context.Background()
	_, err := c.Register(ctx, dto.RegisterRequest{Username: username, Password: password, Role: role})
	require.NoError(t, err)
	session, resp, err := c.Login(ctx, dto.LoginRequest{Username: username, Password: password})
	require.NoError(t, err)
	assert.Equal(t, username, resp.Username)
	return session
}

func TestCommands_TicketFlow(t *testing.T) {
	ctx := context.Background()
	c := newCommands(t)
	dean := login(t, c, "dean", "secret1", "user")
	alice := login(t, c, "alice", "secret2", "agent")

	created, err := c.CreateTicket(ctx, dean, dto.CreateTicketRequest{Title: "API down", Description: "500 errors", Priority: "high"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, []domain.TicketStatus{domain.TicketStatusInProgress, domain.TicketStatusClosed}, created.NextStatuses)

	_, err = c.AssignTicket(ctx, alice, "1", "2")
	require.NoError(t, err)

	mine, err := c.ListTickets(ctx, alice, dto.TicketListQuery{AssignedToMe: true})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	status := "in progress"
	edited, err := c.EditTicket(ctx, alice, "1", dto.EditTicketRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, edited.Status)

	open, err := c.ListTickets(ctx, dean, dto.TicketListQuery{Status: "open"})
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = c.ListTickets(ctx, dean, dto.TicketListQuery{Priority: "urgent"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = c.ViewTicket(ctx, dean, "abc")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	err = c.DeleteTicket(ctx, alice, "1")
	assert.ErrorIs(t, err, apperrors.ErrDeletionNotAllowed)
	assert.Equal(t, "only closed tickets can be deleted", apperrors.UserMessage(err))

	_, resp, err := c.Login(ctx, dto.LoginRequest{Username: "dean", Password: "secret1"})
	require.NoError(t, err)
	require.Len(t, resp.Notices, 2)

	notices, err := c.Notices(ctx, dean, true)
	require.NoError(t, err)
	assert.Len(t, notices, 2)
}

func TestCommands_AuditAccess(t *testing.T) {
	ctx := context.Background()
	c := newCommands(t)
	dean := login(t, c, "dean", "secret1", "user")
	alice := login(t, c, "alice", "secret2", "agent")

	_, err := c.AuditTrail(ctx, dean, "")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = c.VerifyAudit(ctx, dean)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	entries, err := c.AuditTrail(ctx, alice, "3")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	last := entries[len(entries)-1]
	assert.Equal(t, string(domain.ActionAccessDenied), last.Action)
	assert.Equal(t, "AUDIT_VERIFY: agent role required", last.Details)

	result, err := c.VerifyAudit(ctx, alice)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 6, result.Entries)
}

func TestCommands_SecurityDemo(t *testing.T) {
	ctx := context.Background()
	c := newCommands(t)

	_, err := c.RunSecurityDemo(ctx, nil, "1", "0")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	dean := login(t, c, "dean", "secret1", "user")
	resp, err := c.RunSecurityDemo(ctx, dean, "2", "10", "20")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Demo)
	assert.Equal(t, "10 + 20 = 30", resp.Lines[0])

	_, err = c.RunSecurityDemo(ctx, dean, "9")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCommands_LoginFailureMessage(t *testing.T) {
	ctx := context.Background()
	c := newCommands(t)
	login(t, c, "dean", "secret1", "user")

	_, _, wrong := c.Login(ctx, dto.LoginRequest{Username: "dean", Password: "nope123"})
	_, _, unknown := c.Login(ctx, dto.LoginRequest{Username: "ghost", Password: "secret1"})
	assert.Equal(t, apperrors.UserMessage(wrong), apperrors.UserMessage(unknown))
	assert.Equal(t, "invalid username or password", apperrors.UserMessage(wrong))
}

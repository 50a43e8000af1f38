package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func newTicket(owner int64, title string) *domain.Ticket {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.Ticket{
		OwnerID:     owner,
		Title:       title,
		Description: "something is broken",
		Priority:    domain.TicketPriorityMedium,
		Status:      domain.TicketStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(filepath.Join(t.TempDir(), "users.jsonl"), zaptest.NewLogger(t))

	alice := &domain.User{Username: "alice", PasswordHash: "h1", Role: domain.RoleUser}
	require.NoError(t, repo.Create(ctx, alice))
	assert.Equal(t, int64(1), alice.ID)

	dean := &domain.User{Username: "dean", PasswordHash: "h2", Role: domain.RoleAgent}
	require.NoError(t, repo.Create(ctx, dean))
	assert.Equal(t, int64(2), dean.ID)

	err := repo.Create(ctx, &domain.User{Username: "alice", PasswordHash: "h3", Role: domain.RoleAgent})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateUsername)

	got, err := repo.GetByUsername(ctx, "dean")
	require.NoError(t, err)
	assert.Equal(t, *dean, *got)

	_, err = repo.GetByUsername(ctx, "Dean")
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "usernames match exactly")

	got, err = repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = repo.GetByID(ctx, 99)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestTicketRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tickets.jsonl")
	repo := NewTicketRepository(path, zaptest.NewLogger(t))

	first := newTicket(1, "Printer jam")
	require.NoError(t, repo.Create(ctx, first))
	second := newTicket(2, "VPN down")
	require.NoError(t, repo.Create(ctx, second))
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)

	second.Status = domain.TicketStatusClosed
	require.NoError(t, repo.Update(ctx, second))

	got, err := repo.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, got.Status)

	missing := newTicket(1, "ghost")
	missing.ID = 42
	assert.ErrorIs(t, repo.Update(ctx, missing), apperrors.ErrNotFound)

	before, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Delete(ctx, 42), apperrors.ErrNotFound)
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed delete leaves the file untouched")

	require.NoError(t, repo.Delete(ctx, 1))
	_, err = repo.GetByID(ctx, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	third := newTicket(1, "New laptop")
	require.NoError(t, repo.Create(ctx, third))
	assert.Equal(t, int64(3), third.ID, "ids are never reused below the maximum")
}

func TestTicketRepository_ListFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketRepository(filepath.Join(t.TempDir(), "tickets.jsonl"), zaptest.NewLogger(t))

	agent := int64(7)
	for i, owner := range []int64{1, 2, 1, 3} {
		ticket := newTicket(owner, "ticket")
		if i == 2 {
			ticket.AssigneeID = &agent
			ticket.Priority = domain.TicketPriorityHigh
			ticket.Status = domain.TicketStatusInProgress
		}
		require.NoError(t, repo.Create(ctx, ticket))
	}

	all, err := repo.List(ctx, TicketFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, ticket := range all {
		assert.Equal(t, int64(i+1), ticket.ID)
	}

	owner := int64(1)
	mine, err := repo.List(ctx, TicketFilter{OwnerID: &owner})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	assigned, err := repo.List(ctx, TicketFilter{AssigneeID: &agent})
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, int64(3), assigned[0].ID)

	high, err := repo.List(ctx, TicketFilter{
		Statuses:   []domain.TicketStatus{domain.TicketStatusInProgress},
		Priorities: []domain.TicketPriority{domain.TicketPriorityHigh},
	})
	require.NoError(t, err)
	assert.Len(t, high, 1)

	nobody := int64(99)
	none, err := repo.List(ctx, TicketFilter{OwnerID: &nobody})
	require.NoError(t, err)
	assert.Empty(t, none)
}

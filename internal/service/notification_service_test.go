package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestNotificationService_OwnerChangesAreSilent(t *testing.T) {
	env := newTestEnv(t)
	ownerUser, owner := env.signUp(t, "owner", domain.RoleUser)
	_, agent := env.signUp(t, "agent1", domain.RoleAgent)
	ticket := env.createTicket(t, owner, "Projector")

	_, err := env.svc.Edit(env.ctx, owner, ticket.ID, TicketEditInput{Priority: ptr(domain.TicketPriorityHigh)})
	require.NoError(t, err)
	assert.Empty(t, env.notices.Drain(ownerUser.ID))

	_, err = env.svc.Edit(env.ctx, agent, ticket.ID, TicketEditInput{
		Title:  ptr("Projector bulb"),
		Status: ptr(domain.TicketStatusInProgress),
	})
	require.NoError(t, err)

	notices := env.notices.Drain(ownerUser.ID)
	require.Len(t, notices, 2)
	assert.Equal(t, "agent1 updated the title of ticket #1", notices[0].Message)
	assert.Equal(t, "agent1 moved ticket #1 from open to in_progress", notices[1].Message)
	assert.Equal(t, ticket.ID, notices[0].TicketID)
}

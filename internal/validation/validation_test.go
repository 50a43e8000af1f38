package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func TestUsername(t *testing.T) {
	cases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "dean", want: "dean"},
		{raw: "  alice.b_2  ", want: "alice.b_2"},
		{raw: "ab", wantErr: true},
		{raw: strings.Repeat("a", 31), wantErr: true},
		{raw: strings.Repeat("a", 30), want: strings.Repeat("a", 30)},
		{raw: "bob smith", wantErr: true},
		{raw: "robert');--", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := Username(tc.raw)
		if tc.wantErr {
			require.Error(t, err, tc.raw)
			assert.True(t, errors.Is(err, apperrors.ErrValidation))
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got)
	}
}

func TestPassword(t *testing.T) {
	_, err := Password("12345")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	got, err := Password(" secret ")
	require.NoError(t, err)
	assert.Equal(t, " secret ", got, "passwords are not trimmed")

	_, err = Password(strings.Repeat("x", PasswordMaxLen+1))
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.NotContains(t, err.Error(), "xxxx")
}

func TestEnums(t *testing.T) {
	role, err := Role(" Agent ")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAgent, role)
	_, err = Role("admin")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	priority, err := Priority("HIGH")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityHigh, priority)
	_, err = Priority("urgent")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	for _, raw := range []string{"in_progress", "in progress", "In-Progress"} {
		status, err := Status(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, domain.TicketStatusInProgress, status)
	}
	_, err = Status("resolved")
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestText(t *testing.T) {
	assert.Equal(t, "line one line two", Text("line one\nline two", 100))
	assert.Equal(t, "a  b", Text("a\r\tb", 100), "each break becomes its own space")
	assert.Equal(t, "bell", Text("be\x07ll\x00", 100))
	assert.Equal(t, "abc", Text("  abcdef  ", 3))
	assert.Equal(t, "ñañ", Text("ñañaña", 3), "truncation counts runes")

	injection := "Robert'); DROP TABLE tickets;--"
	assert.Equal(t, injection, Text(injection, DescriptionMaxLen))
}

func TestTitleAndDescription(t *testing.T) {
	_, err := Title(" a\n ")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	title, err := Title(strings.Repeat("t", 150))
	require.NoError(t, err)
	assert.Len(t, title, TitleMaxLen)

	description, err := Description("500 errors\nsince noon")
	require.NoError(t, err)
	assert.Equal(t, "500 errors since noon", description)

	long, err := Description(strings.Repeat("d", 5000))
	require.NoError(t, err)
	assert.Len(t, long, DescriptionMaxLen)
}

func TestTransition(t *testing.T) {
	allowed := [][2]domain.TicketStatus{
		{domain.TicketStatusOpen, domain.TicketStatusInProgress},
		{domain.TicketStatusOpen, domain.TicketStatusClosed},
		{domain.TicketStatusInProgress, domain.TicketStatusClosed},
	}
	for _, edge := range allowed {
		assert.NoError(t, Transition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}

	require.ErrorIs(t, Transition(domain.TicketStatusInProgress, domain.TicketStatusOpen), apperrors.ErrInvalidTransition)
	require.ErrorIs(t, Transition(domain.TicketStatusOpen, domain.TicketStatusOpen), apperrors.ErrInvalidTransition)
	for _, next := range domain.TicketStatuses {
		require.ErrorIs(t, Transition(domain.TicketStatusClosed, next), apperrors.ErrTerminalState)
	}
}

func TestID(t *testing.T) {
	id, err := ID(" 42 ", "ticket id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "1; rm -rf", "99999999999999999999"} {
		_, err := ID(raw, "ticket id")
		require.ErrorIs(t, err, apperrors.ErrValidation, raw)
	}

	n, err := NonNegativeInt("0", "count")
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = NonNegativeInt("-1", "count")
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

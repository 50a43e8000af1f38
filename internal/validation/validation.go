// Package validation checks and normalizes every piece of untrusted input
// before it reaches the services. Functions are pure and return either the
// normalized value or a VALIDATION_FAILED error with a message that is safe to
// show at the prompt.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const (
	UsernameMinLen = 3
	UsernameMaxLen = 30

	PasswordMinLen = 6
	PasswordMaxLen = 128

	TitleMinLen       = 3
	TitleMaxLen       = 100
	DescriptionMinLen = 3
	DescriptionMaxLen = 1000
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._]{3,30}$`)

// Username trims surrounding whitespace and enforces the allowed alphabet
// and length.
func Username(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if !usernamePattern.MatchString(username) {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("username must be %d-%d characters of letters, digits, '.' or '_'", UsernameMinLen, UsernameMaxLen),
			map[string]any{"field": "username"})
	}
	return username, nil
}

// Password enforces length only. The value is never trimmed or echoed back.
func Password(raw string) (string, error) {
	if len(raw) < PasswordMinLen || len(raw) > PasswordMaxLen {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("password must be %d-%d characters", PasswordMinLen, PasswordMaxLen),
			map[string]any{"field": "password"})
	}
	return raw, nil
}

// Role parses a role name.
func Role(raw string) (domain.Role, error) {
	role, ok := domain.ParseRole(raw)
	if !ok {
		return "", apperrors.NewValidationError("role must be one of: user, agent",
			map[string]any{"field": "role"})
	}
	return role, nil
}

// Priority parses a ticket priority.
func Priority(raw string) (domain.TicketPriority, error) {
	priority, ok := domain.ParseTicketPriority(raw)
	if !ok {
		return "", apperrors.NewValidationError("priority must be one of: low, medium, high",
			map[string]any{"field": "priority"})
	}
	return priority, nil
}

// Status parses a ticket status. "in progress" and "in-progress" are
// accepted for in_progress.
func Status(raw string) (domain.TicketStatus, error) {
	status, ok := domain.ParseTicketStatus(raw)
	if !ok {
		return "", apperrors.NewValidationError("status must be one of: open, in_progress, closed",
			map[string]any{"field": "status"})
	}
	return status, nil
}

// Text sanitizes free text for storage: line breaks and tabs become spaces,
// other control characters are dropped, and the result is trimmed and cut to
// max runes. Over-long input is truncated, never rejected.
func Text(raw string, max int) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(' ')
		case r == utf8.RuneError:
			continue
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	text := strings.TrimSpace(b.String())
	return Truncate(text, max)
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}

// Title sanitizes a ticket title and requires a minimum length.
func Title(raw string) (string, error) {
	title := Text(raw, TitleMaxLen)
	if utf8.RuneCountInString(title) < TitleMinLen {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("title must be %d-%d characters", TitleMinLen, TitleMaxLen),
			map[string]any{"field": "title"})
	}
	return title, nil
}

// Description sanitizes a ticket description and requires a minimum length.
func Description(raw string) (string, error) {
	description := Text(raw, DescriptionMaxLen)
	if utf8.RuneCountInString(description) < DescriptionMinLen {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("description must be at least %d characters", DescriptionMinLen),
			map[string]any{"field": "description"})
	}
	return description, nil
}

// Transition checks a status change against the lifecycle graph.
func Transition(from, to domain.TicketStatus) error {
	if from.IsTerminal() {
		return apperrors.NewTerminalState("ticket is closed and can no longer change")
	}
	if !from.CanTransition(to) {
		return apperrors.NewInvalidTransition(string(from), string(to))
	}
	return nil
}

// ID parses a positive decimal identifier typed at the prompt.
func ID(raw, field string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError(field+" must be a positive number",
			map[string]any{"field": field})
	}
	return id, nil
}

// NonNegativeInt parses a whole number that may be zero.
func NonNegativeInt(raw, field string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return 0, apperrors.NewValidationError(field+" must be a whole number of zero or more",
			map[string]any{"field": field})
	}
	return n, nil
}

package shell

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/helpdesk/internal/api"
	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func newCommands(t *testing.T) *api.Commands {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Storage.DataDir = dir + "/data"
	cfg.Storage.LogDir = dir + "/logs"
	cfg.Auth.SessionSecret = "test-secret"
	cmds, err := api.Build(&cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return cmds
}

// script joins input lines the way a user would type them.
func script(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

func run(t *testing.T, cmds *api.Commands, metrics *observability.Metrics, input *strings.Reader) string {
	t.Helper()
	var out bytes.Buffer
	sh := New(cmds, input, &out, WithMetrics(metrics), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, sh.Run(context.Background()))
	return out.String()
}

func TestShell_TicketSession(t *testing.T) {
	cmds := newCommands(t)
	metrics := observability.NewMetrics()

	out := run(t, cmds, metrics, script(
		"register", "dean", "secret1", "user",
		"register", "alice", "secret2", "agent",
		"login", "dean", "secret1",
		"whoami",
		"create", "API down", "500 errors", "high",
		"list",
		"list in progress",
		"view 1",
		"logout",
		"login", "alice", "secret2",
		"assign 1 2",
		"edit 1", "", "", "", "in progress",
		"list mine",
		"quit",
	))

	assert.Contains(t, out, "registered dean (id 1, user)")
	assert.Contains(t, out, "registered alice (id 2, agent)")
	assert.Contains(t, out, "welcome, dean (user)")
	assert.Contains(t, out, "dean (id 1, user)")
	assert.Contains(t, out, "ticket #1 created")
	assert.Contains(t, out, "API down")
	assert.Contains(t, out, "no tickets")
	assert.Contains(t, out, "500 errors")
	assert.Contains(t, out, "goodbye, dean")
	assert.Contains(t, out, "ticket #1 assigned to agent 2")
	assert.Contains(t, out, "ticket #1 updated")
	assert.Contains(t, out, "in_progress")
	assert.NotContains(t, out, "error:")

	var create observability.CommandStats
	for _, st := range metrics.Snapshot() {
		if st.Command == "create" {
			create = st
		}
	}
	assert.Equal(t, int64(1), create.Count)
	assert.Zero(t, create.Errors)
}

func TestShell_Errors(t *testing.T) {
	cmds := newCommands(t)
	metrics := observability.NewMetrics()

	out := run(t, cmds, metrics, script(
		"frobnicate",
		"view 1",
		"register", "dean", "secret1", "user",
		"login", "dean", "wrong",
		"login", "dean", "secret1",
		"login",
		"view",
		"view 9",
		"audit",
		"exit",
	))

	assert.Contains(t, out, `unknown command "frobnicate"`)
	assert.Contains(t, out, "please log in first")
	assert.Contains(t, out, "invalid username or password")
	assert.Contains(t, out, "already logged in as dean")
	assert.Contains(t, out, "usage: view <id>")
	assert.Contains(t, out, "ticket not found")
	assert.Contains(t, out, "requires the agent role")

	var loginStats observability.CommandStats
	for _, st := range metrics.Snapshot() {
		if st.Command == "login" {
			loginStats = st
		}
	}
	assert.Equal(t, int64(3), loginStats.Count)
	assert.Equal(t, int64(2), loginStats.Errors)
	assert.Equal(t, int64(1), loginStats.ErrCodes[apperrors.CodeAuthentication])
}

func TestShell_DeleteNeedsConfirmation(t *testing.T) {
	cmds := newCommands(t)

	out := run(t, cmds, observability.NewMetrics(), script(
		"register", "dean", "secret1", "user",
		"register", "alice", "secret2", "agent",
		"login", "dean", "secret1",
		"create", "Printer jam", "tray 2", "low",
		"logout",
		"login", "alice", "secret2",
		"edit 1", "", "", "", "closed",
		"delete 1", "n",
		"view 1",
		"delete 1", "y",
		"list",
		"quit",
	))

	assert.Contains(t, out, "deletion cancelled")
	assert.Contains(t, out, "Ticket #1: Printer jam")
	assert.Contains(t, out, "ticket #1 deleted")
	assert.Contains(t, out, "no tickets")
}

func TestShell_EndOfInputLogsOut(t *testing.T) {
	cmds := newCommands(t)

	out := run(t, cmds, observability.NewMetrics(), script(
		"register", "agent1", "secret1", "agent",
		"login", "agent1", "secret1",
		"demo 2", "99999", "1",
	))

	assert.Contains(t, out, "99,999 + 1 = 100,000")

	var buf bytes.Buffer
	sh := New(cmds, script("login", "agent1", "secret1", "audit 3", "verify-audit", "quit"), &buf)
	require.NoError(t, sh.Run(context.Background()))
	assert.Contains(t, buf.String(), "LOGOUT")
	assert.Contains(t, buf.String(), "SECURITY_DEMO")
	assert.Contains(t, buf.String(), "audit log intact")
}

func TestShell_HelpAndStats(t *testing.T) {
	cmds := newCommands(t)

	out := run(t, cmds, observability.NewMetrics(), script("help", "stats", "quit"))

	for _, c := range commands {
		assert.Contains(t, out, c.usage)
	}
	assert.Contains(t, out, "COMMAND")
	assert.Contains(t, out, "help")
}

// runUntilCancelled starts the shell on input and cancels it once wait has
// passed, returning what Run returned.
func runUntilCancelled(t *testing.T, cmds *api.Commands, input io.Reader, out io.Writer, wait time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sh := New(cmds, input, out, WithLogger(zaptest.NewLogger(t)))
	done := make(chan error, 1)
	go func() { done <- sh.Run(ctx) }()

	time.Sleep(wait)
	cancel()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("shell did not stop after cancellation")
		return nil
	}
}

func TestShell_CancelWhileWaitingForCommand(t *testing.T) {
	cmds := newCommands(t)
	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	err := runUntilCancelled(t, cmds, pr, &out, 50*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, out.String(), "helpdesk> ")
}

func TestShell_CancelAtPasswordPrompt(t *testing.T) {
	cmds := newCommands(t)
	_, err := cmds.Register(context.Background(), dto.RegisterRequest{Username: "dean", Password: "secret1", Role: "user"})
	require.NoError(t, err)

	pr, pw := io.Pipe()
	defer pw.Close()
	go func() { _, _ = io.WriteString(pw, "login\ndean\n") }()

	var out bytes.Buffer
	err = runUntilCancelled(t, cmds, pr, &out, 100*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, out.String(), "Password: ")
	assert.NotContains(t, out.String(), "error:", "cancellation is not reported as a failed command")
}

func TestShell_StaleSessionIsDropped(t *testing.T) {
	cmds := newCommands(t)
	_, err := cmds.Register(context.Background(), dto.RegisterRequest{Username: "dean", Password: "secret1", Role: "user"})
	require.NoError(t, err)

	var out bytes.Buffer
	sh := New(cmds, script("list", "whoami", "login", "dean", "secret1", "whoami", "quit"), &out,
		WithLogger(zaptest.NewLogger(t)))
	// A session whose token no longer verifies, as after expiry.
	sh.session = &domain.Session{ID: "old", UserID: 1, Username: "dean", Role: domain.RoleUser, IssuedAt: time.Now()}
	require.NoError(t, sh.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "please log in again")
	assert.Contains(t, text, "your session has ended")
	assert.Contains(t, text, "please log in first", "whoami needs a session once the stale one is gone")
	assert.Contains(t, text, "welcome, dean (user)")
	assert.NotContains(t, text, "already logged in")
}

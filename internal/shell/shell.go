// Package shell is the interactive prompt. It reads one command per line,
// prompts for any further input, calls api.Commands and renders the result.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spec-kit/helpdesk/internal/api"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// errQuit ends the loop.
var errQuit = errors.New("quit")

type readResult struct {
	line string
	err  error
}

type styles struct {
	title   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
	prompt  lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		success: r.NewStyle().Foreground(lipgloss.Color("10")),
		failure: r.NewStyle().Foreground(lipgloss.Color("9")),
		muted:   r.NewStyle().Faint(true),
		prompt:  r.NewStyle().Bold(true),
	}
}

// Shell is one interactive session over a reader and a writer.
type Shell struct {
	cmds    *api.Commands
	in      *bufio.Reader
	out     io.Writer
	termFD  int
	metrics *observability.Metrics
	logger  *zap.Logger
	styles  styles
	now     func() time.Time

	session *domain.Session

	// A line read outlives a cancelled prompt; the next prompt collects it.
	pending bool
	lines   chan readResult
}

// Option configures a Shell.
type Option func(*Shell)

// WithTerminal reads passwords from fd with echo off when fd is a terminal.
func WithTerminal(fd int) Option {
	return func(s *Shell) { s.termFD = fd }
}

// WithMetrics records every command in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Shell) { s.metrics = m }
}

// WithLogger sets the operational logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Shell) { s.logger = logger }
}

// New builds a shell reading commands from in and writing to out.
func New(cmds *api.Commands, in io.Reader, out io.Writer, opts ...Option) *Shell {
	s := &Shell{
		cmds:    cmds,
		in:      bufio.NewReader(in),
		out:     out,
		termFD:  -1,
		metrics: observability.NewMetrics(),
		logger:  zap.NewNop(),
		styles:  newStyles(out),
		now:     time.Now,
		lines:   make(chan readResult, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reads and executes commands until quit, end of input or ctx is done.
// The session, if any, is logged out on the way out.
func (s *Shell) Run(ctx context.Context) error {
	defer s.logout(context.WithoutCancel(ctx))

	s.println(s.styles.title.Render("Help desk") + s.styles.muted.Render("  type 'help' for commands"))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := s.readLine(ctx, s.promptLabel())
		if errors.Is(err, io.EOF) {
			s.println("")
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		err = s.execute(ctx, strings.ToLower(fields[0]), fields[1:])
		switch {
		case errors.Is(err, errQuit):
			return nil
		case errors.Is(err, io.EOF):
			s.println("")
			return nil
		case ctx.Err() != nil:
			s.println("")
			return ctx.Err()
		}
	}
}

func (s *Shell) promptLabel() string {
	if s.session == nil {
		return s.styles.prompt.Render("helpdesk> ")
	}
	return s.styles.prompt.Render(fmt.Sprintf("%s@helpdesk> ", s.session.Username))
}

// execute runs one command, renders its error and records metrics.
func (s *Shell) execute(ctx context.Context, name string, args []string) error {
	cmd, ok := commandTable[name]
	if !ok {
		s.fail(apperrors.NewValidationError(fmt.Sprintf("unknown command %q; type 'help'", name), nil))
		return nil
	}
	if cmd.needsSession && s.session == nil {
		s.fail(apperrors.NewForbidden("please log in first"))
		return nil
	}
	if len(args) < cmd.minArgs {
		s.fail(apperrors.NewValidationError("usage: "+cmd.usage, nil))
		return nil
	}

	started := s.now()
	err := cmd.run(s, ctx, args)
	code := ""
	if err != nil && !errors.Is(err, errQuit) && !errors.Is(err, io.EOF) && ctx.Err() == nil {
		code = apperrors.ToDomainError(err).Code
		s.logger.Debug("command failed", zap.String("command", cmd.name), zap.String("code", code), zap.Error(err))
		s.fail(err)
		s.dropStaleSession()
	}
	s.metrics.RecordCommand(cmd.name, code, s.now().Sub(started))
	return err
}

// dropStaleSession forgets a session the engine no longer accepts, such as
// one whose token expired, so the user can log in again.
func (s *Shell) dropStaleSession() {
	if s.session == nil || s.cmds.SessionValid(s.session) {
		return
	}
	s.session = nil
	s.println(s.styles.muted.Render("your session has ended; please log in again"))
}

func (s *Shell) logout(ctx context.Context) {
	if s.session == nil {
		return
	}
	_ = s.cmds.Logout(ctx, s.session)
	s.session = nil
}

// readLine prints label and returns the next line without its line ending.
// It returns ctx.Err() as soon as ctx is done, even while input is pending.
func (s *Shell) readLine(ctx context.Context, label string) (string, error) {
	fmt.Fprint(s.out, label)
	if !s.pending {
		s.pending = true
		go func() {
			line, err := s.in.ReadString('\n')
			s.lines <- readResult{line: line, err: err}
		}()
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-s.lines:
		s.pending = false
		if r.err != nil && !(errors.Is(r.err, io.EOF) && r.line != "") {
			return "", r.err
		}
		return strings.TrimRight(r.line, "\r\n"), nil
	}
}

// readPassword reads without echo on a terminal and as a plain line
// otherwise. A cancelled prompt restores the terminal before returning.
func (s *Shell) readPassword(ctx context.Context, label string) (string, error) {
	if s.termFD < 0 || !term.IsTerminal(s.termFD) || s.pending {
		return s.readLine(ctx, label)
	}
	state, err := term.GetState(s.termFD)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(s.out, label)
	done := make(chan readResult, 1)
	go func() {
		raw, err := term.ReadPassword(s.termFD)
		done <- readResult{line: string(raw), err: err}
	}()
	select {
	case <-ctx.Done():
		_ = term.Restore(s.termFD, state)
		fmt.Fprintln(s.out)
		return "", ctx.Err()
	case r := <-done:
		fmt.Fprintln(s.out)
		if r.err != nil {
			return "", fmt.Errorf("read password: %w", r.err)
		}
		return r.line, nil
	}
}

func (s *Shell) println(text string) { fmt.Fprintln(s.out, text) }

func (s *Shell) ok(text string) { s.println(s.styles.success.Render(text)) }

func (s *Shell) fail(err error) {
	s.println(s.styles.failure.Render("error: " + apperrors.UserMessage(err)))
}

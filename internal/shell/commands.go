package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

type command struct {
	name         string
	usage        string
	summary      string
	minArgs      int
	needsSession bool
	run          func(s *Shell, ctx context.Context, args []string) error
}

// commands lists every command in help order. commandTable indexes it by
// name and alias; both are filled in init to break the reference cycle
// through help.
var (
	commands     []*command
	commandTable map[string]*command
)

func init() {
	commands = []*command{
		{name: "register", usage: "register", summary: "create an account", run: (*Shell).register},
		{name: "login", usage: "login", summary: "log in", run: (*Shell).login},
		{name: "logout", usage: "logout", summary: "log out", needsSession: true, run: (*Shell).logoutCmd},
		{name: "whoami", usage: "whoami", summary: "show the current account", needsSession: true, run: (*Shell).whoami},
		{name: "create", usage: "create", summary: "open a new ticket", needsSession: true, run: (*Shell).create},
		{name: "list", usage: "list [status] [priority] [mine]", summary: "list tickets you can see", needsSession: true, run: (*Shell).list},
		{name: "view", usage: "view <id>", summary: "show one ticket", minArgs: 1, needsSession: true, run: (*Shell).view},
		{name: "edit", usage: "edit <id>", summary: "change title, description, priority or status", minArgs: 1, needsSession: true, run: (*Shell).edit},
		{name: "assign", usage: "assign <id> <agent-id>", summary: "assign a ticket to an agent", minArgs: 2, needsSession: true, run: (*Shell).assign},
		{name: "unassign", usage: "unassign <id>", summary: "clear a ticket's assignee", minArgs: 1, needsSession: true, run: (*Shell).unassign},
		{name: "delete", usage: "delete <id>", summary: "delete a closed ticket", minArgs: 1, needsSession: true, run: (*Shell).deleteTicket},
		{name: "demo", usage: "demo <1|2|3>", summary: "run an input safety demonstration", minArgs: 1, needsSession: true, run: (*Shell).demo},
		{name: "notices", usage: "notices [all]", summary: "show changes others made to your tickets", needsSession: true, run: (*Shell).notices},
		{name: "audit", usage: "audit [n]", summary: "show the last audit entries (agents)", needsSession: true, run: (*Shell).auditTrail},
		{name: "verify-audit", usage: "verify-audit", summary: "check the audit log hash chain (agents)", needsSession: true, run: (*Shell).verifyAudit},
		{name: "stats", usage: "stats", summary: "show command counts for this run", run: (*Shell).stats},
		{name: "help", usage: "help", summary: "show this list", run: (*Shell).help},
		{name: "quit", usage: "quit", summary: "leave (also: exit)", run: (*Shell).quit},
	}
	commandTable = make(map[string]*command, len(commands)+1)
	for _, c := range commands {
		commandTable[c.name] = c
	}
	commandTable["exit"] = commandTable["quit"]
}

func (s *Shell) register(ctx context.Context, _ []string) error {
	username, err := s.readLine(ctx, "Username: ")
	if err != nil {
		return err
	}
	password, err := s.readPassword(ctx, "Password: ")
	if err != nil {
		return err
	}
	role, err := s.readLine(ctx, "Role (user/agent): ")
	if err != nil {
		return err
	}
	user, err := s.cmds.Register(ctx, dto.RegisterRequest{Username: username, Password: password, Role: role})
	if err != nil {
		return err
	}
	s.ok(fmt.Sprintf("registered %s (id %d, %s)", user.Username, user.ID, user.Role))
	return nil
}

func (s *Shell) login(ctx context.Context, _ []string) error {
	if s.session != nil && !s.cmds.SessionValid(s.session) {
		s.session = nil
	}
	if s.session != nil {
		return apperrors.NewValidationError(
			fmt.Sprintf("already logged in as %s; log out first", s.session.Username), nil)
	}
	username, err := s.readLine(ctx, "Username: ")
	if err != nil {
		return err
	}
	password, err := s.readPassword(ctx, "Password: ")
	if err != nil {
		return err
	}
	session, resp, err := s.cmds.Login(ctx, dto.LoginRequest{Username: username, Password: password})
	if err != nil {
		return err
	}
	s.session = session
	s.ok(fmt.Sprintf("welcome, %s (%s)", resp.Username, resp.Role))
	s.renderNotices(resp.Notices)
	return nil
}

func (s *Shell) logoutCmd(ctx context.Context, _ []string) error {
	name := s.session.Username
	s.logout(ctx)
	s.ok("goodbye, " + name)
	return nil
}

func (s *Shell) whoami(_ context.Context, _ []string) error {
	s.println(fmt.Sprintf("%s (id %d, %s), logged in %s",
		s.session.Username, s.session.UserID, s.session.Role, s.since(s.session.IssuedAt)))
	return nil
}

func (s *Shell) create(ctx context.Context, _ []string) error {
	title, err := s.readLine(ctx, "Title: ")
	if err != nil {
		return err
	}
	description, err := s.readLine(ctx, "Description: ")
	if err != nil {
		return err
	}
	priority, err := s.readLine(ctx, "Priority (low/medium/high): ")
	if err != nil {
		return err
	}
	ticket, err := s.cmds.CreateTicket(ctx, s.session, dto.CreateTicketRequest{
		Title: title, Description: description, Priority: priority,
	})
	if err != nil {
		return err
	}
	s.ok(fmt.Sprintf("ticket #%d created", ticket.ID))
	return nil
}

func (s *Shell) list(ctx context.Context, args []string) error {
	var query dto.TicketListQuery
	var status []string
	for _, arg := range args {
		switch {
		case strings.EqualFold(arg, "mine"):
			query.AssignedToMe = true
		case isPriority(arg):
			query.Priority = arg
		default:
			status = append(status, arg)
		}
	}
	// "in progress" arrives as two fields.
	query.Status = strings.Join(status, " ")
	tickets, err := s.cmds.ListTickets(ctx, s.session, query)
	if err != nil {
		return err
	}
	s.renderTickets(tickets)
	return nil
}

func (s *Shell) view(ctx context.Context, args []string) error {
	ticket, err := s.cmds.ViewTicket(ctx, s.session, args[0])
	if err != nil {
		return err
	}
	s.renderTicket(ticket)
	return nil
}

func (s *Shell) edit(ctx context.Context, args []string) error {
	ticket, err := s.cmds.ViewTicket(ctx, s.session, args[0])
	if err != nil {
		return err
	}
	s.renderTicket(ticket)
	s.println(s.styles.muted.Render("press enter to keep a value"))

	var req dto.EditTicketRequest
	prompts := []struct {
		label string
		field **string
	}{
		{"New title: ", &req.Title},
		{"New description: ", &req.Description},
		{"New priority (low/medium/high): ", &req.Priority},
		{fmt.Sprintf("New status (%s): ", statusChoices(ticket.NextStatuses)), &req.Status},
	}
	for _, p := range prompts {
		value, err := s.readLine(ctx, p.label)
		if err != nil {
			return err
		}
		if strings.TrimSpace(value) != "" {
			*p.field = &value
		}
	}

	updated, err := s.cmds.EditTicket(ctx, s.session, args[0], req)
	if err != nil {
		return err
	}
	if updated.UpdatedAt.Equal(ticket.UpdatedAt) {
		s.println("no changes made")
		return nil
	}
	s.ok(fmt.Sprintf("ticket #%d updated", updated.ID))
	return nil
}

func (s *Shell) assign(ctx context.Context, args []string) error {
	ticket, err := s.cmds.AssignTicket(ctx, s.session, args[0], args[1])
	if err != nil {
		return err
	}
	s.ok(fmt.Sprintf("ticket #%d assigned to %s", ticket.ID, assigneeText(ticket.AssigneeID)))
	return nil
}

func (s *Shell) unassign(ctx context.Context, args []string) error {
	ticket, err := s.cmds.UnassignTicket(ctx, s.session, args[0])
	if err != nil {
		return err
	}
	s.ok(fmt.Sprintf("ticket #%d is unassigned", ticket.ID))
	return nil
}

func (s *Shell) deleteTicket(ctx context.Context, args []string) error {
	ticket, err := s.cmds.ViewTicket(ctx, s.session, args[0])
	if err != nil {
		return err
	}
	answer, err := s.readLine(ctx, fmt.Sprintf("Delete ticket #%d %q? (y/n): ", ticket.ID, ticket.Title))
	if err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(answer), "y") {
		s.println("deletion cancelled")
		return nil
	}
	if err := s.cmds.DeleteTicket(ctx, s.session, args[0]); err != nil {
		return err
	}
	s.ok(fmt.Sprintf("ticket #%d deleted", ticket.ID))
	return nil
}

func (s *Shell) demo(ctx context.Context, args []string) error {
	var labels []string
	switch args[0] {
	case "1":
		s.println("values: [10 20 30]")
		labels = []string{"Index to read: "}
	case "2":
		s.println("the system allows at most 100,000 tickets")
		labels = []string{"Tickets now: ", "Tickets to add: "}
	case "3":
		labels = []string{"Text (enter for an example): "}
	}
	inputs := make([]string, 0, len(labels))
	for _, label := range labels {
		value, err := s.readLine(ctx, label)
		if err != nil {
			return err
		}
		inputs = append(inputs, value)
	}
	resp, err := s.cmds.RunSecurityDemo(ctx, s.session, args[0], inputs...)
	if err != nil {
		return err
	}
	for _, line := range resp.Lines {
		s.ok(line)
	}
	return nil
}

func (s *Shell) notices(ctx context.Context, args []string) error {
	all := len(args) > 0 && strings.EqualFold(args[0], "all")
	notices, err := s.cmds.Notices(ctx, s.session, all)
	if err != nil {
		return err
	}
	if len(notices) == 0 {
		s.println("no new notices")
		return nil
	}
	s.renderNotices(notices)
	return nil
}

func (s *Shell) auditTrail(ctx context.Context, args []string) error {
	limit := ""
	if len(args) > 0 {
		limit = args[0]
	}
	entries, err := s.cmds.AuditTrail(ctx, s.session, limit)
	if err != nil {
		return err
	}
	s.renderAudit(entries)
	return nil
}

func (s *Shell) verifyAudit(ctx context.Context, _ []string) error {
	result, err := s.cmds.VerifyAudit(ctx, s.session)
	if err != nil {
		return err
	}
	if result.Valid {
		s.ok(fmt.Sprintf("audit log intact: %d entries", result.Entries))
		return nil
	}
	s.println(s.styles.failure.Render(fmt.Sprintf("audit log broken at line %d: %s", result.BrokenAt, result.Reason)))
	return nil
}

func (s *Shell) stats(_ context.Context, _ []string) error {
	s.renderStats(s.metrics.Snapshot())
	return nil
}

func (s *Shell) help(_ context.Context, _ []string) error {
	s.renderHelp(commands)
	return nil
}

func (s *Shell) quit(_ context.Context, _ []string) error {
	return errQuit
}

func isPriority(raw string) bool {
	_, ok := domain.ParseTicketPriority(raw)
	return ok
}

package shell

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
)

func (s *Shell) table() *tabwriter.Writer {
	return tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
}

func (s *Shell) renderTickets(tickets []dto.TicketSummary) {
	if len(tickets) == 0 {
		s.println("no tickets")
		return
	}
	w := s.table()
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tOWNER\tASSIGNEE\tUPDATED")
	for _, t := range tickets {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			t.ID, clip(t.Title, 40), t.Status, t.Priority, t.OwnerID, assigneeText(t.AssigneeID), s.since(t.UpdatedAt))
	}
	_ = w.Flush()
	s.println(s.styles.muted.Render(fmt.Sprintf("%s ticket(s)", humanize.Comma(int64(len(tickets))))))
}

func (s *Shell) renderTicket(t *dto.TicketDetailResponse) {
	s.println(s.styles.title.Render(fmt.Sprintf("Ticket #%d: %s", t.ID, t.Title)))
	w := s.table()
	fmt.Fprintf(w, "Status:\t%s\n", t.Status)
	fmt.Fprintf(w, "Priority:\t%s\n", t.Priority)
	fmt.Fprintf(w, "Owner:\tuser %d\n", t.OwnerID)
	fmt.Fprintf(w, "Assignee:\t%s\n", assigneeText(t.AssigneeID))
	fmt.Fprintf(w, "Created:\t%s (%s)\n", t.CreatedAt.Format(time.DateTime), s.since(t.CreatedAt))
	fmt.Fprintf(w, "Updated:\t%s (%s)\n", t.UpdatedAt.Format(time.DateTime), s.since(t.UpdatedAt))
	fmt.Fprintf(w, "Next status:\t%s\n", statusChoices(t.NextStatuses))
	_ = w.Flush()
	if t.Description != "" {
		s.println("")
		s.println(t.Description)
	}
}

func (s *Shell) renderNotices(notices []dto.NoticeResponse) {
	for _, n := range notices {
		s.println(fmt.Sprintf("* %s %s", n.Message, s.styles.muted.Render("("+s.since(n.At)+")")))
	}
}

func (s *Shell) renderAudit(entries []dto.AuditEntryResponse) {
	if len(entries) == 0 {
		s.println("audit log is empty")
		return
	}
	w := s.table()
	fmt.Fprintln(w, "TIME\tUSER\tROLE\tACTION\tENTITY\tSTATUS\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s %s\t%s\t%s\n",
			e.Timestamp.Format(time.DateTime), e.Username, e.Role, e.Action, e.Entity, e.EntityID, e.Status, clip(e.Details, 60))
	}
	_ = w.Flush()
}

func (s *Shell) renderStats(stats []observability.CommandStats) {
	if len(stats) == 0 {
		s.println("no commands run yet")
		return
	}
	w := s.table()
	fmt.Fprintln(w, "COMMAND\tRUNS\tERRORS\tAVG")
	for _, st := range stats {
		avg := time.Duration(0)
		if st.Count > 0 {
			avg = st.Total / time.Duration(st.Count)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", st.Command, humanize.Comma(st.Count), humanize.Comma(st.Errors), avg.Round(time.Microsecond))
	}
	_ = w.Flush()
}

func (s *Shell) renderHelp(list []*command) {
	w := s.table()
	for _, c := range list {
		fmt.Fprintf(w, "  %s\t%s\n", c.usage, c.summary)
	}
	_ = w.Flush()
}

// since renders t relative to the shell clock, e.g. "3 minutes ago".
func (s *Shell) since(t time.Time) string {
	return humanize.RelTime(t, s.now(), "ago", "from now")
}


func assigneeText(id *int64) string {
	if id == nil {
		return "unassigned"
	}
	return fmt.Sprintf("agent %d", *id)
}

func statusChoices(next []domain.TicketStatus) string {
	if len(next) == 0 {
		return "none"
	}
	parts := make([]string, len(next))
	for i, st := range next {
		parts[i] = string(st)
	}
	return strings.Join(parts, "/")
}

func clip(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n-3]) + "..."
}

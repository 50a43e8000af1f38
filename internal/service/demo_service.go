package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/validation"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// MaxTicketsAllowed is the business cap used by the ticket limit demo.
const MaxTicketsAllowed = 100000

// DefaultInjectionText is echoed when the injection demo gets no input.
const DefaultInjectionText = "'; DROP TABLE users; --"

// DemoValues is the list the index demo looks up into.
var DemoValues = []int64{10, 20, 30}

// Demo identifies one of the security demonstrations.
type Demo int

const (
	DemoIndexLookup Demo = iota + 1
	DemoTicketLimit
	DemoInjectionEcho
)

// DemoResult is what a demo shows the user.
type DemoResult struct {
	Demo     Demo
	Accepted bool
	Lines    []string
}

// DemoService runs the input-safety demonstrations. It only calls the
// validators; it never touches tickets or users.
type DemoService struct {
	audit *audit.Recorder
}

// NewDemoService creates the service.
func NewDemoService(recorder *audit.Recorder) *DemoService {
	return &DemoService{audit: recorder}
}

// IndexLookup reads DemoValues at a typed index after a bounds check.
func (d *DemoService) IndexLookup(ctx context.Context, session *domain.Session, rawIndex string) (*DemoResult, error) {
	index, err := validation.NonNegativeInt(rawIndex, "index")
	if err == nil && index >= int64(len(DemoValues)) {
		err = apperrors.NewValidationError(
			fmt.Sprintf("index must be between 0 and %d", len(DemoValues)-1),
			map[string]any{"field": "index"})
	}
	if err != nil {
		return nil, d.finish(ctx, session, DemoIndexLookup, err)
	}
	return d.done(ctx, session, &DemoResult{
		Demo:     DemoIndexLookup,
		Accepted: true,
		Lines:    []string{fmt.Sprintf("value at position %d: %d", index, DemoValues[index])},
	})
}

// TicketLimit adds two counts and checks the total against
// MaxTicketsAllowed without overflowing.
func (d *DemoService) TicketLimit(ctx context.Context, session *domain.Session, rawCurrent, rawNew string) (*DemoResult, error) {
	current, err := validation.NonNegativeInt(rawCurrent, "current tickets")
	if err != nil {
		return nil, d.finish(ctx, session, DemoTicketLimit, err)
	}
	added, err := validation.NonNegativeInt(rawNew, "new tickets")
	if err != nil {
		return nil, d.finish(ctx, session, DemoTicketLimit, err)
	}

	if current > math.MaxInt64-added || current+added > MaxTicketsAllowed {
		err := apperrors.NewValidationError(
			fmt.Sprintf("%s + %s exceeds the limit of %s tickets",
				humanize.Comma(current), humanize.Comma(added), humanize.Comma(MaxTicketsAllowed)),
			map[string]any{"field": "new tickets"})
		return nil, d.finish(ctx, session, DemoTicketLimit, err)
	}
	total := current + added
	return d.done(ctx, session, &DemoResult{
		Demo:     DemoTicketLimit,
		Accepted: true,
		Lines: []string{
			fmt.Sprintf("%s + %s = %s", humanize.Comma(current), humanize.Comma(added), humanize.Comma(total)),
			fmt.Sprintf("accepted: the limit of %s tickets is not exceeded", humanize.Comma(MaxTicketsAllowed)),
		},
	})
}

// InjectionEcho sanitizes raw the way ticket text is sanitized and returns
// it unchanged otherwise. Query-like text is only ever data.
func (d *DemoService) InjectionEcho(ctx context.Context, session *domain.Session, raw string) (*DemoResult, error) {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultInjectionText
	}
	text := validation.Text(raw, validation.DescriptionMaxLen)
	return d.done(ctx, session, &DemoResult{
		Demo:     DemoInjectionEcho,
		Accepted: true,
		Lines: []string{
			fmt.Sprintf("received: %q", text),
			"stored as plain text in a JSON line; it is never run as a command",
		},
	})
}

func (d *DemoService) done(ctx context.Context, session *domain.Session, result *DemoResult) (*DemoResult, error) {
	if err := d.finish(ctx, session, result.Demo, nil); err != nil {
		return nil, err
	}
	return result, nil
}

// finish audits the run and returns cause, or the audit error when cause is
// nil.
func (d *DemoService) finish(ctx context.Context, session *domain.Session, demo Demo, cause error) error {
	status := domain.AuditSuccess
	details := fmt.Sprintf("ran security demo %d", demo)
	if cause != nil {
		status = domain.AuditError
		details = fmt.Sprintf("security demo %d rejected input", demo)
	}
	err := d.audit.Session(ctx, session, audit.Event{
		Action:   domain.ActionSecurityDemo,
		Entity:   domain.EntityDemo,
		EntityID: fmt.Sprintf("demo_%d", demo),
		Status:   status,
		Details:  details,
	})
	if cause != nil {
		return cause
	}
	return err
}

package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/events"
)

// Notice is a message queued for a ticket owner.
type Notice struct {
	TicketID int64
	Message  string
	At       time.Time
}

// NotificationService turns ticket events into notices for the ticket
// owner. Notices live in memory for the life of the process.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger

	mu      sync.Mutex
	pending map[int64][]Notice
	seen    map[int64][]Notice
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		pending:    make(map[int64][]Notice),
		seen:       make(map[int64][]Notice),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketUpdated, n.handleTicketUpdated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketPriorityChanged, n.handleTicketPriorityChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketDeleted, n.handleTicketDeleted)
}

func (n *NotificationService) handleTicketCreated(_ context.Context, event events.Event) error {
	n.logEvent(event)
	return nil
}

func (n *NotificationService) handleTicketUpdated(_ context.Context, event events.Event) error {
	n.logEvent(event)
	payload, ok := event.Payload.(events.TicketUpdatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.notifyOwner(event, fmt.Sprintf("%s updated the %s of ticket #%d", event.Actor.Username, strings.Join(payload.Fields, " and "), event.TicketID))
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(_ context.Context, event events.Event) error {
	n.logEvent(event)
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.notifyOwner(event, fmt.Sprintf("%s moved ticket #%d from %s to %s",
		event.Actor.Username, event.TicketID, payload.OldStatus, payload.NewStatus))
	return nil
}

func (n *NotificationService) handleTicketPriorityChanged(_ context.Context, event events.Event) error {
	n.logEvent(event)
	payload, ok := event.Payload.(events.TicketPriorityChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.notifyOwner(event, fmt.Sprintf("%s changed the priority of ticket #%d from %s to %s",
		event.Actor.Username, event.TicketID, payload.OldPriority, payload.NewPriority))
	return nil
}

func (n *NotificationService) handleTicketAssigned(_ context.Context, event events.Event) error {
	n.logEvent(event)
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if payload.NewAssigneeID == nil {
		n.notifyOwner(event, fmt.Sprintf("ticket #%d is no longer assigned", event.TicketID))
		return nil
	}
	n.notifyOwner(event, fmt.Sprintf("ticket #%d was assigned to agent %d", event.TicketID, *payload.NewAssigneeID))
	return nil
}

func (n *NotificationService) handleTicketDeleted(_ context.Context, event events.Event) error {
	n.logEvent(event)
	n.notifyOwner(event, fmt.Sprintf("%s deleted closed ticket #%d", event.Actor.Username, event.TicketID))
	return nil
}

func (n *NotificationService) logEvent(event events.Event) {
	n.logger.Debug(string(event.Type),
		zap.String("event_id", event.ID),
		zap.Int64("ticket_id", event.TicketID),
		zap.Int64("actor_id", event.Actor.UserID))
}

// notifyOwner queues message unless the owner caused the event.
func (n *NotificationService) notifyOwner(event events.Event, message string) {
	if event.OwnerID == 0 || event.OwnerID == event.Actor.UserID {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending[event.OwnerID] = append(n.pending[event.OwnerID], Notice{
		TicketID: event.TicketID,
		Message:  message,
		At:       event.Timestamp,
	})
}

// Drain returns and clears the notices not yet shown to userID.
func (n *NotificationService) Drain(userID int64) []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	notices := n.pending[userID]
	delete(n.pending, userID)
	n.seen[userID] = append(n.seen[userID], notices...)
	return notices
}

// All returns every notice for userID, shown or not, oldest first.
func (n *NotificationService) All(userID int64) []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := append([]Notice(nil), n.seen[userID]...)
	return append(out, n.pending[userID]...)
}

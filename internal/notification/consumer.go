package notification

import (
	"context"
	"fmt"
	"log"

	"github.com/civic-gov/platform/internal/shared/events"
	"github.com/civic-gov/platform/internal/shared/types"
)

// Directory resolves a worker id to notification contact details
type Directory interface {
	Recipient(ctx context.Context, id types.ID) (Recipient, error)
}

// Consumer turns issue lifecycle events from the bus into notifications, so
// dispatch rides the event stream instead of the request path. One consumer
// group per deployment; the bus retries handler failures.
type Consumer struct {
	svc       *Service
	directory Directory
}

// NewConsumer creates a lifecycle event consumer. A nil directory disables
// the worker-addressed notifications; department notifications still go out.
func NewConsumer(svc *Service, directory Directory) *Consumer {
	return &Consumer{svc: svc, directory: directory}
}

// Register subscribes the consumer to the issue event stream
func (c *Consumer) Register(ctx context.Context, bus events.EventBus) error {
	return bus.Subscribe(ctx, "issue.*", "notification-dispatch", c.Handle)
}

// Handle builds and queues the notification for one lifecycle event.
// Unrecognized event types are acknowledged without effect.
func (c *Consumer) Handle(ctx context.Context, event events.Event) error {
	data, ok := event.Data.(map[string]any)
	if !ok {
		return nil
	}

	issueID := types.ID(field(data, "issue_id"))
	title := field(data, "title")

	var n *Notification
	switch event.Type {
	case "issue.assigned":
		recipient, ok := c.workerRecipient(ctx, field(data, "worker_id"))
		if !ok {
			return nil
		}
		n = NewAssignmentNotification(recipient, issueID, title,
			field(data, "department"), field(data, "priority"))

	case "issue.escalated":
		n = NewEscalationRequestNotification(
			departmentRecipient(field(data, "department")),
			issueID, title, field(data, "reason"))

	case "issue.escalation_decided":
		recipient, ok := c.workerRecipient(ctx, field(data, "assigned_personnel"))
		if !ok {
			return nil
		}
		n = NewEscalationDecisionNotification(recipient, issueID, title,
			field(data, "decision") == "approved")

	case "issue.proof_decided":
		recipient, ok := c.workerRecipient(ctx, field(data, "assigned_personnel"))
		if !ok {
			return nil
		}
		n = NewProofDecisionNotification(recipient, issueID, title,
			field(data, "decision") == "approved")

	default:
		return nil
	}

	// Preference filters and a full buffer drop the notification; retrying
	// the event would never change the outcome.
	if err := c.svc.SendNotification(ctx, n); err != nil {
		log.Printf("notification: dropped %q for %s: %v", n.Subject, n.RecipientID, err)
	}
	return nil
}

// workerRecipient resolves a worker id from event data. A missing id or an
// unresolvable worker drops the notification rather than retrying the event.
func (c *Consumer) workerRecipient(ctx context.Context, id string) (Recipient, bool) {
	if c.directory == nil || id == "" {
		return Recipient{}, false
	}
	recipient, err := c.directory.Recipient(ctx, types.ID(id))
	if err != nil {
		log.Printf("notification: failed to resolve recipient %s: %v", id, err)
		return Recipient{}, false
	}
	return recipient, true
}

func departmentRecipient(department string) Recipient {
	return Recipient{
		ID:   types.ID(department),
		Type: "department",
		Name: department,
	}
}

// field reads one event data value as a string. Events arriving over the
// stream decode to JSON strings; locally published ones may carry typed
// values, so both go through a string conversion.
func field(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

package notification

import (
	"fmt"

	"github.com/civic-gov/platform/internal/shared/types"
)

// Recipient identifies who a lifecycle notification goes to, with the
// contact details already resolved by the caller.
type Recipient struct {
	ID    types.ID
	Type  string // worker, department, citizen
	Name  string
	Phone string
	Email string
}

func baseNotification(recipient Recipient, notifType NotificationType, priority NotificationPriority) *Notification {
	return &Notification{
		Type:          notifType,
		Priority:      priority,
		RecipientID:   recipient.ID.String(),
		RecipientType: recipient.Type,
		RecipientName: recipient.Name,
		Phone:         recipient.Phone,
		Email:         recipient.Email,
	}
}

// NewAssignmentNotification tells a worker a civic issue was routed to them
func NewAssignmentNotification(recipient Recipient, issueID types.ID, title, department, priority string) *Notification {
	n := baseNotification(recipient, NotificationTypePush, issuePriority(priority))
	n.Subject = "New task assigned"
	n.Body = fmt.Sprintf("You have been assigned %q (%s department).", title, department)
	n.Data = map[string]any{
		"issue_id":   issueID,
		"department": department,
		"priority":   priority,
	}
	return n
}

// NewEscalationRequestNotification tells the department a worker wants an
// issue handed back
func NewEscalationRequestNotification(recipient Recipient, issueID types.ID, title, reason string) *Notification {
	n := baseNotification(recipient, NotificationTypeInApp, PriorityHigh)
	n.Subject = "Escalation requested"
	n.Body = fmt.Sprintf("Escalation requested on %q: %s", title, reason)
	n.Data = map[string]any{
		"issue_id": issueID,
		"reason":   reason,
	}
	return n
}

// NewEscalationDecisionNotification tells the worker how their escalation
// request was decided
func NewEscalationDecisionNotification(recipient Recipient, issueID types.ID, title string, approved bool) *Notification {
	n := baseNotification(recipient, NotificationTypePush, PriorityHigh)
	if approved {
		n.Subject = "Escalation approved"
		n.Body = fmt.Sprintf("Your escalation on %q was approved. The task is now handled by the department.", title)
	} else {
		n.Subject = "Escalation rejected"
		n.Body = fmt.Sprintf("Your escalation on %q was rejected. The task is back in your queue.", title)
	}
	n.Data = map[string]any{
		"issue_id": issueID,
		"approved": approved,
	}
	return n
}

// NewProofDecisionNotification tells the worker the outcome of a proof review
func NewProofDecisionNotification(recipient Recipient, issueID types.ID, title string, approved bool) *Notification {
	n := baseNotification(recipient, NotificationTypePush, PriorityNormal)
	if approved {
		n.Subject = "Task completed"
		n.Body = fmt.Sprintf("Your proof of work for %q was approved. Task complete.", title)
	} else {
		n.Subject = "Proof rejected"
		n.Body = fmt.Sprintf("Your proof of work for %q was rejected. Please resubmit.", title)
	}
	n.Data = map[string]any{
		"issue_id": issueID,
		"approved": approved,
	}
	return n
}

func issuePriority(priority string) NotificationPriority {
	switch priority {
	case "critical":
		return PriorityCritical
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityNormal
	}
}

package domain

import (
	"time"

	"github.com/civic-gov/platform/internal/shared/types"
)

// Department is the municipal department an issue is routed to,
// assigned by the external classifier.
type Department string

const (
	DepartmentPWD         Department = "pwd"
	DepartmentWater       Department = "water"
	DepartmentSWM         Department = "swm"
	DepartmentTraffic     Department = "traffic"
	DepartmentHealth      Department = "health"
	DepartmentEnvironment Department = "environment"
	DepartmentElectricity Department = "electricity"
	DepartmentDisaster    Department = "disaster"
)

// IsValid reports whether the department code is one the classifier can emit
func (d Department) IsValid() bool {
	switch d {
	case DepartmentPWD, DepartmentWater, DepartmentSWM, DepartmentTraffic,
		DepartmentHealth, DepartmentEnvironment, DepartmentElectricity, DepartmentDisaster:
		return true
	}
	return false
}

// Priority defines issue priority
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Status is the raw lifecycle status stored on an issue. The
// externally-visible status is derived from it together with the proof and
// escalation state (see Issue.DisplayStatus).
type Status string

const (
	StatusAssign        Status = "assign"
	StatusPending       Status = "pending"
	StatusInProgress    Status = "in-progress"
	StatusPendingReview Status = "pending-review"
	StatusEscalated     Status = "escalated"
	StatusResolved      Status = "resolved"
)

// DisplayStatus is the single status shown to workers and citizens
type DisplayStatus string

const (
	DisplayPending       DisplayStatus = "pending"
	DisplayInProgress    DisplayStatus = "in-progress"
	DisplayPendingReview DisplayStatus = "pending-review"
	DisplayEscalated     DisplayStatus = "escalated"
	DisplayCompleted     DisplayStatus = "completed"
)

// ProofStatus tracks the department's review of submitted proof of work
type ProofStatus string

const (
	ProofNone     ProofStatus = "none"
	ProofPending  ProofStatus = "pending"
	ProofApproved ProofStatus = "approved"
	ProofRejected ProofStatus = "rejected"
)

// EscalationStatus tracks the department's decision on an escalation request
type EscalationStatus string

const (
	EscalationPending  EscalationStatus = "pending"
	EscalationApproved EscalationStatus = "approved"
	EscalationRejected EscalationStatus = "rejected"
)

// MediaType of a proof-of-work attachment
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// ProofOfWork is the worker-submitted evidence of task completion.
// An issue holds at most one active proof record; resubmission overwrites it.
type ProofOfWork struct {
	MediaURL  string                 `json:"media_url"`
	MediaType MediaType              `json:"media_type"`
	Notes     string                 `json:"notes,omitempty"`
	Geo       *types.GeoVerification `json:"geo,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Escalation is a worker-initiated request to hand the issue back to
// department-level handling. An approved escalation freezes the issue.
type Escalation struct {
	Reason      string           `json:"reason"`
	EscalatedBy types.ID         `json:"escalated_by"`
	EscalatedAt time.Time        `json:"escalated_at"`
	Status      EscalationStatus `json:"status"`
}

// Outstanding reports whether the escalation still awaits a department decision
func (e *Escalation) Outstanding() bool {
	return e != nil && e.Status == EscalationPending
}

// IssueEventType defines types of issue timeline events
type IssueEventType string

const (
	IssueEventCreated           IssueEventType = "created"
	IssueEventAssigned          IssueEventType = "assigned"
	IssueEventStatusChanged     IssueEventType = "status_changed"
	IssueEventEscalated         IssueEventType = "escalated"
	IssueEventEscalationDecided IssueEventType = "escalation_decided"
	IssueEventProofSubmitted    IssueEventType = "proof_submitted"
	IssueEventProofDecided      IssueEventType = "proof_decided"
)

// Event is a domain event raised by a lifecycle transition, published to the
// event bus after the transition is persisted.
type Event struct {
	Type      IssueEventType `json:"type"`
	IssueID   types.ID       `json:"issue_id"`
	ActorID   types.ID       `json:"actor_id"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

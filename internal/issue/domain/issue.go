package domain

import (
	"fmt"
	"time"

	"github.com/civic-gov/platform/internal/shared/errors"
	"github.com/civic-gov/platform/internal/shared/types"
)

// Issue is the aggregate root for a routed civic-problem report. All
// lifecycle mutations go through its transition methods, which validate
// against the current snapshot and stage field-scoped changes for the
// repository to persist under optimistic concurrency.
type Issue struct {
	ID          types.ID   `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Department  Department `json:"department"`
	Priority    Priority   `json:"priority"`

	Status      Status      `json:"status"`
	ProofStatus ProofStatus `json:"proof_status"`

	AssignedPersonnel *types.ID `json:"assigned_personnel,omitempty"`
	ReportedBy        string    `json:"reported_by,omitempty"`

	Location types.Location `json:"location"`

	// Single proof slot. Resubmission replaces, never appends.
	Proof *ProofOfWork `json:"proof_of_work,omitempty"`

	Escalation *Escalation `json:"escalation,omitempty"`

	// Back-reference to the citizen-facing post this issue was raised from.
	// Lookup only; the lifecycle engine does not own post state beyond the
	// best-effort status mirror.
	OriginalPostID string `json:"original_post_id,omitempty"`

	// Version is the optimistic-concurrency token. Incremented by the store
	// on every successful field update.
	Version int64 `json:"version"`

	ReportedAt  time.Time  `json:"reported_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	LastUpdated time.Time  `json:"last_updated"`

	// Staged column changes and domain events, consumed by the caller after
	// a successful transition. Not persisted.
	changes      map[string]any
	domainEvents []Event
}

// NewIssue creates a new issue from a classified citizen report
func NewIssue(
	title, description, category string,
	department Department,
	priority Priority,
	reportedBy string,
	location types.Location,
	originalPostID string,
) (*Issue, error) {
	if title == "" {
		return nil, errors.Validation("title is required", map[string]string{"title": "required"})
	}
	if !department.IsValid() {
		return nil, errors.Validation(fmt.Sprintf("unknown department %q", department),
			map[string]string{"department": "invalid"})
	}
	if priority == "" {
		priority = PriorityMedium
	}

	now := time.Now()
	i := &Issue{
		ID:             types.NewID(),
		Title:          title,
		Description:    description,
		Category:       category,
		Department:     department,
		Priority:       priority,
		Status:         StatusAssign,
		ProofStatus:    ProofNone,
		ReportedBy:     reportedBy,
		Location:       location,
		OriginalPostID: originalPostID,
		Version:        1,
		ReportedAt:     now,
		LastUpdated:    now,
	}

	i.addEvent(IssueEventCreated, "", map[string]any{
		"department": department,
		"priority":   priority,
	})

	return i, nil
}

// Locked reports whether an approved escalation has frozen the issue.
// A locked issue rejects every further worker-facing transition.
func (i *Issue) Locked() bool {
	return i.Escalation != nil && i.Escalation.Status == EscalationApproved
}

// Completed reports whether the issue finished its normal lifecycle
func (i *Issue) Completed() bool {
	return i.ProofStatus == ProofApproved || i.Status == StatusResolved
}

// DisplayStatus derives the single externally-visible status from the raw
// status, proof state and escalation state. Pure function of the snapshot;
// precedence is highest first.
func (i *Issue) DisplayStatus() DisplayStatus {
	switch {
	case i.Locked():
		return DisplayEscalated
	case i.ProofStatus == ProofApproved || i.Status == StatusResolved:
		return DisplayCompleted
	case i.ProofStatus == ProofRejected,
		i.Escalation != nil && i.Escalation.Status == EscalationRejected:
		return DisplayPending
	case i.Status == StatusAssign:
		return DisplayPending
	default:
		return DisplayStatus(i.Status)
	}
}

// Assign routes the issue to a department worker. Allowed once; the
// assignment also moves a freshly classified issue into the worker queue.
func (i *Issue) Assign(workerID types.ID, actor types.ID) error {
	if workerID.IsZero() {
		return errors.Validation("worker id is required", map[string]string{"worker_id": "required"})
	}
	if i.AssignedPersonnel != nil {
		return errors.InvalidTransition("issue is already assigned")
	}
	if i.Locked() {
		return errors.InvalidTransition("issue is frozen by an approved escalation")
	}
	if i.Completed() {
		return errors.InvalidTransition("issue is already completed")
	}

	now := time.Now()
	i.AssignedPersonnel = &workerID
	i.AssignedAt = &now
	i.stage("assigned_personnel", workerID)
	i.stage("assigned_at", now)

	if i.Status == StatusAssign {
		i.Status = StatusPending
		i.stage("status", StatusPending)
	}
	i.touch(now)

	i.addEvent(IssueEventAssigned, actor, map[string]any{"worker_id": workerID})
	return nil
}

// changeStatusTargets are the raw statuses a caller may request directly.
// Escalation and review states are only reachable through Escalate and
// SubmitProof.
var changeStatusTargets = map[Status]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusResolved:   true,
}

// ChangeStatus applies a direct status transition requested by a worker or
// the department
func (i *Issue) ChangeStatus(newStatus Status, actor types.ID) error {
	if !changeStatusTargets[newStatus] {
		return errors.InvalidTransition(fmt.Sprintf("status %q cannot be set directly", newStatus))
	}
	if i.Locked() {
		return errors.InvalidTransition("issue is frozen by an approved escalation")
	}
	if i.Completed() {
		return errors.InvalidTransition("issue is already completed")
	}
	if newStatus == StatusResolved &&
		i.Status != StatusInProgress && i.Status != StatusPendingReview {
		return errors.InvalidTransition("issue must be in progress before it can be resolved")
	}

	oldStatus := i.Status
	now := time.Now()
	i.Status = newStatus
	i.stage("status", newStatus)
	i.touch(now)

	i.addEvent(IssueEventStatusChanged, actor, map[string]any{
		"old_status": oldStatus,
		"new_status": newStatus,
	})
	return nil
}

// Escalate raises a worker-initiated request to hand the issue back to the
// department. At most one escalation may be outstanding at a time.
func (i *Issue) Escalate(reason string, actor types.ID) error {
	if reason == "" {
		return errors.Validation("escalation reason is required", map[string]string{"reason": "required"})
	}
	if i.Locked() {
		return errors.InvalidTransition("issue is frozen by an approved escalation")
	}
	if i.Escalation.Outstanding() {
		return errors.InvalidTransition("an escalation is already awaiting a decision")
	}
	if i.Completed() {
		return errors.InvalidTransition("issue is already completed")
	}

	now := time.Now()
	i.Escalation = &Escalation{
		Reason:      reason,
		EscalatedBy: actor,
		EscalatedAt: now,
		Status:      EscalationPending,
	}
	i.Status = StatusEscalated
	i.stage("escalation_reason", reason)
	i.stage("escalation_by", actor)
	i.stage("escalation_at", now)
	i.stage("escalation_status", EscalationPending)
	i.stage("status", StatusEscalated)
	i.touch(now)

	i.addEvent(IssueEventEscalated, actor, map[string]any{"reason": reason})
	return nil
}

// ResolveEscalation applies the department's decision on an outstanding
// escalation. Approval freezes the issue for the assigned worker; rejection
// hands it back as actionable.
func (i *Issue) ResolveEscalation(decision EscalationStatus, actor types.ID) error {
	if decision != EscalationApproved && decision != EscalationRejected {
		return errors.Validation("decision must be approved or rejected", map[string]string{"decision": "invalid"})
	}
	if !i.Escalation.Outstanding() {
		return errors.InvalidTransition("no escalation is awaiting a decision")
	}

	now := time.Now()
	i.Escalation.Status = decision
	i.stage("escalation_status", decision)
	i.touch(now)

	i.addEvent(IssueEventEscalationDecided, actor, map[string]any{"decision": decision})
	return nil
}

// SubmitProof records the worker's evidence of completion and moves the
// issue into review. The single proof slot is replaced, never appended:
// resubmitting after a rejection overwrites the previous record.
func (i *Issue) SubmitProof(proof *ProofOfWork) error {
	if proof == nil || proof.MediaURL == "" {
		return errors.Validation("proof of work media is required", map[string]string{"media_url": "required"})
	}
	if i.Locked() {
		return errors.InvalidTransition("issue is frozen by an approved escalation")
	}
	if i.ProofStatus == ProofApproved {
		return errors.InvalidTransition("proof has already been approved")
	}

	now := time.Now()
	if proof.Timestamp.IsZero() {
		proof.Timestamp = now
	}

	i.Proof = proof
	i.Status = StatusPendingReview
	i.ProofStatus = ProofPending
	i.SubmittedAt = &now

	i.stage("proof_media_url", proof.MediaURL)
	i.stage("proof_media_type", proof.MediaType)
	i.stage("proof_notes", proof.Notes)
	if proof.Geo != nil {
		i.stage("proof_geo_lat", proof.Geo.Lat)
		i.stage("proof_geo_lng", proof.Geo.Lng)
		i.stage("proof_geo_accuracy_m", proof.Geo.AccuracyMeters)
	}
	i.stage("status", StatusPendingReview)
	i.stage("proof_status", ProofPending)
	i.stage("submitted_at", now)
	i.touch(now)

	i.addEvent(IssueEventProofSubmitted, deref(i.AssignedPersonnel), nil)
	return nil
}

// ResolveProof applies the department's review decision on submitted proof.
// Approval completes the issue; rejection reopens it for resubmission while
// keeping the single-proof-slot invariant.
func (i *Issue) ResolveProof(decision ProofStatus, actor types.ID) error {
	if decision != ProofApproved && decision != ProofRejected {
		return errors.Validation("decision must be approved or rejected", map[string]string{"decision": "invalid"})
	}
	if i.Locked() {
		return errors.InvalidTransition("issue is frozen by an approved escalation")
	}
	if i.ProofStatus != ProofPending {
		return errors.InvalidTransition("no proof is awaiting review")
	}

	now := time.Now()
	i.ProofStatus = decision
	i.stage("proof_status", decision)
	if decision == ProofApproved {
		i.Status = StatusResolved
		i.stage("status", StatusResolved)
	}
	i.touch(now)

	i.addEvent(IssueEventProofDecided, actor, map[string]any{"decision": decision})
	return nil
}

// PendingChanges returns and clears the staged column changes from the last
// transitions, keyed by store field name
func (i *Issue) PendingChanges() map[string]any {
	changes := i.changes
	i.changes = nil
	return changes
}

// DomainEvents returns and clears the events raised by the last transitions
func (i *Issue) DomainEvents() []Event {
	events := i.domainEvents
	i.domainEvents = nil
	return events
}

func (i *Issue) stage(field string, value any) {
	if i.changes == nil {
		i.changes = make(map[string]any)
	}
	i.changes[field] = value
}

func (i *Issue) touch(now time.Time) {
	i.LastUpdated = now
	i.stage("last_updated", now)
}

func (i *Issue) addEvent(eventType IssueEventType, actor types.ID, data map[string]any) {
	i.domainEvents = append(i.domainEvents, Event{
		Type:      eventType,
		IssueID:   i.ID,
		ActorID:   actor,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func deref(id *types.ID) types.ID {
	if id == nil {
		return ""
	}
	return *id
}

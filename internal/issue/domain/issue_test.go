package domain

import (
	"testing"
	"time"

	"github.com/civic-gov/platform/internal/shared/errors"
	"github.com/civic-gov/platform/internal/shared/types"
)

func newTestIssue(t *testing.T) *Issue {
	t.Helper()

	i, err := NewIssue(
		"Pothole on 5th Cross",
		"Large pothole near the bus stop",
		"Road Damage",
		DepartmentPWD,
		PriorityHigh,
		"citizen-42",
		types.Location{Address: "5th Cross, Indiranagar", Lat: 12.97, Lng: 77.64},
		"post-123",
	)
	if err != nil {
		t.Fatalf("NewIssue: %v", err)
	}
	i.PendingChanges()
	i.DomainEvents()
	return i
}

func TestNewIssue(t *testing.T) {
	i := newTestIssue(t)

	if i.ID.IsZero() {
		t.Error("expected non-zero ID")
	}
	if i.Status != StatusAssign {
		t.Errorf("expected status %s, got %s", StatusAssign, i.Status)
	}
	if i.ProofStatus != ProofNone {
		t.Errorf("expected proof status %s, got %s", ProofNone, i.ProofStatus)
	}
	if i.Version != 1 {
		t.Errorf("expected version 1, got %d", i.Version)
	}
	if got := i.DisplayStatus(); got != DisplayPending {
		t.Errorf("expected display status %s for fresh issue, got %s", DisplayPending, got)
	}
}

func TestNewIssueValidation(t *testing.T) {
	tests := []struct {
		name       string
		title      string
		department Department
	}{
		{"empty title", "", DepartmentWater},
		{"unknown department", "Leaking pipe", Department("plumbing")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIssue(tt.title, "", "Water Supply", tt.department, PriorityMedium, "", types.Location{}, "")
			if !errors.Is(err, errors.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAssign(t *testing.T) {
	i := newTestIssue(t)
	worker := types.NewID()
	actor := types.NewID()

	if err := i.Assign(worker, actor); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if i.AssignedPersonnel == nil || *i.AssignedPersonnel != worker {
		t.Error("expected assigned personnel to be set")
	}
	if i.AssignedAt == nil {
		t.Error("expected assigned_at to be stamped")
	}
	if i.Status != StatusPending {
		t.Errorf("expected status %s after assignment, got %s", StatusPending, i.Status)
	}

	// Reassignment is not a supported transition
	if err := i.Assign(types.NewID(), actor); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("expected invalid transition on second assign, got %v", err)
	}
}

func TestChangeStatus(t *testing.T) {
	actor := types.NewID()

	tests := []struct {
		name    string
		prepare func(*Issue)
		target  Status
		wantErr error
	}{
		{"pending to in-progress", func(i *Issue) {}, StatusInProgress, nil},
		{"direct to pending-review is rejected", func(i *Issue) {}, StatusPendingReview, errors.ErrInvalidTransition},
		{"direct to escalated is rejected", func(i *Issue) {}, StatusEscalated, errors.ErrInvalidTransition},
		{"direct to assign is rejected", func(i *Issue) {}, StatusAssign, errors.ErrInvalidTransition},
		{
			"resolve requires in-progress",
			func(i *Issue) {},
			StatusResolved, errors.ErrInvalidTransition,
		},
		{
			"resolve from in-progress",
			func(i *Issue) { i.ChangeStatus(StatusInProgress, actor) },
			StatusResolved, nil,
		},
		{
			"completed issue is frozen",
			func(i *Issue) {
				i.ChangeStatus(StatusInProgress, actor)
				i.ChangeStatus(StatusResolved, actor)
			},
			StatusPending, errors.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := newTestIssue(t)
			i.Assign(types.NewID(), actor)
			tt.prepare(i)

			err := i.ChangeStatus(tt.target, actor)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("ChangeStatus(%s): %v", tt.target, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("ChangeStatus(%s): expected %v, got %v", tt.target, tt.wantErr, err)
			}
			if tt.wantErr == nil && i.Status != tt.target {
				t.Errorf("expected status %s, got %s", tt.target, i.Status)
			}
		})
	}
}

func TestEscalateRequiresReason(t *testing.T) {
	i := newTestIssue(t)

	if err := i.Escalate("", types.NewID()); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("expected validation error for empty reason, got %v", err)
	}
}

func TestEscalateSingleOutstanding(t *testing.T) {
	i := newTestIssue(t)
	actor := types.NewID()

	if err := i.Escalate("needs heavy equipment", actor); err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if i.Status != StatusEscalated {
		t.Errorf("expected status %s, got %s", StatusEscalated, i.Status)
	}
	if !i.Escalation.Outstanding() {
		t.Error("expected an outstanding escalation")
	}

	if err := i.Escalate("second request", actor); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("expected invalid transition for second escalation, got %v", err)
	}
}

func TestApprovedEscalationLocksIssue(t *testing.T) {
	i := newTestIssue(t)
	worker := types.NewID()
	dept := types.NewID()
	i.Assign(worker, worker)

	if err := i.Escalate("needs heavy equipment", worker); err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if err := i.ResolveEscalation(EscalationApproved, dept); err != nil {
		t.Fatalf("ResolveEscalation: %v", err)
	}

	if !i.Locked() {
		t.Fatal("expected issue to be locked")
	}
	if got := i.DisplayStatus(); got != DisplayEscalated {
		t.Errorf("expected display status %s, got %s", DisplayEscalated, got)
	}

	// Every subsequent transition attempt must fail.
	if err := i.ChangeStatus(StatusInProgress, worker); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("ChangeStatus on locked issue: expected invalid transition, got %v", err)
	}
	if err := i.SubmitProof(&ProofOfWork{MediaURL: "https://cdn/p.jpg", MediaType: MediaImage}); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("SubmitProof on locked issue: expected invalid transition, got %v", err)
	}
	if err := i.Escalate("again", worker); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("Escalate on locked issue: expected invalid transition, got %v", err)
	}
}

func TestRejectedEscalationReopens(t *testing.T) {
	i := newTestIssue(t)
	worker := types.NewID()
	i.Assign(worker, worker)
	i.Escalate("not my zone", worker)

	if err := i.ResolveEscalation(EscalationRejected, types.NewID()); err != nil {
		t.Fatalf("ResolveEscalation: %v", err)
	}
	if i.Locked() {
		t.Error("rejected escalation must not lock the issue")
	}
	if got := i.DisplayStatus(); got != DisplayPending {
		t.Errorf("expected display status %s after rejection, got %s", DisplayPending, got)
	}

	// The worker can raise a fresh escalation afterwards.
	if err := i.Escalate("access denied by property owner", worker); err != nil {
		t.Errorf("expected new escalation after rejection, got %v", err)
	}
}

func TestSubmitProofSingleSlot(t *testing.T) {
	i := newTestIssue(t)
	worker := types.NewID()
	dept := types.NewID()
	i.Assign(worker, worker)
	i.ChangeStatus(StatusInProgress, worker)

	first := &ProofOfWork{
		MediaURL:  "https://cdn/before.jpg",
		MediaType: MediaImage,
		Geo:       &types.GeoVerification{Lat: 12.97, Lng: 77.64, AccuracyMeters: 8},
	}
	if err := i.SubmitProof(first); err != nil {
		t.Fatalf("SubmitProof: %v", err)
	}
	if i.Status != StatusPendingReview || i.ProofStatus != ProofPending {
		t.Errorf("expected pending-review/pending, got %s/%s", i.Status, i.ProofStatus)
	}
	if i.SubmittedAt == nil {
		t.Error("expected submitted_at to be stamped")
	}

	if err := i.ResolveProof(ProofRejected, dept); err != nil {
		t.Fatalf("ResolveProof: %v", err)
	}
	if got := i.DisplayStatus(); got != DisplayPending {
		t.Errorf("expected display status %s after rejection, got %s", DisplayPending, got)
	}

	// Resubmission overwrites the slot, it never appends.
	second := &ProofOfWork{MediaURL: "https://cdn/after.jpg", MediaType: MediaImage}
	if err := i.SubmitProof(second); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if i.Proof == nil || i.Proof.MediaURL != "https://cdn/after.jpg" {
		t.Error("expected the proof slot to hold exactly the resubmitted record")
	}
	if i.ProofStatus != ProofPending {
		t.Errorf("expected proof status %s after resubmission, got %s", ProofPending, i.ProofStatus)
	}
}

func TestResolveProofApproval(t *testing.T) {
	i := newTestIssue(t)
	worker := types.NewID()
	dept := types.NewID()
	i.Assign(worker, worker)
	i.ChangeStatus(StatusInProgress, worker)
	i.SubmitProof(&ProofOfWork{MediaURL: "https://cdn/done.jpg", MediaType: MediaImage})

	if err := i.ResolveProof(ProofApproved, dept); err != nil {
		t.Fatalf("ResolveProof: %v", err)
	}
	if got := i.DisplayStatus(); got != DisplayCompleted {
		t.Errorf("expected display status %s, got %s", DisplayCompleted, got)
	}

	// Approved proof is terminal for the worker-facing lifecycle.
	if err := i.SubmitProof(&ProofOfWork{MediaURL: "https://cdn/extra.jpg", MediaType: MediaImage}); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("expected invalid transition after approval, got %v", err)
	}
	if err := i.ResolveProof(ProofApproved, dept); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("expected invalid transition on double approval, got %v", err)
	}
}

func TestDisplayStatusDerivation(t *testing.T) {
	escalatedAt := time.Now()

	tests := []struct {
		name       string
		status     Status
		proof      ProofStatus
		escalation *Escalation
		want       DisplayStatus
	}{
		{"approved escalation wins over everything", StatusPendingReview, ProofApproved,
			&Escalation{Reason: "r", EscalatedAt: escalatedAt, Status: EscalationApproved}, DisplayEscalated},
		{"approved proof reads completed", StatusPendingReview, ProofApproved, nil, DisplayCompleted},
		{"raw resolved reads completed", StatusResolved, ProofNone, nil, DisplayCompleted},
		{"rejected proof reads pending", StatusPendingReview, ProofRejected, nil, DisplayPending},
		{"rejected escalation reads pending", StatusEscalated, ProofNone,
			&Escalation{Reason: "r", EscalatedAt: escalatedAt, Status: EscalationRejected}, DisplayPending},
		{"raw assign reads pending", StatusAssign, ProofNone, nil, DisplayPending},
		{"in-progress passes through", StatusInProgress, ProofNone, nil, DisplayInProgress},
		{"pending-review passes through", StatusPendingReview, ProofPending, nil, DisplayPendingReview},
		{"outstanding escalation passes through", StatusEscalated, ProofNone,
			&Escalation{Reason: "r", EscalatedAt: escalatedAt, Status: EscalationPending}, DisplayEscalated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := newTestIssue(t)
			i.Status = tt.status
			i.ProofStatus = tt.proof
			i.Escalation = tt.escalation

			got := i.DisplayStatus()
			if got != tt.want {
				t.Errorf("DisplayStatus() = %s, want %s", got, tt.want)
			}

			// Derivation is a pure function of the snapshot.
			if again := i.DisplayStatus(); again != got {
				t.Errorf("DisplayStatus() not stable: %s then %s", got, again)
			}
		})
	}
}

func TestPendingChangesAreFieldScoped(t *testing.T) {
	i := newTestIssue(t)
	worker := types.NewID()
	i.PendingChanges()

	if err := i.Assign(worker, worker); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	changes := i.PendingChanges()
	for _, field := range []string{"assigned_personnel", "assigned_at", "status", "last_updated"} {
		if _, ok := changes[field]; !ok {
			t.Errorf("expected staged change for %s", field)
		}
	}
	if _, ok := changes["title"]; ok {
		t.Error("unrelated fields must not be staged")
	}

	// Staged changes are consumed on read.
	if again := i.PendingChanges(); again != nil {
		t.Errorf("expected staged changes to be cleared, got %v", again)
	}
}

func TestDomainEvents(t *testing.T) {
	i := newTestIssue(t)
	worker := types.NewID()

	i.Assign(worker, worker)
	i.ChangeStatus(StatusInProgress, worker)

	events := i.DomainEvents()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != IssueEventAssigned || events[1].Type != IssueEventStatusChanged {
		t.Errorf("unexpected event types: %s, %s", events[0].Type, events[1].Type)
	}
	if events[1].Data["new_status"] != StatusInProgress {
		t.Errorf("expected new_status %s in event data", StatusInProgress)
	}
}

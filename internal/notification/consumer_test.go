package notification

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/civic-gov/platform/internal/shared/events"
	"github.com/civic-gov/platform/internal/shared/types"
)

// stubDirectory hands back a fixed recipient for any known worker id
type stubDirectory struct {
	workers map[types.ID]Recipient
}

func (d *stubDirectory) Recipient(ctx context.Context, id types.ID) (Recipient, error) {
	r, ok := d.workers[id]
	if !ok {
		return Recipient{}, fmt.Errorf("worker %s not found", id)
	}
	return r, nil
}

func lifecycleEvent(eventType string, data map[string]any) events.Event {
	return events.NewEvent(eventType, "issue", data)
}

func TestConsumerDispatchesAssignment(t *testing.T) {
	push := NewMockPushProvider()
	svc := startTestService(t, push)

	workerID := types.NewID()
	directory := &stubDirectory{workers: map[types.ID]Recipient{
		workerID: {ID: workerID, Type: "worker", Name: "Ana", Phone: "+38160123456"},
	}}
	consumer := NewConsumer(svc, directory)

	event := lifecycleEvent("issue.assigned", map[string]any{
		"issue_id":   types.NewID().String(),
		"title":      "Broken streetlight",
		"department": "electricity",
		"priority":   "high",
		"worker_id":  workerID.String(),
	})
	if err := consumer.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	sent := waitForSent(t, push, 1)
	if sent[0].Subject != "New task assigned" {
		t.Errorf("Subject = %q, want %q", sent[0].Subject, "New task assigned")
	}
	if sent[0].RecipientName != "Ana" {
		t.Errorf("RecipientName = %q, want %q", sent[0].RecipientName, "Ana")
	}
	if sent[0].Priority != PriorityHigh {
		t.Errorf("Priority = %q, want %q", sent[0].Priority, PriorityHigh)
	}
}

func TestConsumerNotifiesDepartmentOnEscalation(t *testing.T) {
	push := NewMockPushProvider()
	svc := startTestService(t, push)
	consumer := NewConsumer(svc, &stubDirectory{})

	event := lifecycleEvent("issue.escalated", map[string]any{
		"issue_id":   types.NewID().String(),
		"title":      "Fallen tree",
		"department": "pwd",
		"reason":     "needs heavy machinery",
	})
	if err := consumer.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stats := svc.GetStats()
		if stats.ByType[NotificationTypeInApp] >= 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("escalation request never reached the department channel")
}

func TestConsumerDecisionEvents(t *testing.T) {
	tests := []struct {
		eventType   string
		decision    string
		wantSubject string
	}{
		{"issue.escalation_decided", "approved", "Escalation approved"},
		{"issue.escalation_decided", "rejected", "Escalation rejected"},
		{"issue.proof_decided", "approved", "Task completed"},
		{"issue.proof_decided", "rejected", "Proof rejected"},
	}

	for _, tt := range tests {
		t.Run(tt.eventType+"/"+tt.decision, func(t *testing.T) {
			push := NewMockPushProvider()
			svc := startTestService(t, push)

			workerID := types.NewID()
			directory := &stubDirectory{workers: map[types.ID]Recipient{
				workerID: {ID: workerID, Type: "worker", Name: "Marko"},
			}}
			consumer := NewConsumer(svc, directory)

			event := lifecycleEvent(tt.eventType, map[string]any{
				"issue_id":           types.NewID().String(),
				"title":              "Garbage pileup",
				"assigned_personnel": workerID.String(),
				"decision":           tt.decision,
			})
			if err := consumer.Handle(context.Background(), event); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			sent := waitForSent(t, push, 1)
			if sent[0].Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", sent[0].Subject, tt.wantSubject)
			}
		})
	}
}

func TestConsumerIgnoresUnrelatedEvents(t *testing.T) {
	push := NewMockPushProvider()
	svc := startTestService(t, push)
	consumer := NewConsumer(svc, &stubDirectory{})

	for _, eventType := range []string{"issue.created", "issue.status_changed", "issue.proof_submitted"} {
		event := lifecycleEvent(eventType, map[string]any{
			"issue_id": types.NewID().String(),
			"title":    "Pothole",
		})
		if err := consumer.Handle(context.Background(), event); err != nil {
			t.Fatalf("Handle(%s) error = %v", eventType, err)
		}
	}

	time.Sleep(50 * time.Millisecond)
	if len(push.GetSentNotifications()) != 0 {
		t.Errorf("sent %d notifications for non-actionable events", len(push.GetSentNotifications()))
	}
}

func TestConsumerDropsWorkerEventsWithoutDirectory(t *testing.T) {
	push := NewMockPushProvider()
	svc := startTestService(t, push)
	consumer := NewConsumer(svc, nil)

	event := lifecycleEvent("issue.assigned", map[string]any{
		"issue_id":  types.NewID().String(),
		"title":     "Water leak",
		"worker_id": types.NewID().String(),
	})
	if err := consumer.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if len(push.GetSentNotifications()) != 0 {
		t.Error("worker-addressed notification sent without a directory to resolve it")
	}
}

func TestConsumerSendFailureDoesNotFailEvent(t *testing.T) {
	push := NewMockPushProvider()
	svc := startTestService(t, push)

	workerID := types.NewID()
	prefs := DefaultUserPreferences(workerID.String())
	prefs.EnablePush = false
	svc.SetUserPreferences(prefs)

	directory := &stubDirectory{workers: map[types.ID]Recipient{
		workerID: {ID: workerID, Type: "worker"},
	}}
	consumer := NewConsumer(svc, directory)

	event := lifecycleEvent("issue.assigned", map[string]any{
		"issue_id":  types.NewID().String(),
		"title":     "Blocked drain",
		"worker_id": workerID.String(),
	})
	if err := consumer.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle() error = %v, want nil so the event is acknowledged", err)
	}
}

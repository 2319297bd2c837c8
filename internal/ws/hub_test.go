package ws

import (
	"errors"
	"testing"

	"avenir-sync/internal/models"
)

type captureWriter struct {
	events []models.EventFrame
	fail   bool
	closed bool
}

func (w *captureWriter) WriteEvent(ev models.EventFrame) error {
	if w.fail {
		return errors.New("broken pipe")
	}
	w.events = append(w.events, ev)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestHubAddAndRemoveSession(t *testing.T) {
	hub := NewHub()
	w := &captureWriter{}

	hub.Add(1, w, ConnInfo{UserID: 1})
	if len(hub.sessions) != 1 {
		t.Fatalf("expected session entry to be created")
	}

	hub.Remove(1, w)
	if len(hub.sessions) != 0 {
		t.Fatalf("expected session entry to be removed")
	}
}

func TestSendToUserHitsEverySession(t *testing.T) {
	hub := NewHub()
	first := &captureWriter{}
	second := &captureWriter{}
	hub.Add(1, first, ConnInfo{UserID: 1})
	hub.Add(1, second, ConnInfo{UserID: 1})
	other := &captureWriter{}
	hub.Add(2, other, ConnInfo{UserID: 2})

	hub.SendToUser(1, models.EventFrame{Type: models.EventNewMessage})

	if len(first.events) != 1 || len(second.events) != 1 {
		t.Fatalf("expected both sessions of user 1 to receive the event")
	}
	if len(other.events) != 0 {
		t.Fatalf("user 2 must not receive user 1 events")
	}
}

func TestBroadcastToAdvisorsFiltersByRole(t *testing.T) {
	hub := NewHub()
	advisor := &captureWriter{}
	client := &captureWriter{}
	hub.Add(1, client, ConnInfo{UserID: 1, Role: models.RoleClient})
	hub.Add(2, advisor, ConnInfo{UserID: 2, Role: models.RoleAdvisor})

	hub.BroadcastToAdvisors(models.EventFrame{Type: models.EventHelpRequest})

	if len(advisor.events) != 1 {
		t.Fatalf("expected advisor session to receive the broadcast")
	}
	if len(client.events) != 0 {
		t.Fatalf("client session must not receive advisor broadcasts")
	}
}

func TestWriteFailureEvictsSession(t *testing.T) {
	hub := NewHub()
	broken := &captureWriter{fail: true}
	hub.Add(1, broken, ConnInfo{UserID: 1})

	hub.SendToUser(1, models.EventFrame{Type: models.EventNewMessage})

	if !broken.closed {
		t.Fatalf("expected failing session to be closed")
	}
	if len(hub.sessions) != 0 {
		t.Fatalf("expected failing session to be evicted")
	}
}

package websocket

import "testing"

func TestHubReplaysLatestAndFansOut(t *testing.T) {
	h := NewHub()
	h.Publish(EventReadiness, ReadinessEvent{Event: EventReadiness, State: "initializing"})
	h.Publish(EventReadiness, ReadinessEvent{Event: EventReadiness, State: "ready"})

	ch, unsubscribe := h.Subscribe()
	first := (<-ch).(ReadinessEvent)
	if first.State != "ready" {
		t.Fatalf("expected the latest readiness on subscribe, got %s", first.State)
	}

	h.Publish(EventSession, SessionEvent{Event: EventSession, State: "authenticated"})
	if ev := (<-ch).(SessionEvent); ev.State != "authenticated" {
		t.Fatalf("expected session event, got %+v", ev)
	}

	unsubscribe()
	unsubscribe()
	if _, open := <-ch; open {
		t.Fatalf("expected channel closed after unsubscribe")
	}
	h.Publish(EventSession, SessionEvent{Event: EventSession, State: "anonymous"})
}

func TestHubDropsForSlowClients(t *testing.T) {
	h := NewHub()
	_, unsubscribe := h.Subscribe()
	defer unsubscribe()

	for i := 0; i < 100; i++ {
		h.Publish(EventSession, SessionEvent{Event: EventSession, State: "anonymous"})
	}
}

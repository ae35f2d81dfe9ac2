package session

import (
	"testing"
	"time"
)

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestLifecycleEventsPublished(t *testing.T) {
	r := NewRegistry()
	id, ch := r.Events().Subscribe(8)
	defer r.Events().Unsubscribe(id)

	c := r.Add("websocket", "10.0.0.1:5000")

	e := recvEvent(t, ch)
	if e.Type != EventOpened {
		t.Fatalf("Type = %s, want %s", e.Type, EventOpened)
	}
	if e.Client.Ordinal != c.Ordinal {
		t.Errorf("Client.Ordinal = %d, want %d", e.Client.Ordinal, c.Ordinal)
	}
	if e.Connections != 1 {
		t.Errorf("Connections = %d, want 1", e.Connections)
	}

	r.Remove(c.ID)

	e = recvEvent(t, ch)
	if e.Type != EventClosed {
		t.Fatalf("Type = %s, want %s", e.Type, EventClosed)
	}
	if e.Connections != 0 {
		t.Errorf("Connections = %d, want 0", e.Connections)
	}
}

func TestRemoveUnknownPublishesNothing(t *testing.T) {
	r := NewRegistry()
	id, ch := r.Events().Subscribe(2)
	defer r.Events().Unsubscribe(id)

	c := r.Add("unix", "local")
	r.Remove(c.ID)
	r.Remove(c.ID) // second remove must not publish

	<-ch // opened
	<-ch // closed
	select {
	case e := <-ch:
		t.Fatalf("unexpected extra event: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	b := NewBroadcaster()
	id, ch := b.Subscribe(1)
	defer b.Unsubscribe(id)

	b.Publish(Event{Type: EventOpened, Connections: 1})
	b.Publish(Event{Type: EventOpened, Connections: 2}) // dropped: buffer full

	first := <-ch
	if first.Connections != 1 {
		t.Errorf("Connections = %d, want 1", first.Connections)
	}
	select {
	case e := <-ch:
		t.Fatalf("second event should have been dropped, got %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	id, ch := b.Subscribe(1)

	b.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}

	// Unsubscribing twice and publishing afterwards must not panic.
	b.Unsubscribe(id)
	b.Publish(Event{Type: EventClosed})
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	b := NewBroadcaster()
	id1, ch1 := b.Subscribe(4)
	id2, ch2 := b.Subscribe(4)
	defer b.Unsubscribe(id1)
	defer b.Unsubscribe(id2)

	b.Publish(Event{Type: EventOpened, Connections: 7})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Connections != 7 {
				t.Errorf("subscriber %d: Connections = %d, want 7", i, e.Connections)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

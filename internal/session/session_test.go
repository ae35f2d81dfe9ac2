package session

import (
	"sync"
	"testing"
)

func TestAddAssignsMonotonicOrdinals(t *testing.T) {
	r := NewRegistry()

	a := r.Add("websocket", "10.0.0.1:5000")
	b := r.Add("websocket", "10.0.0.2:5001")
	c := r.Add("unix", "local")

	if a.Ordinal != 1 || b.Ordinal != 2 || c.Ordinal != 3 {
		t.Errorf("ordinals = %d, %d, %d, want 1, 2, 3", a.Ordinal, b.Ordinal, c.Ordinal)
	}
	if a.ID == b.ID {
		t.Error("clients must get distinct ids")
	}
	if r.Count() != 3 {
		t.Errorf("Count = %d, want 3", r.Count())
	}
}

func TestRemoveDropsClient(t *testing.T) {
	r := NewRegistry()
	a := r.Add("websocket", "10.0.0.1:5000")
	b := r.Add("websocket", "10.0.0.2:5001")

	r.Remove(a.ID)
	if r.Count() != 1 {
		t.Fatalf("Count = %d, want 1", r.Count())
	}

	clients := r.Clients()
	if len(clients) != 1 || clients[0].ID != b.ID {
		t.Errorf("Clients = %+v, want only the second client", clients)
	}

	// Removing the same client again is a no-op.
	r.Remove(a.ID)
	if r.Count() != 1 {
		t.Errorf("Count after double remove = %d, want 1", r.Count())
	}
}

func TestOrdinalsNotReusedAfterRemove(t *testing.T) {
	r := NewRegistry()
	a := r.Add("websocket", "10.0.0.1:5000")
	r.Remove(a.ID)

	b := r.Add("websocket", "10.0.0.1:5000")
	if b.Ordinal != 2 {
		t.Errorf("Ordinal = %d, want 2 (ordinals are never reused)", b.Ordinal)
	}
}

func TestClientsSortedByOrdinal(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		r.Add("websocket", "remote")
	}

	clients := r.Clients()
	if len(clients) != 5 {
		t.Fatalf("len(Clients) = %d, want 5", len(clients))
	}
	for i, c := range clients {
		if c.Ordinal != int64(i+1) {
			t.Errorf("Clients[%d].Ordinal = %d, want %d", i, c.Ordinal, i+1)
		}
	}
}

func TestConcurrentAddRemove(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := r.Add("websocket", "remote")
			r.Remove(c.ID)
		}()
	}
	wg.Wait()

	if r.Count() != 0 {
		t.Errorf("Count = %d, want 0 after all connections closed", r.Count())
	}
	if next := r.Add("unix", "local"); next.Ordinal != 21 {
		t.Errorf("next ordinal = %d, want 21", next.Ordinal)
	}
}

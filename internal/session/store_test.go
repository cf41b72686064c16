package session

import (
	"errors"
	"testing"
	"time"
)

func newTestStore(maxSessions int, timeout time.Duration) (*Store, *time.Time) {
	s := NewStore(maxSessions, timeout)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestStore_CreateUniqueIDs(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		sum, err := s.Create("test", "gpt-image-1", "")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if sum.ID == "" {
			t.Fatal("Create() returned empty ID")
		}
		if seen[sum.ID] {
			t.Fatalf("Create() returned duplicate ID %s", sum.ID)
		}
		seen[sum.ID] = true
	}
}

func TestStore_CreateCapacityExceeded(t *testing.T) {
	s, _ := newTestStore(2, time.Hour)

	for i := 0; i < 2; i++ {
		if _, err := s.Create("fill", "gpt-image-1", ""); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	_, err := s.Create("overflow", "gpt-image-1", "")
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("Create() error = %v, want ErrCapacityExceeded", err)
	}
	if got := s.Len(); got != 2 {
		t.Errorf("Len() = %d after rejected create, want 2", got)
	}
}

func TestStore_CreateRecoversAfterSweep(t *testing.T) {
	s, now := newTestStore(1, time.Minute)

	if _, err := s.Create("old", "gpt-image-1", ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Expire the only session; the next create must sweep it and succeed.
	*now = now.Add(2 * time.Minute)
	if _, err := s.Create("new", "gpt-image-1", ""); err != nil {
		t.Fatalf("Create() after expiry error = %v", err)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)

	_, err := s.Get("no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestStore_GetExpired(t *testing.T) {
	s, now := newTestStore(10, time.Minute)

	sum, err := s.Create("test", "gpt-image-1", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	*now = now.Add(61 * time.Second)
	if _, err := s.Get(sum.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() on expired session error = %v, want ErrNotFound", err)
	}
}

func TestStore_CloseTwice(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)

	sum, err := s.Create("test", "gpt-image-1", "mylogo")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	closed, err := s.Close(sum.ID)
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if closed.Name != "mylogo" {
		t.Errorf("Close() summary name = %q, want %q", closed.Name, "mylogo")
	}

	if _, err := s.Close(sum.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Close() error = %v, want ErrNotFound", err)
	}
}

func TestStore_AppendTurnOrdering(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)

	sum, _ := s.Create("test", "gpt-image-1", "")

	for i := 0; i < 5; i++ {
		turn, err := s.AppendTurn(sum.ID, RoleUser, "turn", "")
		if err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
		if turn.Seq != i+1 {
			t.Errorf("AppendTurn() seq = %d, want %d", turn.Seq, i+1)
		}
	}

	sess, err := s.Get(sum.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	for i, turn := range sess.Turns {
		if turn.Seq != i+1 {
			t.Errorf("Turns[%d].Seq = %d, want strictly increasing", i, turn.Seq)
		}
	}
}

func TestStore_AppendTurnStaleSession(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)

	if _, err := s.AppendTurn("stale", RoleUser, "hi", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AppendTurn() error = %v, want ErrNotFound", err)
	}
	if err := s.AppendImage("stale", ImageRecord{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AppendImage() error = %v, want ErrNotFound", err)
	}
}

func TestStore_AppendUpdatesLastActive(t *testing.T) {
	s, now := newTestStore(10, time.Hour)

	sum, _ := s.Create("test", "gpt-image-1", "")
	created := sum.LastActive

	*now = now.Add(10 * time.Minute)
	if _, err := s.AppendTurn(sum.ID, RoleUser, "hello", ""); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	sess, _ := s.Peek(sum.ID)
	if !sess.LastActive.After(created) {
		t.Errorf("LastActive = %v, want after %v", sess.LastActive, created)
	}
}

func TestStore_SweepRemovesOnlyIdle(t *testing.T) {
	s, now := newTestStore(10, time.Minute)

	stale, _ := s.Create("stale", "gpt-image-1", "")
	*now = now.Add(50 * time.Second)
	fresh, _ := s.Create("fresh", "gpt-image-1", "")

	*now = now.Add(20 * time.Second)
	if removed := s.Sweep(); removed != 1 {
		t.Fatalf("Sweep() removed = %d, want 1", removed)
	}

	if _, err := s.Peek(stale.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale session still present after sweep")
	}
	if _, err := s.Peek(fresh.ID); err != nil {
		t.Errorf("fresh session removed by sweep: %v", err)
	}
}

func TestStore_ListOrder(t *testing.T) {
	s, now := newTestStore(10, time.Hour)

	first, _ := s.Create("first", "gpt-image-1", "")
	*now = now.Add(time.Minute)
	second, _ := s.Create("second", "gpt-image-1", "")

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("List() len = %d, want 2", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("List() order = [%s %s], want most recently active first", list[0].Description, list[1].Description)
	}
}

func TestStore_AppendImage(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)

	sum, _ := s.Create("test", "gpt-image-1", "")
	rec := ImageRecord{ID: "img-1", SessionID: sum.ID, Prompt: "blue circle logo"}
	if err := s.AppendImage(sum.ID, rec); err != nil {
		t.Fatalf("AppendImage() error = %v", err)
	}

	sess, _ := s.Peek(sum.ID)
	if len(sess.Images) != 1 {
		t.Fatalf("Images len = %d, want 1", len(sess.Images))
	}
	if sess.Images[0].ID != "img-1" {
		t.Errorf("Images[0].ID = %q, want %q", sess.Images[0].ID, "img-1")
	}
}

func TestStore_CopyIsolation(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)

	sum, _ := s.Create("test", "gpt-image-1", "")
	s.AppendTurn(sum.ID, RoleUser, "original", "")

	sess, _ := s.Peek(sum.ID)
	sess.Turns[0].Text = "mutated"

	again, _ := s.Peek(sum.ID)
	if again.Turns[0].Text != "original" {
		t.Error("caller mutation leaked into stored session")
	}
}

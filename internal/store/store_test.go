package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/drai-ai/drai/internal/chat"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "drai.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestActiveAlwaysResolves(t *testing.T) {
	s := newTestStore(t)

	// Nothing stored yet: ActiveSession must create one.
	first, err := s.ActiveSession()
	if err != nil {
		t.Fatalf("ActiveSession: %v", err)
	}
	if first.ID == "" {
		t.Fatal("auto-created session has no id")
	}

	second, err := s.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	active, err := s.ActiveSession()
	if err != nil {
		t.Fatalf("ActiveSession: %v", err)
	}
	if active.ID != second.ID {
		t.Errorf("active = %s, want newly created %s", active.ID, second.ID)
	}

	// Deleting the active session promotes the survivor.
	if err := s.DeleteSession(second.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	active, err = s.ActiveSession()
	if err != nil {
		t.Fatalf("ActiveSession: %v", err)
	}
	if active.ID != first.ID {
		t.Errorf("active after delete = %s, want survivor %s", active.ID, first.ID)
	}

	// Deleting the last session recreates a fresh one.
	if err := s.DeleteSession(first.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	active, err = s.ActiveSession()
	if err != nil {
		t.Fatalf("ActiveSession: %v", err)
	}
	if active.ID == first.ID || active.ID == second.ID {
		t.Error("expected a fresh session after deleting all")
	}
	if len(active.Messages) != 1 {
		t.Errorf("fresh session should carry the welcome message, got %d messages", len(active.Messages))
	}
}

func TestSelectSessionUnknownIsNoop(t *testing.T) {
	s := newTestStore(t)
	sess, err := s.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := s.SelectSession("no-such-id"); err != nil {
		t.Fatalf("SelectSession(unknown) = %v, want nil", err)
	}
	id, err := s.ActiveSessionID()
	if err != nil {
		t.Fatalf("ActiveSessionID: %v", err)
	}
	if id != sess.ID {
		t.Errorf("active changed to %s after unknown select, want %s", id, sess.ID)
	}
}

func TestAppendMessageIdempotent(t *testing.T) {
	s := newTestStore(t)
	sess, err := s.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	msg := chat.Message{ID: "m-1", Role: chat.RoleUser, Text: "I have a rash on my arm"}
	for i := 0; i < 3; i++ {
		if err := s.AppendMessage(sess.ID, msg); err != nil {
			t.Fatalf("AppendMessage #%d: %v", i, err)
		}
	}

	got, err := s.Load(sess.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	count := 0
	for _, m := range got.Messages {
		if m.ID == "m-1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("message m-1 stored %d times, want exactly once", count)
	}
}

func TestAppendDerivesTitle(t *testing.T) {
	s := newTestStore(t)
	sess, err := s.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	long := "I have a headache and fever since yesterday morning, what should I..."
	err = s.AppendMessage(sess.ID, chat.Message{ID: "m-1", Role: chat.RoleUser, Text: long})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	got, err := s.Load(sess.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Title != long[:30] {
		t.Errorf("title = %q, want first 30 chars %q", got.Title, long[:30])
	}
}

func TestCorruptMessagesTreatedAsEmpty(t *testing.T) {
	s := newTestStore(t)
	sess, err := s.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := s.db.Exec("UPDATE sessions SET messages = 'not json' WHERE id = ?", sess.ID); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	got, err := s.Load(sess.ID)
	if err != nil {
		t.Fatalf("Load of corrupt session should not fail: %v", err)
	}
	if len(got.Messages) != 0 {
		t.Errorf("corrupt messages should load as empty, got %d", len(got.Messages))
	}
}

func TestDeleteUnknownSession(t *testing.T) {
	s := newTestStore(t)
	if err := s.DeleteSession("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("DeleteSession(missing) = %v, want ErrSessionNotFound", err)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if p := s.Profile(); !p.Empty() {
		t.Errorf("fresh store profile should be empty, got %+v", p)
	}

	want := chat.Profile{Name: "Ada", Age: "34", Gender: "female", MedicalHistory: "asthma"}
	if err := s.SaveProfile(want); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if got := s.Profile(); got != want {
		t.Errorf("Profile = %+v, want %+v", got, want)
	}
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.CreateSession()
	b, _ := s.CreateSession()

	if err := s.AppendMessage(a.ID, chat.Message{ID: "m-a", Role: chat.RoleUser, Text: "burn on my hand"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := s.AppendMessage(b.ID, chat.Message{ID: "m-b", Role: chat.RoleUser, Text: "persistent cough"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	got, err := s.Search("burn")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("Search(burn) = %v, want only session %s", got, a.ID)
	}
}

package speech

import (
	"context"
	"sync"
	"testing"
	"time"
)

// blockingEngine speaks until its context is cancelled or release is closed.
type blockingEngine struct {
	mu      sync.Mutex
	started chan string
	release chan struct{}
}

func newBlockingEngine() *blockingEngine {
	return &blockingEngine{
		started: make(chan string, 8),
		release: make(chan struct{}),
	}
}

func (e *blockingEngine) Speak(ctx context.Context, text, voice string) error {
	e.started <- text
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.release:
		return nil
	}
}

func (e *blockingEngine) Voices() []string { return nil }

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSpeakInterruptsPrior(t *testing.T) {
	engine := newBlockingEngine()
	rec := &recorder{}
	s := NewSpeaker(engine, rec.record)

	s.Speak("m1", "first message")
	<-engine.started
	s.Speak("m2", "second message")
	<-engine.started

	waitFor(t, func() bool { return s.Speaking() == "m2" })

	// m1's goroutine must not clear m2's state and must not emit a second
	// stop event for m2.
	close(engine.release)
	waitFor(t, func() bool {
		for _, ev := range rec.snapshot() {
			if ev.MessageID == "m2" && !ev.Speaking {
				return true
			}
		}
		return false
	})

	stops := map[string]int{}
	for _, ev := range rec.snapshot() {
		if !ev.Speaking {
			stops[ev.MessageID]++
		}
	}
	if stops["m2"] != 1 {
		t.Errorf("m2 stop events = %d, want 1", stops["m2"])
	}
	if stops["m1"] > 0 {
		t.Errorf("m1 emitted %d stop events after interruption, want 0", stops["m1"])
	}
	if got := s.Speaking(); got != "" {
		t.Errorf("Speaking() = %q after playback ended, want empty", got)
	}
}

func TestStopClearsOnce(t *testing.T) {
	engine := newBlockingEngine()
	rec := &recorder{}
	s := NewSpeaker(engine, rec.record)

	s.Speak("m1", "hello there")
	<-engine.started
	s.Stop()
	s.Stop()

	if got := s.Speaking(); got != "" {
		t.Errorf("Speaking() = %q after Stop, want empty", got)
	}
	time.Sleep(50 * time.Millisecond)

	stops := 0
	for _, ev := range rec.snapshot() {
		if ev.MessageID == "m1" && !ev.Speaking {
			stops++
		}
	}
	if stops != 1 {
		t.Errorf("stop events = %d, want exactly 1", stops)
	}
}

func TestSpeakSkipsEmptyAfterSanitize(t *testing.T) {
	engine := newBlockingEngine()
	s := NewSpeaker(engine, nil)
	s.Speak("m1", "### *** ___")
	select {
	case <-engine.started:
		t.Fatal("engine started for empty sanitized text")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"**bold** and _italic_", "bold and italic"},
		{"see [the guide](https://example.com) now", "see the guide now"},
		{"# Heading\nbody `code`", "Heading\nbody code"},
		{"plain text", "plain text"},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPickVoice(t *testing.T) {
	tests := []struct {
		voices []string
		want   string
	}{
		{[]string{"Alex", "Google US English", "Samantha"}, "Google US English"},
		{[]string{"Alex", "Samantha"}, "Samantha"},
		{[]string{"Alex", "Victoria en-US"}, "Victoria en-US"},
		{[]string{"fr-FR", "en-GB", "de-DE"}, "en-GB"},
		{[]string{"Alex", "Thomas"}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := PickVoice(tt.voices); got != tt.want {
			t.Errorf("PickVoice(%v) = %q, want %q", tt.voices, got, tt.want)
		}
	}
}

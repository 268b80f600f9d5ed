package listen

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type scriptedEngine struct {
	frags chan Fragment
}

func newScriptedEngine() *scriptedEngine {
	return &scriptedEngine{frags: make(chan Fragment)}
}

func (e *scriptedEngine) Start(ctx context.Context) (<-chan Fragment, error) {
	out := make(chan Fragment)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-e.frags:
				if !ok {
					return
				}
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type submitLog struct {
	mu   sync.Mutex
	subs []Submission
}

func (l *submitLog) add(s Submission) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, s)
}

func (l *submitLog) all() []Submission {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Submission(nil), l.subs...)
}

func TestSilenceSubmitsExactlyOnce(t *testing.T) {
	engine := newScriptedEngine()
	logged := &submitLog{}
	m := NewMediator(engine, logged.add, WithSilence(40*time.Millisecond))
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	engine.frags <- Fragment{Text: "I have a", Final: true}
	engine.frags <- Fragment{Text: "sore throat", Final: true}

	// Well past the silence window: one submission, and the session is over.
	time.Sleep(200 * time.Millisecond)

	subs := logged.all()
	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1 (%v)", len(subs), subs)
	}
	if subs[0].Text != "I have a sore throat" {
		t.Errorf("text = %q, want joined transcript", subs[0].Text)
	}
	if subs[0].Target != TargetChat {
		t.Errorf("target = %v, want TargetChat", subs[0].Target)
	}
	if m.Listening() {
		t.Error("still listening after the silence window expired")
	}
}

func TestFragmentResetsSilenceWindow(t *testing.T) {
	engine := newScriptedEngine()
	logged := &submitLog{}
	m := NewMediator(engine, logged.add, WithSilence(100*time.Millisecond))
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	// Keep fragments arriving faster than the window closes.
	for range 4 {
		engine.frags <- Fragment{Text: "still talking", Final: true}
		time.Sleep(30 * time.Millisecond)
	}
	if got := logged.all(); len(got) != 0 {
		t.Fatalf("submitted %v while speech was ongoing", got)
	}

	time.Sleep(250 * time.Millisecond)
	if got := logged.all(); len(got) != 1 {
		t.Fatalf("submissions = %d after silence, want 1", len(got))
	}
	if m.Listening() {
		t.Error("session should end with the silence submission")
	}
}

func TestTargetReadAtSubmission(t *testing.T) {
	engine := newScriptedEngine()
	logged := &submitLog{}
	m := NewMediator(engine, logged.add, WithSilence(40*time.Millisecond))
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	engine.frags <- Fragment{Text: "redness around the wound", Final: true}
	// Retarget while the transcript is pending.
	m.SetTarget(TargetCaption)

	time.Sleep(150 * time.Millisecond)
	subs := logged.all()
	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs))
	}
	if subs[0].Target != TargetCaption {
		t.Errorf("target = %v, want TargetCaption", subs[0].Target)
	}
}

func TestStopDiscardsPendingTranscript(t *testing.T) {
	engine := newScriptedEngine()
	logged := &submitLog{}
	m := NewMediator(engine, logged.add, WithSilence(time.Hour))
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}

	engine.frags <- Fragment{Text: "dizzy since morning", Final: true}
	m.Stop()

	if m.Listening() {
		t.Error("still listening after Stop")
	}
	// Stopping by hand is a cancel, not a confirmation: nothing submits.
	if subs := logged.all(); len(subs) != 0 {
		t.Errorf("submissions = %v, want none on manual stop", subs)
	}
}

func TestToggle(t *testing.T) {
	engine := newScriptedEngine()
	m := NewMediator(engine, func(Submission) {}, WithSilence(time.Hour))

	if err := m.Toggle(); err != nil {
		t.Fatal(err)
	}
	if !m.Listening() {
		t.Fatal("not listening after first toggle")
	}
	if err := m.Toggle(); err != nil {
		t.Fatal(err)
	}
	if m.Listening() {
		t.Fatal("still listening after second toggle")
	}
}

func TestSoxArgsCarryRecordingOptions(t *testing.T) {
	got := strings.Join(soxArgs("/tmp/clip.wav"), " ")
	want := "-q -d -r 16000 -c 1 /tmp/clip.wav silence 1 0.1 1% 1 1.5 1%"
	if got != want {
		t.Errorf("soxArgs = %q, want %q", got, want)
	}
}

func TestInterimFragmentsPreviewOnly(t *testing.T) {
	engine := newScriptedEngine()
	logged := &submitLog{}
	var mu sync.Mutex
	var previews []string
	m := NewMediator(engine, logged.add,
		WithSilence(40*time.Millisecond),
		WithPreview(func(s string) {
			mu.Lock()
			previews = append(previews, s)
			mu.Unlock()
		}))
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	engine.frags <- Fragment{Text: "my knee", Final: false}
	engine.frags <- Fragment{Text: "my knee hurts", Final: true}

	time.Sleep(150 * time.Millisecond)
	subs := logged.all()
	if len(subs) != 1 || subs[0].Text != "my knee hurts" {
		t.Fatalf("submissions = %v, want only the final fragment", subs)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(previews) == 0 || previews[0] != "my knee" {
		t.Errorf("previews = %v, want interim text first", previews)
	}
}

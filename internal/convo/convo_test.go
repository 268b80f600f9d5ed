package convo

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/drai-ai/drai/internal/capture"
	"github.com/drai-ai/drai/internal/chat"
	"github.com/drai-ai/drai/internal/oracle"
	"github.com/drai-ai/drai/internal/store"
)

type fakeOracle struct {
	mu      sync.Mutex
	calls   int
	reply   string
	err     error
	release chan struct{} // when non-nil, Advise blocks until closed
}

func (f *fakeOracle) Advise(ctx context.Context, req *oracle.Request) (string, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	f.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeOracle) Name() string { return "fake" }

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []string
}

func (f *fakeSpeaker) Speak(messageID, text string) {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
}

func (f *fakeSpeaker) Stop() {}

func (f *fakeSpeaker) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "drai.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func waitEvent(t *testing.T, m *Machine, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-m.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %v event in time", kind)
		}
	}
}

func TestSingleFlight(t *testing.T) {
	st := openStore(t)
	f := &fakeOracle{reply: "Rest and hydrate.", release: make(chan struct{})}
	m := New(st, f, nil)

	if err := m.SubmitText(context.Background(), "I have a headache"); err != nil {
		t.Fatal(err)
	}
	if err := m.SubmitText(context.Background(), "another question"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second submit error = %v, want ErrBusy", err)
	}

	close(f.release)
	waitEvent(t, m, EventIdle)

	if err := m.SubmitText(context.Background(), "follow up"); err != nil {
		t.Fatalf("submit after idle failed: %v", err)
	}
	waitEvent(t, m, EventIdle)

	sess, err := st.ActiveSession()
	if err != nil {
		t.Fatal(err)
	}
	// welcome + 2 user + 2 assistant
	if len(sess.Messages) != 5 {
		t.Errorf("messages = %d, want 5", len(sess.Messages))
	}
}

func TestFailureAppendsFallback(t *testing.T) {
	st := openStore(t)
	f := &fakeOracle{err: &oracle.APIError{StatusCode: 429, Provider: "fake"}}
	speaker := &fakeSpeaker{}
	m := New(st, f, speaker)

	if err := m.SubmitText(context.Background(), "my chest hurts"); err != nil {
		t.Fatal(err)
	}
	ev := waitEvent(t, m, EventError)
	if ev.Message.Text != oracle.MsgQuotaExceeded {
		t.Errorf("fallback text = %q, want quota message", ev.Message.Text)
	}
	waitEvent(t, m, EventIdle)

	sess, err := st.ActiveSession()
	if err != nil {
		t.Fatal(err)
	}
	last := sess.Messages[len(sess.Messages)-1]
	if last.Role != chat.RoleAssistant || last.Text != oracle.MsgQuotaExceeded {
		t.Errorf("last message = %+v, want persisted fallback", last)
	}
	// The user message survives the failed turn.
	prev := sess.Messages[len(sess.Messages)-2]
	if prev.Role != chat.RoleUser || prev.Text != "my chest hurts" {
		t.Errorf("user message = %+v, want it persisted before the failure", prev)
	}

	// The detailed fallback is printed, not read aloud.
	if spoken := speaker.all(); len(spoken) != 1 || spoken[0] != spokenApology {
		t.Errorf("spoken = %v, want the generic apology", spoken)
	}
}

func TestImageRequestBypassesOracle(t *testing.T) {
	st := openStore(t)
	f := &fakeOracle{reply: "should not be called"}
	speaker := &fakeSpeaker{}
	m := New(st, f, speaker)

	if err := m.SubmitText(context.Background(), "generate image of a mole"); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, m, EventIdle)

	if f.callCount() != 0 {
		t.Errorf("oracle called %d times for an image request", f.callCount())
	}
	sess, err := st.ActiveSession()
	if err != nil {
		t.Fatal(err)
	}
	last := sess.Messages[len(sess.Messages)-1]
	if !strings.Contains(last.GeneratedImage, "pollinations.ai/p/of%20a%20mole") {
		t.Errorf("generated image URL = %q", last.GeneratedImage)
	}
	if !strings.Contains(last.Text, `**"of a mole"**`) {
		t.Errorf("reply text = %q", last.Text)
	}

	spoken := speaker.all()
	if len(spoken) != 1 || strings.ContainsAny(spoken[0], "*") {
		t.Errorf("spoken = %v, want one utterance without emphasis markers", spoken)
	}
}

func TestAnalysisTurnSendsImage(t *testing.T) {
	st := openStore(t)
	f := &fakeOracle{reply: "Looks like a minor burn."}
	m := New(st, f, nil)

	req := capture.Request{
		Display: "[Image Analysis Request]: red patch",
		Prompt:  "red patch",
		Image:   chat.ImagePayload{Data: "aGk=", MediaType: "image/png"},
	}
	if err := m.SubmitAnalysis(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, m, EventIdle)

	sess, err := st.ActiveSession()
	if err != nil {
		t.Fatal(err)
	}
	user := sess.Messages[len(sess.Messages)-2]
	if user.InlineImage == nil || user.InlineImage.MediaType != "image/png" {
		t.Errorf("user message image = %+v", user.InlineImage)
	}
	if user.Text != req.Display {
		t.Errorf("user text = %q, want display form", user.Text)
	}
}

func TestSpeechToggle(t *testing.T) {
	st := openStore(t)
	f := &fakeOracle{reply: "Take it easy."}
	speaker := &fakeSpeaker{}
	m := New(st, f, speaker)

	m.SetSpeech(false)
	if err := m.SubmitText(context.Background(), "feeling tired"); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, m, EventIdle)
	if got := speaker.all(); len(got) != 0 {
		t.Errorf("spoke %v with speech off", got)
	}

	m.SetSpeech(true)
	if err := m.SubmitText(context.Background(), "still tired"); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, m, EventIdle)
	if got := speaker.all(); len(got) != 1 {
		t.Errorf("spoken = %v, want one utterance", got)
	}
}

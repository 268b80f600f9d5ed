// Package listen turns speech into submitted text. An Engine produces
// transcript fragments; the Mediator accumulates finalized fragments and
// submits them after a silence window, routed to whichever target is
// selected at submission time.
package listen

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Target names where a dictated transcript lands.
type Target int

const (
	// TargetChat submits the transcript as a chat message.
	TargetChat Target = iota
	// TargetCaption fills the caption field of a staged image.
	TargetCaption
)

// Fragment is one piece of recognized speech. Interim fragments (Final=false)
// are previews and may be revised; only final fragments enter the transcript.
type Fragment struct {
	Text  string
	Final bool
}

// Engine is a speech recognizer. Start begins capturing and returns a
// fragment stream; the stream closes when the context is cancelled or the
// recognizer shuts down.
type Engine interface {
	Start(ctx context.Context) (<-chan Fragment, error)
}

// Submission is a completed transcript routed to a target.
type Submission struct {
	Text   string
	Target Target
}

// DefaultSilence is how long recognition must stay quiet before the
// accumulated transcript is submitted.
const DefaultSilence = 3 * time.Second

// Mediator runs the dictation session. The target is live state: changing it
// mid-dictation redirects where the pending transcript goes.
type Mediator struct {
	engine  Engine
	silence time.Duration
	submit  func(Submission)
	preview func(string)

	mu        sync.Mutex
	target    Target
	listening bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures a Mediator.
type Option func(*Mediator)

// WithSilence overrides the silence window.
func WithSilence(d time.Duration) Option {
	return func(m *Mediator) { m.silence = d }
}

// WithPreview registers a callback for live transcript text, called as
// fragments arrive.
func WithPreview(fn func(string)) Option {
	return func(m *Mediator) { m.preview = fn }
}

// NewMediator wires an engine to a submit callback.
func NewMediator(engine Engine, submit func(Submission), opts ...Option) *Mediator {
	m := &Mediator{
		engine:  engine,
		silence: DefaultSilence,
		submit:  submit,
		target:  TargetChat,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetTarget redirects future submissions. Takes effect immediately, including
// for a transcript already in progress.
func (m *Mediator) SetTarget(t Target) {
	m.mu.Lock()
	m.target = t
	m.mu.Unlock()
}

// Target returns the current submission target.
func (m *Mediator) Target() Target {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

// Listening reports whether a dictation session is active.
func (m *Mediator) Listening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listening
}

// Toggle starts dictation if idle and stops it if active.
func (m *Mediator) Toggle() error {
	if m.Listening() {
		m.Stop()
		return nil
	}
	return m.Start()
}

// Start begins a dictation session. No-op if one is already running.
func (m *Mediator) Start() error {
	m.mu.Lock()
	if m.listening {
		m.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	frags, err := m.engine.Start(ctx)
	if err != nil {
		cancel()
		m.mu.Unlock()
		return err
	}
	m.listening = true
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go m.run(ctx, frags, done)
	return nil
}

// Stop ends the session. Any pending transcript is discarded: only the
// silence window submits.
func (m *Mediator) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// stopEngine cancels the engine context without waiting for the run loop,
// which is the caller.
func (m *Mediator) stopEngine() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Mediator) run(ctx context.Context, frags <-chan Fragment, done chan struct{}) {
	defer func() {
		m.mu.Lock()
		m.listening = false
		m.cancel = nil
		m.mu.Unlock()
		close(done)
	}()

	timer := time.NewTimer(m.silence)
	defer timer.Stop()

	var parts []string
	var interim string

	clearPreview := func() {
		if m.preview != nil {
			m.preview("")
		}
	}

	for {
		select {
		case <-ctx.Done():
			clearPreview()
			return
		case f, ok := <-frags:
			if !ok {
				// Engine gone mid-session; nothing was confirmed by silence,
				// so the partial transcript is dropped.
				clearPreview()
				return
			}
			if text := strings.TrimSpace(f.Text); text != "" {
				if f.Final {
					parts = append(parts, text)
					interim = ""
				} else {
					interim = text
				}
				if m.preview != nil {
					live := strings.Join(parts, " ")
					if interim != "" {
						live = strings.TrimSpace(live + " " + interim)
					}
					m.preview(live)
				}
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(m.silence)
		case <-timer.C:
			// Silence ends the session: one submission, then the stream stops.
			text := strings.TrimSpace(strings.Join(parts, " "))
			m.stopEngine()
			clearPreview()
			if text != "" {
				m.submit(Submission{Text: text, Target: m.Target()})
			}
			return
		}
	}
}

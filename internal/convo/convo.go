// Package convo runs the consultation turn loop: it appends the user's
// message, routes it to the advice model or the image generator, and appends
// the assistant's reply. One turn is in flight at a time.
package convo

import (
	"context"
	"errors"
	"sync"

	"github.com/drai-ai/drai/internal/capture"
	"github.com/drai-ai/drai/internal/chat"
	"github.com/drai-ai/drai/internal/imagegen"
	"github.com/drai-ai/drai/internal/log"
	"github.com/drai-ai/drai/internal/oracle"
	"github.com/drai-ai/drai/internal/store"
)

// ErrBusy is returned when a submission arrives while a turn is in flight.
var ErrBusy = errors.New("a reply is already in progress")

// spokenApology replaces the detailed fallback text when reading a failed
// turn aloud.
const spokenApology = "I encountered an error. Please try again."

// EventKind discriminates Machine events.
type EventKind int

const (
	// EventMessage carries a newly appended message.
	EventMessage EventKind = iota
	// EventBusy marks the start of a turn: input should be disabled.
	EventBusy
	// EventIdle marks the end of a turn, successful or not.
	EventIdle
	// EventError reports a turn failure. A fallback assistant message has
	// already been appended; Err carries the underlying cause.
	EventError
)

// Event is a state change emitted by the Machine for the UI to render.
type Event struct {
	Kind      EventKind
	SessionID string
	Message   chat.Message
	Err       error
}

// Speaker reads assistant replies aloud. Optional.
type Speaker interface {
	Speak(messageID, text string)
	Stop()
}

// Machine serializes turns over the active session.
type Machine struct {
	store   *store.Store
	oracle  oracle.Client
	images  *imagegen.Builder
	speaker Speaker
	events  chan Event

	mu      sync.Mutex
	busy    bool
	speakOn bool
}

// New builds a Machine. speaker may be nil to disable voice output.
func New(st *store.Store, client oracle.Client, speaker Speaker) *Machine {
	return &Machine{
		store:   st,
		oracle:  client,
		images:  imagegen.NewBuilder(),
		speaker: speaker,
		events:  make(chan Event, 64),
		speakOn: speaker != nil,
	}
}

// Events is the stream the UI drains. Closed never; the Machine lives as
// long as the program.
func (m *Machine) Events() <-chan Event { return m.events }

// Busy reports whether a turn is in flight.
func (m *Machine) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

// SetSpeech toggles reading replies aloud.
func (m *Machine) SetSpeech(on bool) {
	m.mu.Lock()
	m.speakOn = on
	speaker := m.speaker
	m.mu.Unlock()
	if !on && speaker != nil {
		speaker.Stop()
	}
}

// SpeechOn reports whether replies are read aloud.
func (m *Machine) SpeechOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speakOn
}

// SubmitText starts a text turn. The user message is appended and persisted
// before this returns; the reply arrives through Events. Returns ErrBusy if
// a turn is already running.
func (m *Machine) SubmitText(ctx context.Context, text string) error {
	return m.submit(ctx, turn{display: text, prompt: text})
}

// SubmitAnalysis starts an image-analysis turn from a consumed capture stage.
func (m *Machine) SubmitAnalysis(ctx context.Context, req capture.Request) error {
	img := req.Image
	return m.submit(ctx, turn{display: req.Display, prompt: req.Prompt, image: &img})
}

type turn struct {
	display string
	prompt  string
	image   *chat.ImagePayload
}

func (m *Machine) submit(ctx context.Context, t turn) error {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return ErrBusy
	}
	m.busy = true
	m.mu.Unlock()

	sess, err := m.store.ActiveSession()
	if err != nil {
		m.setIdle()
		return err
	}

	// History is the conversation as it stood before this turn.
	history := append([]chat.Message(nil), sess.Messages...)

	userMsg := chat.Message{
		ID:          chat.NewMessageID(),
		Role:        chat.RoleUser,
		Text:        t.display,
		InlineImage: t.image,
	}
	if err := m.store.AppendMessage(sess.ID, userMsg); err != nil {
		m.setIdle()
		return err
	}

	m.emit(Event{Kind: EventBusy, SessionID: sess.ID})
	m.emit(Event{Kind: EventMessage, SessionID: sess.ID, Message: userMsg})

	go m.reply(ctx, sess.ID, t, history)
	return nil
}

func (m *Machine) reply(ctx context.Context, sessionID string, t turn, history []chat.Message) {
	defer func() {
		m.setIdle()
		m.emit(Event{Kind: EventIdle, SessionID: sessionID})
	}()

	if t.image == nil && imagegen.IsRequest(t.prompt) {
		m.replyWithImage(sessionID, t.prompt)
		return
	}

	profile := m.store.Profile()
	text, err := m.oracle.Advise(ctx, &oracle.Request{
		Text:    t.prompt,
		Image:   t.image,
		History: history,
		Profile: profile,
	})
	if err != nil {
		log.Error("advice request failed", "error", err, "session", sessionID)
		text = oracle.FallbackText(err)
		msg := m.appendAssistant(sessionID, chat.Message{Text: text})
		m.emit(Event{Kind: EventError, SessionID: sessionID, Message: msg, Err: err})
		m.speak(msg.ID, spokenApology)
		return
	}

	msg := m.appendAssistant(sessionID, chat.Message{Text: text})
	m.emit(Event{Kind: EventMessage, SessionID: sessionID, Message: msg})
	m.speak(msg.ID, text)
}

func (m *Machine) replyWithImage(sessionID, request string) {
	prompt := imagegen.Prompt(request)
	msg := m.appendAssistant(sessionID, chat.Message{
		Text:           imagegen.ReplyText(prompt),
		GeneratedImage: m.images.URL(prompt),
	})
	m.emit(Event{Kind: EventMessage, SessionID: sessionID, Message: msg})
	m.speak(msg.ID, imagegen.SpokenText(prompt))
}

func (m *Machine) appendAssistant(sessionID string, msg chat.Message) chat.Message {
	msg.ID = chat.NewMessageID()
	msg.Role = chat.RoleAssistant
	if err := m.store.AppendMessage(sessionID, msg); err != nil {
		log.Error("cannot persist assistant message", "error", err, "session", sessionID)
	}
	return msg
}

func (m *Machine) setIdle() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

func (m *Machine) speak(messageID, text string) {
	m.mu.Lock()
	speaker := m.speaker
	on := m.speakOn
	m.mu.Unlock()
	if speaker != nil && on {
		speaker.Speak(messageID, text)
	}
}

func (m *Machine) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		log.Warn("event dropped, consumer too slow", "kind", ev.Kind)
	}
}

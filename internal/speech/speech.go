// Package speech reads assistant replies aloud. A Speaker serializes playback
// so at most one utterance is in flight, and reports which message is
// currently being spoken.
package speech

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/drai-ai/drai/internal/log"
)

// Engine renders text as audio. Speak blocks until playback finishes or the
// context is cancelled. Voices lists the engine's available voice names, best
// effort; an empty list means the engine default is used.
type Engine interface {
	Speak(ctx context.Context, text, voice string) error
	Voices() []string
}

// Event reports a change in playback state. Speaking=false for a message id
// is delivered exactly once per started utterance, whether playback finished,
// failed, or was interrupted.
type Event struct {
	MessageID string
	Speaking  bool
}

// Speaker drives an Engine. Starting a new utterance interrupts the previous
// one.
type Speaker struct {
	engine Engine
	voice  string
	notify func(Event)

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	current string
}

// NewSpeaker picks a voice from the engine's list and reports playback state
// through notify, which may be nil.
func NewSpeaker(engine Engine, notify func(Event)) *Speaker {
	return &Speaker{
		engine: engine,
		voice:  PickVoice(engine.Voices()),
		notify: notify,
	}
}

// SetVoice overrides the automatically selected voice.
func (s *Speaker) SetVoice(voice string) {
	s.mu.Lock()
	s.voice = voice
	s.mu.Unlock()
}

// Speak interrupts any current utterance and starts reading text, attributed
// to messageID. It returns immediately; playback runs in the background.
func (s *Speaker) Speak(messageID, text string) {
	clean := Sanitize(text)
	if clean == "" {
		return
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.current = messageID
	voice := s.voice
	s.mu.Unlock()

	s.emit(Event{MessageID: messageID, Speaking: true})

	go func() {
		err := s.engine.Speak(ctx, clean, voice)
		cancel()

		s.mu.Lock()
		stale := s.gen != gen
		if !stale {
			s.cancel = nil
			s.current = ""
		}
		s.mu.Unlock()
		if stale {
			return
		}
		if err != nil && ctx.Err() == nil {
			log.Warn("speech playback failed", "error", err)
		}
		s.emit(Event{MessageID: messageID, Speaking: false})
	}()
}

// Stop interrupts the current utterance, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	messageID := s.current
	if cancel != nil {
		s.gen++
		s.cancel = nil
		s.current = ""
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.emit(Event{MessageID: messageID, Speaking: false})
	}
}

// Speaking returns the id of the message being read, or "".
func (s *Speaker) Speaking() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Speaker) emit(ev Event) {
	if s.notify != nil {
		s.notify(ev)
	}
}

var (
	linkRe   = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	markerRe = regexp.MustCompile("[*#_`]")
)

// Sanitize strips markdown before playback: links collapse to their text,
// emphasis and heading markers disappear.
func Sanitize(text string) string {
	text = linkRe.ReplaceAllString(text, "$1")
	text = markerRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// PickVoice chooses the preferred voice from an engine's list: Google US
// English first, then Samantha, then US English, then any English voice.
// Empty means the engine default.
func PickVoice(voices []string) string {
	for _, want := range []string{"google us english", "samantha", "en-us", "en_us"} {
		for _, v := range voices {
			if strings.Contains(strings.ToLower(v), want) {
				return v
			}
		}
	}
	for _, v := range voices {
		lower := strings.ToLower(v)
		if strings.HasPrefix(lower, "en-") || strings.HasPrefix(lower, "en_") || lower == "en" {
			return v
		}
	}
	return ""
}

// Package chat defines the conversation data model shared by the store,
// the state machine, the oracle client, and the exporter.
package chat

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultTitle is the placeholder title given to a fresh session. It is
// replaced by the first user message (see DeriveTitle).
const DefaultTitle = "New Consultation"

// WelcomeText is the assistant greeting seeded into every new session.
const WelcomeText = "Hello! I am Dr. AI, your virtual health assistant. " +
	"How can I help you today? You can speak to me, describe your symptoms, or upload an image."

// titleLimit caps derived session titles.
const titleLimit = 30

// ImagePayload is a user-supplied inline image.
type ImagePayload struct {
	Data      string `json:"data"`       // base64, no data-URI prefix
	MediaType string `json:"media_type"` // e.g. "image/jpeg"
}

// DataURI renders the payload in data-URI form for APIs that want one.
func (p ImagePayload) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", p.MediaType, p.Data)
}

// Message is one turn in a conversation. Immutable once appended.
type Message struct {
	ID             string        `json:"id"`
	Role           Role          `json:"role"`
	Text           string        `json:"text,omitempty"`
	InlineImage    *ImagePayload `json:"inline_image,omitempty"`
	GeneratedImage string        `json:"generated_image,omitempty"` // assistant-supplied URL
}

// Session is one saved conversation thread.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// Profile holds the free-form patient details injected into the oracle's
// system prompt. One instance per device.
type Profile struct {
	Name           string `json:"name"`
	Age            string `json:"age"`
	Gender         string `json:"gender"`
	MedicalHistory string `json:"medical_history"`
}

// Empty reports whether no profile field has been filled in.
func (p Profile) Empty() bool {
	return p.Name == "" && p.Age == "" && p.Gender == "" && p.MedicalHistory == ""
}

var msgSeq atomic.Uint64

// NewMessageID returns a time-derived identifier, unique process-wide.
// The sequence suffix disambiguates messages created within the same tick.
func NewMessageID() string {
	return fmt.Sprintf("%x-%x", time.Now().UnixNano(), msgSeq.Add(1))
}

// NewSession creates a session with a fresh id and the welcome message.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Messages: []Message{{
			ID:   NewMessageID(),
			Role: RoleAssistant,
			Text: WelcomeText,
		}},
	}
}

// HasMessage reports whether a message with the given id is already present.
func (s *Session) HasMessage(id string) bool {
	for _, m := range s.Messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

// FirstUserText returns the text of the earliest user message, or "".
func (s *Session) FirstUserText() string {
	for _, m := range s.Messages {
		if m.Role == RoleUser && m.Text != "" {
			return m.Text
		}
	}
	return ""
}

// DeriveTitle retitles the session from its first user message while the
// title is still the default placeholder. Titles are capped at 30 characters.
func (s *Session) DeriveTitle() {
	if s.Title != DefaultTitle && s.Title != "" {
		return
	}
	text := s.FirstUserText()
	if text == "" {
		return
	}
	// Cap on runes so a multibyte character is never split.
	if runes := []rune(text); len(runes) > titleLimit {
		text = string(runes[:titleLimit])
	}
	s.Title = text
}

// MatchesQuery reports whether the session title contains the query,
// case-insensitively. An empty query matches everything.
func (s *Session) MatchesQuery(query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.Title), strings.ToLower(query))
}

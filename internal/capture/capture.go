// Package capture stages an image for analysis. One image is staged at a
// time; it carries an optional caption and is consumed atomically when
// analysis is requested.
package capture

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/drai-ai/drai/internal/chat"
)

// MaxImageBytes caps staged image size.
const MaxImageBytes = 20 * 1024 * 1024

// DefaultAnalysisPrompt is sent when the staged image has no caption.
const DefaultAnalysisPrompt = "Analyze this medical image using strict protocols. Identify visible symptoms, potential causes, and suggest immediate first aid."

// analysisTag prefixes the displayed message for an image analysis turn.
const analysisTag = "[Image Analysis Request]"

// Attachment is a validated, base64-encoded image ready to send.
type Attachment struct {
	Payload chat.ImagePayload
	Label   string // e.g. "wound.png", "clipboard.png", "camera.jpg"
}

// FromBytes validates raw image data and encodes it. Rejects non-image media
// types and anything over MaxImageBytes.
func FromBytes(data []byte, mediaType, label string) (Attachment, error) {
	if !strings.HasPrefix(mediaType, "image/") {
		return Attachment{}, fmt.Errorf("unsupported media type %q, want image/*", mediaType)
	}
	if len(data) == 0 {
		return Attachment{}, fmt.Errorf("image is empty")
	}
	if len(data) > MaxImageBytes {
		return Attachment{}, fmt.Errorf("image too large: %d bytes (max %d)", len(data), MaxImageBytes)
	}
	return Attachment{
		Payload: chat.ImagePayload{
			Data:      base64.StdEncoding.EncodeToString(data),
			MediaType: mediaType,
		},
		Label: label,
	}, nil
}

// Request is a consumed stage, ready to dispatch: Display is the text shown
// as the user's message, Prompt is what the model analyzes.
type Request struct {
	Display string
	Prompt  string
	Image   chat.ImagePayload
}

// Stage holds at most one pending image. Staging a new image replaces the
// previous one and clears the caption.
type Stage struct {
	mu      sync.Mutex
	att     *Attachment
	caption string
}

func NewStage() *Stage { return &Stage{} }

// Set stages an attachment, dropping any previous image and caption.
func (s *Stage) Set(att Attachment) {
	s.mu.Lock()
	s.att = &att
	s.caption = ""
	s.mu.Unlock()
}

// SetCaption updates the caption for the staged image. Kept even if no image
// is staged yet; Set clears it.
func (s *Stage) SetCaption(caption string) {
	s.mu.Lock()
	s.caption = strings.TrimSpace(caption)
	s.mu.Unlock()
}

// Caption returns the pending caption.
func (s *Stage) Caption() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caption
}

// Current returns the staged attachment without consuming it.
func (s *Stage) Current() (Attachment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.att == nil {
		return Attachment{}, false
	}
	return *s.att, true
}

// Clear drops the staged image and caption.
func (s *Stage) Clear() {
	s.mu.Lock()
	s.att = nil
	s.caption = ""
	s.mu.Unlock()
}

// Consume packages the staged image and caption into an analysis request and
// empties the stage. Returns false when nothing is staged.
func (s *Stage) Consume() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.att == nil {
		return Request{}, false
	}
	prompt := s.caption
	if prompt == "" {
		prompt = DefaultAnalysisPrompt
	}
	req := Request{
		Display: analysisTag + ": " + prompt,
		Prompt:  prompt,
		Image:   s.att.Payload,
	}
	s.att = nil
	s.caption = ""
	return req, true
}

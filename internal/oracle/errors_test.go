package oracle

import (
	"errors"
	"strings"
	"testing"

	"github.com/drai-ai/drai/internal/chat"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
		want   error
	}{
		{"401 is authentication", 401, "", ErrAuthentication},
		{"403 quota (gemini style)", 403, "", ErrQuotaExceeded},
		{"403 with key code is authentication", 403, "invalid_api_key", ErrAuthentication},
		{"429 is quota", 429, "", ErrQuotaExceeded},
		{"insufficient_quota is quota", 400, "insufficient_quota", ErrQuotaExceeded},
		{"billing code is quota", 402, "billing_hard_limit_reached", ErrQuotaExceeded},
		{"500 is service failure", 500, "", ErrServiceUnavailable},
		{"503 is service failure", 503, "", ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.status, tt.code); !errors.Is(got, tt.want) {
				t.Errorf("Classify(%d, %q) = %v, want %v", tt.status, tt.code, got, tt.want)
			}
		})
	}
}

func TestAPIErrorUnwrapsToKind(t *testing.T) {
	err := &APIError{StatusCode: 401, Message: "bad key", Provider: "groq"}
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("APIError(401) should unwrap to ErrAuthentication, got %v", err)
	}
	if !strings.Contains(err.Error(), "groq") {
		t.Errorf("error string should name the provider: %q", err.Error())
	}
}

func TestFallbackText(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrMissingCredential, MsgMissingCredential},
		{ErrAuthentication, MsgAuthentication},
		{ErrQuotaExceeded, MsgQuotaExceeded},
		{ErrServiceUnavailable, MsgServiceUnavailable},
		{errors.New("something else"), MsgServiceUnavailable},
		{&APIError{StatusCode: 429}, MsgQuotaExceeded},
	}
	for _, tt := range tests {
		if got := FallbackText(tt.err); got != tt.want {
			t.Errorf("FallbackText(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestSystemPromptIncludesProfile(t *testing.T) {
	p := chat.Profile{Name: "Ada", Age: "34", MedicalHistory: "asthma"}
	got := systemPrompt(p)
	for _, want := range []string{"PATIENT CONTEXT", "Ada", "34", "asthma", "Gender: Unknown"} {
		if !strings.Contains(got, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}

	if strings.Contains(systemPrompt(chat.Profile{}), "PATIENT CONTEXT") {
		t.Error("empty profile should not inject patient context")
	}
}

func TestHistoryTextsSkipsImageOnlyMessages(t *testing.T) {
	history := []chat.Message{
		{ID: "1", Role: chat.RoleUser, Text: "hello"},
		{ID: "2", Role: chat.RoleUser, InlineImage: &chat.ImagePayload{Data: "x", MediaType: "image/png"}},
		{ID: "3", Role: chat.RoleAssistant, Text: "hi"},
	}
	got := historyTexts(history)
	if len(got) != 2 {
		t.Fatalf("historyTexts kept %d messages, want 2", len(got))
	}
	for _, m := range got {
		if m.Text == "" {
			t.Errorf("image-only message leaked into history: %+v", m)
		}
	}
}

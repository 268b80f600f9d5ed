package imagegen

import (
	"strings"
	"testing"
)

func TestIsRequest(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"generate image of a mole", true},
		{"Generate an image of a rash", true},
		{"create image showing a sprain", true},
		{"create an image of the spine", true},
		{"draw a diagram of the inner ear", true},
		{"please generate a reference image", true},
		{"I have a headache", false},
		{"the image on my arm looks strange", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsRequest(tt.text); got != tt.want {
			t.Errorf("IsRequest(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestPrompt(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"generate image of a mole", "of a mole"},
		{"generate an image of a rash on skin", "of a rash on skin"},
		{"Create Image of a healthy lung", "of a healthy lung"},
		{"draw the inner ear", "the inner ear"},
		{"generate image", DefaultPrompt},
		{"generate an image", DefaultPrompt},
	}
	for _, tt := range tests {
		if got := Prompt(tt.text); got != tt.want {
			t.Errorf("Prompt(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestURL(t *testing.T) {
	b := NewBuilderWithSeed(42)
	got := b.URL("of a mole")
	want := "https://pollinations.ai/p/of%20a%20mole?width=1024&height=1024&seed=42&model=flux"
	if got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}

func TestURLSeedVaries(t *testing.T) {
	b := NewBuilder()
	seen := map[string]bool{}
	for range 50 {
		seen[b.URL("x")] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected varying seeds, got %d distinct URLs", len(seen))
	}
}

func TestReplyText(t *testing.T) {
	got := ReplyText("of a mole")
	if !strings.Contains(got, `**"of a mole"**`) {
		t.Errorf("ReplyText = %q, want embedded bold quoted prompt", got)
	}
}

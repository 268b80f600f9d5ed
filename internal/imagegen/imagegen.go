// Package imagegen classifies image-generation requests and builds the
// external rendering URL. The endpoint is an external collaborator: the URL
// is handed to the conversation as-is, never fetched or validated here.
package imagegen

import (
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strings"
)

// DefaultPrompt substitutes for an empty residual prompt ("generate image"
// with nothing after it).
const DefaultPrompt = "medical illustration"

const (
	endpoint = "https://pollinations.ai/p/"
	width    = 1024
	height   = 1024
	model    = "flux"
	seedMax  = 10000
)

// leadIns strips the request phrasing out of the prompt. "generate an image"
// is listed before "generate image" so the longer phrase wins.
var leadIns = regexp.MustCompile(`(?i)generate an image|create an image|generate image|create image|draw`)

// IsRequest reports whether text reads as an image-generation request:
// it starts with one of the lead-in phrases, or mentions both "image"
// and "generate".
func IsRequest(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, prefix := range []string{
		"generate image",
		"generate an image",
		"create image",
		"create an image",
		"draw",
	} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return strings.Contains(lower, "image") && strings.Contains(lower, "generate")
}

// Prompt extracts the rendering prompt: the text with all lead-in phrases
// stripped and trimmed, defaulting when nothing remains.
func Prompt(text string) string {
	prompt := strings.TrimSpace(leadIns.ReplaceAllString(text, ""))
	if prompt == "" {
		return DefaultPrompt
	}
	return prompt
}

// Builder constructs rendering URLs. The seed source is injectable so tests
// get stable output.
type Builder struct {
	seed func() int
}

func NewBuilder() *Builder {
	return &Builder{seed: func() int { return rand.Intn(seedMax) }}
}

// NewBuilderWithSeed pins the seed, for tests.
func NewBuilderWithSeed(seed int) *Builder {
	return &Builder{seed: func() int { return seed }}
}

// URL builds the fire-and-forget rendering request for a prompt: fixed
// dimensions, randomized seed.
func (b *Builder) URL(prompt string) string {
	return fmt.Sprintf("%s%s?width=%d&height=%d&seed=%d&model=%s",
		endpoint, url.PathEscape(prompt), width, height, b.seed(), model)
}

// ReplyText is the assistant message accompanying a generated image.
func ReplyText(prompt string) string {
	return fmt.Sprintf("Here is the image you requested: **%q**", prompt)
}

// SpokenText is the text-to-speech variant, without emphasis markers.
func SpokenText(prompt string) string {
	return fmt.Sprintf("Here is the image you requested: %s", prompt)
}

// Package oracle defines the advice client interface and shared types.
// Adapters (openai.go for every OpenAI-compatible API including Groq and
// Gemini, anthropic.go for the native Anthropic API) turn a query plus
// optional image, history, and patient profile into advice text.
package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/drai-ai/drai/internal/chat"
)

// Request is the unified advice request sent to a provider.
type Request struct {
	Text    string
	Image   *chat.ImagePayload
	History []chat.Message
	Profile chat.Profile
}

// Client is the advice oracle: one query in, plain advice text out.
type Client interface {
	// Advise performs a single non-streaming completion.
	Advise(ctx context.Context, req *Request) (string, error)

	// Name returns the provider identifier, e.g. "groq", "gemini".
	Name() string
}

const maxResponseTokens = 1024

// systemPrompt builds the consultation instructions, embedding patient
// context when any profile field is filled in.
func systemPrompt(p chat.Profile) string {
	var sb strings.Builder
	sb.WriteString("You are **Dr. AI**, an empathetic and professional virtual medical assistant.")

	if !p.Empty() {
		sb.WriteString("\n\n**PATIENT CONTEXT**:\n")
		fmt.Fprintf(&sb, "- Name: %s\n", orUnknown(p.Name))
		fmt.Fprintf(&sb, "- Age: %s\n", orUnknown(p.Age))
		fmt.Fprintf(&sb, "- Gender: %s\n", orUnknown(p.Gender))
		if p.MedicalHistory != "" {
			fmt.Fprintf(&sb, "- Medical History: %s\n", p.MedicalHistory)
		} else {
			sb.WriteString("- Medical History: None provided\n")
		}
		sb.WriteString("\n*Please take this patient context into account when providing advice.*")
	}

	sb.WriteString(`

**INSTRUCTIONS:**
1. **For Medical Queries/Symptoms**: strictly follow this structure:
   - **Observation**: Summary of the issue.
   - **Potential Causes**: Possible reasons.
   - **Immediate Relief**: First-aid steps.
   - **Recommendation**: Medical advice (and disclaimer).

2. **For Image Analysis**:
   - **If the user provides an image**: Analyze it carefully.
   - If it shows a medical symptom/issue, use the **Medical Query** structure (Observation, Causes, Relief, Recommendation).
   - If it is a general image, describe it naturally.

3. **For General Chat/Questions** (e.g., "Hello", "Who are you?", "How does an X-ray work?"):
   - **Respond naturally** and directly to the question.
   - **DO NOT** use the medical structure (Observation/Causes/etc.) for general conversation.
   - Be helpful, polite, and engaging.

**Tone**: Calm, reassuring, and professional. Always prioritize patient safety.`)

	return sb.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// historyTexts filters the history down to plain text turns; images and
// generated-image markers do not replay into the prompt.
func historyTexts(history []chat.Message) []chat.Message {
	var out []chat.Message
	for _, m := range history {
		if m.Text != "" {
			out = append(out, m)
		}
	}
	return out
}

// queryText labels the user turn so it stands apart from the patient context.
func queryText(text string) string {
	return "User Query: " + text
}

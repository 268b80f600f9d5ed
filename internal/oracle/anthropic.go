package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/drai-ai/drai/internal/chat"
)

// AnthropicClient implements Client using the Anthropic native API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

func NewAnthropicClient(apiKey, model string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &AnthropicClient{
		client: anthropic.NewClient(anthropicoption.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (c *AnthropicClient) Name() string { return "anthropic" }

func (c *AnthropicClient) Advise(ctx context.Context, req *Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxResponseTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt(req.Profile)}},
		Messages:  c.buildMessages(req),
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", c.wrapError(err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "No response received.", nil
}

func (c *AnthropicClient) buildMessages(req *Request) []anthropic.MessageParam {
	var params []anthropic.MessageParam

	for _, m := range historyTexts(req.History) {
		switch m.Role {
		case chat.RoleUser:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		case chat.RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
		}
	}

	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(queryText(req.Text))}
	if req.Image != nil {
		blocks = append(blocks, anthropic.NewImageBlockBase64(req.Image.MediaType, req.Image.Data))
	}
	params = append(params, anthropic.NewUserMessage(blocks...))

	return params
}

func (c *AnthropicClient) wrapError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return &APIError{
			StatusCode: apierr.StatusCode,
			Message:    apierr.Error(),
			Provider:   "anthropic",
		}
	}
	return fmt.Errorf("%w: anthropic: %v", ErrServiceUnavailable, err)
}

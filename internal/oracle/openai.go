package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/drai-ai/drai/internal/chat"
)

// OpenAIClient implements Client for every OpenAI-compatible API: Groq,
// Gemini's compatibility endpoint, and OpenAI itself.
type OpenAIClient struct {
	client      openai.Client
	name        string
	model       string
	visionModel string
}

// NewOpenAIClient builds a client against baseURL. The provider name is
// inferred from the URL for logging and error reporting. visionModel is used
// whenever the request carries an image; empty means "same as model".
func NewOpenAIClient(apiKey, baseURL, model, visionModel string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	name := "openai"
	switch {
	case strings.Contains(baseURL, "groq"):
		name = "groq"
	case strings.Contains(baseURL, "generativelanguage.googleapis.com"):
		name = "gemini"
	}

	if visionModel == "" {
		visionModel = model
	}

	return &OpenAIClient{
		client:      openai.NewClient(opts...),
		name:        name,
		model:       model,
		visionModel: visionModel,
	}, nil
}

func (c *OpenAIClient) Name() string { return c.name }

// Advise performs one non-streaming chat completion.
func (c *OpenAIClient) Advise(ctx context.Context, req *Request) (string, error) {
	model := c.model
	if req.Image != nil {
		model = c.visionModel
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    c.buildMessages(req),
		Temperature: openai.Float(0.5),
		MaxTokens:   openai.Int(maxResponseTokens),
		TopP:        openai.Float(1),
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", c.wrapError(err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "No response received.", nil
	}
	return completion.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) buildMessages(req *Request) []openai.ChatCompletionMessageParamUnion {
	params := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt(req.Profile)),
	}

	for _, m := range historyTexts(req.History) {
		switch m.Role {
		case chat.RoleUser:
			params = append(params, openai.UserMessage(m.Text))
		case chat.RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Text))
		}
	}

	if req.Image != nil {
		parts := []openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(queryText(req.Text)),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: req.Image.DataURI(),
			}),
		}
		params = append(params, openai.ChatCompletionMessageParamUnion{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: parts,
				},
			},
		})
	} else {
		params = append(params, openai.UserMessage(queryText(req.Text)))
	}

	return params
}

// wrapError normalizes SDK failures into classified oracle errors.
func (c *OpenAIClient) wrapError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		code := apierr.Code
		if code == "" {
			code = apierr.Type
		}
		return &APIError{
			StatusCode: apierr.StatusCode,
			Code:       code,
			Message:    apierr.Message,
			Provider:   c.name,
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrServiceUnavailable, c.name, err)
}

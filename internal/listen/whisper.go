package listen

import (
	"context"
	"errors"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/drai-ai/drai/internal/log"
)

// DefaultTranscribeModel is the hosted Whisper variant used for dictation.
const DefaultTranscribeModel = "whisper-large-v3"

// AudioSource yields recorded clips. Next blocks until a clip is ready,
// typically one utterance bounded by pauses, and returns io.EOF when the
// source is exhausted.
type AudioSource interface {
	Next(ctx context.Context) (io.Reader, error)
}

// WhisperEngine transcribes clips from an AudioSource through a hosted
// Whisper endpoint. Each clip becomes one final fragment.
type WhisperEngine struct {
	client openai.Client
	model  string
	source AudioSource
}

// NewWhisperEngine builds a recognizer against an OpenAI-compatible audio
// endpoint. model defaults to DefaultTranscribeModel.
func NewWhisperEngine(apiKey, baseURL, model string, source AudioSource) *WhisperEngine {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultTranscribeModel
	}
	return &WhisperEngine{
		client: openai.NewClient(opts...),
		model:  model,
		source: source,
	}
}

func (e *WhisperEngine) Start(ctx context.Context) (<-chan Fragment, error) {
	frags := make(chan Fragment)
	go func() {
		defer close(frags)
		for {
			clip, err := e.source.Next(ctx)
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					log.Warn("audio capture failed", "error", err)
				}
				return
			}
			text, err := e.transcribe(ctx, clip)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("transcription failed", "error", err)
				continue
			}
			if text == "" {
				continue
			}
			select {
			case frags <- Fragment{Text: text, Final: true}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return frags, nil
}

func (e *WhisperEngine) transcribe(ctx context.Context, clip io.Reader) (string, error) {
	resp, err := e.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(e.model),
		File:  openai.File(clip, "clip.wav", "audio/wav"),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/drai-ai/drai/internal/config"
	"github.com/drai-ai/drai/internal/listen"
	"github.com/drai-ai/drai/internal/log"
	"github.com/drai-ai/drai/internal/speech"
	"github.com/drai-ai/drai/internal/store"
	"github.com/drai-ai/drai/internal/tui"
)

// runChat starts the interactive consultation UI.
func runChat() error {
	cfg := initConfig()
	log.Init("info")

	client, model, err := buildOracle(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open session store:", err)
		os.Exit(1)
	}
	defer st.Close()

	var speechEngine speech.Engine
	if cfg.SpeechEnabled() {
		engine, err := speech.NewCommandEngine()
		switch {
		case err == nil:
			speechEngine = engine
		case errors.Is(err, speech.ErrNoEngine):
			fmt.Fprintln(os.Stderr, "voice replies disabled: no speech synthesizer found (install espeak-ng)")
		default:
			fmt.Fprintln(os.Stderr, "voice replies disabled:", err)
		}
	}

	listenEngine := buildListenEngine(cfg)

	app := tui.NewApp(tui.Options{
		Store:        st,
		Oracle:       client,
		SpeechEngine: speechEngine,
		Voice:        cfg.Speech.Voice,
		ListenEngine: listenEngine,
		Silence:      time.Duration(cfg.Listen.SilenceSeconds) * time.Second,
		ExportDir:    exportDir(cfg),
		CameraDevice: cfg.CameraDevice,
		UI: tui.UIConfig{
			Version:     displayVersion(),
			Provider:    cfg.Provider,
			Model:       model,
			ShowWelcome: true,
		},
	})
	return app.Run()
}

func openStore(cfg *config.Config) (*store.Store, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}

func exportDir(cfg *config.Config) string {
	if cfg.ExportDir != "" {
		return cfg.ExportDir
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// buildListenEngine wires dictation: a system recorder feeding a hosted
// Whisper endpoint. Transcription needs an OpenAI-compatible key; the groq
// entry is preferred, falling back to the active provider when it speaks
// that API. Returns nil when voice input cannot work.
func buildListenEngine(cfg *config.Config) listen.Engine {
	source, err := listen.NewCommandAudioSource()
	if err != nil {
		fmt.Fprintln(os.Stderr, "voice input disabled: no audio recorder found (install sox or alsa-utils)")
		return nil
	}

	name := "groq"
	pc := cfg.GetProviderConfig(name)
	if pc.APIKey == "" && cfg.Provider != "anthropic" {
		name = cfg.Provider
		pc = cfg.GetProviderConfig(name)
	}
	if pc.APIKey == "" {
		fmt.Fprintln(os.Stderr, "voice input disabled: no OpenAI-compatible API key for transcription")
		return nil
	}

	baseURL := pc.BaseURL
	if baseURL == "" {
		baseURL = config.KnownProviderBaseURLs[name]
	}
	return listen.NewWhisperEngine(pc.APIKey, baseURL, cfg.Listen.Model, source)
}

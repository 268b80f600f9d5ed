package speech

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
)

// ErrNoEngine means no speech synthesizer binary was found on PATH.
var ErrNoEngine = errors.New("speech: no synthesizer available")

// CommandEngine shells out to a system text-to-speech binary. It covers the
// common cases without a native audio dependency: say on macOS, espeak-ng or
// espeak elsewhere.
type CommandEngine struct {
	binary string
	args   func(voice, text string) []string
	voices []string
}

// NewCommandEngine probes PATH for a synthesizer, preferring the platform
// native one.
func NewCommandEngine() (*CommandEngine, error) {
	candidates := []string{"espeak-ng", "espeak", "say"}
	if runtime.GOOS == "darwin" {
		candidates = []string{"say", "espeak-ng", "espeak"}
	}
	for _, name := range candidates {
		path, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		e := &CommandEngine{binary: path}
		switch name {
		case "say":
			e.args = sayArgs
			e.voices = sayVoices(path)
		default:
			e.args = espeakArgs
		}
		return e, nil
	}
	return nil, ErrNoEngine
}

func (e *CommandEngine) Speak(ctx context.Context, text, voice string) error {
	cmd := exec.CommandContext(ctx, e.binary, e.args(voice, text)...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (e *CommandEngine) Voices() []string { return e.voices }

func sayArgs(voice, text string) []string {
	if voice != "" {
		return []string{"-v", voice, text}
	}
	return []string{text}
}

func espeakArgs(voice, text string) []string {
	if voice != "" {
		return []string{"-v", voice, text}
	}
	return []string{text}
}

// sayVoices parses `say -v ?` output; each line leads with the voice name.
func sayVoices(path string) []string {
	out, err := exec.Command(path, "-v", "?").Output()
	if err != nil {
		return nil
	}
	var voices []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		// Name columns are padded; the locale column follows two spaces.
		if i := strings.Index(line, "  "); i > 0 {
			voices = append(voices, strings.TrimSpace(line[:i]))
		}
	}
	return voices
}

package listen

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// ErrNoRecorder means no capture binary was found on PATH.
var ErrNoRecorder = errors.New("listen: no audio recorder available")

// CommandAudioSource records microphone clips by shelling out to a system
// recorder: sox's rec with silence detection where available, otherwise
// arecord with a fixed clip length.
type CommandAudioSource struct {
	binary string
	args   func(path string) []string
}

// NewCommandAudioSource probes PATH for a recorder.
func NewCommandAudioSource() (*CommandAudioSource, error) {
	if path, err := exec.LookPath("rec"); err == nil {
		return &CommandAudioSource{binary: path, args: recArgs}, nil
	}
	if path, err := exec.LookPath("sox"); err == nil {
		return &CommandAudioSource{binary: path, args: soxArgs}, nil
	}
	if path, err := exec.LookPath("arecord"); err == nil {
		return &CommandAudioSource{binary: path, args: arecordArgs}, nil
	}
	return nil, ErrNoRecorder
}

// recArgs: record until 1.5s of silence, trim leading silence.
func recArgs(path string) []string {
	return []string{"-q", "-r", "16000", "-c", "1", path,
		"silence", "1", "0.1", "1%", "1", "1.5", "1%"}
}

// soxArgs: sox needs the default input device spelled out; the rate, channel,
// output, and silence arguments match recArgs.
func soxArgs(path string) []string {
	return append([]string{"-q", "-d"}, recArgs(path)[1:]...)
}

// arecordArgs: no silence detection, fixed 5s clips.
func arecordArgs(path string) []string {
	return []string{"-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-d", "5", path}
}

func (s *CommandAudioSource) Next(ctx context.Context) (io.Reader, error) {
	tmp, err := os.CreateTemp("", "drai-mic-*.wav")
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	cmd := exec.CommandContext(ctx, s.binary, s.args(path)...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, io.EOF
	}
	return bytes.NewReader(data), nil
}

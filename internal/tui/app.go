package tui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/drai-ai/drai/internal/capture"
	"github.com/drai-ai/drai/internal/convo"
	"github.com/drai-ai/drai/internal/listen"
	"github.com/drai-ai/drai/internal/oracle"
	"github.com/drai-ai/drai/internal/report"
	"github.com/drai-ai/drai/internal/speech"
	"github.com/drai-ai/drai/internal/store"
)

// Options wires the consultation services into the UI. Nil engines disable
// the corresponding feature rather than failing.
type Options struct {
	Store        *store.Store
	Oracle       oracle.Client
	SpeechEngine speech.Engine // nil disables voice replies
	Voice        string        // overrides automatic voice selection
	ListenEngine listen.Engine // nil disables voice input
	Silence      time.Duration // dictation silence window; 0 = default
	ExportDir    string
	CameraDevice int
	UI           UIConfig
}

// App owns the long-lived services behind the UI. All methods are safe to
// call from the bubbletea update loop and from background goroutines.
type App struct {
	Ctx          context.Context
	Store        *store.Store
	Machine      *convo.Machine
	Listener     *listen.Mediator
	Stage        *capture.Stage
	Exporter     *report.Exporter
	ExportDir    string
	CameraDevice int

	ui      UIConfig
	cancel  context.CancelFunc
	speaker *speech.Speaker

	mu       sync.Mutex
	program  *tea.Program
	shutOnce sync.Once
}

// NewApp assembles the services. Run starts the UI.
func NewApp(opts Options) *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Ctx:          ctx,
		cancel:       cancel,
		Store:        opts.Store,
		Stage:        capture.NewStage(),
		Exporter:     report.NewExporter(),
		ExportDir:    opts.ExportDir,
		CameraDevice: opts.CameraDevice,
		ui:           opts.UI,
	}

	var machineSpeaker convo.Speaker
	if opts.SpeechEngine != nil {
		app.speaker = speech.NewSpeaker(opts.SpeechEngine, func(ev speech.Event) {
			app.send(speechEventMsg{ev: ev})
		})
		if opts.Voice != "" {
			app.speaker.SetVoice(opts.Voice)
		}
		machineSpeaker = app.speaker
	}
	app.Machine = convo.New(opts.Store, opts.Oracle, machineSpeaker)

	if opts.ListenEngine != nil {
		lopts := []listen.Option{
			listen.WithPreview(func(text string) {
				app.send(dictationPreviewMsg{text: text})
			}),
		}
		if opts.Silence > 0 {
			lopts = append(lopts, listen.WithSilence(opts.Silence))
		}
		app.Listener = listen.NewMediator(opts.ListenEngine, func(sub listen.Submission) {
			app.send(dictatedMsg{sub: sub})
		}, lopts...)
	}
	return app
}

// Run blocks until the user exits.
func (a *App) Run() error {
	p := tea.NewProgram(NewModel(a, a.ui))
	a.mu.Lock()
	a.program = p
	a.mu.Unlock()

	go a.pumpEvents()

	_, err := p.Run()
	a.Shutdown()
	return err
}

// pumpEvents forwards Machine events into the bubbletea loop.
func (a *App) pumpEvents() {
	for {
		select {
		case <-a.Ctx.Done():
			return
		case ev := <-a.Machine.Events():
			a.send(convoEventMsg{ev: ev})
		}
	}
}

// send is nil-safe: services may emit before the program starts.
func (a *App) send(msg tea.Msg) {
	a.mu.Lock()
	p := a.program
	a.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Shutdown stops dictation and playback and cancels in-flight turns.
func (a *App) Shutdown() {
	a.shutOnce.Do(func() {
		if a.Listener != nil {
			a.Listener.Stop()
		}
		if a.speaker != nil {
			a.speaker.Stop()
		}
		a.cancel()
	})
}

// StopSpeech interrupts the current utterance, if any.
func (a *App) StopSpeech() {
	if a.speaker != nil {
		a.speaker.Stop()
	}
}

// Listening reports whether dictation is active.
func (a *App) Listening() bool {
	return a.Listener != nil && a.Listener.Listening()
}

// MicTarget returns where dictated text lands.
func (a *App) MicTarget() listen.Target {
	if a.Listener == nil {
		return listen.TargetChat
	}
	return a.Listener.Target()
}

// SetMicTarget redirects dictation.
func (a *App) SetMicTarget(t listen.Target) {
	if a.Listener != nil {
		a.Listener.SetTarget(t)
	}
}

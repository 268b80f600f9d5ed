package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/drai-ai/drai/internal/capture"
	"github.com/drai-ai/drai/internal/chat"
	"github.com/drai-ai/drai/internal/convo"
	"github.com/drai-ai/drai/internal/listen"
	"github.com/drai-ai/drai/internal/speech"
	"github.com/drai-ai/drai/internal/store"
)

// ---------- messages sent from background goroutines via program.Send() ----------

type convoEventMsg struct{ ev convo.Event }

type speechEventMsg struct{ ev speech.Event }

type dictatedMsg struct{ sub listen.Submission }

type dictationPreviewMsg struct{ text string }

type stagedMsg struct {
	att capture.Attachment
	err error
}

type exportDoneMsg struct {
	path string
	err  error
}

// ---------- styles ----------

var (
	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("2")).
				Bold(true)

	imageLinkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")).
			Underline(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	statusBarBgStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("235"))

	statusModelStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("235")).
				Foreground(lipgloss.Color("2")).
				Bold(true)

	micStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("203")).
			Bold(true)

	speakingStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("220"))

	welcomeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("8")).
				Padding(0, 1)

	welcomeTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("2")).
				Bold(true)

	welcomeLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("8"))

	welcomeValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	welcomeHintStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))
)

var pulseSpinner = spinner.Spinner{
	Frames: []string{"·", "✢", "✳", "✶", "✻", "✽", "✻", "✶", "✳", "✢"},
	FPS:    120 * time.Millisecond,
}

// UIConfig carries version/provider info for the welcome page and status bar.
type UIConfig struct {
	Version     string
	Provider    string
	Model       string
	ShowWelcome bool
}

// Model is the bubbletea model for the consultation UI.
type Model struct {
	app *App
	cfg UIConfig

	textinput textinput.Model
	spinner   spinner.Model
	width     int
	height    int

	busy        bool
	micPreview  string
	speakingID  string
	stagedLabel string

	sessionTitle string

	slashSel int

	quitting bool

	mdRenderer      *glamour.TermRenderer
	mdRendererWidth int
}

// NewModel creates the initial bubbletea model.
func NewModel(app *App, cfg UIConfig) Model {
	ti := textinput.New()
	ti.Prompt = "❯ "
	ti.CharLimit = 4096
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = pulseSpinner
	sp.Style = spinnerStyle

	return Model{
		app:       app,
		cfg:       cfg,
		textinput: ti,
		spinner:   sp,
		slashSel:  -1,
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.cfg.ShowWelcome {
		cmds = append(cmds, tea.Println(renderWelcome(m.cfg)))
	}
	cmds = append(cmds, m.printActiveSession())
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textinput.Width = m.width - 4

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		model, cmd, handled := m.handleKey(msg)
		if handled {
			return model, cmd
		}
		m = model
		if cmd != nil {
			cmds = append(cmds, cmd)
		}

	case convoEventMsg:
		cmds = append(cmds, m.handleConvoEvent(msg.ev)...)
		switch msg.ev.Kind {
		case convo.EventBusy:
			m.busy = true
			cmds = append(cmds, m.spinner.Tick)
		case convo.EventIdle:
			m.busy = false
		}

	case speechEventMsg:
		if msg.ev.Speaking {
			m.speakingID = msg.ev.MessageID
		} else if m.speakingID == msg.ev.MessageID {
			m.speakingID = ""
		}

	case dictatedMsg:
		m.micPreview = ""
		switch msg.sub.Target {
		case listen.TargetCaption:
			m.app.Stage.SetCaption(msg.sub.Text)
			cmds = append(cmds, tea.Println(systemStyle.Render("  caption: "+msg.sub.Text)))
			// A dictated caption completes the analysis request when an
			// image is staged.
			if _, ok := m.app.Stage.Current(); ok {
				req, _ := m.app.Stage.Consume()
				m.stagedLabel = ""
				cmds = append(cmds, m.submitAnalysis(req))
			}
		default:
			cmds = append(cmds, m.submitText(msg.sub.Text))
		}

	case dictationPreviewMsg:
		m.micPreview = msg.text

	case stagedMsg:
		if msg.err != nil {
			cmds = append(cmds, tea.Println(errorStyle.Render("Error: "+msg.err.Error())))
			break
		}
		m.app.Stage.Set(msg.att)
		m.stagedLabel = msg.att.Label
		cmds = append(cmds, tea.Println(systemStyle.Render(
			"  image staged: "+msg.att.Label+" (enter a caption or press enter to analyze, esc to discard)")))

	case exportDoneMsg:
		if msg.err != nil {
			cmds = append(cmds, tea.Println(errorStyle.Render("Error: export failed: "+msg.err.Error())))
		} else {
			cmds = append(cmds, tea.Println(systemStyle.Render("  report saved: "+msg.path)))
		}
	}

	if !m.quitting {
		var cmd tea.Cmd
		m.textinput, cmd = m.textinput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleKey processes key presses. handled=true means the key was consumed
// and must not reach the textinput.
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	items := m.visibleSlashItems()

	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		m.app.Shutdown()
		return m, tea.Quit, true

	case "esc":
		if m.slashSel >= 0 {
			m.slashSel = -1
			return m, nil, true
		}
		if _, ok := m.app.Stage.Current(); ok {
			m.app.Stage.Clear()
			m.stagedLabel = ""
			return m, tea.Println(systemStyle.Render("  staged image discarded")), true
		}
		if m.speakingID != "" {
			m.app.StopSpeech()
			return m, nil, true
		}
		return m, nil, false

	case "up":
		if len(items) > 0 {
			if m.slashSel > 0 {
				m.slashSel--
			} else {
				m.slashSel = 0
			}
			return m, nil, true
		}
	case "down":
		if len(items) > 0 {
			if m.slashSel < len(items)-1 {
				m.slashSel++
			}
			return m, nil, true
		}

	case "tab":
		if len(items) > 0 {
			sel := m.slashSel
			if sel < 0 {
				sel = 0
			}
			m.textinput.SetValue(items[sel].Name + " ")
			m.textinput.CursorEnd()
			m.slashSel = -1
			return m, nil, true
		}
		if m.app.Listening() {
			// flip where dictation lands
			if m.app.MicTarget() == listen.TargetChat {
				m.app.SetMicTarget(listen.TargetCaption)
			} else {
				m.app.SetMicTarget(listen.TargetChat)
			}
			return m, nil, true
		}

	case "ctrl+n":
		return m, m.newSession(), true

	case "ctrl+l":
		return m, m.printSessionList(), true

	case "ctrl+v":
		return m, pasteImageCmd(), true

	case "ctrl+e":
		return m, m.exportCmd(), true

	case "ctrl+s":
		on := !m.app.Machine.SpeechOn()
		m.app.Machine.SetSpeech(on)
		state := "off"
		if on {
			state = "on"
		}
		return m, tea.Println(systemStyle.Render("  voice replies " + state)), true

	case "ctrl+r":
		cmd := m.toggleMic()
		if !m.app.Listening() {
			m.micPreview = ""
		}
		return m, cmd, true

	case "enter":
		if len(items) > 0 && m.slashSel >= 0 {
			m.textinput.SetValue(items[m.slashSel].Name + " ")
			m.textinput.CursorEnd()
			m.slashSel = -1
			return m, nil, true
		}
		text := strings.TrimSpace(m.textinput.Value())
		m.textinput.SetValue("")
		m.slashSel = -1
		if strings.HasPrefix(text, "/") {
			model, cmd := m.runSlashCommand(text)
			return model, cmd, true
		}
		return m, m.submitOrAnalyze(text), true
	}

	// Reset menu selection when typing changes the prefix.
	if m.slashSel >= 0 && msg.Type == tea.KeyRunes {
		m.slashSel = 0
	}
	return m, nil, false
}

// submitOrAnalyze routes an enter press: a staged image becomes an analysis
// turn (the typed text is its caption), otherwise the text is a chat message.
func (m *Model) submitOrAnalyze(text string) tea.Cmd {
	if _, ok := m.app.Stage.Current(); ok {
		if text != "" {
			m.app.Stage.SetCaption(text)
		}
		req, _ := m.app.Stage.Consume()
		m.stagedLabel = ""
		return m.submitAnalysis(req)
	}
	if text == "" {
		return nil
	}
	return m.submitText(text)
}

func (m *Model) submitText(text string) tea.Cmd {
	if err := m.app.Machine.SubmitText(m.app.Ctx, text); err != nil {
		return tea.Println(errorStyle.Render("Error: " + err.Error()))
	}
	return nil
}

func (m *Model) submitAnalysis(req capture.Request) tea.Cmd {
	if err := m.app.Machine.SubmitAnalysis(m.app.Ctx, req); err != nil {
		return tea.Println(errorStyle.Render("Error: " + err.Error()))
	}
	return nil
}

func (m *Model) toggleMic() tea.Cmd {
	if m.app.Listener == nil {
		return tea.Println(errorStyle.Render("Error: voice input is not available"))
	}
	if err := m.app.Listener.Toggle(); err != nil {
		return tea.Println(errorStyle.Render("Error: " + err.Error()))
	}
	if m.app.Listening() {
		return tea.Println(systemStyle.Render("  listening… (tab to dictate a caption, ctrl+r to stop)"))
	}
	return tea.Println(systemStyle.Render("  stopped listening"))
}

// ---------- convo event rendering ----------

func (m *Model) handleConvoEvent(ev convo.Event) []tea.Cmd {
	var cmds []tea.Cmd
	switch ev.Kind {
	case convo.EventMessage, convo.EventError:
		cmds = append(cmds, tea.Println(m.renderMessage(ev.Message)))
		if title := m.refreshTitle(); title != "" {
			m.sessionTitle = title
		}
	}
	return cmds
}

func (m *Model) renderMessage(msg chat.Message) string {
	switch msg.Role {
	case chat.RoleUser:
		text := msg.Text
		if msg.InlineImage != nil {
			text += "  " + hintStyle.Render("[image attached]")
		}
		return userStyle.Render("You: ") + text
	default:
		var b strings.Builder
		b.WriteString(assistantLabelStyle.Render("Dr. AI"))
		b.WriteString("\n")
		b.WriteString(m.renderMarkdown(msg.Text))
		if msg.GeneratedImage != "" {
			b.WriteString("\n  ")
			b.WriteString(imageLinkStyle.Render(msg.GeneratedImage))
		}
		return b.String()
	}
}

func (m *Model) refreshTitle() string {
	sess, err := m.app.Store.ActiveSession()
	if err != nil {
		return ""
	}
	return sess.Title
}

// ---------- session commands ----------

func (m *Model) printActiveSession() tea.Cmd {
	sess, err := m.app.Store.ActiveSession()
	if err != nil {
		return tea.Println(errorStyle.Render("Error: " + err.Error()))
	}
	m.sessionTitle = sess.Title
	var lines []string
	lines = append(lines, systemStyle.Render("── "+sess.Title+" ──"))
	for _, msg := range sess.Messages {
		lines = append(lines, m.renderMessage(msg))
	}
	return tea.Println(strings.Join(lines, "\n"))
}

func (m *Model) newSession() tea.Cmd {
	m.app.StopSpeech()
	sess, err := m.app.Store.CreateSession()
	if err != nil {
		return tea.Println(errorStyle.Render("Error: " + err.Error()))
	}
	m.sessionTitle = sess.Title
	var lines []string
	lines = append(lines, systemStyle.Render("── "+sess.Title+" ──"))
	for _, msg := range sess.Messages {
		lines = append(lines, m.renderMessage(msg))
	}
	return tea.Println(strings.Join(lines, "\n"))
}

func (m *Model) printSessionList() tea.Cmd {
	infos, err := m.app.Store.Sessions()
	if err != nil {
		return tea.Println(errorStyle.Render("Error: " + err.Error()))
	}
	activeID, _ := m.app.Store.ActiveSessionID()
	return tea.Println(renderSessionList(infos, activeID))
}

func renderSessionList(infos []store.SessionInfo, activeID string) string {
	if len(infos) == 0 {
		return systemStyle.Render("  no sessions")
	}
	var lines []string
	lines = append(lines, systemStyle.Render("  sessions (/resume <id> to switch):"))
	for _, info := range infos {
		marker := "  "
		if info.ID == activeID {
			marker = "* "
		}
		id := info.ID
		if len(id) > 8 {
			id = id[:8]
		}
		lines = append(lines, fmt.Sprintf("  %s%s  %-30s  %s  (%d messages)",
			marker, id, info.Title, info.UpdatedAt.Format("2006-01-02 15:04"), info.MessageCount))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) resumeSession(prefix string) tea.Cmd {
	infos, err := m.app.Store.Sessions()
	if err != nil {
		return tea.Println(errorStyle.Render("Error: " + err.Error()))
	}
	for _, info := range infos {
		if strings.HasPrefix(info.ID, prefix) {
			m.app.StopSpeech()
			if err := m.app.Store.SelectSession(info.ID); err != nil {
				return tea.Println(errorStyle.Render("Error: " + err.Error()))
			}
			return m.printActiveSession()
		}
	}
	return tea.Println(errorStyle.Render("Error: no session matching " + prefix))
}

func (m *Model) deleteSession(prefix string) tea.Cmd {
	infos, err := m.app.Store.Sessions()
	if err != nil {
		return tea.Println(errorStyle.Render("Error: " + err.Error()))
	}
	for _, info := range infos {
		if strings.HasPrefix(info.ID, prefix) {
			if err := m.app.Store.DeleteSession(info.ID); err != nil {
				return tea.Println(errorStyle.Render("Error: " + err.Error()))
			}
			return tea.Sequence(
				tea.Println(systemStyle.Render("  deleted "+info.Title)),
				m.printActiveSession(),
			)
		}
	}
	return tea.Println(errorStyle.Render("Error: no session matching " + prefix))
}

func (m *Model) searchSessions(query string) tea.Cmd {
	infos, err := m.app.Store.Search(query)
	if err != nil {
		return tea.Println(errorStyle.Render("Error: " + err.Error()))
	}
	activeID, _ := m.app.Store.ActiveSessionID()
	return tea.Println(renderSessionList(infos, activeID))
}

// ---------- background commands ----------

func pasteImageCmd() tea.Cmd {
	return func() tea.Msg {
		att, err := capture.FromClipboard()
		return stagedMsg{att: att, err: err}
	}
}

func stageFileCmd(path string) tea.Cmd {
	return func() tea.Msg {
		att, err := capture.FromFile(path)
		return stagedMsg{att: att, err: err}
	}
}

func (m *Model) cameraCmd() tea.Cmd {
	device := m.app.CameraDevice
	return func() tea.Msg {
		att, err := capture.FromCamera(device)
		return stagedMsg{att: att, err: err}
	}
}

func (m *Model) exportCmd() tea.Cmd {
	app := m.app
	return func() tea.Msg {
		sess, err := app.Store.ActiveSession()
		if err != nil {
			return exportDoneMsg{err: err}
		}
		res, err := app.Exporter.Export(app.Ctx, sess, app.ExportDir)
		if err != nil {
			return exportDoneMsg{err: err}
		}
		return exportDoneMsg{path: res.Path}
	}
}

// ---------- view ----------

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var live string
	if m.busy {
		live = spinnerStyle.Render(m.spinner.View()) + hintStyle.Render(" Dr. AI is thinking…")
	}

	input := m.textinput.View()
	if m.busy {
		input = systemStyle.Render("❯ " + hintStyle.Render("waiting for reply…"))
	}

	menu := ""
	if items := m.visibleSlashItems(); len(items) > 0 {
		sel := m.slashSel
		if sel < 0 {
			sel = 0
		}
		menu = renderSlashMenu(items, sel, m.width)
	}

	bar := m.renderStatusBar()

	var parts []string
	if live != "" {
		parts = append(parts, live)
	}
	parts = append(parts, input)
	if menu != "" {
		parts = append(parts, menu)
	}
	parts = append(parts, bar)
	return strings.Join(parts, "\n")
}

func (m Model) visibleSlashItems() []SlashMenuItem {
	value := m.textinput.Value()
	if !strings.HasPrefix(value, "/") || strings.Contains(value, " ") {
		return nil
	}
	return filterSlashItems(BuiltinSlashCommands(), value)
}

func (m *Model) renderStatusBar() string {
	modelName := m.cfg.Model
	if modelName == "" {
		modelName = "unknown"
	}
	status := statusModelStyle.Render(" "+modelName) +
		statusBarStyle.Render(" │ "+m.sessionTitle)

	if m.app.Listening() {
		target := "chat"
		if m.app.MicTarget() == listen.TargetCaption {
			target = "caption"
		}
		mic := " │ ● rec → " + target
		if m.micPreview != "" {
			preview := m.micPreview
			if len(preview) > 40 {
				preview = preview[:40] + "…"
			}
			mic += ": " + preview
		}
		status += micStyle.Render(mic)
	}
	if m.stagedLabel != "" {
		status += statusBarStyle.Render(" │ img: " + m.stagedLabel)
	}
	if m.speakingID != "" {
		status += speakingStyle.Render(" │ speaking")
	}

	width := m.width
	if width <= 0 {
		width = 80
	}
	return separatorStyle.Width(width).Render(strings.Repeat("─", width)) + "\n" +
		statusBarBgStyle.Width(width).Render(status)
}

// ---------- markdown rendering ----------

func (m *Model) getMarkdownRenderer() *glamour.TermRenderer {
	width := m.width
	if width <= 0 {
		width = 80
	}
	wrapWidth := width - 4
	if m.mdRenderer != nil && m.mdRendererWidth == wrapWidth {
		return m.mdRenderer
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return nil
	}
	m.mdRenderer = r
	m.mdRendererWidth = wrapWidth
	return r
}

func (m *Model) renderMarkdown(text string) string {
	r := m.getMarkdownRenderer()
	if r == nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}

// ---------- welcome page ----------

func renderWelcome(cfg UIConfig) string {
	cross := []string{
		"  ▄▄▄  ",
		"▄▄███▄▄",
		"███████",
		"▀▀███▀▀",
		"  ▀▀▀  ",
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	info := []string{
		welcomeLabelStyle.Render("Provider: ") + welcomeValueStyle.Render(cfg.Provider),
		welcomeLabelStyle.Render("Model:    ") + welcomeValueStyle.Render(cfg.Model),
		"",
		welcomeHintStyle.Render("ctrl+r speak  ctrl+v paste image  ctrl+e export pdf"),
		welcomeHintStyle.Render("ctrl+n new  ctrl+l sessions  /help for all commands"),
	}

	var lines []string
	crossWidth := 10
	for i := 0; i < len(cross) || i < len(info); i++ {
		left := ""
		if i < len(cross) {
			left = cross[i]
		}
		right := ""
		if i < len(info) {
			right = info[i]
		}
		visualWidth := lipgloss.Width(left)
		padding := crossWidth - visualWidth
		if padding < 0 {
			padding = 0
		}
		lines = append(lines, left+strings.Repeat(" ", padding)+right)
	}

	inner := strings.Join(lines, "\n")
	title := welcomeTitleStyle.Render(fmt.Sprintf("drai %s", version))
	box := welcomeBorderStyle.Render(inner)
	return title + "\n" + box
}

package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// runSlashCommand dispatches "/command arg" input.
func (m Model) runSlashCommand(input string) (Model, tea.Cmd) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/help":
		return m, tea.Println(renderHelp())

	case "/new":
		return m, m.newSession()

	case "/sessions":
		return m, m.printSessionList()

	case "/resume":
		if arg == "" {
			return m, tea.Println(errorStyle.Render("Error: usage: /resume <id>"))
		}
		return m, m.resumeSession(arg)

	case "/delete":
		if arg == "" {
			return m, tea.Println(errorStyle.Render("Error: usage: /delete <id>"))
		}
		return m, m.deleteSession(arg)

	case "/search":
		if arg == "" {
			return m, tea.Println(errorStyle.Render("Error: usage: /search <query>"))
		}
		return m, m.searchSessions(arg)

	case "/image":
		if arg == "" {
			return m, tea.Println(errorStyle.Render("Error: usage: /image <path>"))
		}
		return m, stageFileCmd(arg)

	case "/paste":
		return m, pasteImageCmd()

	case "/camera":
		return m, m.cameraCmd()

	case "/caption":
		if _, ok := m.app.Stage.Current(); !ok {
			return m, tea.Println(errorStyle.Render("Error: no image staged"))
		}
		m.app.Stage.SetCaption(arg)
		return m, tea.Println(systemStyle.Render("  caption: " + arg))

	case "/mic":
		return m, m.toggleMic()

	case "/speech":
		on := !m.app.Machine.SpeechOn()
		m.app.Machine.SetSpeech(on)
		state := "off"
		if on {
			state = "on"
		}
		return m, tea.Println(systemStyle.Render("  voice replies " + state))

	case "/profile":
		p := m.app.Store.Profile()
		if p.Empty() {
			return m, tea.Println(systemStyle.Render("  no profile set (drai profile set --name … to add one)"))
		}
		var lines []string
		lines = append(lines, systemStyle.Render("  patient profile:"))
		if p.Name != "" {
			lines = append(lines, "    name:    "+p.Name)
		}
		if p.Age != "" {
			lines = append(lines, "    age:     "+p.Age)
		}
		if p.Gender != "" {
			lines = append(lines, "    gender:  "+p.Gender)
		}
		if p.MedicalHistory != "" {
			lines = append(lines, "    history: "+p.MedicalHistory)
		}
		return m, tea.Println(strings.Join(lines, "\n"))

	case "/export":
		return m, m.exportCmd()

	case "/quit":
		m.quitting = true
		m.app.Shutdown()
		return m, tea.Quit
	}

	return m, tea.Println(errorStyle.Render("Error: unknown command " + name))
}

func renderHelp() string {
	lines := []string{
		systemStyle.Render("  keys:"),
		"    enter    send message / analyze staged image",
		"    ctrl+r   toggle voice input (tab: dictate caption instead)",
		"    ctrl+v   stage image from clipboard",
		"    ctrl+s   toggle voice replies",
		"    ctrl+e   export consultation as PDF",
		"    ctrl+n   new consultation",
		"    ctrl+l   list consultations",
		"    esc      discard staged image / stop speaking",
		systemStyle.Render("  say \"generate image of …\" to request an illustration"),
	}
	return strings.Join(lines, "\n")
}

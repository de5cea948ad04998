// Package tui is a terminal chat front end for an Orchestrator.
//
// The view never keeps its own copy of the conversation: every log event
// triggers a re-render from Orchestrator.Messages().
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ZanzyTHEbar/video-studio/studio/pipeline"
	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

const (
	eventBuffer = 64
	chromeLines = 5 // header, blank, input, blank, status
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	profileStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	systemStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("241"))
	stageStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	artifactStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type logEventMsg pipeline.Event

type subscriptionClosedMsg struct{}

type submitResultMsg struct {
	receipt *pipeline.TurnReceipt
	err     error
}

// App is the bubbletea model.
type App struct {
	orch     *pipeline.Orchestrator
	sub      pipeline.Subscription
	profiles []ports.ProfileInfo

	input    textinput.Model
	viewport viewport.Model
	ready    bool
	width    int

	statusMsg string
	err       error
}

// NewApp subscribes to orch; the subscription ends when the program quits.
func NewApp(orch *pipeline.Orchestrator) *App {
	input := textinput.New()
	input.Placeholder = "Describe the video you want to create..."
	input.CharLimit = 500
	input.Prompt = "> "
	input.Focus()

	return &App{
		orch:     orch,
		sub:      orch.Subscribe(eventBuffer),
		profiles: orch.Profiles(),
		input:    input,
		viewport: viewport.New(80, 20),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.waitForEvent())
}

func (a *App) waitForEvent() tea.Cmd {
	events := a.sub.Events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return subscriptionClosedMsg{}
		}
		return logEventMsg(ev)
	}
}

func (a *App) submit(text string) tea.Cmd {
	return func() tea.Msg {
		receipt, err := a.orch.SubmitAsync(context.Background(), text)
		return submitResultMsg{receipt: receipt, err: err}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.viewport.Width = msg.Width
		a.viewport.Height = max(1, msg.Height-chromeLines)
		a.input.Width = max(10, msg.Width-4)
		a.ready = true
		a.refresh()
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			a.sub.Close()
			return a, tea.Quit
		case "enter":
			text := strings.TrimSpace(a.input.Value())
			if text == "" {
				return a, nil
			}
			a.input.Reset()
			return a, a.submit(text)
		case "tab":
			a.cycleProfile()
			return a, nil
		case "ctrl+n":
			a.orch.Reset(context.Background())
			a.statusMsg = "New session started"
			return a, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			a.viewport, cmd = a.viewport.Update(msg)
			return a, cmd
		}

	case logEventMsg:
		a.refresh()
		return a, a.waitForEvent()

	case subscriptionClosedMsg:
		return a, nil

	case submitResultMsg:
		a.err = msg.err
		if msg.err == nil {
			a.statusMsg = ""
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// cycleProfile selects the catalogue entry after the current one.
func (a *App) cycleProfile() {
	if len(a.profiles) == 0 {
		return
	}
	current := a.orch.Profile()
	next := a.profiles[0].ID
	for i, p := range a.profiles {
		if p.ID == current {
			next = a.profiles[(i+1)%len(a.profiles)].ID
			break
		}
	}
	a.orch.SelectBackendProfile(next)
	a.statusMsg = "Model: " + a.displayName(next)
}

func (a *App) displayName(id string) string {
	for _, p := range a.profiles {
		if p.ID == id {
			return p.DisplayName
		}
	}
	return id
}

func (a *App) refresh() {
	a.viewport.SetContent(renderMessages(a.orch.Messages(), a.width))
	a.viewport.GotoBottom()
}

func (a *App) View() string {
	if !a.ready {
		return "Loading..."
	}

	header := titleStyle.Render("AI Video Studio") + "  " +
		profileStyle.Render("["+a.displayName(a.orch.Profile())+"]")

	status := helpStyle.Render("enter send • tab switch model • ctrl+n new session • pgup/pgdown scroll • esc quit")
	if a.err != nil {
		status = errorStyle.Render("Error: " + a.err.Error())
	} else if a.statusMsg != "" {
		status = helpStyle.Render(a.statusMsg)
	}

	return strings.Join([]string{header, a.viewport.View(), "", a.input.View(), status}, "\n")
}

// renderMessages formats the log for the viewport.
func renderMessages(msgs []ports.Message, width int) string {
	wrap := lipgloss.NewStyle()
	if width > 4 {
		wrap = wrap.Width(width - 2)
	}

	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		switch m.Role {
		case ports.RoleUser:
			b.WriteString(userStyle.Render("You") + "\n")
			b.WriteString(wrap.Render(m.Text) + "\n")
		case ports.RoleSystem:
			b.WriteString(systemStyle.Render(wrap.Render(m.Text)) + "\n")
		default:
			b.WriteString(assistantStyle.Render("Studio"))
			if m.Stage != ports.StageNone {
				b.WriteString(" " + stageStyle.Render("["+string(m.Stage)+"]"))
			}
			b.WriteString("\n" + wrap.Render(m.Text) + "\n")
			if a := m.Artifact; a != nil && m.ArtifactRef != "" {
				b.WriteString(artifactStyle.Render(fmt.Sprintf("▶ %s (%ds, %s, %s)",
					m.ArtifactRef, a.DurationSeconds, a.Style, a.Resolution)) + "\n")
			}
		}
	}
	return b.String()
}

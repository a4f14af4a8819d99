package main

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/wagiedev/regbot/internal/chat"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginTop(1)

	botLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10")).
			MarginTop(1)

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	readyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

type chatMessage struct {
	role    string // "user" or "bot"
	content string
	time    time.Time
}

// botReplyMsg carries one engine reply back into the update loop. The
// engine renders failures as chat text, so there is no error variant.
type botReplyMsg string

// chatModel is the terminal UI state. The engine is not safe for
// concurrent turns, so submissions are gated on isLoading: at most one
// Respond runs at a time.
type chatModel struct {
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	renderer  *glamour.TermRenderer

	engine *chat.Engine
	theme  string

	history   []chatMessage
	isLoading bool

	width  int
	height int
	ready  bool
}

func newChatModel(engine *chat.Engine, theme string) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 1024
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	vp := viewport.New(80, 20)

	m := chatModel{
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		renderer:  newRenderer(theme, 80),
		engine:    engine,
		theme:     theme,
		history: []chatMessage{
			{role: "bot", content: chat.WelcomeMessage(), time: time.Now()},
		},
	}

	m.viewport.SetContent(m.renderHistory())

	return m
}

// newRenderer builds the markdown renderer for the configured theme.
// A nil renderer is tolerated everywhere and falls back to plain text.
func newRenderer(theme string, width int) *glamour.TermRenderer {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}

	if theme == "auto" || theme == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(theme))
	}

	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil
	}

	return renderer
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			if !m.isLoading {
				return m.handleSubmit()
			}

		// Function keys shortcut the common commands through the same
		// path a typed command takes.
		case tea.KeyF1:
			if !m.isLoading {
				return m.submit("help")
			}

		case tea.KeyF2:
			if !m.isLoading {
				return m.submit("show registrations")
			}

		case tea.KeyF3:
			if !m.isLoading {
				return m.submit("statistics")
			}

		case tea.KeyF4:
			if !m.isLoading {
				return m.submit("register")
			}
		}

		if !m.isLoading {
			m.textinput, tiCmd = m.textinput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		footerHeight := 2
		inputHeight := 3

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-headerHeight-footerHeight-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - headerHeight - footerHeight - inputHeight
		}

		m.textinput.Width = msg.Width - 4

		m.renderer = newRenderer(m.theme, msg.Width-8)
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case botReplyMsg:
		m.isLoading = false
		m.history = append(m.history, chatMessage{
			role:    "bot",
			content: string(msg),
			time:    time.Now(),
		})
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
	}

	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m chatModel) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}

	switch strings.ToLower(input) {
	case "quit", "exit", "bye":
		return m, tea.Quit
	}

	return m.submit(input)
}

// submit records the user turn and kicks off the engine in the
// background.
func (m chatModel) submit(input string) (tea.Model, tea.Cmd) {
	m.history = append(m.history, chatMessage{
		role:    "user",
		content: input,
		time:    time.Now(),
	})

	m.textinput.Reset()

	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()

	m.isLoading = true

	return m, tea.Batch(
		m.spinner.Tick,
		m.respond(input),
	)
}

func (m chatModel) respond(input string) tea.Cmd {
	return func() tea.Msg {
		// Each tool call inside the turn carries its own timeout; this
		// bound only stops a runaway turn from wedging the UI forever.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		return botReplyMsg(m.engine.Respond(ctx, input))
	}
}

func (m chatModel) renderHistory() string {
	var sb strings.Builder

	for _, msg := range m.history {
		if msg.role == "user" {
			sb.WriteString(userLabelStyle.Render("You") + "\n")
			sb.WriteString(msg.content)
			sb.WriteString("\n\n")
		} else {
			sb.WriteString(botLabelStyle.Render("🤖 RegBot") + "\n")
			sb.WriteString(m.safeRenderMarkdown(msg.content))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery; glamour can
// panic on pathological input and the chat must not die with it.
func (m chatModel) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}

	return content
}

func (m chatModel) View() string {
	if !m.ready {
		return "Starting registration chat..."
	}

	header := m.renderHeader()

	chatView := m.viewport.View()
	if m.isLoading {
		chatView += "\n" + spinnerStyle.Render(m.spinner.View()) + " Working..."
	}

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1)

	inputArea := inputStyle.Render(m.textinput.View())

	footer := mutedStyle.Render(
		"Enter: send • F1: help • F2: registrations • F3: statistics • F4: register • Ctrl+C: exit",
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		chatView,
		inputArea,
		footer,
	)
}

func (m chatModel) renderHeader() string {
	title := titleStyle.Render(" 🤖 Registration Chat ")

	var status string
	if m.isLoading {
		status = busyStyle.Render("● Working")
	} else {
		status = readyStyle.Render("● Ready")
	}

	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", status)
}

func runTUI(engine *chat.Engine, theme string) error {
	p := tea.NewProgram(
		newChatModel(engine, theme),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err := p.Run()

	return err
}

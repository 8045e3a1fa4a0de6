package ui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/siotlab/bdsc/internal/protocol"
	"github.com/siotlab/bdsc/internal/report"
)

// Event texts that open and close an exchange
const (
	preparedPrefix = "Prepared Message = "
	responsePrefix = "Server Response = "
)

const (
	defaultMaxEvents = 200
	flashDuration    = 300 * time.Millisecond
	maxButtons       = 9
)

// Presser triggers a simulated edge on a named pin
type Presser interface {
	Press(pin string) error
}

// Button is one pressable source shown on the panel
type Button struct {
	Name string
	Pin  string
}

// PanelConfig configures the interactive button panel
type PanelConfig struct {
	Title     string
	Identity  string
	Endpoint  string
	Buttons   []Button
	Presser   Presser
	Events    <-chan report.Event
	MaxEvents int
}

// Messages
type eventMsg report.Event
type eventsClosedMsg struct{}
type pressResultMsg struct {
	button Button
	err    error
}
type flashClearMsg struct{ pin string }

// panelKeyMap defines key bindings for the panel
type panelKeyMap struct {
	Press key.Binding
	Help  key.Binding
	Quit  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k panelKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Press, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k panelKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Press},
		{k.Help, k.Quit},
	}
}

func newPanelKeyMap(buttons int) panelKeyMap {
	if buttons > maxButtons {
		buttons = maxButtons
	}
	keys := make([]string, 0, buttons)
	for i := 1; i <= buttons; i++ {
		keys = append(keys, fmt.Sprint(i))
	}
	helpKey := "1"
	if buttons > 1 {
		helpKey = fmt.Sprintf("1-%d", buttons)
	}
	return panelKeyMap{
		Press: key.NewBinding(
			key.WithKeys(keys...),
			key.WithHelp(helpKey, "press button"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}

// PanelModel is a Bubble Tea model showing the buttons, the echo stream
// and the last value seen for each register.
type PanelModel struct {
	cfg      PanelConfig
	keys     panelKeyMap
	help     help.Model
	viewport viewport.Model
	spinner  spinner.Model

	lines     []string
	inflight  map[string]struct{}
	registers map[byte]protocol.ReplyFields
	flash     string
	lastErr   error
	closed    bool

	width  int
	height int
	ready  bool
}

// NewPanel creates the panel model
func NewPanel(cfg PanelConfig) PanelModel {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = defaultMaxEvents
	}
	if cfg.Title == "" {
		cfg.Title = "BDSC Panel"
	}
	width, height := GetTerminalSize()
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	m := PanelModel{
		cfg:       cfg,
		keys:      newPanelKeyMap(len(cfg.Buttons)),
		help:      help.New(),
		spinner:   s,
		inflight:  make(map[string]struct{}),
		registers: make(map[byte]protocol.ReplyFields),
	}
	m.resize(width, height)
	return m
}

// Init starts listening for events
func (m PanelModel) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.cfg.Events), m.spinner.Tick)
}

// waitForEvent blocks on the event channel inside a command
func waitForEvent(ch <-chan report.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(e)
	}
}

func press(p Presser, b Button) tea.Cmd {
	return func() tea.Msg {
		if p == nil {
			return pressResultMsg{button: b, err: fmt.Errorf("no input device attached")}
		}
		return pressResultMsg{button: b, err: p.Press(b.Pin)}
	}
}

// Update handles messages
func (m PanelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.resize(m.width, m.height)
			return m, nil
		case key.Matches(msg, m.keys.Press):
			idx := int(msg.String()[0] - '1')
			if idx < 0 || idx >= len(m.cfg.Buttons) {
				return m, nil
			}
			b := m.cfg.Buttons[idx]
			m.flash = b.Pin
			return m, tea.Batch(
				press(m.cfg.Presser, b),
				tea.Tick(flashDuration, func(time.Time) tea.Msg { return flashClearMsg{pin: b.Pin} }),
			)
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case pressResultMsg:
		m.lastErr = msg.err
		if msg.err != nil {
			m.appendLine(ErrorMessageStyle.Render(fmt.Sprintf("%s %s: %v", FailureMarker, msg.button.Name, msg.err)))
		}
		return m, nil

	case flashClearMsg:
		if m.flash == msg.pin {
			m.flash = ""
		}
		return m, nil

	case eventMsg:
		m.handleEvent(report.Event(msg))
		return m, waitForEvent(m.cfg.Events)

	case eventsClosedMsg:
		m.closed = true
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *PanelModel) handleEvent(e report.Event) {
	if e.ExchangeID != "" {
		switch {
		case strings.HasPrefix(e.Text, preparedPrefix):
			m.inflight[e.ExchangeID] = struct{}{}
		case e.Level == report.LevelFailure, e.Level == report.LevelWarning,
			strings.HasPrefix(e.Text, responsePrefix):
			delete(m.inflight, e.ExchangeID)
		}
	}
	if text, ok := strings.CutPrefix(e.Text, responsePrefix); ok {
		if fields, ok := protocol.ParseReply(protocol.Reply{Data: []byte(text)}); ok {
			m.registers[fields.Register] = fields
		}
	}
	m.appendLine(formatEvent(e))
}

func (m *PanelModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	if over := len(m.lines) - m.cfg.MaxEvents; over > 0 {
		m.lines = m.lines[over:]
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func formatEvent(e report.Event) string {
	var style lipgloss.Style
	switch e.Level {
	case report.LevelSuccess:
		style = lipgloss.NewStyle().Foreground(SuccessColor)
	case report.LevelWarning:
		style = lipgloss.NewStyle().Foreground(WarningColor)
	case report.LevelFailure:
		style = lipgloss.NewStyle().Foreground(ErrorColor)
	default:
		style = lipgloss.NewStyle().Foreground(TextColor)
	}
	line := style.Render(e.Text)
	if e.Source != "" {
		line = EventSourceStyle.Render("["+e.Source+"]") + " " + line
	}
	if !e.Time.IsZero() {
		line = EventTimeStyle.Render(e.Time.Format("15:04:05")) + " " + line
	}
	return line
}

// resize recomputes the viewport from the terminal size
func (m *PanelModel) resize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width

	// header (4) + buttons (3) + registers (1) + borders and help
	reserved := 11
	if m.help.ShowAll {
		reserved += 2
	}
	vpHeight := height - reserved
	if vpHeight < 3 {
		vpHeight = 3
	}
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
}

// View renders the panel
func (m PanelModel) View() string {
	title := HeaderTitleStyle.Render(strings.ToUpper(m.cfg.Title))
	info := HeaderParamKeyStyle.Render("Identity:") + " " + HeaderParamValueStyle.Render(orDash(m.cfg.Identity)) +
		"   " + HeaderParamKeyStyle.Render("Server:") + " " + HeaderParamValueStyle.Render(orDash(m.cfg.Endpoint))

	buttons := make([]string, 0, len(m.cfg.Buttons))
	for i, b := range m.cfg.Buttons {
		if i >= maxButtons {
			break
		}
		style := ButtonStyle
		if m.flash == b.Pin {
			style = ButtonFlashStyle
		}
		buttons = append(buttons, style.Render(fmt.Sprintf("%d  %s (%s)", i+1, b.Name, b.Pin)))
	}

	status := StatusBarStyle.Render(m.registerLine())
	if n := len(m.inflight); n > 0 {
		status += StatusBarStyle.Render(fmt.Sprintf("%s %d in flight", m.spinner.View(), n))
	}
	if m.closed {
		status += StatusBarStyle.Render("(event stream closed)")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		info,
		RenderHorizontalDivider(m.width, "─"),
		lipgloss.JoinHorizontal(lipgloss.Top, buttons...),
		status,
		RenderHorizontalDivider(m.width, "─"),
		m.viewport.View(),
		m.help.View(m.keys),
	)
}

func (m PanelModel) registerLine() string {
	if len(m.registers) == 0 {
		return "No register values yet"
	}
	regs := make([]int, 0, len(m.registers))
	for r := range m.registers {
		regs = append(regs, int(r))
	}
	slices.Sort(regs)
	parts := make([]string, 0, len(regs))
	for _, r := range regs {
		f := m.registers[byte(r)]
		parts = append(parts, fmt.Sprintf("reg %02X = %04X (%s)", r, f.Value, f.Status))
	}
	return strings.Join(parts, "   ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// RunPanel runs the panel until the user quits
func RunPanel(cfg PanelConfig) error {
	p := tea.NewProgram(NewPanel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

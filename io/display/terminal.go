package display

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/vadiminshakov/tokencore/core/flow"
)

// screenWidth is the text width of the emulated display.
const screenWidth = 36

type screenMsg flow.Screen

// Terminal runs a bubbletea program showing the current screen. Render may be
// called from any goroutine.
type Terminal struct {
	program *tea.Program
}

// NewTerminal returns an emulator that sends input to events.
func NewTerminal(events chan<- flow.Event, opts ...tea.ProgramOption) *Terminal {
	return &Terminal{program: tea.NewProgram(newModel(events), opts...)}
}

func (t *Terminal) Render(s flow.Screen) {
	t.program.Send(screenMsg(s))
}

// Run blocks until the user closes the emulator.
func (t *Terminal) Run() error {
	_, err := t.program.Run()
	return err
}

// Quit stops the program.
func (t *Terminal) Quit() {
	t.program.Quit()
}

type model struct {
	screen flow.Screen
	events chan<- flow.Event
	drawn  bool
}

func newModel(events chan<- flow.Event) model {
	return model{events: events}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case screenMsg:
		m.screen = flow.Screen(msg)
		m.drawn = true
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "left", "h":
			m.emit(flow.Left())
		case "right", "l":
			m.emit(flow.Right())
		case "enter", " ", "b":
			m.emit(flow.Both())
		}
	}
	return m, nil
}

// emit drops input when the device is not keeping up, like a real button
// controller with a one-event queue.
func (m model) emit(ev flow.Event) {
	select {
	case m.events <- ev:
	default:
	}
}

func (m model) View() string {
	if !m.drawn {
		return "waiting for device...\n"
	}
	return frameStyle.Render(renderScreen(m.screen)) + "\n" +
		footerStyle.Render("←/h  →/l  enter: both  q: quit") + "\n"
}

// renderScreen lays out one screen as three text rows.
func renderScreen(s flow.Screen) string {
	left, right := " ", " "
	if s.CanPrev {
		left = "◀"
	}
	if s.CanNext {
		right = "▶"
	}

	title := s.Title
	if icon, ok := icons[s.Icon]; ok {
		title = icon + " " + title
	}

	body := wrap(s.Text, screenWidth)
	rows := []string{
		titleStyleFor(s).Width(screenWidth).Align(lipgloss.Center).Render(title),
		textStyle.Width(screenWidth).Render(body),
	}
	return lipgloss.JoinHorizontal(lipgloss.Center,
		arrowStyle.Render(left+" "),
		strings.Join(rows, "\n"),
		arrowStyle.Render(" "+right),
	)
}

// wrap splits s into lines of at most width runes.
func wrap(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	var sb strings.Builder
	for len(r) > width {
		sb.WriteString(string(r[:width]))
		sb.WriteByte('\n')
		r = r[width:]
	}
	sb.WriteString(string(r))
	return sb.String()
}

package inspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/dkoosis/conform/internal/report"
)

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	NextPane key.Binding
	Diff     key.Binding
	Result   key.Binding
	Expected key.Binding
	Server   key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev test")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next test")),
	NextPane: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next pane")),
	Diff:     key.NewBinding(key.WithKeys("d", "1"), key.WithHelp("d", "diff")),
	Result:   key.NewBinding(key.WithKeys("r", "2"), key.WithHelp("r", "result")),
	Expected: key.NewBinding(key.WithKeys("e", "3"), key.WithHelp("e", "expected")),
	Server:   key.NewBinding(key.WithKeys("s", "4"), key.WithHelp("s", "server log")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Run opens the interactive viewer on s.
func Run(ctx context.Context, s *Session, theme report.Theme) error {
	program := tea.NewProgram(newModel(s, theme), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

type model struct {
	session  *Session
	theme    report.Theme
	selected int
	pane     Pane
	viewport viewport.Model
	ready    bool
	width    int
	height   int
	listW    int
}

func newModel(s *Session, theme report.Theme) model {
	return model{session: s, theme: theme, viewport: viewport.New(0, 0)}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.selected > 0 {
				m.selected--
				m.refresh()
			}
			return m, nil
		case key.Matches(msg, keys.Down):
			if m.selected < m.session.Len()-1 {
				m.selected++
				m.refresh()
			}
			return m, nil
		case key.Matches(msg, keys.NextPane):
			m.pane = panes[(int(m.pane)+1)%len(panes)]
			m.refresh()
			return m, nil
		case key.Matches(msg, keys.Diff):
			m.setPane(PaneDiff)
			return m, nil
		case key.Matches(msg, keys.Result):
			m.setPane(PaneResult)
			return m, nil
		case key.Matches(msg, keys.Expected):
			m.setPane(PaneExpected)
			return m, nil
		case key.Matches(msg, keys.Server):
			m.setPane(PaneServer)
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.listW = m.listWidth()
		m.viewport.Width = max(m.width-m.listW-3, 10)
		m.viewport.Height = max(m.height-4, 3)
		m.ready = true
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) setPane(p Pane) {
	m.pane = p
	m.refresh()
}

func (m *model) refresh() {
	if m.session.Len() == 0 {
		m.viewport.SetContent("No tests were reported in this run.")
		return
	}
	content, err := m.session.Artifact(m.selected, m.pane)
	if err != nil {
		content = err.Error()
	}
	if m.pane == PaneDiff {
		content = m.colorDiff(content)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoTop()
}

func (m model) colorDiff(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "---"), strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "@@"):
			lines[i] = m.theme.Muted.Render(l)
		case strings.HasPrefix(l, "-"):
			lines[i] = m.theme.Fail.Render(l)
		case strings.HasPrefix(l, "+"):
			lines[i] = m.theme.Pass.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

func (m model) listWidth() int {
	w := runewidth.StringWidth("Tests")
	for _, rec := range m.session.Summary.Tests {
		w = max(w, runewidth.StringWidth(rowText(rec)))
	}
	return w + 2
}

func rowText(rec report.TestRecord) string {
	mark := "✓"
	if rec.Verdict != report.Pass.String() {
		mark = "✗"
	}
	return fmt.Sprintf("%s %s", mark, rec.Name)
}

func (m model) View() string {
	if !m.ready {
		return "Loading run..."
	}

	var rows []string
	rows = append(rows, m.theme.Bold.Render("Tests"))
	for i, rec := range m.session.Summary.Tests {
		text := runewidth.FillRight(rowText(rec), m.listW-2)
		style := m.theme.Pass
		if rec.Verdict != report.Pass.String() {
			style = m.theme.Fail
		}
		if i == m.selected {
			style = style.Reverse(true)
		}
		rows = append(rows, style.Render(text))
	}
	list := lipgloss.NewStyle().Width(m.listW).Render(strings.Join(rows, "\n"))

	header := m.theme.Bold.Render(m.header())
	detail := lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, list, " ", detail)

	help := m.theme.Muted.Render("↑/↓ test • tab pane • d/r/e/s diff/result/expected/server • q quit")
	return lipgloss.JoinVertical(lipgloss.Left, body, help)
}

func (m model) header() string {
	if m.session.Len() == 0 {
		return "empty run"
	}
	rec := m.session.Summary.Tests[m.selected]
	return fmt.Sprintf("%s [%s] %s", rec.Name, rec.Verdict, m.pane)
}

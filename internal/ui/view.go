package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	left, right := m.paneWidths()

	bodyHeight := m.height - 2
	if bodyHeight < 8 {
		bodyHeight = 8
	}

	m.list.SetSize(left-2, bodyHeight-2)
	m.viewport.Width = right - 2
	m.viewport.Height = bodyHeight - 2
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}

	left, right := m.paneWidths()
	leftPane := panelStyle(m.focusOnList).Width(left).Height(m.height - 2).Render(m.list.View())
	rightPane := panelStyle(!m.focusOnList).Width(right).Height(m.height - 2).Render(m.viewport.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	helpView := m.help.View(m.keys)
	if m.searchMode {
		helpView = m.search.View() + "  " + helpView
	} else if m.vm.AppliedQuery != "" {
		helpView = "search: " + m.vm.AppliedQuery + "  " + helpView
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusLine(),
		body,
		ansi.Truncate(helpView, m.width, "…"),
	)
}

func (m Model) statusLine() string {
	parts := make([]string, 0, 8)
	switch {
	case m.loading:
		parts = append(parts, m.spinner.View()+" loading history...")
	case !m.workspace.Available:
		parts = append(parts, m.workspace.Label())
	case m.vm.SelectedTurn != nil:
		t := m.vm.SelectedTurn
		parts = append(parts, fmt.Sprintf("turn=%s  date=%s  started=%s", t.ID, t.DateKey, t.LocalTime))
	}
	if m.vm.AppliedQuery != "" || m.searchMode {
		parts = append(parts, fmt.Sprintf("[search %d]", len(m.vm.VisibleTurnIDs())))
		if m.matchCount > 0 {
			cur := m.matchIndex + 1
			if cur < 1 {
				cur = 1
			}
			parts = append(parts, fmt.Sprintf("[match %d/%d]", cur, m.matchCount))
		}
	}
	if m.rendering {
		parts = append(parts, "[rendering]")
	}
	if m.stale {
		parts = append(parts, staleStyle.Render("[new activity, press r to reload]"))
	}
	if s := strings.TrimSpace(m.status); s != "" {
		parts = append(parts, s)
	}
	if m.err != nil {
		parts = append(parts, "err="+m.err.Error())
	}
	line := strings.Join(parts, "  ")
	if m.width > 2 {
		line = ansi.Truncate(line, m.width-2, "…")
	}
	return statusStyle.Render(line)
}

func (m *Model) paneWidths() (int, int) {
	left := m.width / 3
	if left < 32 {
		left = 32
	}
	if left > m.width-32 {
		left = m.width - 32
	}
	if left < 20 {
		left = 20
	}
	right := m.width - left - 1
	if right < 20 {
		right = 20
	}
	return left, right
}

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("24")).
			Padding(0, 1)
	staleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))
	searchMatchStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("16")).
				Background(lipgloss.Color("220"))
	listMatchStyle = lipgloss.NewStyle().
			Underline(true).
			Foreground(lipgloss.Color("220"))
)

func panelStyle(active bool) lipgloss.Style {
	color := lipgloss.Color("240")
	if active {
		color = lipgloss.Color("39")
	}
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), true).
		BorderForeground(color).
		Padding(0, 1)
}

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	FocusLeft  key.Binding
	FocusRight key.Binding
	Tab        key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	PrevMatch  key.Binding
	NextMatch  key.Binding
	Search     key.Binding
	Esc        key.Binding
	Export     key.Binding
	Copy       key.Binding
	Reload     key.Binding
	Quit       key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		FocusLeft:  key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "focus list")),
		FocusRight: key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "focus turn")),
		Tab:        key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "toggle focus")),
		PageUp:     key.NewBinding(key.WithKeys("pgup", "b"), key.WithHelp("pgup", "page up")),
		PageDown:   key.NewBinding(key.WithKeys("pgdown", "f"), key.WithHelp("pgdn", "page down")),
		PrevMatch:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "prev match")),
		NextMatch:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next match")),
		Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Esc:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear search")),
		Export:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export markdown")),
		Copy:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy turn")),
		Reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Tab, k.Search, k.NextMatch, k.Copy, k.Export, k.Reload, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.FocusLeft, k.FocusRight, k.Tab},
		{k.PageDown, k.PageUp, k.NextMatch, k.PrevMatch, k.Search, k.Esc},
		{k.Export, k.Copy, k.Reload, k.Quit},
	}
}

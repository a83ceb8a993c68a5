package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"golang.org/x/text/language"

	"codex-history/internal/clipboard"
	"codex-history/internal/config"
	"codex-history/internal/export"
	"codex-history/internal/highlight"
	"codex-history/internal/logger"
	"codex-history/internal/panel"
	"codex-history/internal/watch"
	"codex-history/internal/workspace"
)

type Deps struct {
	Config    config.AppConfig
	Manager   *panel.Manager
	Exporter  *export.Exporter
	Workspace workspace.Status
	// Watcher is optional. When set, changes under the sessions root show
	// a reload hint.
	Watcher *watch.Watcher
}

type Model struct {
	cfg       config.AppConfig
	manager   *panel.Manager
	exporter  *export.Exporter
	workspace workspace.Status
	watcher   *watch.Watcher

	list     list.Model
	viewport viewport.Model
	help     help.Model
	spinner  spinner.Model
	search   textinput.Model
	keys     keyMap

	width  int
	height int

	loading     bool
	searchMode  bool
	focusOnList bool
	rendering   bool
	renderNonce int
	stale       bool

	vm         panel.ViewModel
	matcher    *highlight.Matcher
	rendered   map[string]string
	matchLines []int
	matchCount int
	matchIndex int

	status string
	err    error
}

type loadedMsg struct {
	vm      panel.ViewModel
	skipped int
	err     error
}
type renderMsg struct {
	turnID   string
	cacheKey string
	rendered string
	nonce    int
	err      error
}
type exportMsg struct {
	path string
	err  error
}
type copyMsg struct {
	err error
}
type changedMsg struct{}

type turnItem struct {
	summary panel.TurnSummary
	dateKey string
	matcher *highlight.Matcher
}

func (i turnItem) Title() string {
	title := strings.Join(strings.Fields(i.summary.DisplayMessage), " ")
	if i.matcher != nil {
		title, _ = i.matcher.Plain(title, func(s string) string { return listMatchStyle.Render(s) })
	}
	return title
}

func (i turnItem) Description() string {
	return i.dateKey + " " + i.summary.LocalTime
}

func (i turnItem) FilterValue() string {
	return i.summary.UserMessage
}

func NewModel(d Deps) Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 40, 20)
	l.Title = "Turns"
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	vp := viewport.New(60, 20)

	h := help.New()
	h.ShowAll = false

	sp := spinner.New()
	sp.Spinner = spinner.Points

	ti := textinput.New()
	ti.Placeholder = "Search your messages..."
	ti.Prompt = "/ "
	ti.CharLimit = 256

	m := Model{
		cfg:       d.Config,
		manager:   d.Manager,
		exporter:  d.Exporter,
		workspace: d.Workspace,
		watcher:   d.Watcher,
		list:      l,
		viewport:  vp,
		help:      h,
		spinner:   sp,
		search:    ti,
		keys:      defaultKeys(),

		loading:     d.Workspace.Available,
		focusOnList: true,
		rendered:    make(map[string]string),
		matchIndex:  -1,
	}
	if d.Workspace.Available {
		m.viewport.SetContent("Loading Codex history...")
	} else {
		m.viewport.SetContent(unavailableText(d.Workspace))
	}
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.workspace.Available {
		cmds = append(cmds, m.showCmd())
	}
	if m.watcher != nil {
		cmds = append(cmds, waitForChange(m.watcher))
	}
	return tea.Batch(cmds...)
}

func (m Model) showCmd() tea.Cmd {
	mgr := m.manager
	return func() tea.Msg {
		vm, err := mgr.Show(context.Background())
		if err != nil {
			return loadedMsg{err: err}
		}
		skipped := 0
		if st, ok := mgr.Snapshot(); ok && st.Index != nil {
			skipped = len(st.Index.Skipped)
		}
		return loadedMsg{vm: vm, skipped: skipped}
	}
}

func waitForChange(w *watch.Watcher) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-w.Changes; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (m Model) exportCmd() tea.Cmd {
	turn := m.vm.SelectedTurn
	if turn == nil || m.exporter == nil {
		return nil
	}
	exp := m.exporter
	return func() tea.Msg {
		path, err := exp.Export(turn)
		return exportMsg{path: path, err: err}
	}
}

func (m Model) copyCmd() tea.Cmd {
	turn := m.vm.SelectedTurn
	if turn == nil {
		return nil
	}
	mgr := m.manager
	text := export.BuildTurnMarkdown(turn)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_, err := mgr.Handle(ctx, panel.CopyText{Text: text})
		return copyMsg{err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		cmds = append(cmds, m.renderSelected(true))

	case loadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err != nil {
			m.status = "Loading history failed"
			m.viewport.SetContent("Could not load history: " + msg.err.Error())
			break
		}
		m.status = fmt.Sprintf("%d turns", len(msg.vm.VisibleTurnIDs()))
		if msg.skipped > 0 {
			m.status += fmt.Sprintf(", %d unreadable files skipped", msg.skipped)
		}
		cmds = append(cmds, m.applyView(msg.vm))

	case changedMsg:
		m.stale = true
		if m.watcher != nil {
			cmds = append(cmds, waitForChange(m.watcher))
		}

	case renderMsg:
		if msg.nonce != m.renderNonce {
			break
		}
		m.rendering = false
		if msg.err != nil {
			m.err = msg.err
			m.status = "Render failed: " + msg.err.Error()
			break
		}
		m.rendered[msg.cacheKey] = msg.rendered
		if m.vm.SelectedTurnID() == msg.turnID {
			m.setViewportFromRendered(msg.rendered, true)
		}

	case exportMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Exported: " + msg.path
		}

	case copyMsg:
		if msg.err != nil {
			m.err = msg.err
			if errors.Is(msg.err, clipboard.ErrToolNotFound) {
				m.status = "Could not copy: clipboard tool not found"
			} else {
				m.status = "Could not copy: " + msg.err.Error()
			}
		} else {
			m.status = "Copied turn to clipboard"
		}

	case tea.KeyMsg:
		if m.searchMode {
			return m.updateSearch(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Search):
			if m.loading || !m.workspace.Available {
				return m, nil
			}
			m.searchMode = true
			m.search.SetValue(m.vm.AppliedQuery)
			m.search.CursorEnd()
			m.search.Focus()
			return m, nil
		case key.Matches(msg, m.keys.Esc):
			if m.vm.AppliedQuery != "" {
				m.search.SetValue("")
				return m, m.dispatch(panel.ClearSearch{})
			}
			return m, nil
		case key.Matches(msg, m.keys.Reload):
			return m, m.reload()
		case key.Matches(msg, m.keys.Tab):
			m.focusOnList = !m.focusOnList
			return m, nil
		case key.Matches(msg, m.keys.FocusLeft):
			m.focusOnList = true
			return m, nil
		case key.Matches(msg, m.keys.FocusRight):
			m.focusOnList = false
			return m, nil
		case key.Matches(msg, m.keys.PageUp):
			m.viewport.HalfViewUp()
			return m, nil
		case key.Matches(msg, m.keys.PageDown):
			m.viewport.HalfViewDown()
			return m, nil
		case key.Matches(msg, m.keys.PrevMatch):
			m.jumpToMatch(-1)
			return m, nil
		case key.Matches(msg, m.keys.NextMatch):
			m.jumpToMatch(1)
			return m, nil
		case key.Matches(msg, m.keys.Export):
			return m, m.exportCmd()
		case key.Matches(msg, m.keys.Copy):
			return m, m.copyCmd()
		}

		if m.focusOnList {
			prev := m.currentSelectedID()
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(msg)
			cmds = append(cmds, cmd)
			if id := m.currentSelectedID(); id != "" && id != prev {
				cmds = append(cmds, m.dispatch(panel.SelectTurn{TurnID: id}))
			}
		} else {
			switch msg.String() {
			case "up", "k":
				m.viewport.LineUp(1)
			case "down", "j":
				m.viewport.LineDown(1)
			}
		}
	}

	if m.loading {
		var spin tea.Cmd
		m.spinner, spin = m.spinner.Update(msg)
		cmds = append(cmds, spin)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searchMode = false
		m.search.SetValue("")
		m.search.Blur()
		return m, m.dispatch(panel.ClearSearch{})
	case "enter":
		m.searchMode = false
		m.search.Blur()
		return m, nil
	}

	before := panel.NormalizeQuery(m.search.Value())
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	cmds = append(cmds, cmd)
	if after := panel.NormalizeQuery(m.search.Value()); after != before {
		cmds = append(cmds, m.dispatch(panel.Search{Query: after}))
	}
	return m, tea.Batch(cmds...)
}

// dispatch sends msg to the panel and applies the resulting view.
func (m *Model) dispatch(msg panel.Message) tea.Cmd {
	vm, err := m.manager.Handle(context.Background(), msg)
	if err != nil {
		if !errors.Is(err, panel.ErrClosed) {
			m.err = err
			m.status = err.Error()
		}
		return nil
	}
	return m.applyView(vm)
}

func (m *Model) reload() tea.Cmd {
	if !m.workspace.Available {
		m.workspace = workspace.Check(m.cfg.CodexHome)
		if !m.workspace.Available {
			m.viewport.SetContent(unavailableText(m.workspace))
			return nil
		}
	}
	logger.Logger.Info().Str("root", m.cfg.SessionsRoot).Msg("reloading history")
	m.manager.Close()
	m.stale = false
	m.loading = true
	m.err = nil
	m.searchMode = false
	m.search.SetValue("")
	m.rendered = make(map[string]string)
	m.viewport.SetContent("Loading Codex history...")
	return tea.Batch(m.spinner.Tick, m.showCmd())
}

func (m *Model) applyView(vm panel.ViewModel) tea.Cmd {
	m.vm = vm
	m.matcher = nil
	if vm.AppliedQuery != "" {
		locale := language.Und
		if st, ok := m.manager.Snapshot(); ok {
			locale = st.Locale
		}
		m.matcher = highlight.NewMatcher(locale, vm.AppliedQuery)
	}
	items := make([]list.Item, 0, 64)
	selected := vm.SelectedTurnID()
	selectIdx := 0
	for _, day := range vm.Days {
		for _, t := range day.Turns {
			if t.ID == selected {
				selectIdx = len(items)
			}
			items = append(items, turnItem{summary: t, dateKey: day.DateKey, matcher: m.matcher})
		}
	}
	m.list.SetItems(items)

	if len(items) == 0 {
		m.clearMatches()
		m.viewport.SetContent(m.emptyText())
		return nil
	}
	m.list.Select(selectIdx)
	return m.renderSelected(false)
}

func (m Model) emptyText() string {
	if !m.workspace.Available {
		return unavailableText(m.workspace)
	}
	if m.vm.AppliedQuery != "" {
		return fmt.Sprintf("No turns match %q.", m.vm.AppliedQuery)
	}
	return "No history yet.\n\nCodex sessions under " + m.cfg.SessionsRoot + " will appear here."
}

func unavailableText(st workspace.Status) string {
	text := st.Label()
	if st.Err != nil {
		text += "\n\n" + st.Err.Error()
	}
	return text + "\n\nFix the Codex configuration and press r to retry."
}

func (m *Model) currentSelectedID() string {
	item, ok := m.list.SelectedItem().(turnItem)
	if !ok {
		return ""
	}
	return item.summary.ID
}

func (m *Model) renderSelected(force bool) tea.Cmd {
	turn := m.vm.SelectedTurn
	if turn == nil {
		m.clearMatches()
		return nil
	}

	cacheKey := m.renderCacheKey(turn)
	if !force {
		if rendered, ok := m.rendered[cacheKey]; ok {
			m.setViewportFromRendered(rendered, true)
			return nil
		}
	}
	m.rendering = true
	m.renderNonce++
	wrap := m.viewport.Width - 2
	if wrap < 20 {
		wrap = 20
	}
	return renderTurnCmd(turn, cacheKey, wrap, m.renderNonce)
}

func renderTurnCmd(turn *panel.SelectedTurn, cacheKey string, wrap, nonce int) tea.Cmd {
	return func() tea.Msg {
		md := export.BuildTurnMarkdown(turn)
		out := renderMsg{turnID: turn.ID, cacheKey: cacheKey, rendered: md, nonce: nonce}
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(config.DefaultGlamourStyle),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return out
		}
		if rendered, renderErr := r.Render(md); renderErr == nil {
			out.rendered = rendered
		}
		return out
	}
}

func (m Model) renderCacheKey(turn *panel.SelectedTurn) string {
	return fmt.Sprintf("%s|w=%d|n=%d", turn.ID, m.viewport.Width, len(turn.Timeline))
}

func (m *Model) setViewportFromRendered(rendered string, gotoTop bool) {
	content := rendered
	if m.matcher != nil {
		res := m.matcher.ApplyANSI(rendered, func(s string) string { return searchMatchStyle.Render(s) })
		content = res.Text
		m.setMatchMeta(res)
	} else {
		m.clearMatches()
	}

	m.viewport.SetContent(content)
	if gotoTop {
		m.viewport.GotoTop()
	}
}

func (m *Model) setMatchMeta(res highlight.Result) {
	if res.Count == 0 || len(res.LineIndex) == 0 {
		m.clearMatches()
		return
	}
	m.matchCount = res.Count
	m.matchLines = append(m.matchLines[:0], res.LineIndex...)
	m.matchIndex = -1
}

func (m *Model) clearMatches() {
	m.matchLines = nil
	m.matchCount = 0
	m.matchIndex = -1
}

func (m *Model) jumpToMatch(delta int) {
	if len(m.matchLines) == 0 {
		if delta > 0 {
			m.viewport.HalfViewDown()
		} else {
			m.viewport.HalfViewUp()
		}
		return
	}

	switch {
	case m.matchIndex < 0:
		m.matchIndex = 0
	case delta > 0:
		m.matchIndex = (m.matchIndex + 1) % len(m.matchLines)
	default:
		m.matchIndex = (m.matchIndex - 1 + len(m.matchLines)) % len(m.matchLines)
	}

	m.viewport.SetYOffset(m.clampViewportOffset(m.matchLines[m.matchIndex]))
	m.status = fmt.Sprintf("Match %d/%d", m.matchIndex+1, len(m.matchLines))
}

func (m *Model) clampViewportOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	maxOffset := m.viewport.TotalLineCount() - m.viewport.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if offset > maxOffset {
		return maxOffset
	}
	return offset
}

package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/text/language"

	"codex-history/internal/history"
	"codex-history/internal/logger"
)

// ErrClosed is returned for messages sent while no panel is open.
var ErrClosed = errors.New("history panel is not open")

// Message is one inbound interaction from the presentation layer.
type Message interface {
	message()
}

type Ready struct{}

type Search struct {
	Query string
}

type ClearSearch struct{}

type SelectTurn struct {
	TurnID string
}

// CopyText is forwarded to the clipboard and leaves the view untouched.
type CopyText struct {
	Text string
}

func (Ready) message()       {}
func (Search) message()      {}
func (ClearSearch) message() {}
func (SelectTurn) message()  {}
func (CopyText) message()    {}

// Settings are the user options read on every Show.
type Settings struct {
	MaxHistoryCount  int
	IncludeReasoning bool
	Locale           language.Tag
}

type IndexLoader func(ctx context.Context) (*history.Index, error)

type Copier interface {
	Copy(ctx context.Context, text string) error
}

type Options struct {
	Load     IndexLoader
	Settings func() Settings
	Copier   Copier
	// Notify is called after a successful copy.
	Notify func(text string)
}

// Manager owns the state of the single open history panel. A second Show
// while open re-reveals the same state instead of rebuilding it.
type Manager struct {
	mu    sync.Mutex
	opts  Options
	state *State
}

func NewManager(opts Options) *Manager {
	if opts.Settings == nil {
		opts.Settings = func() Settings { return Settings{} }
	}
	return &Manager{opts: opts}
}

func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != nil
}

// Show opens the panel, building the capped index, or re-reveals the open
// one with the reasoning toggle refreshed from settings.
func (m *Manager) Show(ctx context.Context) (ViewModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings := m.opts.Settings()
	if m.state != nil {
		m.state.IncludeReasoning = settings.IncludeReasoning
		m.state.Locale = settings.Locale
		return m.deriveLocked(), nil
	}

	if m.opts.Load == nil {
		return ViewModel{}, errors.New("history panel: no index loader")
	}
	idx, err := m.opts.Load(ctx)
	if err != nil {
		return ViewModel{}, fmt.Errorf("load history index: %w", err)
	}
	if idx == nil {
		idx = &history.Index{}
	}
	m.state = &State{
		Index:            history.LimitIndex(idx, settings.MaxHistoryCount),
		IncludeReasoning: settings.IncludeReasoning,
		Locale:           settings.Locale,
	}
	logger.Logger.Debug().
		Int("turns", len(m.state.Index.Turns)).
		Int("cap", settings.MaxHistoryCount).
		Msg("history panel opened")
	return m.deriveLocked(), nil
}

// Handle applies msg to the open panel and returns the re-derived view.
func (m *Manager) Handle(ctx context.Context, msg Message) (ViewModel, error) {
	m.mu.Lock()
	if m.state == nil {
		m.mu.Unlock()
		return ViewModel{}, ErrClosed
	}

	switch msg := msg.(type) {
	case Ready:
	case Search:
		m.state.AppliedQuery = NormalizeQuery(msg.Query)
	case ClearSearch:
		m.state.AppliedQuery = ""
	case SelectTurn:
		current := Derive(*m.state)
		for _, id := range current.VisibleTurnIDs() {
			if id == msg.TurnID {
				m.state.SelectedTurnID = id
				break
			}
		}
	case CopyText:
		vm := m.deriveLocked()
		m.mu.Unlock()
		return vm, m.copy(ctx, msg.Text)
	default:
		m.mu.Unlock()
		return ViewModel{}, fmt.Errorf("history panel: unknown message %T", msg)
	}
	vm := m.deriveLocked()
	m.mu.Unlock()
	return vm, nil
}

func (m *Manager) copy(ctx context.Context, text string) error {
	if m.opts.Copier == nil {
		return errors.New("history panel: no clipboard")
	}
	if err := m.opts.Copier.Copy(ctx, text); err != nil {
		return fmt.Errorf("copy text: %w", err)
	}
	if m.opts.Notify != nil {
		m.opts.Notify(text)
	}
	return nil
}

// Close drops the panel state. Later messages return ErrClosed until the
// next Show.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
}

// Snapshot returns a copy of the open state.
func (m *Manager) Snapshot() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return State{}, false
	}
	return *m.state, true
}

func (m *Manager) deriveLocked() ViewModel {
	vm := Derive(*m.state)
	m.state.SelectedTurnID = vm.SelectedTurnID()
	return vm
}

package panel

import (
	"strings"

	"github.com/rivo/uniseg"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"codex-history/internal/history"
)

// PreviewMaxChars bounds the list entry text, counted in user-perceived
// characters.
const PreviewMaxChars = 100

const previewEllipsis = "..."

// State is everything a view model is derived from. Index is shared and
// never modified by derivation.
type State struct {
	Index            *history.Index
	SelectedTurnID   string
	AppliedQuery     string
	IncludeReasoning bool
	Locale           language.Tag
}

type TurnSummary struct {
	ID             string `json:"turnId"`
	UserMessage    string `json:"userMessage"`
	DisplayMessage string `json:"displayMessage"`
	LocalTime      string `json:"localTime"`
}

type DayView struct {
	DateKey string        `json:"dateKey"`
	Turns   []TurnSummary `json:"turns"`
}

type SelectedTurn struct {
	ID                   string                 `json:"turnId"`
	SessionID            string                 `json:"sessionId"`
	FilePath             string                 `json:"filePath"`
	DateKey              string                 `json:"dateKey"`
	LocalTime            string                 `json:"localTime"`
	UserMessage          string                 `json:"userMessage"`
	UserMessageLocalTime string                 `json:"userMessageLocalTime"`
	AssistantMessages    []history.Message      `json:"assistantMessages"`
	ReasoningMessages    []history.Message      `json:"reasoningMessages"`
	Timeline             []history.TimelineItem `json:"timeline"`
}

type ViewModel struct {
	AppliedQuery string        `json:"appliedQuery"`
	Days         []DayView     `json:"days"`
	SelectedTurn *SelectedTurn `json:"selectedTurn,omitempty"`
}

// SelectedTurnID returns the resolved selection, or "" when nothing is
// visible.
func (vm ViewModel) SelectedTurnID() string {
	if vm.SelectedTurn == nil {
		return ""
	}
	return vm.SelectedTurn.ID
}

// VisibleTurnIDs lists the filtered turns in display order.
func (vm ViewModel) VisibleTurnIDs() []string {
	ids := make([]string, 0, 32)
	for _, day := range vm.Days {
		for _, t := range day.Turns {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// Derive builds the view for state from scratch. It is a pure function of
// its input.
func Derive(state State) ViewModel {
	query := NormalizeQuery(state.AppliedQuery)
	m := newMatcher(state.Locale, query)

	days := make([]DayView, 0)
	if state.Index != nil {
		for _, day := range state.Index.Days {
			var turns []TurnSummary
			for _, t := range day.Turns {
				if !m.match(t.UserMessage) {
					continue
				}
				turns = append(turns, summarize(t))
			}
			if len(turns) == 0 {
				continue
			}
			days = append(days, DayView{DateKey: day.DateKey, Turns: turns})
		}
	}

	vm := ViewModel{AppliedQuery: query, Days: days}
	selected := resolveSelection(vm.VisibleTurnIDs(), state.SelectedTurnID)
	if selected != "" {
		vm.SelectedTurn = detail(state.Index.Turn(selected), state.IncludeReasoning)
	}
	return vm
}

func NormalizeQuery(q string) string {
	return strings.TrimSpace(q)
}

func resolveSelection(visible []string, previous string) string {
	if len(visible) == 0 {
		return ""
	}
	if previous != "" {
		for _, id := range visible {
			if id == previous {
				return id
			}
		}
	}
	return visible[0]
}

type matcher struct {
	caser cases.Caser
	query string
}

func newMatcher(tag language.Tag, query string) *matcher {
	m := &matcher{caser: cases.Lower(tag)}
	if query != "" {
		m.query = m.caser.String(query)
	}
	return m
}

func (m *matcher) match(text string) bool {
	if m.query == "" {
		return true
	}
	return strings.Contains(m.caser.String(text), m.query)
}

// Matches reports whether text contains query ignoring case under the
// given locale. An empty query matches everything.
func Matches(tag language.Tag, text, query string) bool {
	return newMatcher(tag, NormalizeQuery(query)).match(text)
}

func summarize(t *history.TurnRecord) TurnSummary {
	return TurnSummary{
		ID:             t.ID,
		UserMessage:    t.UserMessage,
		DisplayMessage: Truncate(t.UserMessage, PreviewMaxChars),
		LocalTime:      t.LocalTime,
	}
}

// Truncate cuts s to at most max grapheme clusters and appends "..." when
// anything was dropped.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if uniseg.GraphemeClusterCount(s) <= max {
		return s
	}
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for n := 0; n < max && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	return b.String() + previewEllipsis
}

func detail(t *history.TurnRecord, includeReasoning bool) *SelectedTurn {
	if t == nil {
		return nil
	}
	userTime := t.UserMessageLocalTime
	if userTime == "" {
		userTime = t.LocalTime
	}
	reasoning := []history.Message{}
	if includeReasoning {
		reasoning = append(reasoning, t.ReasoningMessages...)
	}
	return &SelectedTurn{
		ID:                   t.ID,
		SessionID:            t.SessionID,
		FilePath:             t.FilePath,
		DateKey:              t.DateKey,
		LocalTime:            t.LocalTime,
		UserMessage:          t.UserMessage,
		UserMessageLocalTime: userTime,
		AssistantMessages:    append([]history.Message{}, t.AgentMessages...),
		ReasoningMessages:    reasoning,
		Timeline:             history.FilterTimeline(t.Timeline, includeReasoning),
	}
}

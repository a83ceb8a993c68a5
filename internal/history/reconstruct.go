package history

import (
	"sort"
	"strconv"
	"time"
)

type taskAccumulator struct {
	turnID        string
	run           int
	startMs       int64
	userMessage   string
	userLocalTime string
	agent         []Message
	reasoning     []Message
	responses     []Message
	nextSequence  int
}

func (t *taskAccumulator) append(list *[]Message, text string, ms int64, loc *time.Location) {
	*list = append(*list, Message{
		Text:        text,
		LocalTime:   FormatLocalTime(ms, loc),
		TimestampMs: ms,
		Sequence:    t.nextSequence,
	})
	t.nextSequence++
}

// turnResolver decides which open turn owns an event. Precedence: the
// event's own turn id, the latest turn_context id when that turn is open,
// the only open turn, otherwise nothing.
type turnResolver struct {
	latestContext string
	open          map[string]*taskAccumulator
	order         []string
}

func newTurnResolver() *turnResolver {
	return &turnResolver{open: make(map[string]*taskAccumulator)}
}

func (r *turnResolver) resolve(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if r.latestContext != "" {
		if _, ok := r.open[r.latestContext]; ok {
			return r.latestContext
		}
	}
	if len(r.open) == 1 {
		return r.order[0]
	}
	return ""
}

func (r *turnResolver) start(task *taskAccumulator) {
	if _, exists := r.open[task.turnID]; !exists {
		r.order = append(r.order, task.turnID)
	}
	r.open[task.turnID] = task
	r.latestContext = task.turnID
}

func (r *turnResolver) remove(turnID string) {
	delete(r.open, turnID)
	for i, id := range r.order {
		if id == turnID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

type reconstructor struct {
	file      RolloutFile
	sessionID string
	fallback  int64
	loc       *time.Location
	resolver  *turnResolver
	runs      map[string]int
	turns     []*TurnRecord
}

// ReconstructTurns groups one file's events into turns. modTime seeds the
// start time of turns whose task_started carries no timestamp. The result is
// sorted newest first.
func ReconstructTurns(file RolloutFile, events []Event, modTime time.Time, loc *time.Location) []*TurnRecord {
	if loc == nil {
		loc = time.Local
	}
	r := &reconstructor{
		file:      file,
		sessionID: file.SessionID(),
		fallback:  modTime.UnixMilli(),
		loc:       loc,
		resolver:  newTurnResolver(),
		runs:      make(map[string]int),
	}
	for _, evt := range events {
		r.handle(evt)
	}
	for _, id := range append([]string(nil), r.resolver.order...) {
		r.finalize(r.resolver.open[id])
		r.resolver.remove(id)
	}
	SortTurns(r.turns)
	return r.turns
}

func (r *reconstructor) handle(evt Event) {
	switch evt.Kind {
	case EventIgnored:
		return
	case EventTurnContext:
		if evt.TurnID != "" {
			r.resolver.latestContext = evt.TurnID
		}
		return
	case EventTaskStarted:
		if evt.TurnID == "" {
			return
		}
		// A restarted turn id closes the previous accumulator first so its
		// user message is not lost.
		if prev, ok := r.resolver.open[evt.TurnID]; ok {
			r.finalize(prev)
		}
		start := r.fallback
		if evt.HasTimestamp {
			start = evt.TimestampMs
		}
		r.runs[evt.TurnID]++
		r.resolver.start(&taskAccumulator{turnID: evt.TurnID, run: r.runs[evt.TurnID], startMs: start})
		return
	}

	turnID := r.resolver.resolve(evt.TurnID)
	if turnID == "" {
		return
	}
	task, ok := r.resolver.open[turnID]
	if !ok {
		return
	}

	ms := task.startMs
	if evt.HasTimestamp {
		ms = evt.TimestampMs
	}

	switch evt.Kind {
	case EventTaskComplete:
		r.finalize(task)
		r.resolver.remove(turnID)
	case EventUserMessage:
		if evt.Text != "" && task.userMessage == "" {
			task.userMessage = evt.Text
			task.userLocalTime = FormatLocalTime(ms, r.loc)
		}
	case EventAgentMessage:
		if evt.Text != "" {
			task.append(&task.agent, evt.Text, ms, r.loc)
		}
	case EventReasoning:
		if evt.Text != "" {
			task.append(&task.reasoning, evt.Text, ms, r.loc)
		}
	case EventResponseMessage:
		if evt.Text != "" {
			task.append(&task.responses, evt.Text, ms, r.loc)
		}
	}
}

func (r *reconstructor) finalize(task *taskAccumulator) {
	if task == nil || task.userMessage == "" {
		return
	}
	agent := task.agent
	if len(agent) == 0 {
		agent = task.responses
	}
	if agent == nil {
		agent = []Message{}
	}
	reasoning := task.reasoning
	if reasoning == nil {
		reasoning = []Message{}
	}
	r.turns = append(r.turns, &TurnRecord{
		ID:                   r.turnRecordID(task),
		SessionID:            r.sessionID,
		FilePath:             r.file.Path,
		TaskTurnID:           task.turnID,
		Year:                 r.file.Year,
		Month:                r.file.Month,
		Day:                  r.file.Day,
		DateKey:              r.file.DateKey(),
		LocalTime:            FormatLocalTime(task.startMs, r.loc),
		SortTimestampMs:      task.startMs,
		UserMessage:          task.userMessage,
		UserMessageLocalTime: task.userLocalTime,
		AgentMessages:        agent,
		ReasoningMessages:    reasoning,
		Timeline:             BuildTimeline(agent, reasoning),
	})
}

// turnRecordID is session:turn. A turn id started again in the same file
// gets a #n suffix so record ids stay unique.
func (r *reconstructor) turnRecordID(task *taskAccumulator) string {
	id := r.sessionID + ":" + task.turnID
	if task.run > 1 {
		id += "#" + strconv.Itoa(task.run)
	}
	return id
}

// SortTurns orders turns newest first, ties broken by id descending.
func SortTurns(turns []*TurnRecord) {
	sort.SliceStable(turns, func(i, j int) bool {
		return turnBefore(turns[i], turns[j])
	})
}

func turnBefore(a, b *TurnRecord) bool {
	if a.SortTimestampMs != b.SortTimestampMs {
		return a.SortTimestampMs > b.SortTimestampMs
	}
	return a.ID > b.ID
}

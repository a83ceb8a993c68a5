package history

import (
	"reflect"
	"testing"
	"time"
)

var testFile = RolloutFile{Path: "/s/2026/01/15/rollout-sess.jsonl", Year: "2026", Month: "01", Day: "15"}

func TestReconstructTurns_FullTurnWithReasoning(t *testing.T) {
	events := decodeLines(t,
		`{"type":"event_msg","payload":{"type":"task_started","turn_id":"turn-1"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"explain","turn_id":"turn-1"}}`,
		`{"type":"response_item","turn_id":"turn-1","payload":{"type":"reasoning","summary":[{"text":"r1"}]}}`,
		`{"type":"event_msg","payload":{"type":"agent_message","message":"a1","turn_id":"turn-1"}}`,
		`{"type":"response_item","turn_id":"turn-1","payload":{"type":"reasoning","summary":[{"text":"r2"}]}}`,
		`{"type":"event_msg","payload":{"type":"agent_message","message":"a2","turn_id":"turn-1"}}`,
		`{"type":"event_msg","payload":{"type":"task_complete","turn_id":"turn-1"}}`,
	)
	mod := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	turns := ReconstructTurns(testFile, events, mod, time.UTC)
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	turn := turns[0]
	if turn.ID != "sess:turn-1" || turn.SessionID != "sess" || turn.TaskTurnID != "turn-1" {
		t.Fatalf("unexpected identity: %#v", turn)
	}
	if turn.DateKey != "2026/01/15" || turn.FilePath != testFile.Path {
		t.Fatalf("unexpected location: %q %q", turn.DateKey, turn.FilePath)
	}
	if turn.SortTimestampMs != mod.UnixMilli() || turn.LocalTime != "[8:00:00]" {
		t.Fatalf("expected mtime fallback start, got %d %q", turn.SortTimestampMs, turn.LocalTime)
	}
	if turn.UserMessage != "explain" || turn.UserMessageLocalTime != "[8:00:00]" {
		t.Fatalf("user message=%q at %q", turn.UserMessage, turn.UserMessageLocalTime)
	}
	if got := texts(turn.AgentMessages); !reflect.DeepEqual(got, []string{"a1", "a2"}) {
		t.Fatalf("agent=%v", got)
	}
	if got := texts(turn.ReasoningMessages); !reflect.DeepEqual(got, []string{"r1", "r2"}) {
		t.Fatalf("reasoning=%v", got)
	}
	if len(turn.Timeline) != 4 {
		t.Fatalf("timeline len=%d", len(turn.Timeline))
	}
	var order []string
	for _, item := range turn.Timeline {
		order = append(order, string(item.Kind)+":"+item.Message)
	}
	want := []string{"reasoning:r1", "assistant:a1", "reasoning:r2", "assistant:a2"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("timeline order=%v want=%v", order, want)
	}
}

func TestReconstructTurns_SingleOpenTurnFallback(t *testing.T) {
	events := decodeLines(t,
		`{"timestamp":"2026-01-15T10:00:00Z","type":"event_msg","payload":{"type":"task_started","turn_id":"turn-1"}}`,
		`{"timestamp":"2026-01-15T10:00:01Z","type":"event_msg","payload":{"type":"user_message","message":"hello"}}`,
		`{"timestamp":"2026-01-15T10:00:02Z","type":"response_item","payload":{"type":"reasoning","summary":[{"text":"hmm"}]}}`,
		`{"timestamp":"2026-01-15T10:00:03Z","type":"event_msg","payload":{"type":"agent_message","message":"hi there"}}`,
		`{"timestamp":"2026-01-15T10:00:04Z","type":"event_msg","payload":{"type":"task_complete","turn_id":"turn-1"}}`,
	)
	turns := ReconstructTurns(testFile, events, time.Time{}, time.UTC)
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	turn := turns[0]
	if turn.UserMessage != "hello" || turn.UserMessageLocalTime != "[10:00:01]" {
		t.Fatalf("user=%q at %q", turn.UserMessage, turn.UserMessageLocalTime)
	}
	if len(turn.AgentMessages) != 1 || turn.AgentMessages[0].LocalTime != "[10:00:03]" {
		t.Fatalf("agent=%#v", turn.AgentMessages)
	}
	if len(turn.ReasoningMessages) != 1 {
		t.Fatalf("reasoning=%#v", turn.ReasoningMessages)
	}
	if turn.LocalTime != "[10:00:00]" {
		t.Fatalf("start=%q", turn.LocalTime)
	}
}

func TestReconstructTurns_TurnContextRoutesInterleavedTurns(t *testing.T) {
	events := decodeLines(t,
		`{"type":"event_msg","payload":{"type":"task_started","turn_id":"a"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"first"}}`,
		`{"type":"event_msg","payload":{"type":"task_started","turn_id":"b"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"second"}}`,
		`{"type":"turn_context","turn_id":"a"}`,
		`{"type":"event_msg","payload":{"type":"agent_message","message":"reply a"}}`,
		`{"type":"turn_context","turn_id":"b"}`,
		`{"type":"event_msg","payload":{"type":"agent_message","message":"reply b"}}`,
	)
	turns := ReconstructTurns(testFile, events, time.Unix(100, 0), time.UTC)
	byID := map[string]*TurnRecord{}
	for _, tr := range turns {
		byID[tr.TaskTurnID] = tr
	}
	if byID["a"] == nil || byID["b"] == nil {
		t.Fatalf("expected both turns finalized at EOF, got %v", turnIDs(turns))
	}
	if byID["a"].UserMessage != "first" || texts(byID["a"].AgentMessages)[0] != "reply a" {
		t.Fatalf("turn a=%#v", byID["a"])
	}
	if byID["b"].UserMessage != "second" || texts(byID["b"].AgentMessages)[0] != "reply b" {
		t.Fatalf("turn b=%#v", byID["b"])
	}
}

func TestReconstructTurns_UnattributableEventsDropped(t *testing.T) {
	events := decodeLines(t,
		`{"type":"event_msg","payload":{"type":"task_started","turn_id":"a"}}`,
		`{"type":"event_msg","payload":{"type":"task_started","turn_id":"b"}}`,
		`{"type":"turn_context","turn_id":"closed"}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"whose?"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"ghost","turn_id":"zzz"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"for a","turn_id":"a"}}`,
		`{"type":"event_msg","payload":{"type":"agent_message","message":"stray","turn_id":"zzz"}}`,
		`{"type":"event_msg","payload":{"type":"task_complete","turn_id":"a"}}`,
	)
	turns := ReconstructTurns(testFile, events, time.Unix(100, 0), time.UTC)
	if len(turns) != 1 {
		t.Fatalf("expected only turn a, got %v", turnIDs(turns))
	}
	if turns[0].UserMessage != "for a" || len(turns[0].AgentMessages) != 0 {
		t.Fatalf("unexpected turn a: %#v", turns[0])
	}
}

func TestReconstructTurns_DiscardsTurnsWithoutUserMessage(t *testing.T) {
	events := decodeLines(t,
		`{"type":"event_msg","payload":{"type":"task_started","turn_id":"a"}}`,
		`{"type":"event_msg","payload":{"type":"agent_message","message":"orphan"}}`,
		`{"type":"event_msg","payload":{"type":"task_complete","turn_id":"a"}}`,
		`{"type":"event_msg","payload":{"type":"task_started","turn_id":"b"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"unanswered"}}`,
	)
	turns := ReconstructTurns(testFile, events, time.Unix(100, 0), time.UTC)
	if len(turns) != 1 || turns[0].TaskTurnID != "b" {
		t.Fatalf("expected only unanswered turn b, got %v", turnIDs(turns))
	}
	if len(turns[0].AgentMessages) != 0 || len(turns[0].Timeline) != 0 {
		t.Fatalf("expected no replies, got %#v", turns[0])
	}
}

func TestReconstructTurns_KeepsFirstUserMessage(t *testing.T) {
	events := decodeLines(t,
		`{"type":"event_msg","payload":{"type":"task_started","turn_id":"a"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":""}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"one"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"two"}}`,
	)
	turns := ReconstructTurns(testFile, events, time.Unix(100, 0), time.UTC)
	if len(turns) != 1 || turns[0].UserMessage != "one" {
		t.Fatalf("unexpected turns: %#v", turns)
	}
}

func TestReconstructTurns_ResponseMessagesBackfillAssistant(t *testing.T) {
	events := decodeLines(t,
		`{"type":"event_msg","payload":{"type":"task_started","turn_id":"old"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"q"}}`,
		`{"type":"response_item","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"from response"}]}}`,
		`{"type":"event_msg","payload":{"type":"task_complete","turn_id":"old"}}`,
		`{"type":"event_msg","payload":{"type":"task_started","turn_id":"new"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"q2"}}`,
		`{"type":"response_item","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"dup"}]}}`,
		`{"type":"event_msg","payload":{"type":"agent_message","message":"dup"}}`,
		`{"type":"event_msg","payload":{"type":"task_complete","turn_id":"new"}}`,
	)
	turns := ReconstructTurns(testFile, events, time.Unix(100, 0), time.UTC)
	byID := map[string]*TurnRecord{}
	for _, tr := range turns {
		byID[tr.TaskTurnID] = tr
	}
	if got := texts(byID["old"].AgentMessages); !reflect.DeepEqual(got, []string{"from response"}) {
		t.Fatalf("old agent=%v", got)
	}
	if got := texts(byID["new"].AgentMessages); !reflect.DeepEqual(got, []string{"dup"}) {
		t.Fatalf("new agent should not duplicate response text, got %v", got)
	}
}

func TestReconstructTurns_RestartedTurnIDKeepsEarlierTurn(t *testing.T) {
	events := decodeLines(t,
		`{"timestamp":1000,"type":"event_msg","payload":{"type":"task_started","turn_id":"a"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"first"}}`,
		`{"timestamp":2000,"type":"event_msg","payload":{"type":"task_started","turn_id":"a"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"second"}}`,
	)
	turns := ReconstructTurns(testFile, events, time.Unix(100, 0), time.UTC)
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].UserMessage != "second" || turns[1].UserMessage != "first" {
		t.Fatalf("unexpected order: %q, %q", turns[0].UserMessage, turns[1].UserMessage)
	}
	if got := turnIDs(turns); !reflect.DeepEqual(got, []string{"sess:a#2", "sess:a"}) {
		t.Fatalf("ids=%v", got)
	}
	for _, turn := range turns {
		if turn.TaskTurnID != "a" {
			t.Fatalf("task turn id=%q", turn.TaskTurnID)
		}
	}

	idx := &Index{Turns: turns, Days: groupDays(turns)}
	if got := idx.Turn("sess:a"); got == nil || got.UserMessage != "first" {
		t.Fatalf("lookup of earlier turn returned %#v", got)
	}
}

func TestReconstructTurns_CompletedTurnIDStartedAgain(t *testing.T) {
	events := decodeLines(t,
		`{"timestamp":1000,"type":"event_msg","payload":{"type":"task_started","turn_id":"a"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"first","turn_id":"a"}}`,
		`{"type":"event_msg","payload":{"type":"task_complete","turn_id":"a"}}`,
		`{"timestamp":2000,"type":"event_msg","payload":{"type":"task_started","turn_id":"a"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"second","turn_id":"a"}}`,
		`{"type":"event_msg","payload":{"type":"task_complete","turn_id":"a"}}`,
	)
	turns := ReconstructTurns(testFile, events, time.Unix(100, 0), time.UTC)
	if got := turnIDs(turns); !reflect.DeepEqual(got, []string{"sess:a#2", "sess:a"}) {
		t.Fatalf("ids=%v", got)
	}
}

func TestReconstructTurns_SortedNewestFirstWithIDTieBreak(t *testing.T) {
	events := decodeLines(t,
		`{"timestamp":5000,"type":"event_msg","payload":{"type":"task_started","turn_id":"a"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"x","turn_id":"a"}}`,
		`{"timestamp":5000,"type":"event_msg","payload":{"type":"task_started","turn_id":"b"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"y","turn_id":"b"}}`,
		`{"timestamp":9000,"type":"event_msg","payload":{"type":"task_started","turn_id":"c"}}`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"z","turn_id":"c"}}`,
	)
	turns := ReconstructTurns(testFile, events, time.Unix(100, 0), time.UTC)
	want := []string{"sess:c", "sess:b", "sess:a"}
	if got := turnIDs(turns); !reflect.DeepEqual(got, want) {
		t.Fatalf("order=%v want=%v", got, want)
	}
}

func TestTurnResolver(t *testing.T) {
	r := newTurnResolver()
	if got := r.resolve(""); got != "" {
		t.Fatalf("empty resolver resolved %q", got)
	}
	r.start(&taskAccumulator{turnID: "a"})
	if got := r.resolve(""); got != "a" {
		t.Fatalf("single open turn: got %q", got)
	}
	r.start(&taskAccumulator{turnID: "b"})
	if got := r.resolve(""); got != "b" {
		t.Fatalf("latest context should win: got %q", got)
	}
	r.latestContext = "gone"
	if got := r.resolve(""); got != "" {
		t.Fatalf("ambiguous open turns should not resolve, got %q", got)
	}
	if got := r.resolve("explicit"); got != "explicit" {
		t.Fatalf("explicit id should win, got %q", got)
	}
	r.remove("b")
	if got := r.resolve(""); got != "a" {
		t.Fatalf("after removal only a is open, got %q", got)
	}
}

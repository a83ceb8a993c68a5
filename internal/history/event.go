package history

import (
	"encoding/json"
	"strings"
)

type EventKind int

const (
	EventIgnored EventKind = iota
	EventTurnContext
	EventTaskStarted
	EventTaskComplete
	EventUserMessage
	EventAgentMessage
	EventReasoning
	// EventResponseMessage is an assistant response_item message. It only
	// backs the assistant list of turns that never saw an agent_message.
	EventResponseMessage
)

func (k EventKind) String() string {
	switch k {
	case EventTurnContext:
		return "turn_context"
	case EventTaskStarted:
		return "task_started"
	case EventTaskComplete:
		return "task_complete"
	case EventUserMessage:
		return "user_message"
	case EventAgentMessage:
		return "agent_message"
	case EventReasoning:
		return "reasoning"
	case EventResponseMessage:
		return "response_message"
	default:
		return "ignored"
	}
}

// Event is one classified rollout line. Text is only set for message kinds.
type Event struct {
	Kind         EventKind
	TurnID       string
	TimestampMs  int64
	HasTimestamp bool
	Text         string
}

func parseEventLine(line []byte) (Event, bool) {
	var v any
	if err := json.Unmarshal(line, &v); err != nil {
		return Event{}, false
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return Event{}, false
	}
	return classifyEvent(obj), true
}

func classifyEvent(obj map[string]any) Event {
	payload, _ := obj["payload"].(map[string]any)
	rootType, _ := obj["type"].(string)
	payloadType, _ := payload["type"].(string)

	evt := Event{TurnID: extractTurnID(obj, payload)}
	evt.TimestampMs, evt.HasTimestamp = parseTimestampMs(obj["timestamp"])

	switch {
	case rootType == "turn_context":
		evt.Kind = EventTurnContext
	case payloadType == "task_complete":
		evt.Kind = EventTaskComplete
	case rootType == "event_msg" && payloadType == "task_started":
		evt.Kind = EventTaskStarted
	case rootType == "event_msg" && payloadType == "user_message":
		evt.Kind = EventUserMessage
		evt.Text = extractText(payload["message"])
	case rootType == "event_msg" && payloadType == "agent_message":
		evt.Kind = EventAgentMessage
		evt.Text = firstText(payload["message"], payload["content"])
	case rootType == "response_item" && payloadType == "reasoning":
		evt.Kind = EventReasoning
		evt.Text = firstText(payload["summary"], payload["content"], payload["message"])
	case rootType == "response_item" && payloadType == "message":
		if role, _ := payload["role"].(string); role != "assistant" {
			return Event{}
		}
		evt.Kind = EventResponseMessage
		evt.Text = extractText(payload["content"])
	}
	return evt
}

func extractTurnID(obj, payload map[string]any) string {
	if s, ok := obj["turn_id"].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	if s, ok := payload["turn_id"].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return ""
}

package history

// Message is one assistant or reasoning fragment captured for a turn.
// Sequence is the append order within the turn and breaks timestamp ties.
type Message struct {
	Text        string `json:"text"`
	LocalTime   string `json:"localTime"`
	TimestampMs int64  `json:"timestampMs"`
	Sequence    int    `json:"sequence"`
}

type TimelineKind string

const (
	KindAssistant TimelineKind = "assistant"
	KindReasoning TimelineKind = "reasoning"
)

type TimelineItem struct {
	Kind            TimelineKind `json:"kind"`
	Message         string       `json:"message"`
	LocalTime       string       `json:"localTime"`
	SortTimestampMs int64        `json:"sortTimestampMs"`
	Sequence        int          `json:"sequence"`
}

// TurnRecord is one finalized exchange. Records are shared between the flat
// turn list and the day buckets and must not be mutated after the build.
type TurnRecord struct {
	ID                   string         `json:"turnId"`
	SessionID            string         `json:"sessionId"`
	FilePath             string         `json:"filePath"`
	TaskTurnID           string         `json:"taskTurnId"`
	Year                 string         `json:"year"`
	Month                string         `json:"month"`
	Day                  string         `json:"day"`
	DateKey              string         `json:"dateKey"`
	LocalTime            string         `json:"localTime"`
	SortTimestampMs      int64          `json:"sortTimestampMs"`
	UserMessage          string         `json:"userMessage"`
	UserMessageLocalTime string         `json:"userMessageLocalTime"`
	AgentMessages        []Message      `json:"agentMessages"`
	ReasoningMessages    []Message      `json:"reasoningMessages"`
	Timeline             []TimelineItem `json:"timeline"`
}

type DayNode struct {
	DateKey string        `json:"dateKey"`
	Year    string        `json:"year"`
	Month   string        `json:"month"`
	Day     string        `json:"day"`
	Turns   []*TurnRecord `json:"turns"`
}

type SkippedFile struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// Index is a read-only snapshot: Turns is newest-first across all files and
// Days is ordered by date descending.
type Index struct {
	Days    []DayNode     `json:"days"`
	Turns   []*TurnRecord `json:"turns"`
	Skipped []SkippedFile `json:"skipped,omitempty"`
}

// Turn returns the record with the given id from the full turn list.
func (x *Index) Turn(id string) *TurnRecord {
	if x == nil || id == "" {
		return nil
	}
	for _, t := range x.Turns {
		if t.ID == id {
			return t
		}
	}
	return nil
}

package history

import "sort"

// BuildTimeline merges assistant and reasoning messages by timestamp, using
// the append sequence when timestamps tie.
func BuildTimeline(assistant, reasoning []Message) []TimelineItem {
	items := make([]TimelineItem, 0, len(assistant)+len(reasoning))
	for _, m := range assistant {
		items = append(items, timelineItem(KindAssistant, m))
	}
	for _, m := range reasoning {
		items = append(items, timelineItem(KindReasoning, m))
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].SortTimestampMs != items[j].SortTimestampMs {
			return items[i].SortTimestampMs < items[j].SortTimestampMs
		}
		return items[i].Sequence < items[j].Sequence
	})
	return items
}

func timelineItem(kind TimelineKind, m Message) TimelineItem {
	return TimelineItem{
		Kind:            kind,
		Message:         m.Text,
		LocalTime:       m.LocalTime,
		SortTimestampMs: m.TimestampMs,
		Sequence:        m.Sequence,
	}
}

// FilterTimeline drops reasoning items unless includeReasoning is set. The
// input is never modified.
func FilterTimeline(items []TimelineItem, includeReasoning bool) []TimelineItem {
	out := make([]TimelineItem, 0, len(items))
	for _, item := range items {
		if item.Kind == KindReasoning && !includeReasoning {
			continue
		}
		out = append(out, item)
	}
	return out
}

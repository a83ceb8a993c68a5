package history

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// extractText unwraps a loosely shaped message value: strings pass through,
// arrays join their non-empty parts with newlines, and objects are probed
// as text, message, content, parts in that order.
func extractText(v any) string {
	s, _ := lookupText(v)
	return s
}

// lookupText is extractText that also reports whether v held text at all.
// An empty string counts as present; an array with no text does not.
func lookupText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, _ := lookupText(item); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, "\n"), true
	case map[string]any:
		if s, ok := t["text"].(string); ok {
			return s, true
		}
		if s, ok := t["message"].(string); ok {
			return s, true
		}
		switch c := t["content"].(type) {
		case string:
			return c, true
		case []any:
			return lookupText(c)
		}
		if p, ok := t["parts"].([]any); ok {
			return lookupText(p)
		}
	}
	return "", false
}

// firstText returns the text of the first candidate that holds any, even
// when that text is empty.
func firstText(candidates ...any) string {
	for _, c := range candidates {
		if s, ok := lookupText(c); ok {
			return s
		}
	}
	return ""
}

// Timestamp layouts in the order they are tried. Zoned forms carry their
// own offset, date-time forms without one are local time, and date-only
// forms are UTC midnight. Fractional seconds are accepted after any seconds
// field.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04Z07:00",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
	dateLayouts = []string{
		"2006-01-02",
		"2006-01",
		"2006",
	}
)

// parseTimestampMs accepts epoch milliseconds or an ISO-8601 string.
func parseTimestampMs(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int64(t), true
	case string:
		if ts, ok := parseTimestampString(strings.TrimSpace(t)); ok {
			return ts.UnixMilli(), true
		}
	}
	return 0, false
}

func parseTimestampString(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	for _, layout := range localLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, true
		}
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// FormatLocalTime renders epoch milliseconds as [H:mm:ss] in loc.
func FormatLocalTime(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t := time.UnixMilli(ms).In(loc)
	return fmt.Sprintf("[%d:%02d:%02d]", t.Hour(), t.Minute(), t.Second())
}

package history

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDiscoverRollouts_RequiresDateLayout(t *testing.T) {
	root := t.TempDir()
	good := writeRollout(t, root, "2026/02/15/rollout-a.jsonl", `{}`)
	writeRollout(t, root, "2026/2/15/rollout-x.jsonl", `{}`)
	writeRollout(t, root, "26/02/15/rollout-y.jsonl", `{}`)
	writeRollout(t, root, "2026/02/15/extra/rollout-z.jsonl", `{}`)
	writeRollout(t, root, "2026/02/rollout-shallow.jsonl", `{}`)
	writeRollout(t, root, "2026/02/15/notes.jsonl", `{}`)
	writeRollout(t, root, "2026/02/15/rollout-b.json", `{}`)

	files, err := DiscoverRollouts(root)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 rollout, got %d: %#v", len(files), files)
	}
	got := files[0]
	if got.Path != good || got.Year != "2026" || got.Month != "02" || got.Day != "15" {
		t.Fatalf("unexpected rollout: %#v", got)
	}
	if got.DateKey() != "2026/02/15" {
		t.Fatalf("dateKey=%q", got.DateKey())
	}
}

func TestDiscoverRollouts_MissingRoot(t *testing.T) {
	files, err := DiscoverRollouts(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("expected no error for missing root, got %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %d", len(files))
	}
}

func TestSessionIDFromFileName(t *testing.T) {
	f := RolloutFile{Path: "/x/2025/11/27/rollout-2025-11-27T09-23-19-abc.jsonl"}
	if got := f.SessionID(); got != "2025-11-27T09-23-19-abc" {
		t.Fatalf("session id=%q", got)
	}
}

func TestReadEvents_SkipsMalformedLines(t *testing.T) {
	root := t.TempDir()
	path := writeRollout(t, root, "2026/01/02/rollout-m.jsonl",
		`{"type":"event_msg","payload":{"type":"task_started","turn_id":"t1"}}`,
		`not json`,
		``,
		`   `,
		`[1,2,3]`,
		`"just a string"`,
		`{"type":"event_msg","payload":{"type":"user_message","message":"hi"}}`,
		`{"type":"event_msg","payload":{"type":"agent_message","message":"hel`,
	)

	events, modTime, err := ReadEvents(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if modTime.IsZero() {
		t.Fatal("expected file modification time")
	}
	kinds := make([]EventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	want := []EventKind{EventTaskStarted, EventUserMessage}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("kinds=%v want=%v", kinds, want)
	}
}

func TestReadEvents_HandlesCRLF(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "rollout-crlf.jsonl")
	data := "{\"type\":\"turn_context\",\"turn_id\":\"t1\"}\r\n{\"type\":\"turn_context\",\"turn_id\":\"t2\"}"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	events, _, err := ReadEvents(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 2 || events[1].TurnID != "t2" {
		t.Fatalf("unexpected events: %#v", events)
	}
}

func TestReadEvents_MissingFile(t *testing.T) {
	if _, _, err := ReadEvents(filepath.Join(t.TempDir(), "gone.jsonl")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

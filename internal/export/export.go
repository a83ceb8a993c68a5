package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"codex-history/internal/history"
	"codex-history/internal/panel"
)

type Exporter struct {
	dir string
	now func() time.Time
}

// New returns an exporter writing under dir, resolved against the working
// directory when relative.
func New(dir string) (*Exporter, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = filepath.Join("docs", "codex")
	}
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve cwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}
	return &Exporter{dir: dir, now: time.Now}, nil
}

func (e *Exporter) Dir() string { return e.dir }

func (e *Exporter) Export(turn *panel.SelectedTurn) (string, error) {
	if turn == nil {
		return "", fmt.Errorf("export: no turn selected")
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(e.dir, safeFileName(turn.ID)+".md")
	md := BuildDocument(turn, e.now().UTC())
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

// BuildDocument is the exported file: a header block followed by the turn.
func BuildDocument(turn *panel.SelectedTurn, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Codex turn " + turn.ID + "\n\n")
	b.WriteString("Exported: " + now.Format(time.RFC3339) + "\n\n")
	b.WriteString("```text\n")
	b.WriteString("session: " + safeValue(turn.SessionID) + "\n")
	b.WriteString("date: " + safeValue(turn.DateKey) + "\n")
	b.WriteString("started: " + safeValue(turn.LocalTime) + "\n")
	b.WriteString("source: " + safeValue(turn.FilePath) + "\n")
	b.WriteString("```\n\n")
	b.WriteString(BuildTurnMarkdown(turn))
	return b.String()
}

// BuildTurnMarkdown renders the user message and the timeline. It backs
// the detail pane, the copy payload and the exported file.
func BuildTurnMarkdown(turn *panel.SelectedTurn) string {
	if turn == nil {
		return ""
	}
	var b strings.Builder
	if user := SanitizeUserMessage(turn.UserMessage); user != "" {
		b.WriteString("## You " + turn.UserMessageLocalTime + "\n\n")
		b.WriteString(user + "\n\n")
	}
	for _, item := range turn.Timeline {
		content := strings.TrimSpace(item.Message)
		if content == "" {
			continue
		}
		switch item.Kind {
		case history.KindReasoning:
			b.WriteString("### Reasoning " + item.LocalTime + "\n\n")
			for _, line := range strings.Split(content, "\n") {
				b.WriteString(strings.TrimRight("> "+line, " ") + "\n")
			}
			b.WriteString("\n")
		default:
			b.WriteString("## Codex " + item.LocalTime + "\n\n")
			b.WriteString(content + "\n\n")
		}
	}
	if len(turn.Timeline) == 0 {
		b.WriteString("_No reply recorded for this turn._\n")
	}
	return strings.TrimSpace(b.String()) + "\n"
}

// SanitizeUserMessage drops the AGENTS.md preamble Codex prepends to the
// first prompt of a session, keeping structured blocks only while the
// referenced AGENTS.md still exists.
func SanitizeUserMessage(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	if strings.Contains(strings.ToLower(content), "<instructions>") {
		return stripStaleStructuredAgentsBlock(content)
	}
	return strings.TrimSpace(strings.Join(dropAgentsHeadings(strings.Split(content, "\n")), "\n"))
}

var (
	agentsHeadingLineRe = regexp.MustCompile(`(?i)^[\s#>*` + "`" + `-]*agents\.md instructions for\b`)
	instructionsBlockRe = regexp.MustCompile(`(?is)<instructions>.*?</instructions>`)
)

func isAgentsHeadingLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && agentsHeadingLineRe.MatchString(trimmed)
}

func dropAgentsHeadings(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if isAgentsHeadingLine(line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

func stripStaleStructuredAgentsBlock(content string) string {
	path, ok := agentsPathFromContent(content)
	if !ok || agentsFileExists(path) {
		return content
	}
	joined := strings.Join(dropAgentsHeadings(strings.Split(content, "\n")), "\n")
	return strings.TrimSpace(instructionsBlockRe.ReplaceAllString(joined, ""))
}

func agentsPathFromContent(content string) (string, bool) {
	const marker = "agents.md instructions for"
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if !isAgentsHeadingLine(trimmed) {
			continue
		}
		idx := strings.Index(strings.ToLower(trimmed), marker)
		if idx < 0 {
			continue
		}
		path := strings.Trim(strings.TrimSpace(trimmed[idx+len(marker):]), "`'\"")
		if path == "" {
			return "", false
		}
		return path, true
	}
	return "", false
}

func agentsFileExists(dir string) bool {
	st, err := os.Stat(filepath.Join(dir, "AGENTS.md"))
	return err == nil && !st.IsDir()
}

func safeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "turn"
	}
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_").Replace(s)
}

func safeValue(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "n/a"
	}
	return s
}

package highlight

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var ansiCSI = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)

type Result struct {
	Text      string
	Count     int
	LineIndex []int
}

// Matcher finds case-insensitive occurrences of one query. A run of text
// matches when it equals the query under simple case folding or when its
// lowercase form under the locale equals the lowercased query.
type Matcher struct {
	query      string
	lowerQuery string
	caser      cases.Caser
}

func NewMatcher(tag language.Tag, query string) *Matcher {
	m := &Matcher{query: strings.TrimSpace(query), caser: cases.Lower(tag)}
	if m.query != "" {
		m.lowerQuery = m.caser.String(m.query)
	}
	return m
}

// ApplyANSI wraps every case-insensitive occurrence of query in input.
// Escape sequences are left intact and matches never span them.
func ApplyANSI(input, query string, wrap func(string) string) Result {
	return NewMatcher(language.Und, query).ApplyANSI(input, wrap)
}

// Plain wraps case-insensitive matches of query in s, which must not
// contain escape sequences.
func Plain(s, query string, wrap func(string) string) (string, int) {
	return NewMatcher(language.Und, query).Plain(s, wrap)
}

func (m *Matcher) ApplyANSI(input string, wrap func(string) string) Result {
	if m.query == "" {
		return Result{Text: input}
	}
	if wrap == nil {
		wrap = func(s string) string { return s }
	}

	var out strings.Builder
	lineMatches := make([]int, 0, 16)
	total := 0

	for lineNo, line := range strings.SplitAfter(input, "\n") {
		core, hasNewline := strings.CutSuffix(line, "\n")
		rendered, count := m.applyToANSIText(core, wrap)
		out.WriteString(rendered)
		if hasNewline {
			out.WriteByte('\n')
		}
		if count > 0 {
			lineMatches = append(lineMatches, lineNo)
			total += count
		}
	}

	return Result{Text: out.String(), Count: total, LineIndex: lineMatches}
}

func (m *Matcher) applyToANSIText(s string, wrap func(string) string) (string, int) {
	indices := ansiCSI.FindAllStringIndex(s, -1)
	if len(indices) == 0 {
		return m.Plain(s, wrap)
	}

	var out strings.Builder
	total := 0
	pos := 0
	for _, idx := range indices {
		if idx[0] > pos {
			plain, count := m.Plain(s[pos:idx[0]], wrap)
			out.WriteString(plain)
			total += count
		}
		out.WriteString(s[idx[0]:idx[1]])
		pos = idx[1]
	}
	if pos < len(s) {
		plain, count := m.Plain(s[pos:], wrap)
		out.WriteString(plain)
		total += count
	}
	return out.String(), total
}

// Plain is matching over text without escape sequences. It walks rune by
// rune so multi-byte text is never split.
func (m *Matcher) Plain(s string, wrap func(string) string) (string, int) {
	if s == "" || m.query == "" {
		return s, 0
	}
	if wrap == nil {
		wrap = func(s string) string { return s }
	}

	var out strings.Builder
	count := 0
	last := 0
	for i := 0; i < len(s); {
		if n := m.matchAt(s[i:]); n > 0 {
			out.WriteString(s[last:i])
			out.WriteString(wrap(s[i : i+n]))
			count++
			i += n
			last = i
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	if count == 0 {
		return s, 0
	}
	out.WriteString(s[last:])
	return out.String(), count
}

func (m *Matcher) matchAt(s string) int {
	if n := foldPrefix(s, m.query); n > 0 {
		return n
	}
	return m.lowerPrefix(s)
}

// lowerPrefix grows a prefix of s rune by rune until its lowercase form
// equals the lowered query or stops being a prefix of it.
func (m *Matcher) lowerPrefix(s string) int {
	if m.lowerQuery == "" {
		return 0
	}
	for end := 0; end < len(s); {
		_, size := utf8.DecodeRuneInString(s[end:])
		end += size
		lowered := m.caser.String(s[:end])
		if lowered == m.lowerQuery {
			return end
		}
		if !strings.HasPrefix(m.lowerQuery, lowered) {
			return 0
		}
	}
	return 0
}

// foldPrefix returns the byte length of the prefix of s that equals query
// under simple case folding, or 0.
func foldPrefix(s, query string) int {
	pos := 0
	for _, qr := range query {
		if pos >= len(s) {
			return 0
		}
		sr, size := utf8.DecodeRuneInString(s[pos:])
		if !equalFoldRune(sr, qr) {
			return 0
		}
		pos += size
	}
	return pos
}

func equalFoldRune(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}

package history

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	rolloutNameRe = regexp.MustCompile(`^rollout-.*\.jsonl$`)
	yearRe        = regexp.MustCompile(`^\d{4}$`)
	twoDigitRe    = regexp.MustCompile(`^\d{2}$`)
)

// RolloutFile is a session log found at <root>/<YYYY>/<MM>/<DD>/rollout-*.jsonl.
type RolloutFile struct {
	Path  string
	Year  string
	Month string
	Day   string
}

func (f RolloutFile) DateKey() string {
	return f.Year + "/" + f.Month + "/" + f.Day
}

// SessionID is the file name without the rollout- prefix and .jsonl suffix.
func (f RolloutFile) SessionID() string {
	base := strings.TrimSuffix(filepath.Base(f.Path), ".jsonl")
	return strings.TrimPrefix(base, "rollout-")
}

// DiscoverRollouts walks root and returns every rollout file sitting exactly
// three date directories below it. A missing root yields no files.
func DiscoverRollouts(root string) ([]RolloutFile, error) {
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat sessions root: %w", err)
	}

	files := make([]RolloutFile, 0, 64)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, the rest of the walk continues.
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || !rolloutNameRe.MatchString(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		segments := strings.Split(rel, string(filepath.Separator))
		if len(segments) != 4 {
			return nil
		}
		year, month, day := segments[0], segments[1], segments[2]
		if !yearRe.MatchString(year) || !twoDigitRe.MatchString(month) || !twoDigitRe.MatchString(day) {
			return nil
		}
		files = append(files, RolloutFile{Path: path, Year: year, Month: month, Day: day})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk sessions root: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// ReadEvents parses every non-blank line of path. Lines that are not JSON
// objects are dropped; only I/O failures are returned.
func ReadEvents(path string) ([]Event, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("stat %s: %w", path, err)
	}

	events, err := decodeEvents(f)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read %s: %w", path, err)
	}
	return events, stat.ModTime(), nil
}

func decodeEvents(r io.Reader) ([]Event, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	events := make([]Event, 0, 128)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.TrimSpace(line)
			if len(line) > 0 {
				if evt, ok := parseEventLine(line); ok {
					events = append(events, evt)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return events, nil
			}
			return nil, err
		}
	}
}

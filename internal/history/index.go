package history

import (
	"context"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"codex-history/internal/logger"
)

type BuildOptions struct {
	// Location renders local-time labels. Defaults to time.Local.
	Location *time.Location
	// Workers bounds concurrent file parsing. Defaults to GOMAXPROCS.
	Workers int
}

type fileResult struct {
	turns []*TurnRecord
	err   error
}

// BuildIndex scans sessionsRoot and aggregates every file's turns into one
// snapshot. Files that cannot be read are recorded in Index.Skipped and do
// not stop the scan. Only context cancellation returns an error.
func BuildIndex(ctx context.Context, sessionsRoot string, opts BuildOptions) (*Index, error) {
	files, err := DiscoverRollouts(sessionsRoot)
	if err != nil {
		logger.Logger.Warn().Err(err).Str("root", sessionsRoot).Msg("discover rollouts")
		return &Index{Days: []DayNode{}, Turns: []*TurnRecord{}}, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			events, modTime, err := ReadEvents(file.Path)
			if err != nil {
				results[i] = fileResult{err: err}
				return nil
			}
			results[i] = fileResult{turns: ReconstructTurns(file, events, modTime, opts.Location)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	turns := make([]*TurnRecord, 0, len(files)*4)
	var skipped []SkippedFile
	for i, res := range results {
		if res.err != nil {
			logger.Logger.Warn().Err(res.err).Str("path", files[i].Path).Msg("skip unreadable rollout")
			skipped = append(skipped, SkippedFile{Path: files[i].Path, Err: res.err})
			continue
		}
		turns = append(turns, res.turns...)
	}
	SortTurns(turns)

	logger.Logger.Debug().
		Int("files", len(files)).
		Int("turns", len(turns)).
		Int("skipped", len(skipped)).
		Msg("history index built")

	return &Index{Days: groupDays(turns), Turns: turns, Skipped: skipped}, nil
}

// groupDays buckets turns by date key. Keys are fixed-width YYYY/MM/DD, so a
// plain string comparison orders them numerically.
func groupDays(turns []*TurnRecord) []DayNode {
	byKey := make(map[string]int)
	days := make([]DayNode, 0, 16)
	for _, t := range turns {
		idx, ok := byKey[t.DateKey]
		if !ok {
			idx = len(days)
			byKey[t.DateKey] = idx
			days = append(days, DayNode{DateKey: t.DateKey, Year: t.Year, Month: t.Month, Day: t.Day})
		}
		days[idx].Turns = append(days[idx].Turns, t)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].DateKey > days[j].DateKey
	})
	for i := range days {
		SortTurns(days[i].Turns)
	}
	return days
}

// LimitIndex keeps the newest maxCount turns and drops day buckets left
// empty. A non-positive maxCount returns index unchanged.
func LimitIndex(index *Index, maxCount int) *Index {
	if index == nil || maxCount <= 0 || maxCount >= len(index.Turns) {
		return index
	}
	kept := make(map[*TurnRecord]struct{}, maxCount)
	turns := append([]*TurnRecord(nil), index.Turns[:maxCount]...)
	for _, t := range turns {
		kept[t] = struct{}{}
	}

	days := make([]DayNode, 0, len(index.Days))
	for _, day := range index.Days {
		var dayTurns []*TurnRecord
		for _, t := range day.Turns {
			if _, ok := kept[t]; ok {
				dayTurns = append(dayTurns, t)
			}
		}
		if len(dayTurns) == 0 {
			continue
		}
		day.Turns = dayTurns
		days = append(days, day)
	}
	return &Index{Days: days, Turns: turns, Skipped: index.Skipped}
}

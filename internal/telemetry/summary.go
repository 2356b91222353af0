package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

// Summary aggregates a telemetry log: who emitted what, against which
// stations and rooms, over what time span.
type Summary struct {
	Total     int            `json:"total"`
	ByEvent   map[string]int `json:"byEvent"`
	BySource  map[string]int `json:"bySource"`
	ByStation map[string]int `json:"byStation"`
	ByRoom    map[string]int `json:"byRoom"`
	Sessions  int            `json:"sessions"`
	FirstTsMs int64          `json:"firstTsMs,omitempty"`
	LastTsMs  int64          `json:"lastTsMs,omitempty"`
}

// LogFiles finds the daily telemetry logs under a data directory,
// oldest first.
func LogFiles(dataDir string) []string {
	matches, _ := filepath.Glob(filepath.Join(dataDir, "telemetry-*.jsonl"))
	sort.Strings(matches)
	return matches
}

// LoadEvents reads every parseable event line from the given files.
// Unreadable files and malformed lines are skipped, not fatal: partial
// logs are the common case.
func LoadEvents(paths []string) []map[string]any {
	var events []map[string]any
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var ev map[string]any
			if err := json.Unmarshal(line, &ev); err != nil {
				continue
			}
			events = append(events, ev)
		}
		f.Close()
	}
	return events
}

// Summarize folds events into a Summary.
func Summarize(events []map[string]any) Summary {
	s := Summary{
		Total:     len(events),
		ByEvent:   make(map[string]int),
		BySource:  make(map[string]int),
		ByStation: make(map[string]int),
		ByRoom:    make(map[string]int),
	}
	sessions := make(map[string]struct{})
	for _, ev := range events {
		s.ByEvent[stringField(ev, "event", "unknown")]++
		if source := stringField(ev, "source", ""); source != "" {
			s.BySource[source]++
		}
		if station := stringField(ev, "stationId", ""); station != "" {
			s.ByStation[station]++
		}
		if room := stringField(ev, "roomId", ""); room != "" {
			s.ByRoom[room]++
		}
		if session := stringField(ev, "sessionId", ""); session != "" {
			sessions[session] = struct{}{}
		}
		if ts, ok := ev["ts"].(float64); ok {
			ms := int64(ts)
			if s.FirstTsMs == 0 || ms < s.FirstTsMs {
				s.FirstTsMs = ms
			}
			if ms > s.LastTsMs {
				s.LastTsMs = ms
			}
		}
	}
	s.Sessions = len(sessions)
	return s
}

func stringField(ev map[string]any, key, def string) string {
	if v, ok := ev[key].(string); ok && v != "" {
		return v
	}
	return def
}

// TopN returns a counter's keys by descending count, ties broken by key.
func TopN(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if n > 0 && len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

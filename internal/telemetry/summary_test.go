package telemetry

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.UnixMilli(1_700_000_000_000)
}

func TestWriterDisabled(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, false, fixedNow)

	if w.Append(map[string]any{"event": "x"}) {
		t.Error("disabled writer stored an event")
	}
	if files := LogFiles(dir); len(files) != 0 {
		t.Errorf("disabled writer created %v", files)
	}
}

func TestWriterAppendsAndStampsTs(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, true, fixedNow)

	if !w.Append(map[string]any{"event": "listener_join", "stationId": "st_1"}) {
		t.Fatal("append failed")
	}
	w.Event("web_broadcast_start", map[string]any{"stationId": "st_1", "sessionId": "sess_a"})

	files := LogFiles(dir)
	if len(files) != 1 {
		t.Fatalf("files = %v", files)
	}

	events := LoadEvents(files)
	if len(events) != 2 {
		t.Fatalf("loaded %d events", len(events))
	}
	if _, ok := events[0]["ts"]; !ok {
		t.Error("ts not stamped")
	}
}

func TestSummarize(t *testing.T) {
	events := []map[string]any{
		{"event": "listener_join", "stationId": "st_1", "ts": float64(1000)},
		{"event": "listener_join", "stationId": "st_1", "ts": float64(3000)},
		{"event": "listener_leave", "stationId": "st_2", "ts": float64(2000)},
		{"event": "room_presence", "roomId": "r_1", "source": "web"},
		{"event": "web_broadcast_start", "sessionId": "sess_a"},
		{"event": "web_broadcast_stop", "sessionId": "sess_a"},
		{"sessionId": "sess_b"},
	}

	s := Summarize(events)

	if s.Total != 7 {
		t.Errorf("total = %d", s.Total)
	}
	if s.ByEvent["listener_join"] != 2 || s.ByEvent["unknown"] != 1 {
		t.Errorf("byEvent = %v", s.ByEvent)
	}
	if s.ByStation["st_1"] != 2 || s.ByStation["st_2"] != 1 {
		t.Errorf("byStation = %v", s.ByStation)
	}
	if s.ByRoom["r_1"] != 1 || s.BySource["web"] != 1 {
		t.Errorf("byRoom/bySource = %v %v", s.ByRoom, s.BySource)
	}
	if s.Sessions != 2 {
		t.Errorf("sessions = %d, want 2 distinct", s.Sessions)
	}
	if s.FirstTsMs != 1000 || s.LastTsMs != 3000 {
		t.Errorf("range = %d..%d", s.FirstTsMs, s.LastTsMs)
	}
}

func TestLoadEventsSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telemetry-2026-08-28.jsonl")
	content := `{"event":"ok"}
not json at all
{"event":"also_ok"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	events := LoadEvents([]string{path, filepath.Join(dir, "missing.jsonl")})
	if len(events) != 2 {
		t.Errorf("loaded %d events, want 2", len(events))
	}
}

func TestTopN(t *testing.T) {
	counts := map[string]int{"a": 3, "b": 5, "c": 3, "d": 1}
	got := TopN(counts, 3)
	want := []string{"b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("TopN = %v, want %v", got, want)
		}
	}
}

// Package telemetry appends registry events to daily JSONL files and
// summarizes them offline. Telemetry is strictly opt-in.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Writer appends events to data-dir/telemetry-YYYY-MM-DD.jsonl.
// A disabled writer swallows everything.
type Writer struct {
	dataDir string
	enabled bool
	now     func() time.Time
}

func NewWriter(dataDir string, enabled bool, now func() time.Time) *Writer {
	if now == nil {
		now = time.Now
	}
	return &Writer{dataDir: dataDir, enabled: enabled, now: now}
}

// Enabled reports whether events will be stored at all.
func (w *Writer) Enabled() bool {
	return w.enabled
}

func (w *Writer) path() string {
	stamp := w.now().UTC().Format("2006-01-02")
	return filepath.Join(w.dataDir, fmt.Sprintf("telemetry-%s.jsonl", stamp))
}

// Append writes one event line, stamping ts when the caller did not.
// It reports whether the event was stored.
func (w *Writer) Append(event map[string]any) bool {
	if !w.enabled || event == nil {
		return false
	}
	if _, ok := event["ts"]; !ok {
		event["ts"] = w.now().UnixMilli()
	}
	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return false
	}
	line, err := json.Marshal(event)
	if err != nil {
		return false
	}
	f, err := os.OpenFile(w.path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return false
	}
	return true
}

// Event is a convenience for handler call sites.
func (w *Writer) Event(name string, fields map[string]any) {
	event := map[string]any{"event": name}
	for k, v := range fields {
		event[k] = v
	}
	w.Append(event)
}

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONIsDefault(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false, "")
	log.Info("submitted", "mode", "predict")
	log.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line at info level, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if rec["msg"] != "submitted" || rec["mode"] != "predict" {
		t.Fatalf("record = %v", rec)
	}
}

func TestTextVerbose(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true, "TEXT")
	log.Debug("state change", "to", "running")
	if !strings.Contains(buf.String(), "level=DEBUG") || !strings.Contains(buf.String(), "to=running") {
		t.Fatalf("output = %q", buf.String())
	}
}

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestNewWritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Error("run failed", errors.New("boom"), map[string]interface{}{"session": "abc"})

	var record map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("expected JSON record, got %q: %v", buf.String(), err)
	}
	if record["message"] != "run failed" || record["session"] != "abc" || record["error"] != "boom" {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestNewSuppressesDebugWhenNotVerbose(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Debug("noisy", nil)

	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

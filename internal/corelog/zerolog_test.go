package corelog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewZerologWritesStructuredKeyValues(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf)
	log.Info("something happened", "jobs", 3, "ok", true)

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if decoded["message"] != "something happened" {
		t.Fatalf("unexpected message field: %v", decoded["message"])
	}
	if decoded["jobs"] != float64(3) {
		t.Fatalf("expected jobs=3, got %v", decoded["jobs"])
	}
	if decoded["ok"] != true {
		t.Fatalf("expected ok=true, got %v", decoded["ok"])
	}
}

func TestNewZerologDefaultsToStdoutOnNilWriter(t *testing.T) {
	log := NewZerolog(nil)
	if log == nil {
		t.Fatal("expected a non-nil logger even with a nil writer")
	}
}

func TestOddKeyValuePairIsIgnored(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf)
	log.Warn("trailing key with no value", "dangling")
	if !strings.Contains(buf.String(), "trailing key with no value") {
		t.Fatalf("expected the message to still be logged, got %q", buf.String())
	}
}

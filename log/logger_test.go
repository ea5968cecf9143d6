package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer

	l := NewLogger("vfs", Warn, "", true)
	l.SetOutput(&buf)

	l.Debug("Open: hidden %s", "a")
	l.Info("Open: hidden %s", "b")
	l.Warn("Open: visible %s", "c")
	l.Error("Open: visible %s", "d")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected debug and info to be filtered, got %q", out)
	}
	if strings.Count(out, "visible") != 2 {
		t.Errorf("Expected two visible lines, got %q", out)
	}
	if !strings.Contains(out, "[vfs]") {
		t.Errorf("Expected logger name in prefix, got %q", out)
	}
}

func TestLoggerNamedSharesWriter(t *testing.T) {
	var buf bytes.Buffer

	l := NewLogger("vfs", Debug, "", true)
	l.SetOutput(&buf)
	l.Named("zip").Info("Parse: %d entries", 3)

	if !strings.Contains(buf.String(), "[vfs/zip] Parse: 3 entries") {
		t.Errorf("Unexpected output %q", buf.String())
	}
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer

	l := NewLogger("cache", Info, "", true)
	l.SetOutput(&buf)
	l.JSON = true
	l.Info("Get: miss for %s", "k")

	var entry logEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if entry.Service != "cache" || entry.Level != "INFO" || entry.Message != "Get: miss for k" {
		t.Errorf("Unexpected entry %+v", entry)
	}
}

func TestParse(t *testing.T) {
	for input, expected := range map[string]LogLevel{
		"debug": Debug,
		"INFO":  Info,
		"warn":  Warn,
		"Error": Error,
	} {
		level, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", input, err)
		}
		if level != expected {
			t.Errorf("Parse(%q): expected %v, got %v", input, expected, level)
		}
	}

	if _, err := Parse("verbose"); err == nil {
		t.Errorf("Expected error for unknown level")
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l.Enabled(Fatal) {
		t.Errorf("Expected discard logger to be disabled")
	}
	l.Error("Close: nothing %s", "here")
}

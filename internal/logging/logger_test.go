package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("debug", "json", &buf)

	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug level, got %s", logger.GetLevel())
	}

	logger.WithField("sale_id", 7).Info("sale committed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "sale committed" || entry["sale_id"] != float64(7) {
		t.Errorf("Unexpected entry %v", entry)
	}
}

func TestNewLoggerUnknownLevel(t *testing.T) {
	logger := newLogger("chatty", "text", &bytes.Buffer{})
	if logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("Expected info fallback, got %s", logger.GetLevel())
	}
}

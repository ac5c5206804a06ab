package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

// capture redirects log output to a buffer for the duration of a test.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel("INFO")
	})
	return &buf
}

func TestSetLevel_FiltersBelowThreshold(t *testing.T) {
	buf := capture(t)
	SetLevel("WARN")

	Debug("hidden debug")
	Info("hidden info")
	Warn("kept %s", "warning")
	Error("kept error")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected levels below WARN to be dropped, got %q", out)
	}
	if !strings.Contains(out, "[WARN] kept warning") {
		t.Errorf("expected warn line in output, got %q", out)
	}
	if !strings.Contains(out, "[ERROR] kept error") {
		t.Errorf("expected error line in output, got %q", out)
	}
}

func TestSetLevel_UnknownValueKeepsCurrent(t *testing.T) {
	buf := capture(t)
	SetLevel("DEBUG")
	SetLevel("bogus")

	Debug("still emitted")

	if !strings.Contains(buf.String(), "[DEBUG] still emitted") {
		t.Errorf("expected unknown level to keep DEBUG, got %q", buf.String())
	}
}

func TestSetLevel_CaseInsensitive(t *testing.T) {
	buf := capture(t)
	SetLevel("error")

	Warn("dropped")
	Error("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Errorf("expected lowercase level name to apply, got %q", out)
	}
}

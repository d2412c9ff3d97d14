package logger

import (
	"bytes"
	"os"
	"testing"
)

// capture redirects logger output into a buffer for one test and
// restores the defaults afterwards.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestVerboseToggle(t *testing.T) {
	capture(t)

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be off initially")
	}

	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose to be on after SetVerbose(true)")
	}

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be off after SetVerbose(false)")
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name string
		log  func(string, ...any)
		want string
	}{
		{"debug", Debug, "[DEBUG] claimed entry 7\n"},
		{"info", Info, "[INFO] claimed entry 7\n"},
		{"warn", Warn, "[WARN] claimed entry 7\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture(t)
			SetVerbose(true)

			tt.log("claimed entry %d", 7)

			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSilentWithoutVerbose(t *testing.T) {
	buf := capture(t)
	SetVerbose(false)

	Debug("debug")
	Info("info")
	Warn("warn")

	if buf.Len() > 0 {
		t.Errorf("expected no output when verbose is off, got %q", buf.String())
	}
}

func TestConcurrentAccess(t *testing.T) {
	capture(t)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			SetVerbose(true)
			Debug("concurrent %d", i)
			IsVerbose()
			SetVerbose(false)
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

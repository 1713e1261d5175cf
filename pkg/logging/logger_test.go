package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// setupTestDir points the package at a temporary log directory and resets the run ID
func setupTestDir(t *testing.T) {
	t.Helper()

	dirMu.Lock()
	origLogDir := logDir
	logDir = t.TempDir()
	dirMu.Unlock()

	origRunID := runID
	runID = ""
	runIDOnce = sync.Once{}

	t.Cleanup(func() {
		dirMu.Lock()
		logDir = origLogDir
		dirMu.Unlock()

		runID = origRunID
		runIDOnce = sync.Once{}
		if origRunID != "" {
			runIDOnce.Do(func() {})
		}
	})
}

func TestNewLogger(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test-component")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.Component() != "test-component" {
		t.Errorf("Expected component 'test-component', got %q", logger.Component())
	}

	if logger.RunID() == "" {
		t.Error("Expected non-empty run ID")
	}

	if _, err := os.Stat(logger.LogPath()); os.IsNotExist(err) {
		t.Errorf("Log file does not exist at %s", logger.LogPath())
	}

	fileName := filepath.Base(logger.LogPath())
	if !strings.HasSuffix(fileName, "-harness.log") {
		t.Errorf("Expected log file to end with '-harness.log', got %q", fileName)
	}
}

func TestLoggerFormatting(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Printf("Test message %d", 123)
	logger.Debugf("Debug message")
	logger.Infof("Info message")
	logger.Warnf("Warning message")
	logger.Errorf("Error message")
	logger.With("worker", "w1").Infof("Tagged message")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	content, err := os.ReadFile(logger.LogPath())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	logContent := string(content)

	expectedPatterns := []string{
		"[test] [INFO] Test message 123",
		"[test] [DEBUG] Debug message",
		"[test] [INFO] Info message",
		"[test] [WARN] Warning message",
		"[test] [ERROR] Error message",
		"[test] [INFO] [worker=w1] Tagged message",
	}

	for _, pattern := range expectedPatterns {
		if !strings.Contains(logContent, pattern) {
			t.Errorf("Log content missing expected pattern: %q\nContent:\n%s", pattern, logContent)
		}
	}
}

func TestMultipleComponents(t *testing.T) {
	setupTestDir(t)

	logger1, err := NewLogger("component1")
	if err != nil {
		t.Fatalf("Failed to create logger1: %v", err)
	}
	defer logger1.Close()

	logger2, err := NewLogger("component2")
	if err != nil {
		t.Fatalf("Failed to create logger2: %v", err)
	}
	defer logger2.Close()

	if logger1.RunID() != logger2.RunID() {
		t.Errorf("Expected same run ID, got %q and %q", logger1.RunID(), logger2.RunID())
	}

	if logger1.LogPath() != logger2.LogPath() {
		t.Errorf("Expected same log path, got %q and %q", logger1.LogPath(), logger2.LogPath())
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("level", &buf)
	child := logger.With("worker", "w1")

	logger.SetLevel(LevelWarn)
	child.Debugf("hidden debug")
	child.Infof("hidden info")
	child.Warnf("shown warn")
	logger.Errorf("shown error")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected entries below WARN to be dropped, got:\n%s", out)
	}
	if !strings.Contains(out, "shown warn") || !strings.Contains(out, "shown error") {
		t.Errorf("Expected WARN and ERROR entries, got:\n%s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "DEBUG", want: LevelDebug},
		{in: "info", want: LevelInfo},
		{in: "", want: LevelInfo},
		{in: " Warning ", want: LevelWarn},
		{in: "error", want: LevelError},
		{in: "loud", want: LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestExcerpt(t *testing.T) {
	logger := Discard("runner")
	w1 := logger.With("worker", "w1")
	w2 := logger.With("worker", "w2")

	for i := 0; i < 5; i++ {
		w1.Infof("w1 step %d", i)
		w2.Infof("w2 step %d", i)
	}
	w1.With("test", "login").Errorf("w1 failure")

	excerpt := w1.Excerpt(3)
	lines := strings.Split(excerpt, "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d:\n%s", len(lines), excerpt)
	}
	if !strings.Contains(lines[0], "w1 step 3") || !strings.Contains(lines[2], "w1 failure") {
		t.Errorf("Unexpected excerpt order:\n%s", excerpt)
	}
	if strings.Contains(excerpt, "w2") {
		t.Errorf("Excerpt leaked another worker's entries:\n%s", excerpt)
	}

	if got := strings.Count(logger.Excerpt(0), "\n") + 1; got != 11 {
		t.Errorf("Expected untagged logger to see all 11 entries, got %d", got)
	}
}

func TestExcerptWrapsRing(t *testing.T) {
	logger := Discard("ring")
	for i := 0; i < DefaultRecentEntries+10; i++ {
		logger.Infof("entry %d", i)
	}

	excerpt := logger.Excerpt(2)
	want := fmt.Sprintf("entry %d", DefaultRecentEntries+9)
	if !strings.HasSuffix(excerpt, want) {
		t.Errorf("Expected newest entry %q last, got:\n%s", want, excerpt)
	}

	if got := len(strings.Split(logger.Excerpt(0), "\n")); got != DefaultRecentEntries {
		t.Errorf("Expected %d buffered entries, got %d", DefaultRecentEntries, got)
	}
}

func TestConcurrentWrites(t *testing.T) {
	logger := Discard("concurrent")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			l := logger.With("worker", n)
			for j := 0; j < 20; j++ {
				l.Debugf("write %d", j)
			}
		}(i)
	}
	wg.Wait()

	if got := len(strings.Split(logger.Excerpt(0), "\n")); got != 160 {
		t.Errorf("Expected 160 entries, got %d", got)
	}
}

func TestGetRunID(t *testing.T) {
	setupTestDir(t)

	id1 := GetRunID()
	id2 := GetRunID()

	if id1 != id2 {
		t.Errorf("Expected consistent run ID, got %q and %q", id1, id2)
	}
	if id1 == "" {
		t.Error("Expected non-empty run ID")
	}
}

func TestSetLogDirectory(t *testing.T) {
	setupTestDir(t)

	dir := filepath.Join(t.TempDir(), "nested", "logs")
	if err := SetLogDirectory(dir); err != nil {
		t.Fatalf("SetLogDirectory failed: %v", err)
	}

	got, err := GetLogDirectory()
	if err != nil {
		t.Fatalf("Failed to get log directory: %v", err)
	}
	if got != dir {
		t.Errorf("Expected %q, got %q", dir, got)
	}
}

func TestLoggerClose(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	if err := logger.With("k", "v").Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

// Package testutil provides shared test helpers for the barn packages.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/banshee-data/barn.report/internal/monitoring"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// LogCapture collects lines written through monitoring.Logf.
type LogCapture struct {
	mu    sync.Mutex
	lines []string
}

// CaptureLogs redirects monitoring.Logf into a LogCapture until the test
// ends.
func CaptureLogs(t *testing.T) *LogCapture {
	t.Helper()
	c := &LogCapture{}
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.lines = append(c.lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(prev) })
	return c
}

// Lines returns a copy of the captured lines.
func (c *LogCapture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// Count returns how many captured lines contain substr.
func (c *LogCapture) Count(substr string) int {
	n := 0
	for _, l := range c.Lines() {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

// WriteFile writes content to dir/name and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// TempDBPath returns a database path inside a per-test temp directory.
func TempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "barn.db")
}

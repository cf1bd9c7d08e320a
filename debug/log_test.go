package debug

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogWritesCategoryLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "debug.log")
	if err := EnableAt(path); err != nil {
		t.Fatalf("EnableAt: %v", err)
	}
	Log("step", "index=%d", 3)
	for i := 0; i < 4; i++ {
		LogEvery(2, "mux", "select")
	}
	Disable()
	Log("step", "after disable")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "step") || !strings.Contains(out, "index=3") {
		t.Errorf("missing step line in %q", out)
	}
	if n := strings.Count(out, "select (every 2"); n != 2 {
		t.Errorf("LogEvery wrote %d lines, want 2", n)
	}
	if strings.Contains(out, "after disable") {
		t.Error("logged after Disable")
	}
	if Enabled() {
		t.Error("Enabled() should be false after Disable")
	}
}

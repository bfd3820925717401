package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenRunLog_ReplacesPreviousFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	ctx := context.Background()

	first, err := OpenRunLog(ctx, path)
	if err != nil {
		t.Fatalf("OpenRunLog() error = %v", err)
	}
	first.Logger().Info("first run")
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second, err := OpenRunLog(ctx, path)
	if err != nil {
		t.Fatalf("OpenRunLog() error = %v", err)
	}
	second.Logger().Info("second run", "segment", "borrower")
	second.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	content := string(data)
	if strings.Contains(content, "first run") {
		t.Error("run log still contains the previous run")
	}
	if !strings.Contains(content, "second run") || !strings.Contains(content, "segment=borrower") {
		t.Errorf("run log = %q, want the second run's line", content)
	}
	if second.Path() != path {
		t.Errorf("Path() = %q, want %q", second.Path(), path)
	}
}

func TestOpenRunLog_Disabled(t *testing.T) {
	r, err := OpenRunLog(context.Background(), "")
	if err != nil {
		t.Fatalf("OpenRunLog() error = %v", err)
	}
	if r.Path() != "" {
		t.Errorf("Path() = %q, want empty", r.Path())
	}
	r.Logger().Info("goes to the process logger only")
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"WARN", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
		{"verbose", "INFO"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in).String(); got != tt.want {
				t.Errorf("parseLevel(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

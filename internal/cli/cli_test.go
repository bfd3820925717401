package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/lending/internal/core"
	"github.com/JonMunkholm/lending/internal/pipeline"
	"github.com/JonMunkholm/lending/internal/procedure"
	"github.com/JonMunkholm/lending/internal/report"
	"github.com/JonMunkholm/lending/internal/sheet"
	"github.com/xuri/excelize/v2"
)

// run executes lendctl with args and returns stdout and the error.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--env-file", ""}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", fmt.Errorf("%w: accepts 1 arg(s)", ErrUsage), ExitUsageError},
		{"config", fmt.Errorf("%w: DATABASE_URL", ErrInvalidConfig), ExitConfigError},
		{"missing script", fmt.Errorf("install: %w", procedure.ErrScriptNotFound), ExitConfigError},
		{"missing query", report.ErrQueryNotFound, ExitConfigError},
		{"missing property", fmt.Errorf("%w spring.datasource.url", pipeline.ErrMissingProperty), ExitConfigError},
		{"connection", fmt.Errorf("%w: ping", ErrConnectionFailed), ExitConnectionError},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connection refused"), ExitConnectionError},
		{"empty file", fmt.Errorf("BS.csv: %w", core.ErrEmptyFile), ExitInputError},
		{"unknown segment", fmt.Errorf("%w: %q", core.ErrUnknownSegment, "x"), ExitInputError},
		{"bad workbook", sheet.ErrInvalidWorkbook, ExitInputError},
		{"bad date", pipeline.ErrInvalidDate, ExitInputError},
		{"no data", report.ErrNoData, ExitNoData},
		{"busy", core.ErrTooManyJobs, ExitBusy},
		{"job failed", fmt.Errorf("%w: exit code 2", ErrJobFailed), ExitJobFailed},
		{"sql error", errors.New("ERROR: division by zero (SQLSTATE 22012)"), ExitJobFailed},
		{"unknown command", errors.New(`unknown command "frob" for "lendctl"`), ExitUsageError},
		{"other", errors.New("boom"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCodeForError(tt.err); got != tt.want {
				t.Errorf("ExitCodeForError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"load without files", []string{"load"}},
		{"convert without workbook", []string{"convert"}},
		{"report with argument", []string{"report", "extra"}},
		{"migrate without key", []string{"segment", "migrate"}},
		{"truncate without key", []string{"segment", "truncate"}},
		{"truncate key and all", []string{"segment", "truncate", "borrower", "--all"}},
		{"duplicate without date", []string{"segment", "duplicate"}},
		{"unknown flag", []string{"run-jar", "--frob"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if got := ExitCodeForError(err); got != ExitUsageError {
				t.Errorf("exit code = %d (%v), want %d", got, err, ExitUsageError)
			}
		})
	}
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	workbook := filepath.Join(dir, "loans.xlsx")

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "BS"); err != nil {
		t.Fatal(err)
	}
	for cell, v := range map[string]any{"A1": "id", "B1": "name", "A2": 1, "B2": "Acme"} {
		if err := f.SetCellValue("BS", cell, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(workbook); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out, err := run(t, "convert", workbook)
	if err != nil {
		t.Fatalf("convert error = %v", err)
	}

	archive := filepath.Join(dir, "loans.zip")
	if info, err := os.Stat(archive); err != nil || info.Size() == 0 {
		t.Fatalf("archive %s not written: %v", archive, err)
	}
	if !strings.Contains(out, "wrote "+archive) {
		t.Errorf("output = %q, want the archive path", out)
	}
}

func TestConvert_OutputFlag(t *testing.T) {
	dir := t.TempDir()
	workbook := filepath.Join(dir, "in.xlsx")
	f := excelize.NewFile()
	if err := f.SetCellValue("Sheet1", "A1", "x"); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveAs(workbook); err != nil {
		t.Fatal(err)
	}
	f.Close()

	target := filepath.Join(dir, "custom.zip")
	if _, err := run(t, "convert", workbook, "-o", target); err != nil {
		t.Fatalf("convert error = %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("archive not written at %s: %v", target, err)
	}
}

func TestConvert_InvalidWorkbook(t *testing.T) {
	dir := t.TempDir()
	workbook := filepath.Join(dir, "broken.xlsx")
	if err := os.WriteFile(workbook, []byte("not a workbook"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := run(t, "convert", workbook)
	if got := ExitCodeForError(err); got != ExitInputError {
		t.Errorf("exit code = %d (%v), want %d", got, err, ExitInputError)
	}
	if _, err := os.Stat(filepath.Join(dir, "broken.zip")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("partial archive left behind: %v", err)
	}
}

func TestSegmentList(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/unused")
	t.Setenv("CONFIG_DIR", t.TempDir())

	out, err := run(t, "segment", "list")
	if err != nil {
		t.Fatalf("segment list error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 8 {
		t.Fatalf("got %d lines, want header plus 7 segments:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "KEY") || !strings.HasPrefix(lines[1], "borrower") {
		t.Errorf("unexpected listing:\n%s", out)
	}
}

func TestSegmentList_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")

	_, err := run(t, "segment", "list")
	if got := ExitCodeForError(err); got != ExitConfigError {
		t.Errorf("exit code = %d (%v), want %d", got, err, ExitConfigError)
	}
}

package sheet

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook creates an in-memory workbook. sheets maps sheet name to
// cells keyed by reference ("A1").
func buildWorkbook(t *testing.T, order []string, sheets map[string]map[string]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("new sheet: %v", err)
		}
		for cell, v := range sheets[name] {
			if err := f.SetCellValue(name, cell, v); err != nil {
				t.Fatalf("set %s!%s: %v", name, cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf
}

// readArchive returns entry name -> content, in archive order.
func readArchive(t *testing.T, data []byte) ([]string, map[string]string) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}

	var names []string
	contents := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		names = append(names, f.Name)
		contents[f.Name] = string(b)
	}
	return names, contents
}

func TestConverter_Convert(t *testing.T) {
	wb := buildWorkbook(t, []string{"Borrowers", "Empty", "Addr & Co"}, map[string]map[string]any{
		"Borrowers": {
			"A1": "Name", "B1": "Amount", "C1": "Note",
			"A2": "  Acme  ", "B2": 100,
			"A3": "Smith, John", "B3": 2.5, "C3": `said "hi"`,
		},
		"Addr & Co": {
			"A1": "id",
			"B3": "late",
		},
	})

	var out bytes.Buffer
	result, err := NewConverter().Convert(context.Background(), wb, &out)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	names, contents := readArchive(t, out.Bytes())
	if strings.Join(names, ",") != "Borrowers.csv,Addr___Co.csv" {
		t.Fatalf("entries = %v", names)
	}

	wantBorrowers := "Name,Amount,Note\nAcme,100,\n\"Smith, John\",2.5,\"said \"\"hi\"\"\"\n"
	if got := contents["Borrowers.csv"]; got != wantBorrowers {
		t.Errorf("Borrowers.csv = %q, want %q", got, wantBorrowers)
	}

	// Header narrower than data: every row padded to two columns. The
	// missing second row is not written.
	wantAddr := "id,\n,late\n"
	if got := contents["Addr___Co.csv"]; got != wantAddr {
		t.Errorf("Addr___Co.csv = %q, want %q", got, wantAddr)
	}

	if len(result.Skipped) != 1 || result.Skipped[0] != "Empty" {
		t.Errorf("Skipped = %v, want [Empty]", result.Skipped)
	}
	if result.Sheets[0].Rows != 3 || result.Sheets[0].Columns != 3 {
		t.Errorf("Borrowers result = %+v", result.Sheets[0])
	}
}

func TestConverter_SkipsMissingRows(t *testing.T) {
	wb := buildWorkbook(t, []string{"BS"}, map[string]map[string]any{
		"BS": {"A1": "id", "B1": "name", "A4": 1, "B4": "Acme", "A9": 2, "B9": "Globex"},
	})

	var out bytes.Buffer
	result, err := NewConverter().Convert(context.Background(), wb, &out)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	_, contents := readArchive(t, out.Bytes())
	want := "id,name\n1,Acme\n2,Globex\n"
	if got := contents["BS.csv"]; got != want {
		t.Errorf("BS.csv = %q, want %q", got, want)
	}
	if result.Sheets[0].Rows != 3 {
		t.Errorf("Rows = %d, want 3", result.Sheets[0].Rows)
	}
}

func TestConverter_FormattedValues(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	style, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		t.Fatalf("new style: %v", err)
	}
	f.SetCellValue("Sheet1", "A1", 3)
	f.SetCellStyle("Sheet1", "A1", "A1", style)

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	var out bytes.Buffer
	if _, err := NewConverter().Convert(context.Background(), buf, &out); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	_, contents := readArchive(t, out.Bytes())
	if got := contents["Sheet1.csv"]; got != "3.00\n" {
		t.Errorf("Sheet1.csv = %q, want formatted value", got)
	}
}

func TestConverter_AllSheetsEmpty(t *testing.T) {
	wb := buildWorkbook(t, []string{"One", "Two"}, map[string]map[string]any{
		"Two": {"A1": "   "},
	})

	var out bytes.Buffer
	result, err := NewConverter().Convert(context.Background(), wb, &out)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	names, _ := readArchive(t, out.Bytes())
	if len(names) != 0 {
		t.Errorf("entries = %v, want none", names)
	}
	if len(result.Skipped) != 2 {
		t.Errorf("Skipped = %v, want both sheets", result.Skipped)
	}
}

func TestConverter_DuplicateEntryNames(t *testing.T) {
	wb := buildWorkbook(t, []string{"Q1 2024", "Q1-2024", "Q1_2024"}, map[string]map[string]any{
		"Q1 2024": {"A1": "a"},
		"Q1-2024": {"A1": "b"},
		"Q1_2024": {"A1": "c"},
	})

	var out bytes.Buffer
	if _, err := NewConverter().Convert(context.Background(), wb, &out); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	names, contents := readArchive(t, out.Bytes())
	want := []string{"Q1_2024.csv", "Q1-2024.csv", "Q1_2024_2.csv"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("entries = %v, want %v", names, want)
	}
	if contents["Q1_2024_2.csv"] != "c\n" {
		t.Errorf("Q1_2024_2.csv = %q, want c", contents["Q1_2024_2.csv"])
	}
}

func TestConverter_InvalidWorkbook(t *testing.T) {
	var out bytes.Buffer
	_, err := NewConverter().Convert(context.Background(), strings.NewReader("not,a,workbook\n"), &out)
	if !errors.Is(err, ErrInvalidWorkbook) {
		t.Errorf("Convert() error = %v, want ErrInvalidWorkbook", err)
	}
}

func TestConverter_Cancelled(t *testing.T) {
	wb := buildWorkbook(t, []string{"S"}, map[string]map[string]any{"S": {"A1": "x"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	if _, err := NewConverter().Convert(ctx, wb, &out); !errors.Is(err, context.Canceled) {
		t.Errorf("Convert() error = %v, want context.Canceled", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		rows      [][]string
		wantWidth int
		want      [][]string
	}{
		{
			name:      "ragged rows padded",
			rows:      [][]string{{"a"}, {"b", "c", "d"}},
			wantWidth: 3,
			want:      [][]string{{"a", "", ""}, {"b", "c", "d"}},
		},
		{
			name:      "trailing blanks truncated",
			rows:      [][]string{{"a", "b", " ", ""}, {"c"}},
			wantWidth: 2,
			want:      [][]string{{"a", "b"}, {"c", ""}},
		},
		{
			name:      "blank rows dropped",
			rows:      [][]string{{"id", "name"}, nil, {"", " "}, {"1", "Acme"}},
			wantWidth: 2,
			want:      [][]string{{"id", "name"}, {"1", "Acme"}},
		},
		{
			name:      "empty sheet",
			rows:      [][]string{{"", "  "}, nil},
			wantWidth: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, width := normalize(tt.rows)
			if width != tt.wantWidth {
				t.Fatalf("width = %d, want %d", width, tt.wantWidth)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("rows = %q, want %q", got, tt.want)
			}
			for i := range tt.want {
				if strings.Join(got[i], "|") != strings.Join(tt.want[i], "|") {
					t.Errorf("row %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEntryAndArchiveNames(t *testing.T) {
	if got := EntryName("Sheet 1/été"); got != "Sheet_1__t_.csv" {
		t.Errorf("EntryName() = %q", got)
	}
	tests := map[string]string{
		"book.xlsx":              "book.zip",
		`C:\data\Q1 report.xlsx`: "Q1 report.zip",
		"":                       "converted.zip",
		"noext":                  "noext.zip",
	}
	for in, want := range tests {
		if got := ArchiveName(in); got != want {
			t.Errorf("ArchiveName(%q) = %q, want %q", in, got, want)
		}
	}
}

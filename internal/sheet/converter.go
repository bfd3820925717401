// Package sheet converts spreadsheet workbooks into a zip archive holding
// one CSV document per non-empty sheet.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/lending/internal/core"
	"github.com/JonMunkholm/lending/internal/logging"
	"github.com/klauspost/compress/zip"
	"github.com/xuri/excelize/v2"
)

// ErrInvalidWorkbook is returned when the input cannot be opened as a workbook.
var ErrInvalidWorkbook = errors.New("invalid workbook")

var sheetNamePattern = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)

// SheetResult describes one sheet written to the archive.
type SheetResult struct {
	Sheet   string `json:"sheet"`
	Entry   string `json:"entry"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// Result describes one conversion.
type Result struct {
	Sheets  []SheetResult `json:"sheets"`
	Skipped []string      `json:"skipped"` // sheets without a single non-empty cell
}

// Converter turns workbooks into zipped CSV documents.
type Converter struct{}

// NewConverter creates a Converter.
func NewConverter() *Converter {
	return &Converter{}
}

// Convert reads the workbook from r and writes the archive to w. Every sheet
// with at least one non-empty cell becomes one entry; cell values are the
// displayed (formatted) text, trimmed. Rows are padded or truncated to the
// last column holding a value anywhere in the sheet.
func (c *Converter) Convert(ctx context.Context, r io.Reader, w io.Writer) (*Result, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer wb.Close()

	logger := logging.FromContext(ctx)
	zw := zip.NewWriter(w)
	entries := make(map[string]int)
	result := &Result{}

	for _, name := range wb.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := wb.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}

		rows, width := normalize(rows)
		if width == 0 {
			logger.Debug("skipping empty sheet", "sheet", name)
			result.Skipped = append(result.Skipped, name)
			continue
		}

		entry := uniqueEntryName(EntryName(name), entries)
		if err := writeEntry(zw, entry, rows); err != nil {
			return nil, fmt.Errorf("write sheet %q: %w", name, err)
		}

		result.Sheets = append(result.Sheets, SheetResult{
			Sheet:   name,
			Entry:   entry,
			Rows:    len(rows),
			Columns: width,
		})
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	logger.Info("workbook converted",
		"sheets", len(result.Sheets),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

// normalize trims every cell, drops rows without a single value, finds the
// last column holding a non-empty value in any row, and pads or truncates
// every row to that width. A width of zero means the sheet has no values.
func normalize(rows [][]string) ([][]string, int) {
	width := 0
	kept := rows[:0]
	for _, row := range rows {
		last := 0
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
			if row[i] != "" {
				last = i + 1
			}
		}
		// Gaps between populated rows come back as empty rows.
		if last == 0 {
			continue
		}
		width = max(width, last)
		kept = append(kept, row)
	}
	if width == 0 {
		return nil, 0
	}

	out := make([][]string, len(kept))
	for i, row := range kept {
		fixed := make([]string, width)
		copy(fixed, row)
		out[i] = fixed
	}
	return out, width
}

// EntryName maps a sheet name to its archive entry: every character outside
// [a-zA-Z0-9_-] becomes an underscore and .csv is appended.
func EntryName(sheet string) string {
	return sheetNamePattern.ReplaceAllString(sheet, "_") + ".csv"
}

// uniqueEntryName suffixes _2, _3, ... when two sheets sanitize to the same
// entry. Names are compared case-insensitively.
func uniqueEntryName(entry string, seen map[string]int) string {
	key := strings.ToLower(entry)
	seen[key]++
	n := seen[key]
	if n == 1 {
		return entry
	}

	base := strings.TrimSuffix(entry, ".csv")
	for {
		candidate := base + "_" + strconv.Itoa(n) + ".csv"
		ckey := strings.ToLower(candidate)
		if seen[ckey] == 0 {
			seen[ckey] = 1
			return candidate
		}
		n++
	}
}

func writeEntry(zw *zip.Writer, entry string, rows [][]string) error {
	f, err := zw.Create(entry)
	if err != nil {
		return err
	}
	cw := core.NewCSVWriter(f)
	for _, row := range rows {
		if err := cw.WriteRow(row); err != nil {
			return err
		}
	}
	return cw.Flush()
}

// ArchiveName returns the download name for a converted upload: the upload's
// base name with its extension replaced by .zip.
func ArchiveName(upload string) string {
	base := filepath.Base(strings.ReplaceAll(upload, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "converted"
	}
	return base + ".zip"
}

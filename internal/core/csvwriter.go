package core

import (
	"bufio"
	"io"
	"strings"
)

// needsQuoting lists the characters that force a field into quotes.
const needsQuoting = ",\"\n\r"

// EscapeField returns value as a CSV field. Fields containing a comma, quote,
// line feed or carriage return are quoted and embedded quotes are doubled.
func EscapeField(value string) string {
	if !strings.ContainsAny(value, needsQuoting) {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// CSVWriter writes rows that SplitLine reads back field for field, as long
// as no field contains a line break.
type CSVWriter struct {
	w    *bufio.Writer
	rows int
}

// NewCSVWriter returns a writer buffering into w. Call Flush when done.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: bufio.NewWriter(w)}
}

// WriteRow writes one record terminated by a line feed.
func (c *CSVWriter) WriteRow(fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := c.w.WriteByte(Separator); err != nil {
				return err
			}
		}
		if _, err := c.w.WriteString(EscapeField(f)); err != nil {
			return err
		}
	}
	if err := c.w.WriteByte('\n'); err != nil {
		return err
	}
	c.rows++
	return nil
}

// Rows returns the number of rows written so far.
func (c *CSVWriter) Rows() int {
	return c.rows
}

// Flush writes any buffered data to the underlying writer.
func (c *CSVWriter) Flush() error {
	return c.w.Flush()
}

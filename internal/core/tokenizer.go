package core

import "strings"

// Quote is the only quoting character understood by SplitLine.
const Quote = '"'

// Separator splits fields outside quoted segments.
const Separator = ','

// SplitLine splits one line of CSV text into fields.
//
// A quote toggles the quoted state; a comma separates fields only outside a
// quoted segment; every other character accumulates into the current field.
// Inside a quoted segment a doubled quote yields one literal quote, which is
// how CSVWriter escapes embedded quotes. The last field is always appended,
// so an empty line yields one empty field and a trailing comma yields a
// trailing empty field.
//
// State is not carried across calls: an unterminated quote swallows the rest
// of the line, commas included, into the last field.
func SplitLine(line string) []string {
	fields := make([]string, 0, strings.Count(line, string(Separator))+1)

	var field strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == Quote && inQuotes && i+1 < len(line) && line[i+1] == Quote:
			field.WriteByte(Quote)
			i++
		case c == Quote:
			inQuotes = !inQuotes
		case c == Separator && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteByte(c)
		}
	}

	return append(fields, field.String())
}

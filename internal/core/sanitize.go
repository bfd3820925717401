package core

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// SanitizeRules are the immutable patterns behind a Sanitizer.
type SanitizeRules struct {
	// SpecialChars matches characters replaced in identifiers.
	SpecialChars string
	// Whitespace matches runs collapsed in identifiers.
	Whitespace string
	// Replacement substitutes each match.
	Replacement string
}

// DefaultSanitizeRules replaces / \ - ( ) . # and whitespace with underscores.
var DefaultSanitizeRules = SanitizeRules{
	SpecialChars: `[/\\\-()\s.#]`,
	Whitespace:   `\s+`,
	Replacement:  "_",
}

var (
	lineBreakPattern      = regexp.MustCompile(`\r?\n`)
	multipleSpacesPattern = regexp.MustCompile(`\s{2,}`)
)

// Sanitizer maps free text to safe table and column identifiers and cleans
// cell values. It is safe for concurrent use.
type Sanitizer struct {
	special     *regexp.Regexp
	whitespace  *regexp.Regexp
	repeated    *regexp.Regexp
	replacement string
}

// NewSanitizer compiles rules into a Sanitizer.
func NewSanitizer(rules SanitizeRules) (*Sanitizer, error) {
	special, err := regexp.Compile(rules.SpecialChars)
	if err != nil {
		return nil, fmt.Errorf("compile special characters pattern: %w", err)
	}
	whitespace, err := regexp.Compile(rules.Whitespace)
	if err != nil {
		return nil, fmt.Errorf("compile whitespace pattern: %w", err)
	}
	if rules.Replacement == "" {
		return nil, fmt.Errorf("sanitizer replacement must not be empty")
	}

	return &Sanitizer{
		special:     special,
		whitespace:  whitespace,
		repeated:    regexp.MustCompile(`(?:` + regexp.QuoteMeta(rules.Replacement) + `)+`),
		replacement: rules.Replacement,
	}, nil
}

// MustNewSanitizer is like NewSanitizer but panics on invalid rules.
func MustNewSanitizer(rules SanitizeRules) *Sanitizer {
	s, err := NewSanitizer(rules)
	if err != nil {
		panic(err)
	}
	return s
}

// Identifier replaces special characters and whitespace runs with the
// replacement, collapses repeats of it, and trims it from both ends.
// Applying Identifier to its own output returns the output unchanged.
//
// Distinct inputs may collapse to the same identifier; callers that need
// unique names must check for that.
func (s *Sanitizer) Identifier(text string) string {
	out := s.special.ReplaceAllString(text, s.replacement)
	out = s.whitespace.ReplaceAllString(out, s.replacement)
	out = s.repeated.ReplaceAllString(out, s.replacement)
	return strings.Trim(out, s.replacement)
}

// TableName derives a table name from an uploaded file name: the base name
// without its .csv extension, sanitized. Names that sanitize to nothing
// fall back to table_<unix millis>.
func (s *Sanitizer) TableName(fileName string) string {
	base := filepath.Base(strings.ReplaceAll(fileName, `\`, "/"))
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".csv") {
		base = strings.TrimSuffix(base, ext)
	}

	name := s.Identifier(base)
	if name == "" {
		name = fmt.Sprintf("table_%d", time.Now().UnixMilli())
	}
	return name
}

// Value cleans a cell value before it is bound: surrounding whitespace is
// trimmed, line breaks are removed, and internal whitespace runs collapse
// to one space.
func (s *Sanitizer) Value(v string) string {
	v = strings.TrimSpace(v)
	v = lineBreakPattern.ReplaceAllString(v, "")
	return multipleSpacesPattern.ReplaceAllString(v, " ")
}

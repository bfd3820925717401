package core

// streaming.go holds the reader wrappers applied to every uploaded file.
// Spreadsheet exports from Windows tools commonly carry a BOM and the odd
// Latin-1 byte; both would otherwise end up in generated column names.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// StreamingUTF8Sanitizer wraps an io.Reader and replaces invalid UTF-8 bytes
// with '?' on the fly. A multi-byte rune split across reads is carried over
// to the next read instead of being replaced.
type StreamingUTF8Sanitizer struct {
	reader io.Reader
	buf    []byte
	out    []byte // sanitized bytes not yet returned
	carry  []byte // incomplete rune at the end of the last read
	err    error
}

// NewStreamingUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewStreamingUTF8Sanitizer(r io.Reader) *StreamingUTF8Sanitizer {
	return &StreamingUTF8Sanitizer{
		reader: r,
		buf:    make([]byte, 32*1024+utf8.UTFMax),
		carry:  make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *StreamingUTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// fill reads the next chunk into out, holding back a trailing partial rune
// unless the underlying reader is done.
func (s *StreamingUTF8Sanitizer) fill() {
	start := copy(s.buf, s.carry)
	s.carry = s.carry[:0]

	n, err := s.reader.Read(s.buf[start:])
	data := s.buf[:start+n]
	s.err = err

	end := len(data)
	if err == nil {
		end = completeRunes(data)
	}
	s.carry = append(s.carry, data[end:]...)
	s.out = replaceInvalidUTF8(data[:end])
}

// completeRunes returns the length of data without a trailing incomplete rune.
func completeRunes(data []byte) int {
	for i := len(data) - 1; i >= 0 && i > len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				return i
			}
			break
		}
	}
	return len(data)
}

// replaceInvalidUTF8 rewrites data in place, one '?' per invalid byte.
func replaceInvalidUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}
	w := 0
	for r := 0; r < len(data); {
		c, size := utf8.DecodeRune(data[r:])
		if c == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}
		w += copy(data[w:], data[r:r+size])
		r += size
	}
	return data[:w]
}

// BOMSkippingReader wraps an io.Reader and drops a leading UTF-8 BOM.
type BOMSkippingReader struct {
	reader  *bufio.Reader
	checked bool
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		if head, err := r.reader.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			r.reader.Discard(len(utf8BOM)) //nolint:errcheck
		}
	}
	return r.reader.Read(p)
}

// countingReader tracks bytes read so the loader can log file sizes of
// multipart parts whose length is unknown up front.
type countingReader struct {
	reader io.Reader
	n      int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.n += int64(n)
	return n, err
}

// NormalizeReader strips a leading UTF-8 BOM and replaces invalid UTF-8
// bytes. The BOM must go first: the sanitizer would otherwise keep it as a
// valid rune glued to the first header.
func NormalizeReader(r io.Reader) io.Reader {
	return NewStreamingUTF8Sanitizer(NewBOMSkippingReader(r))
}

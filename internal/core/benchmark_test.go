package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
)

// ============================================================================
// Tokenizer Benchmarks
// ============================================================================

// BenchmarkSplitLine benchmarks tokenizing a typical staging row.
// This runs once per data line of every upload.
func BenchmarkSplitLine(b *testing.B) {
	line := `1001,ACME LTD,"12, Harbour Road",Oslo,NO,2024-01-15,150000.00,"said ""ok""",,Y`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SplitLine(line)
	}
}

// BenchmarkSplitLine_Plain benchmarks the common case: no quotes at all.
func BenchmarkSplitLine_Plain(b *testing.B) {
	line := strings.Repeat("value,", 40) + "last"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SplitLine(line)
	}
}

// ============================================================================
// Sanitizer Benchmarks
// ============================================================================

// BenchmarkSanitizerValue benchmarks cell cleanup, applied to every bound value.
func BenchmarkSanitizerValue(b *testing.B) {
	s := MustNewSanitizer(DefaultSanitizeRules)
	testCases := []string{
		"plain",
		"  padded  ",
		"multi   space   value",
		"line\r\nbreak",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			s.Value(tc)
		}
	}
}

// BenchmarkSanitizerIdentifier benchmarks header sanitizing.
func BenchmarkSanitizerIdentifier(b *testing.B) {
	s := MustNewSanitizer(DefaultSanitizeRules)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Identifier("Date of Birth (DD/MM/YYYY) #1")
	}
}

// BenchmarkSanitizerValueParallel checks the sanitizer under concurrent uploads.
func BenchmarkSanitizerValueParallel(b *testing.B) {
	s := MustNewSanitizer(DefaultSanitizeRules)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			s.Value("  some   cell value  ")
		}
	})
}

// ============================================================================
// Loader Benchmarks
// ============================================================================

// BenchmarkBatchLoader_Load benchmarks reading, binding and batching a file
// against an in-memory transaction.
func BenchmarkBatchLoader_Load(b *testing.B) {
	data := generateTestCSV(10000)
	loader := newTestLoader(DefaultBatchSize)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		db := &fakeDB{tx: &fakeTx{}}
		_, err := loader.Load(context.Background(), db, []UploadedFile{
			{Name: "bench.csv", Reader: bytes.NewReader(data)},
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkNormalizeReader benchmarks BOM skipping and UTF-8 sanitizing.
func BenchmarkNormalizeReader(b *testing.B) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, generateTestCSV(10000)...)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := io.Copy(io.Discard, NormalizeReader(bytes.NewReader(data))); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCSVWriter benchmarks writing rows that need escaping.
func BenchmarkCSVWriter(b *testing.B) {
	row := []string{"1001", "ACME, LTD", `said "ok"`, "", "plain"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := NewCSVWriter(io.Discard)
		for j := 0; j < 100; j++ {
			w.WriteRow(row)
		}
		w.Flush()
	}
}

// generateTestCSV creates a staging CSV with the given number of data rows.
func generateTestCSV(rows int) []byte {
	var buf bytes.Buffer
	buf.WriteString("Customer Id,Name,Address (Line 1),City,Amount\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&buf, "%d,Customer %d,\"%d Main St, Unit %d\",Oslo,%d.00\n", i, i, i, i%10, i*10)
	}
	return buf.Bytes()
}

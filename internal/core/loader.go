package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/lending/internal/logging"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrNoFiles is returned when an upload request carries no files.
	ErrNoFiles = errors.New("no file provided")

	// ErrEmptyFile is returned when a file has no header line.
	ErrEmptyFile = errors.New("empty file: missing header line")
)

// DefaultBatchSize is the number of rows queued before a batch is sent.
const DefaultBatchSize = 1000

// ContextCheckInterval is how often, in lines, cancellation is checked.
var ContextCheckInterval = 100

// UploadedFile is one named CSV stream of an upload request.
type UploadedFile struct {
	Name   string
	Size   int64 // 0 when unknown
	Reader io.Reader
}

// FileResult describes one loaded file.
type FileResult struct {
	Name    string `json:"name"`
	Table   string `json:"table"`
	Columns int    `json:"columns"`
	Rows    int64  `json:"rows"`
	Bytes   int64  `json:"bytes"`
}

// LoadResult describes a committed upload request.
type LoadResult struct {
	JobID    string        `json:"job_id"`
	Files    []FileResult  `json:"files"`
	Total    int64         `json:"total"`
	Duration time.Duration `json:"duration"`
}

// Message formats the user-facing success message. format receives the
// total record count as its only verb.
func (r *LoadResult) Message(format string) string {
	return fmt.Sprintf(format, r.Total)
}

// TxBeginner starts the transaction spanning one upload request.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BatchLoader loads CSV files into tables created from their headers.
type BatchLoader struct {
	sanitizer *Sanitizer
	schemas   *SchemaBuilder
	batchSize int
}

// NewBatchLoader creates a loader sending inserts in batches of batchSize.
func NewBatchLoader(sanitizer *Sanitizer, schemas *SchemaBuilder, batchSize int) *BatchLoader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchLoader{
		sanitizer: sanitizer,
		schemas:   schemas,
		batchSize: batchSize,
	}
}

// Load processes files in order inside one transaction. Every file's table
// is dropped and recreated from its header, then filled from its data lines.
// Any failure rolls back the whole request, tables from earlier files
// included; nothing is committed until the last file has been loaded.
func (l *BatchLoader) Load(ctx context.Context, db TxBeginner, files []UploadedFile) (*LoadResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	jobID := JobIDFromContext(ctx)
	logger := logging.WithFields(ctx, "job_id", jobID)
	start := time.Now()

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback(ctx)

	result := &LoadResult{JobID: jobID, Files: make([]FileResult, 0, len(files))}
	for _, f := range files {
		fr, err := l.loadFile(ctx, tx, f)
		if err != nil {
			logger.Error("file load failed, rolling back request",
				"file", f.Name,
				"error", err,
			)
			return nil, fmt.Errorf("load %s: %w", f.Name, err)
		}
		logger.Info("file loaded",
			"file", fr.Name,
			"table", fr.Table,
			"columns", fr.Columns,
			"rows", fr.Rows,
			"bytes", fr.Bytes,
		)
		result.Files = append(result.Files, *fr)
		result.Total += fr.Rows
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit upload: %w", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// loadFile creates the table for one file and inserts its rows on tx.
func (l *BatchLoader) loadFile(ctx context.Context, tx pgx.Tx, f UploadedFile) (*FileResult, error) {
	counter := &countingReader{reader: f.Reader}
	lines := newLineReader(NormalizeReader(counter))

	header, err := lines.next()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	table := l.sanitizer.TableName(f.Name)
	schema, err := l.schemas.Build(table, SplitLine(header))
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, schema.DropSQL()); err != nil {
		return nil, fmt.Errorf("drop table %s: %w", table, err)
	}
	if _, err := tx.Exec(ctx, schema.CreateSQL()); err != nil {
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}

	insertSQL := schema.InsertSQL()
	columns := schema.ColumnCount()
	batch := &pgx.Batch{}
	var rows int64

	for lineNo := 2; ; lineNo++ {
		line, err := lines.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", lineNo, err)
		}

		if lineNo%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		// Blank and whitespace-only lines are neither inserted nor counted.
		if strings.TrimSpace(line) == "" {
			continue
		}

		batch.Queue(insertSQL, l.bindRow(SplitLine(line), columns)...)
		rows++

		if batch.Len() >= l.batchSize {
			if err := sendBatch(ctx, tx, batch); err != nil {
				return nil, fmt.Errorf("insert into %s near line %d: %w", table, lineNo, err)
			}
			batch = &pgx.Batch{}
		}
	}

	if batch.Len() > 0 {
		if err := sendBatch(ctx, tx, batch); err != nil {
			return nil, fmt.Errorf("insert into %s: %w", table, err)
		}
	}

	return &FileResult{
		Name:    f.Name,
		Table:   table,
		Columns: columns,
		Rows:    rows,
		Bytes:   counter.n,
	}, nil
}

// bindRow binds fields positionally. Extra fields are dropped and missing
// trailing fields bind NULL.
func (l *BatchLoader) bindRow(fields []string, columns int) []any {
	args := make([]any, columns)
	for i := 0; i < columns && i < len(fields); i++ {
		args[i] = l.sanitizer.Value(fields[i])
	}
	return args
}

// sendBatch sends every queued insert and reports the first failure.
func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}

// lineReader yields physical lines without their terminators.
type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// next returns the next line, or io.EOF once the input is exhausted. A final
// line without a terminator is still returned.
func (lr *lineReader) next() (string, error) {
	line, err := lr.r.ReadString('\n')
	if err == io.EOF {
		if line == "" {
			return "", io.EOF
		}
		err = nil
	}
	if err != nil {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

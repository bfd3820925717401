// Package report exports the CIC status table as CSV.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/lending/internal/config"
	"github.com/JonMunkholm/lending/internal/core"
	"github.com/JonMunkholm/lending/internal/logging"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

var (
	// ErrQueryNotFound is returned when the report query is not configured.
	ErrQueryNotFound = errors.New("query not found in properties file")

	// ErrNoData is returned when the report query returns no rows.
	ErrNoData = errors.New("no data found for the query")
)

// Header is the fixed column list of the status report, in output order.
// Values are matched to result columns by name, ignoring case.
var Header = []string{
	"Id",
	"unique_commercial_id",
	"addr_rejects",
	"application",
	"borrower_rejects",
	"credit_facility_rejects",
	"dishonour_rejects",
	"gurantor_rejects",
	"insert_date",
	"relationship_rejects",
	"security_seg_rejects",
}

// QueryLoader returns the queries file. Called on every report so edits to
// the file apply without a restart.
type QueryLoader func() (*config.Queries, error)

// FileQueries loads the queries file at path.
func FileQueries(path string) QueryLoader {
	return func() (*config.Queries, error) {
		return config.LoadQueries(path)
	}
}

// Service runs the status query and renders the report.
type Service struct {
	db      core.DBTX
	queries QueryLoader
	key     string
}

// NewService creates a report service reading the query under key.
func NewService(db core.DBTX, queries QueryLoader, key string) *Service {
	return &Service{db: db, queries: queries, key: key}
}

// Query returns the configured report query.
func (s *Service) Query(ctx context.Context) (string, error) {
	q, err := s.queries()
	if err != nil {
		logging.FromContext(ctx).Warn("report queries unavailable", "error", err)
		return "", ErrQueryNotFound
	}
	query := q.Get(s.key)
	if query == "" {
		return "", ErrQueryNotFound
	}
	return query, nil
}

// Generate writes the report to w and returns the number of data rows.
// Nothing is written when the query fails or returns no rows.
func (s *Service) Generate(ctx context.Context, w io.Writer) (int, error) {
	query, err := s.Query(ctx)
	if err != nil {
		return 0, err
	}

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("run report query: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int)
	for i, fd := range rows.FieldDescriptions() {
		name := strings.ToLower(fd.Name)
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	cw := core.NewCSVWriter(w)
	record := make([]string, len(Header))
	n := 0
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return n, fmt.Errorf("read report row %d: %w", n+1, err)
		}

		if n == 0 {
			if err := cw.WriteRow(Header); err != nil {
				return 0, err
			}
		}
		for i, col := range Header {
			record[i] = ""
			if idx, ok := index[strings.ToLower(col)]; ok && idx < len(values) {
				record[i] = FormatValue(values[idx])
			}
		}
		if err := cw.WriteRow(record); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("read report rows: %w", err)
	}

	if n == 0 {
		return 0, ErrNoData
	}
	if err := cw.Flush(); err != nil {
		return n, err
	}

	logging.FromContext(ctx).Info("report generated", "rows", n)
	return n, nil
}

// FormatValue renders a decoded column value as report text. NULL is empty.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	case [16]byte:
		return uuid.UUID(x).String()
	case pgtype.Numeric:
		if !x.Valid {
			return ""
		}
		b, err := x.MarshalJSON()
		if err != nil {
			return ""
		}
		return strings.Trim(string(b), `"`)
	default:
		return fmt.Sprint(x)
	}
}

package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrNoColumns is returned when a header row has no columns.
	ErrNoColumns = errors.New("invalid csv header: no columns")

	// ErrEmptyColumnName is returned when a header sanitizes to nothing.
	ErrEmptyColumnName = errors.New("invalid csv header: empty column name")

	// ErrDuplicateColumn is returned when two headers sanitize to the same name.
	ErrDuplicateColumn = errors.New("invalid csv header: duplicate column name")
)

// MaxIdentifierBytes is PostgreSQL's identifier length; longer names are
// truncated by the server.
const MaxIdentifierBytes = 63

// DefaultColumnType is the SQL type of every generated column.
const DefaultColumnType = "VARCHAR(80)"

// IdentityColumnType is the definition of a generated identity column.
const IdentityColumnType = "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"

// Column describes one generated column.
type Column struct {
	Name   string // Sanitized identifier
	Header string // Raw header text it came from
	Type   string
}

// TableSchema is the table definition derived from one CSV header row.
// Every data column is nullable free text; Identity, when set, is populated
// by the database and never bound by inserts.
type TableSchema struct {
	Name     string
	Identity *Column
	Columns  []Column
}

// SchemaBuilder derives table schemas from header rows.
type SchemaBuilder struct {
	sanitizer  *Sanitizer
	columnType string
	identity   map[string]string // reserved table -> identity column
}

// NewSchemaBuilder creates a builder. identity maps reserved table names to
// the identity column they receive; other tables get no implicit key.
func NewSchemaBuilder(sanitizer *Sanitizer, columnType string, identity map[string]string) *SchemaBuilder {
	if columnType == "" {
		columnType = DefaultColumnType
	}
	ids := make(map[string]string, len(identity))
	for table, col := range identity {
		ids[table] = col
	}
	return &SchemaBuilder{
		sanitizer:  sanitizer,
		columnType: columnType,
		identity:   ids,
	}
}

// Build derives the schema for table from headers. At least one header is
// required and every header must sanitize to a distinct, non-empty name.
func (b *SchemaBuilder) Build(table string, headers []string) (*TableSchema, error) {
	if len(headers) == 0 {
		return nil, ErrNoColumns
	}

	schema := &TableSchema{
		Name:    table,
		Columns: make([]Column, 0, len(headers)),
	}

	seen := make(map[string]int, len(headers)+1)
	if col, ok := b.identity[table]; ok {
		schema.Identity = &Column{Name: col, Type: IdentityColumnType}
		seen[columnKey(col)] = -1
	}

	for i, header := range headers {
		name := b.sanitizer.Identifier(header)
		if name == "" {
			return nil, fmt.Errorf("%w: column %d (%q)", ErrEmptyColumnName, i+1, header)
		}

		key := columnKey(name)
		if prev, dup := seen[key]; dup {
			if prev < 0 {
				return nil, fmt.Errorf("%w: %q collides with identity column", ErrDuplicateColumn, header)
			}
			return nil, fmt.Errorf("%w: %q and %q both become %s",
				ErrDuplicateColumn, headers[prev], header, key)
		}
		seen[key] = i

		schema.Columns = append(schema.Columns, Column{Name: name, Header: header, Type: b.columnType})
	}

	return schema, nil
}

// ColumnCount returns the number of bound (non-identity) columns.
func (t *TableSchema) ColumnCount() int {
	return len(t.Columns)
}

// DropSQL returns the statement removing any previous table of this name.
func (t *TableSchema) DropSQL() string {
	return "DROP TABLE IF EXISTS " + quoteIdentifier(t.Name)
}

// CreateSQL returns the CREATE TABLE statement.
func (t *TableSchema) CreateSQL() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(quoteIdentifier(t.Name))
	b.WriteString(" (")

	defs := make([]string, 0, len(t.Columns)+1)
	if t.Identity != nil {
		defs = append(defs, quoteIdentifier(t.Identity.Name)+" "+t.Identity.Type)
	}
	for _, col := range t.Columns {
		defs = append(defs, quoteIdentifier(col.Name)+" "+col.Type)
	}
	b.WriteString(strings.Join(defs, ", "))
	b.WriteString(")")

	return b.String()
}

// InsertSQL returns a parameterized INSERT with one placeholder per bound
// column. The identity column is left to the database.
func (t *TableSchema) InsertSQL() string {
	cols := make([]string, len(t.Columns))
	params := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		cols[i] = quoteIdentifier(col.Name)
		params[i] = fmt.Sprintf("$%d", i+1)
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(t.Name),
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
	)
}

// columnKey is the name the server sees for comparison: truncated to
// MaxIdentifierBytes on a rune boundary and lower-cased.
func columnKey(name string) string {
	if len(name) > MaxIdentifierBytes {
		cut := MaxIdentifierBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return strings.ToLower(name)
}

// quoteIdentifier quotes a single identifier for use in generated SQL.
func quoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Package procedure installs, calls and counts through the stored procedures
// and functions that move staging data into the segment tables.
package procedure

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/JonMunkholm/lending/internal/config"
	"github.com/JonMunkholm/lending/internal/core"
	"github.com/JonMunkholm/lending/internal/logging"
	"github.com/jackc/pgx/v5"
)

// ErrScriptNotFound is returned when a SQL script is missing from the script
// directory.
var ErrScriptNotFound = errors.New("sql script not found")

// Runner executes procedure statements built from the configured templates.
// Procedure and function names come from configuration and are inserted
// verbatim; table names are quoted.
type Runner struct {
	db      core.DBTX
	scripts fs.FS
	sql     *config.Constants
}

// NewRunner creates a Runner reading scripts from scripts.
func NewRunner(db core.DBTX, scripts fs.FS, consts *config.Constants) *Runner {
	return &Runner{db: db, scripts: scripts, sql: consts}
}

// WithDB returns a copy of r running on db, typically a transaction.
func (r *Runner) WithDB(db core.DBTX) *Runner {
	return &Runner{db: db, scripts: r.scripts, sql: r.sql}
}

// DropIfExists drops procedure name using the drop template.
func (r *Runner) DropIfExists(ctx context.Context, name string) error {
	return r.exec(ctx, fmt.Sprintf(r.sql.DropProcedureTemplate, name))
}

// DropFunctionIfExists drops function name using the function drop template.
func (r *Runner) DropFunctionIfExists(ctx context.Context, name string) error {
	return r.exec(ctx, fmt.Sprintf(r.sql.DropFunctionTemplate, name))
}

// DropWithPrefix drops procedure name using the drop query prefix.
func (r *Runner) DropWithPrefix(ctx context.Context, name string) error {
	return r.exec(ctx, strings.TrimRight(r.sql.DropQuery, " ")+" "+name)
}

// ExecScript runs the whole script at path as one simple-protocol statement.
// A leading slash is ignored; paths are relative to the script directory.
func (r *Runner) ExecScript(ctx context.Context, path string) error {
	script, err := fs.ReadFile(r.scripts, strings.TrimPrefix(path, "/"))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrScriptNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("read script %s: %w", path, err)
	}

	logging.FromContext(ctx).Debug("executing script", "path", path, "bytes", len(script))
	if _, err := r.db.Exec(ctx, string(script)); err != nil {
		return fmt.Errorf("execute script %s: %w", path, err)
	}
	return nil
}

// Install drops procedure name and recreates it from the script at path.
func (r *Runner) Install(ctx context.Context, name, path string) error {
	if err := r.DropIfExists(ctx, name); err != nil {
		return err
	}
	return r.ExecScript(ctx, path)
}

// InstallFunction drops function name and recreates it from the script at path.
func (r *Runner) InstallFunction(ctx context.Context, name, path string) error {
	if err := r.DropFunctionIfExists(ctx, name); err != nil {
		return err
	}
	return r.ExecScript(ctx, path)
}

// Call invokes procedure name without arguments.
func (r *Runner) Call(ctx context.Context, name string) error {
	return r.exec(ctx, fmt.Sprintf(r.sql.CallProcedureTemplate, name))
}

// RunScript executes the script at path and then calls the procedure it
// defines.
func (r *Runner) RunScript(ctx context.Context, path, name string) error {
	if err := r.ExecScript(ctx, path); err != nil {
		return err
	}
	return r.Call(ctx, name)
}

// CallWith executes a configured call statement binding one string parameter.
func (r *Runner) CallWith(ctx context.Context, statement, param string) error {
	return r.exec(ctx, statement, param)
}

// CountRows asks count function fn for the number of rows in table.
func (r *Runner) CountRows(ctx context.Context, fn, table string) (int64, error) {
	var n int64
	query := fmt.Sprintf(r.sql.CountRowsTemplate, fn)
	if err := r.db.QueryRow(ctx, query, table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows of %s via %s: %w", table, fn, err)
	}
	logging.FromContext(ctx).Info("row count", "table", table, "rows", n)
	return n, nil
}

// TableCount counts the rows of table directly.
func (r *Runner) TableCount(ctx context.Context, table string) (int64, error) {
	var n int64
	query := strings.TrimRight(r.sql.CountQuery, " ") + " " + QuoteTable(table)
	if err := r.db.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Truncate empties table.
func (r *Runner) Truncate(ctx context.Context, table string) error {
	return r.exec(ctx, fmt.Sprintf(r.sql.TruncateTableTemplate, QuoteTable(table)))
}

func (r *Runner) exec(ctx context.Context, sql string, args ...any) error {
	logging.FromContext(ctx).Debug("executing statement", "sql", sql)
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("%s: %w", sql, err)
	}
	return nil
}

// QuoteTable quotes a possibly schema-qualified table name.
func QuoteTable(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

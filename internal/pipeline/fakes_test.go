package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing/fstest"

	"github.com/JonMunkholm/lending/internal/config"
	"github.com/JonMunkholm/lending/internal/core"
	"github.com/JonMunkholm/lending/internal/procedure"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB records statements and answers counts by table name.
type fakeDB struct {
	stmts   []string
	args    [][]any
	counts  map[string]int64 // table name -> rows
	failSQL string
}

func (d *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.stmts = append(d.stmts, sql)
	d.args = append(d.args, args)
	if d.failSQL != "" && strings.Contains(sql, d.failSQL) {
		return pgconn.CommandTag{}, errors.New("ERROR: division by zero (SQLSTATE 22012)")
	}
	return pgconn.NewCommandTag("CALL"), nil
}

func (d *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (d *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	d.stmts = append(d.stmts, sql)
	d.args = append(d.args, args)
	for table, n := range d.counts {
		if strings.Contains(sql, `"`+table+`"`) {
			return countRow{n: n}
		}
		for _, a := range args {
			if a == table {
				return countRow{n: n}
			}
		}
	}
	return countRow{}
}

type countRow struct{ n int64 }

func (r countRow) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.n
	return nil
}

// fakeProcess records the spec it was asked to run.
type fakeProcess struct {
	spec     ProcessSpec
	calls    int
	exitCode int
	err      error
}

func (p *fakeProcess) Run(ctx context.Context, spec ProcessSpec) (int, error) {
	p.calls++
	p.spec = spec
	return p.exitCode, p.err
}

func testScripts() fstest.MapFS {
	c := config.DefaultConstants()
	files := fstest.MapFS{}
	for _, name := range []string{
		c.TruncateSQLPath,
		c.MigrateSQLPath,
		c.TruncateCreateTablePath,
		c.CountRowsFunctionPath,
		c.DuplicateTablesPath,
		c.DropBackupPath,
		c.BorrowerMigrateSQL,
		c.SecurityMigrateSQL,
	} {
		files[name] = &fstest.MapFile{Data: []byte("-- " + name)}
	}
	return files
}

func newTestRunner(db *fakeDB) (*procedure.Runner, *core.SegmentRegistry, *config.Constants) {
	consts := config.DefaultConstants()
	return procedure.NewRunner(db, testScripts(), consts), core.NewSegmentRegistry(consts), consts
}

package core

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeTx records statements and batches. Methods not overridden panic via
// the nil embedded interface.
type fakeTx struct {
	pgx.Tx

	execs   []string
	batches [][]*pgx.QueuedQuery

	failExec   string // Exec fails when the SQL contains it
	failInsert string // batch Exec fails when the SQL contains it

	committed  bool
	rolledBack bool
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	if f.failExec != "" && strings.Contains(sql, f.failExec) {
		return pgconn.CommandTag{}, errors.New("ERROR: syntax error at or near \"x\"")
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (f *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	queued := append([]*pgx.QueuedQuery(nil), b.QueuedQueries...)
	f.batches = append(f.batches, queued)
	return &fakeBatchResults{queued: queued, failInsert: f.failInsert}
}

func (f *fakeTx) Commit(ctx context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	if f.committed {
		return pgx.ErrTxClosed
	}
	f.rolledBack = true
	return nil
}

// rows returns the bound arguments of every queued insert, in order.
func (f *fakeTx) rows() [][]any {
	var out [][]any
	for _, b := range f.batches {
		for _, q := range b {
			out = append(out, q.Arguments)
		}
	}
	return out
}

type fakeBatchResults struct {
	pgx.BatchResults

	queued     []*pgx.QueuedQuery
	next       int
	failInsert string
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	q := r.queued[r.next]
	r.next++
	if r.failInsert != "" && strings.Contains(q.SQL, r.failInsert) {
		return pgconn.CommandTag{}, errors.New("ERROR: value too long for type character varying(80)")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeBatchResults) Close() error {
	return nil
}

// fakeDB hands out a single fakeTx.
type fakeDB struct {
	tx       *fakeTx
	beginErr error
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	return d.tx, nil
}

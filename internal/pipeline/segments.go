package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/lending/internal/config"
	"github.com/JonMunkholm/lending/internal/core"
	"github.com/JonMunkholm/lending/internal/logging"
	"github.com/JonMunkholm/lending/internal/procedure"
)

// ErrInvalidDate is returned when a backup date is not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// ResetTimeout bounds TruncateAll.
const ResetTimeout = 30 * time.Second

// SegmentOps runs maintenance on individual segments and on the backup tables.
type SegmentOps struct {
	procs    *procedure.Runner
	segments *core.SegmentRegistry
	consts   *config.Constants
}

// NewSegmentOps creates SegmentOps.
func NewSegmentOps(procs *procedure.Runner, segments *core.SegmentRegistry, consts *config.Constants) *SegmentOps {
	return &SegmentOps{procs: procs, segments: segments, consts: consts}
}

// Segments returns the registered segments.
func (o *SegmentOps) Segments() []core.Segment {
	return o.segments.All()
}

// MigrateSegment reinstalls the segment's procedure, calls it and returns the
// resulting row count of the segment table.
func (o *SegmentOps) MigrateSegment(ctx context.Context, key string) (*SegmentCount, error) {
	seg, err := o.segments.Get(key)
	if err != nil {
		return nil, err
	}
	logger := logging.WithFields(ctx, "segment", seg.Key, "procedure", seg.Proc)

	if err := o.procs.Install(ctx, seg.Proc, seg.MigrateSQL); err != nil {
		return nil, fmt.Errorf("install %s: %w", seg.Proc, err)
	}
	if err := o.procs.Call(ctx, seg.Proc); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", seg.Key, err)
	}

	n, err := o.procs.TableCount(ctx, seg.Table)
	if err != nil {
		return nil, err
	}
	logger.Info("segment migrated", "table", seg.Table, "rows", n)

	return &SegmentCount{Segment: seg.Key, Label: seg.Label, Table: seg.Table, Count: n}, nil
}

// TruncateSegment empties the segment's table.
func (o *SegmentOps) TruncateSegment(ctx context.Context, key string) error {
	seg, err := o.segments.Get(key)
	if err != nil {
		return err
	}
	if err := o.procs.Truncate(ctx, seg.Table); err != nil {
		return fmt.Errorf("truncate %s: %w", seg.Key, err)
	}
	logging.WithFields(ctx, "segment", seg.Key).Info("segment truncated", "table", seg.Table)
	return nil
}

// TruncateAll empties every segment table in registry order, stopping at
// the first failure.
func (o *SegmentOps) TruncateAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	for _, seg := range o.segments.All() {
		if err := o.TruncateSegment(ctx, seg.Key); err != nil {
			return err
		}
	}
	return nil
}

// DuplicateTables copies the segment tables into backups tagged with date.
func (o *SegmentOps) DuplicateTables(ctx context.Context, date string) error {
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if err := o.procs.Install(ctx, o.consts.DuplicateTablesProc, o.consts.DuplicateTablesPath); err != nil {
		return fmt.Errorf("install %s: %w", o.consts.DuplicateTablesProc, err)
	}
	if err := o.procs.CallWith(ctx, o.consts.DuplicateTablesCall, date); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("tables duplicated", "date", date)
	return nil
}

// DropBackup removes the backup tables.
func (o *SegmentOps) DropBackup(ctx context.Context) error {
	if err := o.procs.Install(ctx, o.consts.DropBackupProc, o.consts.DropBackupPath); err != nil {
		return fmt.Errorf("install %s: %w", o.consts.DropBackupProc, err)
	}
	if err := o.procs.Call(ctx, o.consts.DropBackupProc); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("backup tables dropped")
	return nil
}

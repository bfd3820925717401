// Package pipeline runs the long jobs that move staging data towards the
// CIC submission file: the data conversion run, per-segment maintenance and
// the external jar that writes the file.
package pipeline

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/lending/internal/config"
	"github.com/JonMunkholm/lending/internal/core"
	"github.com/JonMunkholm/lending/internal/logging"
	"github.com/JonMunkholm/lending/internal/procedure"
)

// SegmentCount is the row count of one segment table.
type SegmentCount struct {
	Segment string `json:"segment"`
	Label   string `json:"-"`
	Table   string `json:"table"`
	Count   int64  `json:"count"`
}

// ConversionResult describes a completed data conversion run.
type ConversionResult struct {
	Counts   []SegmentCount `json:"counts"`
	Message  string         `json:"message"`
	RunLog   string         `json:"run_log,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Converter runs the data conversion: staging tables are truncated and
// dropped, data is moved into the segment tables, and each segment is counted.
type Converter struct {
	procs      *procedure.Runner
	segments   *core.SegmentRegistry
	consts     *config.Constants
	runLogPath string
}

// NewConverter creates a Converter writing its run log to runLogPath. An
// empty runLogPath disables the run log file.
func NewConverter(procs *procedure.Runner, segments *core.SegmentRegistry, consts *config.Constants, runLogPath string) *Converter {
	return &Converter{
		procs:      procs,
		segments:   segments,
		consts:     consts,
		runLogPath: runLogPath,
	}
}

// Run executes the conversion. On failure the returned error is the
// technical cause; FailureMessage formats it for the operator.
func (c *Converter) Run(ctx context.Context) (*ConversionResult, error) {
	start := time.Now()

	runLog, err := logging.OpenRunLog(ctx, c.runLogPath)
	if err != nil {
		return nil, err
	}
	defer runLog.Close()

	logger := runLog.Logger().With("job_id", core.JobIDFromContext(ctx))
	logger.Info("data conversion started")

	if err := c.procs.DropWithPrefix(ctx, c.consts.TruncateAndDropProc); err != nil {
		logger.Error("drop procedure failed", "procedure", c.consts.TruncateAndDropProc, "error", err)
		return nil, err
	}
	if err := c.procs.DropWithPrefix(ctx, c.consts.MoveDataProc); err != nil {
		logger.Error("drop procedure failed", "procedure", c.consts.MoveDataProc, "error", err)
		return nil, err
	}

	steps := []struct{ path, proc string }{
		{c.consts.TruncateSQLPath, c.consts.TruncateAndDropProc},
		{c.consts.MigrateSQLPath, c.consts.MoveDataProc},
	}
	for _, step := range steps {
		if err := c.procs.RunScript(ctx, step.path, step.proc); err != nil {
			logger.Error("procedure failed", "procedure", step.proc, "script", step.path, "error", err)
			return nil, err
		}
		logger.Info("procedure completed", "procedure", step.proc)
	}

	result := &ConversionResult{RunLog: runLog.Path()}
	var msg strings.Builder
	for _, seg := range c.segments.All() {
		n, err := c.procs.TableCount(ctx, seg.Table)
		if err != nil {
			logger.Error("segment count failed", "segment", seg.Key, "error", err)
			return nil, err
		}
		logger.Info("segment counted", "segment", seg.Key, "table", seg.Table, "rows", n)

		result.Counts = append(result.Counts, SegmentCount{
			Segment: seg.Key,
			Label:   seg.Label,
			Table:   seg.Table,
			Count:   n,
		})
		msg.WriteString(seg.Label)
		msg.WriteString(strconv.FormatInt(n, 10))
		msg.WriteString(c.consts.LineBreak)
	}

	result.Message = msg.String()
	result.Duration = time.Since(start)
	logger.Info("data conversion completed", "duration", result.Duration)
	return result, nil
}

// FailureMessage formats err as the operator-facing conversion failure.
func (c *Converter) FailureMessage(err error) string {
	return c.consts.ErrConversionPrefix + err.Error() + c.consts.LineBreak
}

// RunLogPath resolves the run log location. LOG_RUN_FILE wins; otherwise the
// queries file is consulted under the configured key. A missing queries file
// yields "".
func RunLogPath(cfg *config.Config, consts *config.Constants) string {
	if cfg.Logging.RunFile != "" {
		return cfg.Logging.RunFile
	}
	queries, err := config.LoadQueries(cfg.Paths.SQLFile(consts.QueriesPropertiesFile))
	if err != nil {
		return ""
	}
	return queries.Get(consts.LogFilePathKey)
}

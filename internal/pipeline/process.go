package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/JonMunkholm/lending/internal/logging"
)

// ProcessSpec describes one child process.
type ProcessSpec struct {
	Command string
	Args    []string
	Env     []string // complete environment, KEY=value
	Dir     string
}

// ProcessRunner starts a child process and blocks until it exits.
// A non-zero exit is reported through the exit code, not the error; the
// error is for failures to start or wait.
type ProcessRunner interface {
	Run(ctx context.Context, spec ProcessSpec) (exitCode int, err error)
}

// ExecRunner runs processes with os/exec, logging their output line by line.
// Cancelling ctx, or exceeding Timeout when set, kills the child.
type ExecRunner struct {
	Timeout time.Duration
}

// Run implements ProcessRunner.
func (r ExecRunner) Run(ctx context.Context, spec ProcessSpec) (int, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Env = spec.Env
	cmd.Dir = spec.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("start jar: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("start jar: %w", err)
	}

	logger := logging.FromContext(ctx).With("command", spec.Command)
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start jar: %w", err)
	}
	logger.Info("process started", "pid", cmd.Process.Pid)

	// Pipes must be drained before Wait.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		logLines(stdout, logger, slog.LevelInfo, "stdout")
	}()
	go func() {
		defer wg.Done()
		logLines(stderr, logger, slog.LevelWarn, "stderr")
	}()
	wg.Wait()

	err = cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, fmt.Errorf("wait for jar: %w", ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		logger.Warn("process exited with error", "exit_code", exitErr.ExitCode())
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, fmt.Errorf("wait for jar: %w", err)
	}

	logger.Info("process exited", "exit_code", 0)
	return 0, nil
}

// maxLogLine caps one logged output line.
const maxLogLine = 1024 * 1024

// logLines logs r line by line until EOF. After a read error, including a
// line longer than maxLogLine, the rest of r is discarded so the child never
// blocks on a full pipe.
func logLines(r io.Reader, logger *slog.Logger, level slog.Level, stream string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLogLine)
	for scanner.Scan() {
		logger.Log(context.Background(), level, scanner.Text(), "stream", stream)
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("process output not logged", "stream", stream, "error", err)
		io.Copy(io.Discard, r) //nolint:errcheck
	}
}

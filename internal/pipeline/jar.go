package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/JonMunkholm/lending/internal/config"
	"github.com/JonMunkholm/lending/internal/core"
	"github.com/JonMunkholm/lending/internal/logging"
	"github.com/JonMunkholm/lending/internal/procedure"
	"github.com/magiconair/properties"
)

// ErrMissingProperty is returned when application.properties lacks one of
// the datasource settings handed to the jar.
var ErrMissingProperty = errors.New("missing property")

// JarResult is the outcome of a jar run. Message is the operator-facing text
// whether or not the run succeeded.
type JarResult struct {
	ExitCode  int    `json:"exit_code"`
	Records   int64  `json:"records"`
	Message   string `json:"message"`
	Succeeded bool   `json:"succeeded"`
}

// JarRunner prepares the status table, runs the external jar that writes the
// CIC submission file, and reports how many records the file holds.
type JarRunner struct {
	procs   *procedure.Runner
	consts  *config.Constants
	paths   config.PathsConfig
	jarPath string
	process ProcessRunner
	environ func() []string
}

// NewJarRunner creates a JarRunner for the jar at jarPath. Property files are
// read from paths.ConfigDir.
func NewJarRunner(procs *procedure.Runner, consts *config.Constants, paths config.PathsConfig, jarPath string, process ProcessRunner) *JarRunner {
	return &JarRunner{
		procs:   procs,
		consts:  consts,
		paths:   paths,
		jarPath: jarPath,
		process: process,
		environ: os.Environ,
	}
}

// Run executes the jar job. Configuration and process failures are reported
// through the result message; database failures are returned as errors.
func (j *JarRunner) Run(ctx context.Context) (*JarResult, error) {
	logger := logging.WithFields(ctx, "job_id", core.JobIDFromContext(ctx), "jar", j.jarPath)

	if err := j.procs.Install(ctx, j.consts.TruncateCreateTableProc, j.consts.TruncateCreateTablePath); err != nil {
		return nil, fmt.Errorf("install %s: %w", j.consts.TruncateCreateTableProc, err)
	}
	if err := j.procs.InstallFunction(ctx, j.consts.CountRowsFunction, j.consts.CountRowsFunctionPath); err != nil {
		return nil, fmt.Errorf("install %s: %w", j.consts.CountRowsFunction, err)
	}

	datasource, err := j.datasourceEnv()
	if err != nil {
		logger.Error("application properties", "error", err)
		return failed(j.consts.ErrLoadingConfig + err.Error()), nil
	}
	headSeg, err := j.headSegEnv()
	if err != nil {
		logger.Error("headSeg properties", "error", err)
		return failed(j.consts.ErrLoadingHeadSeg + err.Error()), nil
	}

	if err := j.procs.Call(ctx, j.consts.TruncateCreateTableProc); err != nil {
		return nil, err
	}

	env := append(j.environ(), datasource...)
	env = append(env, headSeg...)

	logger.Info("running jar")
	exitCode, err := j.process.Run(ctx, ProcessSpec{
		Command: j.consts.JavaCommand,
		Args:    []string{j.consts.JarOption, j.jarPath},
		Env:     env,
	})
	if err != nil {
		logger.Error("jar execution failed", "error", err)
		return failed(j.consts.ErrExecutingJar + err.Error()), nil
	}

	records, err := j.procs.CountRows(ctx, j.consts.CountRowsFunction, j.consts.StatusTable)
	if err != nil {
		return nil, err
	}

	result := &JarResult{ExitCode: exitCode, Records: records}
	if exitCode != 0 {
		logger.Warn("jar exited with error", "exit_code", exitCode, "records", records)
		result.Message = j.consts.ErrRunningJar
		return result, nil
	}

	logger.Info("jar completed", "records", records)
	result.Succeeded = true
	result.Message = j.consts.JarSuccess + fmt.Sprintf(j.consts.JarRecordCount, records)
	return result, nil
}

func failed(msg string) *JarResult {
	return &JarResult{ExitCode: -1, Message: msg}
}

// datasourceEnv maps the datasource settings of application.properties to
// the environment variables the jar reads.
func (j *JarRunner) datasourceEnv() ([]string, error) {
	p, err := properties.LoadFile(j.paths.ConfigFile(j.consts.ApplicationProperties), properties.UTF8)
	if err != nil {
		return nil, err
	}

	pairs := []struct{ property, env string }{
		{j.consts.DatasourceURLProperty, j.consts.DatasourceURLEnv},
		{j.consts.DatasourceUsernameProperty, j.consts.DatasourceUsernameEnv},
		{j.consts.DatasourcePasswordProperty, j.consts.DatasourcePasswordEnv},
		{j.consts.DDLAutoProperty, j.consts.DDLAutoEnv},
	}
	env := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		v, ok := p.Get(pair.property)
		if !ok {
			return nil, fmt.Errorf("%w %s", ErrMissingProperty, pair.property)
		}
		env = append(env, pair.env+"="+v)
	}
	return env, nil
}

// headSegEnv passes every headSeg.properties entry through unchanged, in
// file order.
func (j *JarRunner) headSegEnv() ([]string, error) {
	p, err := properties.LoadFile(j.paths.ConfigFile(j.consts.HeadSegProperties), properties.UTF8)
	if err != nil {
		return nil, err
	}

	env := make([]string, 0, p.Len())
	for _, k := range p.Keys() {
		env = append(env, k+"="+p.GetString(k, ""))
	}
	return env, nil
}

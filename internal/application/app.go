// Package application wires configuration, the database pool and the job
// services together for the server and the CLI.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/JonMunkholm/lending/internal/config"
	"github.com/JonMunkholm/lending/internal/core"
	"github.com/JonMunkholm/lending/internal/database"
	"github.com/JonMunkholm/lending/internal/pipeline"
	"github.com/JonMunkholm/lending/internal/procedure"
	"github.com/JonMunkholm/lending/internal/report"
	"github.com/JonMunkholm/lending/internal/sheet"
	"github.com/JonMunkholm/lending/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds every service of one process.
type App struct {
	Config     *config.Config
	Constants  *config.Constants
	Pool       *pgxpool.Pool
	Limiter    *core.JobLimiter
	Upload     *core.Service
	Sheets     *sheet.Converter
	Report     *report.Service
	Conversion *pipeline.Converter
	Jar        *pipeline.JarRunner
	Segments   *pipeline.SegmentOps
}

// New loads the business constants, connects to the database and builds
// the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	consts, err := config.LoadConstants(cfg.Paths.ConstantsPath())
	if err != nil {
		return nil, err
	}

	pool, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	app, err := build(cfg, consts, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return app, nil
}

func build(cfg *config.Config, consts *config.Constants, pool *pgxpool.Pool) (*App, error) {
	upload, err := core.NewService(pool, &cfg.Upload, consts)
	if err != nil {
		return nil, fmt.Errorf("create upload service: %w", err)
	}

	procs := procedure.NewRunner(pool, os.DirFS(cfg.Paths.SQLDir), consts)
	segments := core.NewSegmentRegistry(consts)
	runLog := pipeline.RunLogPath(cfg, consts)

	slog.Info("services configured",
		"segments", segments.Count(),
		"sql_dir", cfg.Paths.SQLDir,
		"config_dir", cfg.Paths.ConfigDir,
		"run_log", runLog,
	)

	return &App{
		Config:     cfg,
		Constants:  consts,
		Pool:       pool,
		Limiter:    core.NewJobLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		Upload:     upload,
		Sheets:     sheet.NewConverter(),
		Report:     report.NewService(pool, report.FileQueries(cfg.Paths.SQLFile(consts.QueriesPropertiesFile)), consts.ReportQueryKey),
		Conversion: pipeline.NewConverter(procs, segments, consts, runLog),
		Jar:        pipeline.NewJarRunner(procs, consts, cfg.Paths, cfg.Pipeline.JarPath, pipeline.ExecRunner{Timeout: cfg.Pipeline.JarTimeout}),
		Segments:   pipeline.NewSegmentOps(procs, segments, consts),
	}, nil
}

// Services exposes the app to the web layer.
func (a *App) Services() web.Services {
	return web.Services{
		Upload:     a.Upload,
		Sheets:     a.Sheets,
		Report:     a.Report,
		Conversion: a.Conversion,
		Jar:        a.Jar,
		Segments:   a.Segments,
		DB:         a.Pool,
	}
}

// Close releases the database pool.
func (a *App) Close() {
	a.Pool.Close()
}

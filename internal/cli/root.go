// Package cli implements lendctl, the operator command line of the
// migration backend.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/JonMunkholm/lending/internal/application"
	"github.com/JonMunkholm/lending/internal/config"
	"github.com/JonMunkholm/lending/internal/core"
	"github.com/JonMunkholm/lending/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the lendctl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "lendctl",
		Short: "Operate the commercial lending migration backend",
		Long: `lendctl runs the migration jobs of the lending backend from a shell:
CSV loads, spreadsheet conversion, the status report, the data conversion
procedures, the CIC jar and per-segment maintenance.

Configuration comes from the environment (a .env file in the working
directory is loaded first) exactly as for the server.

Exit Codes:
  0  - Success
  1  - General error
  2  - Usage error
  3  - Panic
  10 - Invalid configuration or properties
  11 - Database connection failed
  12 - Rejected input (file, segment key, date)
  13 - Job failed (SQL, procedure or jar)
  14 - Report returned no data
  15 - Too many jobs running`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	})
	root.PersistentFlags().String("env-file", ".env", "Environment file loaded before configuration")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newLoadCommand(),
		newConvertCommand(),
		newReportCommand(),
		newConvertDataCommand(),
		newRunJarCommand(),
		newSegmentCommand(),
	)
	return root
}

// usageArgs marks argument validation failures as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		return nil
	}
}

// Execute runs lendctl with the process arguments.
func Execute() error {
	root := NewRootCommand()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return err
}

// loadConfig applies the env file and loads the process configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		// A missing file is fine; the environment may already be set.
		_ = godotenv.Load(envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	level := cfg.Logging.Level
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	logging.Setup(level, cfg.Logging.Format)
	return cfg, nil
}

// loadApp loads configuration and connects to the database.
func loadApp(cmd *cobra.Command) (*application.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	app, err := application.New(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return app, nil
}

// jobContext cancels on SIGINT/SIGTERM and tags the context with a job id
// and the local user as operator.
func jobContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx, _ = core.NewJobContext(ctx)

	operator := "lendctl"
	if u, err := user.Current(); err == nil {
		operator = u.Username
	}
	return core.ContextWithOperator(ctx, operator), cancel
}

// withJob runs fn holding a limiter slot on a job context.
func withJob(cmd *cobra.Command, app *application.App, fn func(ctx context.Context) error) error {
	ctx, cancel := jobContext(cmd)
	defer cancel()
	return app.Limiter.Do(ctx, fn)
}

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/JonMunkholm/lending/internal/report"
	"github.com/spf13/cobra"
)

func newReportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export the CIC status report as CSV",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if output == "" {
				output = app.Constants.ReportFileName
			}

			var buf bytes.Buffer
			n, err := app.Report.Generate(cmd.Context(), &buf)
			switch {
			case errors.Is(err, report.ErrNoData):
				fmt.Fprintln(cmd.OutOrStdout(), app.Constants.NoReportData)
				return err
			case errors.Is(err, report.ErrQueryNotFound):
				fmt.Fprintln(cmd.ErrOrStderr(), app.Constants.ReportQueryNotFound)
				return err
			case err != nil:
				return err
			}

			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", n, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Report path (default: the configured report file name)")
	return cmd
}

func newConvertDataCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert-data",
		Short: "Move staging data into the segment tables and count them",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			return withJob(cmd, app, func(ctx context.Context) error {
				result, err := app.Conversion.Run(ctx)
				if err != nil {
					fmt.Fprint(cmd.ErrOrStderr(), app.Conversion.FailureMessage(err))
					return fmt.Errorf("%w: %w", ErrJobFailed, err)
				}
				fmt.Fprint(cmd.OutOrStdout(), result.Message)
				return nil
			})
		},
	}
}

func newRunJarCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run-jar",
		Short: "Generate the CIC submission file with the external jar",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			return withJob(cmd, app, func(ctx context.Context) error {
				result, err := app.Jar.Run(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.Message)
				if !result.Succeeded {
					return fmt.Errorf("%w: exit code %d", ErrJobFailed, result.ExitCode)
				}
				return nil
			})
		},
	}
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/lending/internal/core"
	"github.com/spf13/cobra"
)

func newLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load FILE...",
		Short: "Load CSV files into tables created from their headers",
		Long: `Load reads every FILE in one transaction. Each file's table is named
after the file, dropped and recreated from the header row, then filled
from the data rows. Any failure rolls back every file.

Examples:
  lendctl load BS.csv ADDR.csv
  lendctl load exports/*.csv`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: runLoad,
	}
}

func runLoad(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	files := make([]core.UploadedFile, 0, len(args))
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return err
		}
		if info.Size() == 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipping empty file %s\n", path)
			continue
		}
		files = append(files, core.UploadedFile{Name: filepath.Base(path), Size: info.Size(), Reader: f})
	}

	return withJob(cmd, app, func(ctx context.Context) error {
		result, err := app.Upload.Upload(ctx, files)
		if err != nil {
			return err
		}
		for _, fr := range result.Files {
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: %d rows\n", fr.Name, fr.Table, fr.Rows)
		}
		fmt.Fprintln(cmd.OutOrStdout(), app.Upload.SuccessMessage(result))
		return nil
	})
}

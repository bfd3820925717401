package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/lending/internal/sheet"
	"github.com/spf13/cobra"
)

func newConvertCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "convert WORKBOOK",
		Short: "Convert a spreadsheet into a zip of CSV files",
		Long: `Convert writes one CSV per non-empty sheet of WORKBOOK into a zip
archive. No database is needed.

Examples:
  lendctl convert loans.xlsx
  lendctl convert loans.xlsx -o /tmp/loans.zip`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args[0], output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive path (default: WORKBOOK name with .zip)")
	return cmd
}

func runConvert(cmd *cobra.Command, workbook, output string) error {
	if output == "" {
		output = filepath.Join(filepath.Dir(workbook), sheet.ArchiveName(workbook))
	}

	in, err := os.Open(workbook)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(output)
	if err != nil {
		return err
	}

	result, err := sheet.NewConverter().Convert(cmd.Context(), in, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(output)
		return err
	}

	for _, s := range result.Sheets {
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: %d rows, %d columns\n", s.Sheet, s.Entry, s.Rows, s.Columns)
	}
	for _, s := range result.Skipped {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: empty, skipped\n", s)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
	return nil
}

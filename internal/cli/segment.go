package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/JonMunkholm/lending/internal/config"
	"github.com/JonMunkholm/lending/internal/core"
	"github.com/spf13/cobra"
)

func newSegmentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Per-segment maintenance and backups",
	}
	cmd.AddCommand(
		newSegmentListCommand(),
		newSegmentMigrateCommand(),
		newSegmentTruncateCommand(),
		newSegmentDuplicateCommand(),
		newSegmentDropBackupCommand(),
	)
	return cmd
}

func newSegmentListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the configured segments",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			consts, err := config.LoadConstants(cfg.Paths.ConstantsPath())
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
			printSegments(cmd, core.NewSegmentRegistry(consts).All())
			return nil
		},
	}
}

func printSegments(cmd *cobra.Command, segments []core.Segment) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tTABLE\tPROCEDURE\tSCRIPT")
	for _, s := range segments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Key, s.Table, s.Proc, s.MigrateSQL)
	}
	tw.Flush()
}

func newSegmentMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate KEY",
		Short: "Reinstall and run one segment's migrate procedure",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			return withJob(cmd, app, func(ctx context.Context) error {
				count, err := app.Segments.MigrateSegment(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%d\n", count.Label, count.Count)
				return nil
			})
		},
	}
}

func newSegmentTruncateCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "truncate KEY | --all",
		Short: "Empty one segment table, or all of them",
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) == 0 {
				return nil
			}
			if !all && len(args) == 1 {
				return nil
			}
			return fmt.Errorf("%w: give exactly one segment KEY or --all", ErrUsage)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			return withJob(cmd, app, func(ctx context.Context) error {
				if all {
					if err := app.Segments.TruncateAll(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "all segment tables truncated")
					return nil
				}
				if err := app.Segments.TruncateSegment(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "segment %s truncated\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Truncate every segment table")
	return cmd
}

func newSegmentDuplicateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate DATE",
		Short: "Back up the segment tables under DATE (YYYY-MM-DD)",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			return withJob(cmd, app, func(ctx context.Context) error {
				if err := app.Segments.DuplicateTables(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "tables duplicated for %s\n", args[0])
				return nil
			})
		},
	}
}

func newSegmentDropBackupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drop-backup",
		Short: "Drop the backup tables",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			return withJob(cmd, app, func(ctx context.Context) error {
				if err := app.Segments.DropBackup(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "backup tables dropped")
				return nil
			})
		},
	}
}

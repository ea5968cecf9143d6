package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mwantia/asyncvfs/vfs"
	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List directory contents",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		long, _ := cmd.Flags().GetBool("long")
		recursive, _ := cmd.Flags().GetBool("recursive")

		return withTree(cmd, func(ctx context.Context, root vfs.File) error {
			dir := root.Child(argOr(args, 0, "/"))

			var it vfs.Iterator
			if recursive {
				it = dir.ListRecursive(nil)
			} else {
				var err error
				if it, err = dir.List(ctx); err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			for file, err := range vfs.All(ctx, it) {
				if err != nil {
					return err
				}
				if err := printEntry(ctx, w, file, long); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func init() {
	lsCmd.Flags().BoolP("long", "l", false, "show size, type and modification time")
	lsCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	rootCmd.AddCommand(lsCmd)
}

func printEntry(ctx context.Context, w io.Writer, file vfs.File, long bool) error {
	if !long {
		_, err := fmt.Fprintln(w, file.Path())
		return err
	}

	stat, err := file.Stat(ctx)
	if err != nil {
		return err
	}

	kind, size := "-", humanize.Bytes(uint64(stat.Size))
	if stat.IsDirectory {
		kind, size = "d", "-"
	}

	modified := "-"
	if !stat.ModTime.IsZero() {
		modified = humanize.Time(stat.ModTime)
	}

	_, err = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", kind, size, modified, file.Path())
	return err
}

func argOr(args []string, i int, fallback string) string {
	if i < len(args) {
		return args[i]
	}
	return fallback
}

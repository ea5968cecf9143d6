package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwantia/asyncvfs/vfs"
	"github.com/spf13/cobra"
)

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Print a directory tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		depth, _ := cmd.Flags().GetInt("depth")

		return withTree(cmd, func(ctx context.Context, root vfs.File) error {
			dir := root.Child(argOr(args, 0, "/"))
			base := segments(dir.Path())

			filter := func(f vfs.File) bool {
				return depth <= 0 || segments(f.Path())-base <= depth
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, dir.Path())

			for file, err := range vfs.All(ctx, dir.ListRecursive(filter)) {
				if err != nil {
					return err
				}
				level := segments(file.Path()) - base
				fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", level), file.Base())
			}
			return nil
		})
	},
}

func init() {
	treeCmd.Flags().IntP("depth", "d", 0, "maximum depth (0 = unlimited)")
	rootCmd.AddCommand(treeCmd)
}

func segments(path string) int {
	if path == "/" {
		return 0
	}
	return strings.Count(path, "/")
}

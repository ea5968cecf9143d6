package cmd

import (
	"context"
	"fmt"

	"github.com/mwantia/asyncvfs/vfs"
	"github.com/spf13/cobra"
)

var cpCmd = &cobra.Command{
	Use:   "cp <source> <target>",
	Short: "Copy a file or directory tree",
	Long: `Copy a file or a whole directory tree. Both paths are resolved inside the
mounted tree, so content can move between backends layered with --mount.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, _ := cmd.Flags().GetBool("quiet")

		return withTree(cmd, func(ctx context.Context, root vfs.File) error {
			var progress func(src, dst vfs.File)
			if !quiet {
				progress = func(src, dst vfs.File) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", src.Path(), dst.Path())
				}
			}
			return root.Child(args[0]).CopyToTree(ctx, root.Child(args[1]), progress)
		})
	},
}

func init() {
	cpCmd.Flags().BoolP("quiet", "q", false, "do not print copied paths")
	rootCmd.AddCommand(cpCmd)
}

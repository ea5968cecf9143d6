package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/mwantia/asyncvfs/vfs"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Print change events until interrupted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTree(cmd, func(ctx context.Context, root vfs.File) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			sub, err := root.Child(argOr(args, 0, "/")).Watch(ctx, func(e vfs.Event) {
				if e.Kind == vfs.Renamed {
					fmt.Fprintf(out, "%s\t%s -> %s\n", e.Kind, e.Path, e.NewPath)
					return
				}
				fmt.Fprintf(out, "%s\t%s\n", e.Kind, e.Path)
			})
			if err != nil {
				return err
			}
			defer sub.Close()

			<-ctx.Done()
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

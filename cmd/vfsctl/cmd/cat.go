package cmd

import (
	"context"
	"io"

	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/vfs"
	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat <path>...",
	Short: "Print file contents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTree(cmd, func(ctx context.Context, root vfs.File) error {
			for _, path := range args {
				s, err := root.Child(path).Open(ctx, data.ModeRead)
				if err != nil {
					return err
				}

				_, err = io.Copy(cmd.OutOrStdout(), s)
				s.Close()
				if err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
}

package cmd

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/mwantia/asyncvfs/vfs"
	"github.com/spf13/cobra"
)

var statCmd = &cobra.Command{
	Use:   "stat <path>...",
	Short: "Show file metadata",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTree(cmd, func(ctx context.Context, root vfs.File) error {
			out := cmd.OutOrStdout()
			for _, path := range args {
				stat, err := root.Child(path).Stat(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "Path:     %s\n", stat.File.Path())
				if !stat.Exists {
					fmt.Fprintln(out, "Exists:   false")
					continue
				}
				fmt.Fprintf(out, "Type:     %s\n", kindOf(stat))
				fmt.Fprintf(out, "Size:     %s (%d bytes)\n", humanize.Bytes(uint64(stat.Size)), stat.Size)
				fmt.Fprintf(out, "Content:  %s\n", stat.ContentType)
				if !stat.ModTime.IsZero() {
					fmt.Fprintf(out, "Modified: %s (%s)\n", stat.ModTime.Format("2006-01-02 15:04:05"), humanize.Time(stat.ModTime))
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statCmd)
}

func kindOf(stat *vfs.Stat) string {
	if stat.IsDirectory {
		return "directory"
	}
	return "file"
}

package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mwantia/asyncvfs/async"
	"github.com/mwantia/asyncvfs/backend/zip"
	"github.com/mwantia/asyncvfs/log"
	"github.com/mwantia/asyncvfs/vfs"
	"github.com/spf13/cobra"
)

var zipCmd = &cobra.Command{
	Use:   "zip <archive>",
	Short: "List the central directory of a zip archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTree(cmd, func(ctx context.Context, root vfs.File) error {
			archive, err := zip.OpenFile(ctx, root.Child(args[0]), zip.WithLogger(rootLogger(ctx)))
			if err != nil {
				return err
			}
			defer archive.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintln(w, "METHOD\tSIZE\tCOMPRESSED\tMODIFIED\tPATH")
			for _, entry := range archive.Entries() {
				if entry.Dir {
					fmt.Fprintf(w, "dir\t-\t-\t%s\t%s/\n", entry.ModTime.Format("2006-01-02 15:04"), entry.Path)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					methodName(entry.Method),
					humanize.Bytes(uint64(entry.UncompressedSize)),
					humanize.Bytes(uint64(entry.CompressedSize)),
					entry.ModTime.Format("2006-01-02 15:04"),
					entry.Path)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(zipCmd)
}

func methodName(method uint16) string {
	switch method {
	case zip.MethodStore:
		return "store"
	case zip.MethodDeflate:
		return "deflate"
	default:
		return fmt.Sprintf("method(%d)", method)
	}
}

func rootLogger(ctx context.Context) *log.Logger {
	if scheduler, ok := async.FromContext(ctx); ok {
		return scheduler.Logger()
	}
	return log.Default("vfsctl")
}

// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oneconcern/flisthub/pkg/hub"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload {namespace} {tarball}",
	Short: "Convert a tarball into a flist",
	Long: `Convert a tarball into a flist, published into a namespace.

The file contents are pushed to the backend, and the flist is named after the
tarball without its extension: app.tar.gz becomes app.flist.

Accepted extensions are set by the allowed-extensions setting.
`,
	Example: `% flisthub upload bob ./app.tar.gz`,
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withHub("upload", func(ctx context.Context, h *hub.Hub) error {
			fi, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer func() {
				_ = fi.Close()
			}()

			results, err := h.UploadAsync(ctx, args[0], filepath.Base(args[1]), fi)
			if err != nil {
				return err
			}
			value, err := h.Wait(ctx, results)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), value, uploadFormatter)
		})
	},
}

var uploadFormatter = FormatterFunc(func(w io.Writer, data interface{}) error {
	result := data.(hub.UploadResult)
	stats := result.Stats
	_, err := fmt.Fprintf(w, "%s %s/%s\n%s\n", success("published"), result.Namespace, result.Name,
		faint(fmt.Sprintf("regular: %d, directory: %d, symlink: %d, special: %d, failure: %d, size: %d",
			stats.Regular, stats.Directory, stats.Symlink, stats.Special, stats.Failure, stats.Size)))
	for _, msg := range stats.Errors {
		if err != nil {
			break
		}
		_, err = fmt.Fprintf(w, "%s %s\n", failure("skipped"), msg)
	}
	return err
})

func init() {
	rootCmd.AddCommand(uploadCmd)
}

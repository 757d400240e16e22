package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/oneconcern/flisthub/pkg/hub"
	"github.com/spf13/cobra"
)

var uploadFlistCmd = &cobra.Command{
	Use:   "upload-flist {namespace} {archive.flist}",
	Short: "Publish a flist built elsewhere",
	Long: `Publish a flist which was built elsewhere.

The flist is refused unless all the contents it references are present on the backend.
`,
	Example: `% flisthub upload-flist bob ./app.flist`,
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withHub("upload flist", func(ctx context.Context, h *hub.Hub) error {
			fi, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer func() {
				_ = fi.Close()
			}()

			result, err := h.UploadArchive(ctx, args[0], filepath.Base(args[1]), fi)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), result, uploadFormatter)
		})
	},
}

func init() {
	rootCmd.AddCommand(uploadFlistCmd)
}

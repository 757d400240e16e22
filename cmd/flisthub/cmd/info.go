package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/oneconcern/flisthub/pkg/hub"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info {namespace} {name}",
	Short: "Describe a flist",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withHub("info", func(_ context.Context, h *hub.Hub) error {
			if flisthubFlags.info.readme {
				readme, err := h.Readme(args[0], args[1])
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), readme, readmeFormatter)
			}

			info, err := h.Info(args[0], args[1])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), info, FormatterFunc(func(w io.Writer, data interface{}) error {
				i := data.(hub.Info)
				if err := formatContent(w, i.Content); err != nil {
					return err
				}
				_, err := fmt.Fprintf(w, "md5\t%s\n", i.Checksum)
				return err
			}))
		})
	},
}

var readmeFormatter = FormatterFunc(func(w io.Writer, data interface{}) error {
	r := data.(hub.Readme)
	_, err := fmt.Fprintf(w, `# %s
- Uploader: %s
- Source: %s
- Storage: %s
- MD5: %s
`, r.Name, r.Uploader, r.Source, r.Storage, r.Checksum)
	return err
})

func init() {
	rootCmd.AddCommand(infoCmd)
	addReadmeFlag(infoCmd)
}

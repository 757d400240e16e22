package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/oneconcern/flisthub/pkg/hub"
	"github.com/oneconcern/flisthub/pkg/hub/status"
	"github.com/spf13/cobra"
)

var checksumCmd = &cobra.Command{
	Use:   "checksum {namespace} {name}",
	Short: "Print the md5 checksum of a flist",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withHub("checksum", func(_ context.Context, h *hub.Hub) error {
			sum, ok, err := h.Checksum(args[0], args[1])
			if err != nil {
				return err
			}
			if !ok {
				return status.ErrNotFound.Wrap(fmt.Errorf("%s/%s", args[0], args[1]))
			}
			return render(cmd.OutOrStdout(), map[string]string{"md5": sum}, FormatterFunc(func(w io.Writer, _ interface{}) error {
				_, err := fmt.Fprintln(w, sum)
				return err
			}))
		})
	},
}

func init() {
	rootCmd.AddCommand(checksumCmd)
}

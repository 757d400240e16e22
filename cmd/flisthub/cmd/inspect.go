package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/oneconcern/flisthub/pkg/flist"
	"github.com/oneconcern/flisthub/pkg/hub"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect {namespace} {name}",
	Short: "List the content of a flist",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withHub("inspect", func(ctx context.Context, h *hub.Hub) error {
			listing, err := h.Inspect(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), listing, FormatterFunc(func(w io.Writer, data interface{}) error {
				l := data.(flist.Listing)
				for _, e := range l.Content {
					if _, err := fmt.Fprintf(w, "%-9s %12d %s\n", e.Kind, e.Size, e.Path); err != nil {
						return err
					}
				}
				_, err := fmt.Fprintln(w, faint(fmt.Sprintf("regular: %d, directory: %d, symlink: %d, special: %d",
					l.Regular, l.Directory, l.Symlink, l.Special)))
				return err
			}))
		})
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

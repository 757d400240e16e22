package cmd

import (
	"context"

	"github.com/oneconcern/flisthub/pkg/hub"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete {namespace} {name}",
	Short: "Delete a flist or a link",
	Long: `Delete a flist or a symbolic link.

Contents on the backend are left untouched.
`,
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withHub("delete", func(ctx context.Context, h *hub.Hub) error {
			return h.Delete(ctx, args[0], args[1])
		})
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

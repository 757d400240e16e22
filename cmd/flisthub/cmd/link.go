package cmd

import (
	"context"

	"github.com/oneconcern/flisthub/pkg/hub"
	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:   "link {namespace} {source} {link}",
	Short: "Create or repoint a symbolic link to a flist",
	Long: `Create a symbolic link to a flist of the same namespace, or repoint an existing link.

A flist is never replaced by a link.
`,
	Example: `% flisthub link alice app-1.2.flist app-latest`,
	Args:    cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		withHub("link", func(ctx context.Context, h *hub.Hub) error {
			return h.Link(ctx, args[0], args[1], args[2])
		})
	},
}

func init() {
	rootCmd.AddCommand(linkCmd)
}

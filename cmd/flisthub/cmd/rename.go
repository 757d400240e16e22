package cmd

import (
	"context"

	"github.com/oneconcern/flisthub/pkg/hub"
	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:     "rename {namespace} {source} {destination}",
	Short:   "Rename a flist",
	Long:    `Rename a flist within its namespace. An existing flist at the destination is replaced.`,
	Example: `% flisthub rename alice app.flist app-1.0.flist`,
	Args:    cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		withHub("rename", func(ctx context.Context, h *hub.Hub) error {
			return h.Rename(ctx, args[0], args[1], args[2])
		})
	},
}

func init() {
	rootCmd.AddCommand(renameCmd)
}

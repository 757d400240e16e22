package cmd

import (
	"context"

	"github.com/oneconcern/flisthub/pkg/hub"
	"github.com/spf13/cobra"
)

var promoteCmd = &cobra.Command{
	Use:   "promote {source namespace} {name} {destination namespace}",
	Short: "Copy a flist into another namespace",
	Long: `Copy a flist into another namespace, usually an official repository.

Both namespaces must exist. A flist with the same name at the destination is replaced.
`,
	Example: `% flisthub promote alice app.flist official --name app-1.0`,
	Args:    cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		withHub("promote", func(ctx context.Context, h *hub.Hub) error {
			name := flisthubFlags.promote.name
			if name == "" {
				name = args[1]
			}
			return h.Promote(ctx, args[0], args[1], args[2], name)
		})
	},
}

func init() {
	rootCmd.AddCommand(promoteCmd)
	addPromoteNameFlag(promoteCmd)
}

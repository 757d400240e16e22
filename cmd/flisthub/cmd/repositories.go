package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/oneconcern/flisthub/pkg/hub"
	"github.com/spf13/cobra"
)

var repositoriesCmd = &cobra.Command{
	Use:     "repositories",
	Short:   "List the namespaces of the hub",
	Aliases: []string{"repos"},
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withHub("list repositories", func(_ context.Context, h *hub.Hub) error {
			repos, err := h.Repositories()
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), repos, FormatterFunc(func(w io.Writer, data interface{}) error {
				for _, repo := range data.([]hub.Repository) {
					official := ""
					if repo.Official {
						official = success("official")
					}
					if _, err := fmt.Fprintf(w, "%s\t%s\n", repo.Name, official); err != nil {
						return err
					}
				}
				return nil
			}))
		})
	},
}

func init() {
	rootCmd.AddCommand(repositoriesCmd)
}

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/oneconcern/flisthub/pkg/hub"
	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge {namespace} {target} {source}...",
	Short: "Merge flists into a new one",
	Long: `Merge flists into a new flist of a namespace.

Sources are flist names in the namespace, or namespace/name references.
When several sources hold the same path, the last one wins.
`,
	Example: `% flisthub merge alice full base.flist official/patch.flist`,
	Args:    cobra.MinimumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		withHub("merge", func(ctx context.Context, h *hub.Hub) error {
			results, err := h.MergeAsync(ctx, args[0], args[1], args[2:])
			if err != nil {
				return err
			}
			value, err := h.Wait(ctx, results)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), value, FormatterFunc(func(w io.Writer, data interface{}) error {
				_, err := fmt.Fprintf(w, "%s %s\n", success("merged"), data)
				return err
			}))
		})
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}

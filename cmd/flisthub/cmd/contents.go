package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/oneconcern/flisthub/pkg/hub"
	"github.com/spf13/cobra"
)

var contentsCmd = &cobra.Command{
	Use:   "contents [namespace]",
	Short: "List the flists of a namespace",
	Long: `List the flists and links of a namespace.

Without a namespace, all the flists of the hub are listed as namespace/name.
`,
	Aliases: []string{"ls"},
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withHub("list contents", func(_ context.Context, h *hub.Hub) error {
			if len(args) == 0 {
				all, err := h.AllFlists()
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), all, FormatterFunc(func(w io.Writer, data interface{}) error {
					for _, name := range data.([]string) {
						if _, err := fmt.Fprintln(w, name); err != nil {
							return err
						}
					}
					return nil
				}))
			}

			contents, err := h.Contents(args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), contents, FormatterFunc(func(w io.Writer, data interface{}) error {
				for _, content := range data.([]hub.Content) {
					if err := formatContent(w, content); err != nil {
						return err
					}
				}
				return nil
			}))
		})
	},
}

func formatContent(w io.Writer, content hub.Content) error {
	name := content.Name
	if content.Type == hub.TypeSymlink {
		name += " -> " + content.Target
	}
	_, err := fmt.Fprintf(w, "%s\t%s\t%s\n", name, content.Size, faint(content.Updated.Format(time.RFC3339)))
	return err
}

func init() {
	rootCmd.AddCommand(contentsCmd)
}

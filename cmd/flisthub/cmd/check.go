package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/oneconcern/flisthub/pkg/flist"
	"github.com/oneconcern/flisthub/pkg/hub"
	"github.com/oneconcern/flisthub/pkg/hub/status"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check {namespace} {name}",
	Short: "Check that the contents of a flist are present on the backend",
	Long: `Check that all the contents referenced by a flist are present on the backend.

Missing hashes are listed, and the command fails when any is missing.
`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withHub("check", func(ctx context.Context, h *hub.Hub) error {
			result, err := h.Check(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if err = render(cmd.OutOrStdout(), result, checkFormatter); err != nil {
				return err
			}

			switch {
			case result.Reason != "":
				return status.ErrUnavailable.Wrap(fmt.Errorf("%s", result.Reason))
			case !result.Complete:
				return status.ErrIncomplete.Wrap(fmt.Errorf("%d missing", len(result.Missing)))
			}
			return nil
		})
	},
}

var checkFormatter = FormatterFunc(func(w io.Writer, data interface{}) error {
	result := data.(flist.Result)
	for _, hash := range result.Missing {
		if _, err := fmt.Fprintf(w, "%s %s\n", failure("missing"), hash); err != nil {
			return err
		}
	}
	verdict := success("complete")
	if !result.Complete {
		verdict = failure("incomplete")
	}
	_, err := fmt.Fprintf(w, "%s %s\n", verdict, faint(fmt.Sprintf("(%d checked)", result.Checked)))
	return err
})

func init() {
	rootCmd.AddCommand(checkCmd)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cropmodel/dataset/internal/models"
)

func newPromoteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "promote DIR FILE...",
		Short: "Check which supplemental files can be marked model specific",
		Long: `Scan DIR, mark each FILE (relative to DIR or absolute) as model specific
and list the resulting model-specific files. Promotion is not persisted;
pass the same files to "package --promote" to include them in a package.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.scan(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range args[1:] {
				fmt.Fprintln(out, ds.Promote(resolve(args[0], p)))
			}

			files := ds.Files(models.CategoryModelSpecific)
			fmt.Fprintf(out, "\n%s files: %d\n", models.CategoryModelSpecific.Label(), len(files))
			for _, f := range files {
				fmt.Fprintf(out, "  %s\n", f)
			}
			return nil
		},
	}
}

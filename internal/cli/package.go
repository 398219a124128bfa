package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cropmodel/dataset/internal/dataset"
	"github.com/cropmodel/dataset/internal/packager"
)

func newPackageCommand(a *app) *cobra.Command {
	var (
		output  string
		extra   []string
		promote []string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "package DIR",
		Short: "Validate a dataset and assemble a submission zip",
		Long: `Validate DIR and write a zip holding the merged experiment archive, the
merged rule archive, every valid output table under its canonical name,
model-specific files and any --extra files, plus a manifest.yaml.

Files passed with --promote are marked model specific before validation.
An invalid dataset is only packaged with --force; invalid files are left out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.New("an output path is required (--output)")
			}

			ds, err := a.scan(args[0])
			if err != nil {
				return err
			}
			for _, p := range promote {
				fmt.Fprintln(cmd.OutOrStdout(), ds.Promote(resolve(args[0], p)))
			}

			rep := ds.Validate(cmd.OutOrStdout(), cmd.ErrOrStderr())
			a.saveRun(cmd, rep)
			if err := dataset.Verdict(rep); err != nil {
				if errors.Is(err, dataset.ErrNothingToValidate) || !force {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "Packaging valid files only.")
			}

			p := packager.New(
				packager.WithRootDir(a.cfg.Package.RootDir),
				packager.WithAcmoDir(a.cfg.Package.AcmoDir),
				packager.WithLogger(a.logger),
			)
			manifest, err := p.Build(output, ds.Plan(rep, extra...))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nWrote %s (%d entries)\n", output, len(manifest.Entries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "zip file to write")
	cmd.Flags().StringSliceVar(&extra, "extra", nil, "additional files to place at the package root")
	cmd.Flags().StringSliceVar(&promote, "promote", nil, "supplemental files to mark model specific")
	cmd.Flags().BoolVar(&force, "force", false, "package the valid files of an invalid dataset")
	return cmd
}

// resolve interprets a relative path against dir when it names a file there.
func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	abs, err := filepath.Abs(filepath.Join(dir, path))
	if err != nil {
		return path
	}
	return abs
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/dataset"
	"github.com/cropmodel/dataset/internal/models"
	"github.com/cropmodel/dataset/internal/report"
)

func newValidateCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "validate DIR",
		Short: "Validate every file of a dataset directory",
		Long: `Classify every file under DIR, then check experiment and rule archives,
output tables, canonical-name collisions and linkage against the archives.
The command exits non-zero when any check fails or nothing was found to verify.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			ds, err := a.scan(args[0])
			if err != nil {
				return err
			}

			var rep *models.DatasetReport
			if f == report.FormatText {
				rep = ds.Validate(cmd.OutOrStdout(), cmd.ErrOrStderr())
			} else {
				rep = ds.Validate(io.Discard, io.Discard)
				if err := report.Encode(cmd.OutOrStdout(), rep, f); err != nil {
					return fmt.Errorf("writing report: %w", err)
				}
			}

			a.saveRun(cmd, rep)
			return dataset.Verdict(rep)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatText), fmt.Sprintf("report format %v", report.Formats))
	cmd.Flags().Bool("store", false, "record the run in the report store")
	_ = a.v.BindPFlag("store.enabled", cmd.Flags().Lookup("store"))
	return cmd
}

// saveRun records rep when run history is enabled. Store failures are
// logged; the validation verdict stands on its own.
func (a *app) saveRun(cmd *cobra.Command, rep *models.DatasetReport) {
	if !a.cfg.Store.Enabled {
		return
	}
	store, err := a.openStore()
	if err != nil {
		a.logger.Warn("opening report store failed", zap.Error(err))
		return
	}
	defer store.Close()

	if err := store.SaveRun(cmd.Context(), rep); err != nil {
		a.logger.Warn("saving run failed", zap.String("run", rep.RunID), zap.Error(err))
		return
	}
	a.logger.Info("run saved", zap.String("run", rep.RunID))
}

package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/watch"
)

func newWatchCommand(a *app) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Revalidate a dataset whenever its files change",
		Long: `Validate DIR once, then rescan and revalidate after every burst of
filesystem changes until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if debounce <= 0 {
				debounce = a.cfg.Debounce()
			}

			ds, err := a.scan(args[0])
			if err != nil {
				return err
			}
			w, err := watch.New(ds.Root(),
				watch.WithDebounce(debounce),
				watch.WithSkipDotFiles(a.cfg.Scan.SkipDotFiles),
				watch.WithLogger(a.logger),
			)
			if err != nil {
				return err
			}

			out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()
			rep := ds.Validate(out, errw)
			a.saveRun(cmd, rep)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return w.Run(ctx, func(paths []string) {
				fmt.Fprintf(out, "\n%d change(s) detected, revalidating %s\n", len(paths), ds.Root())
				if err := ds.Refresh(); err != nil {
					a.logger.Warn("rescan failed", zap.Error(err))
					return
				}
				rep := ds.Validate(out, errw)
				a.saveRun(cmd, rep)
			})
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before revalidating (default watch.debounce_ms)")
	return cmd
}

// Package cli wires the cmdataset command tree.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/config"
	"github.com/cropmodel/dataset/internal/dataset"
	"github.com/cropmodel/dataset/internal/filetype"
	"github.com/cropmodel/dataset/internal/logging"
	"github.com/cropmodel/dataset/internal/reportstore"
)

// Version is set at build time.
var Version = "dev"

// app carries state shared by every subcommand once flags are parsed.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
}

// NewRootCommand builds the command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New(), logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "cmdataset",
		Short:         "Validate and package crop-model datasets",
		Long:          "cmdataset classifies the files of a crop-model dataset, validates archives, output tables and their linkage, and assembles submission packages.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default .cmdataset.yaml)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("log-development", false, "human-readable console logs")
	flags.String("store-path", "", "report store database path")
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.development", flags.Lookup("log-development"))
	_ = a.v.BindPFlag("store.path", flags.Lookup("store-path"))

	root.AddCommand(
		newValidateCommand(a),
		newPackageCommand(a),
		newPromoteCommand(a),
		newServeCommand(a),
		newWatchCommand(a),
		newRunsCommand(a),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) init() error {
	if err := config.Init(a.v, a.cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	a.logger = logger
	return nil
}

func (a *app) newDataset() *dataset.Dataset {
	classifier := filetype.New(
		filetype.WithExtensions(a.cfg.Classify.Extensions),
		filetype.WithCacheSize(a.cfg.Classify.CacheSize),
		filetype.WithLogger(a.logger),
	)
	return dataset.New(
		dataset.WithClassifier(classifier),
		dataset.WithSkipDotFiles(a.cfg.Scan.SkipDotFiles),
		dataset.WithLogger(a.logger),
	)
}

// openStore opens the report store at the configured path.
func (a *app) openStore() (*reportstore.Store, error) {
	if a.cfg.Store.Path == "" {
		return nil, errors.New("no report store path configured")
	}
	return reportstore.Open(a.cfg.Store.Path, a.logger)
}

// scan builds a dataset over the absolute form of dir.
func (a *app) scan(dir string) (*dataset.Dataset, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	ds := a.newDataset()
	if err := ds.Scan(abs); err != nil {
		return nil, err
	}
	return ds, nil
}

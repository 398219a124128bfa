// Package packager assembles a validated dataset into a submission zip.
package packager

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cropmodel/dataset/internal/ace"
	"github.com/cropmodel/dataset/internal/dome"
	"github.com/cropmodel/dataset/internal/fsutil"
	"github.com/cropmodel/dataset/internal/logging"
	"github.com/cropmodel/dataset/internal/models"
)

// Fixed names inside a package.
const (
	ExperimentArchiveName = "dataset.aceb"
	RuleArchiveName       = "alldomes.dome"
	ManifestName          = "manifest.yaml"
	DefaultAcmoDir        = "ACMOS"

	sensitivityFolder = "sensitivity"
	unknownFolder     = "unknown"
)

// Entry kinds recorded in the manifest.
const (
	KindExperimentArchive = "experiment_archive"
	KindRuleArchive       = "rule_archive"
	KindOutputTable       = "output_table"
	KindModelSpecific     = "model_specific"
	KindAdditional        = "additional"
)

// Table is an output table to be stored under its canonical name.
type Table struct {
	Source string
	Series string
	Name   string
}

// Plan lists what goes into a package.
type Plan struct {
	RunID              string
	ExperimentArchives []string
	RuleArchives       []string
	Tables             []Table
	ModelSpecific      []string
	Additional         []string
}

// Entry describes one file placed in the package.
type Entry struct {
	Path    string   `yaml:"path"`
	Kind    string   `yaml:"kind"`
	Series  string   `yaml:"series,omitempty"`
	Sources []string `yaml:"sources"`
	Count   int      `yaml:"count,omitempty"`
}

// Manifest is written to the package root as manifest.yaml.
type Manifest struct {
	RunID     string    `yaml:"run_id,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
	Entries   []Entry   `yaml:"entries"`
}

// Packager writes submission packages.
type Packager struct {
	rootDir string
	acmoDir string
	logger  *zap.Logger
}

// Option configures a Packager.
type Option func(*Packager)

// WithRootDir nests every entry under dir inside the zip.
func WithRootDir(dir string) Option {
	return func(p *Packager) { p.rootDir = strings.Trim(filepath.ToSlash(dir), "/") }
}

// WithAcmoDir sets the folder holding output tables.
func WithAcmoDir(dir string) Option {
	return func(p *Packager) {
		if dir != "" {
			p.acmoDir = strings.Trim(filepath.ToSlash(dir), "/")
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Packager) { p.logger = logging.OrNop(l).Named("packager") }
}

// New creates a Packager.
func New(opts ...Option) *Packager {
	p := &Packager{acmoDir: DefaultAcmoDir, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TableFolder returns the sub-folder for a series tag. Both sensitivity tags
// share one folder and tables without a tag go to "unknown".
func TableFolder(series string) string {
	switch {
	case series == "":
		return unknownFolder
	case models.IsSensitivitySeries(series):
		return sensitivityFolder
	default:
		return series
	}
}

// Build merges the archives of plan, then writes the merged archives, the
// output tables, the extra files and a manifest into zipPath. The zip is
// replaced atomically.
func (p *Packager) Build(zipPath string, plan Plan) (*Manifest, error) {
	work, err := os.MkdirTemp("", "cmdataset-package-*")
	if err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	defer os.RemoveAll(work)

	manifest := &Manifest{RunID: plan.RunID, CreatedAt: time.Now().UTC()}
	files := make(map[string]string)
	used := make(map[string]struct{})
	place := func(dest, src string, e Entry) {
		e.Path = dest
		files[dest] = src
		used[dest] = struct{}{}
		manifest.Entries = append(manifest.Entries, e)
	}

	if len(plan.ExperimentArchives) > 0 {
		merged := filepath.Join(work, ExperimentArchiveName)
		res, err := ace.Seam(merged, plan.ExperimentArchives, p.logger)
		if err != nil {
			return nil, fmt.Errorf("merging experiment archives: %w", err)
		}
		place(p.join(ExperimentArchiveName), merged,
			Entry{Kind: KindExperimentArchive, Sources: plan.ExperimentArchives, Count: res.Count})
	}

	if len(plan.RuleArchives) > 0 {
		merged := filepath.Join(work, RuleArchiveName)
		res, err := dome.Merge(merged, plan.RuleArchives, p.logger)
		if err != nil {
			return nil, fmt.Errorf("merging rule archives: %w", err)
		}
		place(p.join(RuleArchiveName), merged,
			Entry{Kind: KindRuleArchive, Sources: plan.RuleArchives, Count: res.Count})
	}

	for _, t := range plan.Tables {
		dir := p.join(p.acmoDir, TableFolder(t.Series))
		dest := uniqueName(used, dir, t.Name)
		place(dest, t.Source, Entry{Kind: KindOutputTable, Series: t.Series, Sources: []string{t.Source}})
	}
	for _, src := range plan.ModelSpecific {
		dest := uniqueName(used, p.join(), filepath.Base(src))
		place(dest, src, Entry{Kind: KindModelSpecific, Sources: []string{src}})
	}
	for _, src := range plan.Additional {
		dest := uniqueName(used, p.join(), filepath.Base(src))
		place(dest, src, Entry{Kind: KindAdditional, Sources: []string{src}})
	}

	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}

	err = fsutil.WriteAtomic(zipPath, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, e := range manifest.Entries {
			if err := addFile(zw, e.Path, files[e.Path]); err != nil {
				return err
			}
		}
		mw, err := zw.Create(p.join(ManifestName))
		if err != nil {
			return err
		}
		if _, err := mw.Write(manifestBytes); err != nil {
			return err
		}
		return zw.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("writing package %s: %w", zipPath, err)
	}

	p.logger.Info("package written", zap.String("path", zipPath), zap.Int("entries", len(manifest.Entries)))
	return manifest, nil
}

func (p *Packager) join(elem ...string) string {
	return path.Join(append([]string{p.rootDir}, elem...)...)
}

func addFile(zw *zip.Writer, name, src string) error {
	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return nil
}

// uniqueName returns dir/name, or dir/base_N.ext with the smallest N not yet
// used. The extension starts at the first dot of the name.
func uniqueName(used map[string]struct{}, dir, name string) string {
	dest := path.Join(dir, name)
	if _, taken := used[dest]; !taken {
		return dest
	}
	base, ext := name, ""
	if i := strings.Index(name, "."); i >= 0 {
		base, ext = name[:i], name[i:]
	}
	for n := 1; ; n++ {
		dest = path.Join(dir, base+"_"+strconv.Itoa(n)+ext)
		if _, taken := used[dest]; !taken {
			return dest
		}
	}
}

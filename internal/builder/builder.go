package builder

import (
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sermuns/static-listing/internal/config"
	"github.com/sermuns/static-listing/internal/filesystem"
	"github.com/sermuns/static-listing/internal/render"
	"github.com/sermuns/static-listing/internal/storage"
	"github.com/sermuns/static-listing/pkg/types"
	"go.uber.org/zap"
)

// IndexFile is the name of the generated listing page in every directory.
const IndexFile = "index.html"

type Builder struct {
	config   *config.Config
	fs       *filesystem.FS
	renderer *render.Renderer
	store    *storage.ManifestStore
	logger   *zap.Logger
}

// Summary describes a finished build. Previous is the build it replaced, nil
// when the manifest held none.
type Summary struct {
	BuildID   string
	Previous  *types.BuildInfo
	InputDir  string
	OutputDir string
	Elapsed   time.Duration
	types.Stats
}

func (s *Summary) String() string {
	return fmt.Sprintf("Mirrored %s into %s: %d directories, %d files (%s) in %v",
		s.InputDir, s.OutputDir, s.Directories, s.Files,
		humanize.IBytes(uint64(s.Bytes)), s.Elapsed.Round(time.Millisecond))
}

func New(cfg *config.Config, fsys *filesystem.FS, logger *zap.Logger) (*Builder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := storage.New(cfg.ManifestDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest store: %w", err)
	}

	return &Builder{
		config:   cfg,
		fs:       fsys,
		renderer: render.New(cfg),
		store:    store,
		logger:   logger,
	}, nil
}

// Close releases the manifest store.
func (b *Builder) Close() error {
	return b.store.Close()
}

// Manifest exposes the records of the last build.
func (b *Builder) Manifest() *storage.ManifestStore {
	return b.store
}

// Run deletes the previous output, mirrors the input tree into a fresh output
// directory and returns a summary. The first fatal error aborts the build.
func (b *Builder) Run() (*Summary, error) {
	start := time.Now()
	info := &types.BuildInfo{
		ID:        uuid.NewString(),
		InputDir:  b.config.InputDir,
		OutputDir: b.config.OutputDir,
		StartedAt: start,
	}

	logger := b.logger.With(zap.String("build_id", info.ID))
	logger.Info("starting build",
		zap.String("input", info.InputDir),
		zap.String("output", info.OutputDir),
		zap.Strings("ignored", b.config.IgnoredPaths()),
		zap.Bool("hidden", b.config.IncludeHidden))

	previous, err := b.store.GetBuildInfo()
	if err != nil {
		return nil, err
	}
	if previous != nil {
		logger.Info("replacing previous build",
			zap.String("previous_build_id", previous.ID),
			zap.Time("previous_finished_at", previous.FinishedAt))
	}

	if err := b.fs.Reset(b.config.OutputDir); err != nil {
		return nil, err
	}
	if err := b.store.Reset(); err != nil {
		return nil, err
	}

	if err := b.build(b.config.InputDir); err != nil {
		return nil, err
	}

	info.FinishedAt = time.Now()
	if err := b.store.SetBuildInfo(info); err != nil {
		return nil, err
	}

	stats, err := b.store.Stats()
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		BuildID:   info.ID,
		Previous:  previous,
		InputDir:  info.InputDir,
		OutputDir: info.OutputDir,
		Elapsed:   info.FinishedAt.Sub(start),
		Stats:     stats,
	}

	logger.Info("build complete",
		zap.Int("directories", stats.Directories),
		zap.Int("files", stats.Files),
		zap.Int("linked", stats.Linked),
		zap.Int("copied", stats.Copied),
		zap.Duration("elapsed", summary.Elapsed))

	return summary, nil
}

// build mirrors node, which is the input root or lies below it.
func (b *Builder) build(node string) error {
	rel, err := b.relative(node)
	if err != nil {
		return err
	}
	target := filepath.Join(b.config.OutputDir, filepath.FromSlash(rel))

	info, err := b.fs.Stat(node)
	if err != nil {
		return &filesystem.OpError{Op: "stat", Path: node, Err: err}
	}

	switch {
	case info.Mode().IsRegular():
		return b.placeFile(types.Entry{Path: node, RelPath: rel, Name: info.Name(), Size: info.Size(), Mode: info.Mode()}, target)
	case info.IsDir():
		return b.buildDir(node, rel, target)
	default:
		b.logger.Debug("skipping special file", zap.String("path", node))
		return nil
	}
}

func (b *Builder) buildDir(dir, rel, target string) error {
	if err := b.fs.EnsureDir(target); err != nil {
		return err
	}

	entries := b.listDir(dir, rel)

	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		if entry.Name == IndexFile {
			b.logger.Warn("input file is shadowed by the generated listing, skipping it", zap.String("path", entry.Path))
			continue
		}
		if err := b.placeFile(entry, filepath.Join(target, entry.Name)); err != nil {
			return err
		}
	}

	page, err := b.renderer.Render(entries, rel)
	if err != nil {
		return err
	}
	if err := b.fs.WriteFile(filepath.Join(target, IndexFile), []byte(page)); err != nil {
		return err
	}
	if err := b.store.PutRecord(&types.Record{Path: rel, Kind: types.KindDir, Entries: len(entries)}); err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir {
			continue
		}
		if err := b.build(entry.Path); err != nil {
			return err
		}
	}
	return nil
}

// listDir returns the children of dir that belong in the listing. A directory
// that cannot be listed is rendered empty rather than failing the build.
func (b *Builder) listDir(dir, rel string) []types.Entry {
	children, err := b.fs.ListDir(dir)
	if err != nil {
		b.logger.Warn("cannot list directory, rendering it empty", zap.String("path", dir), zap.Error(err))
		return nil
	}

	entries := children[:0]
	for _, child := range children {
		child.RelPath = path.Join(rel, child.Name)

		if !b.config.IncludeHidden && config.IsHidden(child.Name) {
			b.logger.Debug("skipping hidden entry", zap.String("path", child.RelPath))
			continue
		}
		if b.config.IsIgnored(child.RelPath) {
			b.logger.Debug("skipping ignored entry", zap.String("path", child.RelPath))
			continue
		}
		entries = append(entries, child)
	}
	return entries
}

func (b *Builder) placeFile(entry types.Entry, target string) error {
	if err := b.fs.EnsureDir(filepath.Dir(target)); err != nil {
		return err
	}

	method, err := b.fs.Place(entry.Path, target, !b.config.NoLink)
	if err != nil {
		return err
	}

	return b.store.PutRecord(&types.Record{
		Path:   entry.RelPath,
		Kind:   types.KindFile,
		Size:   entry.Size,
		Method: method,
		Mode:   entry.Mode.Perm(),
	})
}

func (b *Builder) relative(node string) (string, error) {
	rel, err := filepath.Rel(b.config.InputDir, node)
	if err != nil {
		return "", fmt.Errorf("failed to relate %s to input directory %s: %w", node, b.config.InputDir, err)
	}
	return filepath.ToSlash(rel), nil
}

package indexer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xADE/datacube/internal/config"
	"github.com/0xADE/datacube/internal/indexer/desktop"
	"github.com/0xADE/datacube/internal/indexer/flatpak"
)

// Sources lists where applications are discovered, in precedence order.
type Sources struct {
	DesktopDirs          []string
	FlatpakInstallations []string
	FlatpakRefs          []string
	Locale               string
}

// Options tunes refresh and search.
type Options struct {
	Workers int
	Fuzzy   bool
}

// Indexer coordinates indexing of desktop files and flatpak applications.
// Queries read the current snapshot without locking; refreshes build the
// next snapshot aside and swap it in.
type Indexer struct {
	src    Sources
	opts   Options
	logger *zap.Logger

	current   atomic.Pointer[Snapshot]
	refreshMu sync.Mutex
}

// New creates an indexer with an empty snapshot.
func New(src Sources, opts Options, logger *zap.Logger) *Indexer {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := &Indexer{src: src, opts: opts, logger: logger.Named("indexer")}
	idx.current.Store(emptySnapshot(opts.Fuzzy))
	return idx
}

// NewIndexer creates an indexer for the sources named by cfg.
func NewIndexer(cfg *config.Config, logger *zap.Logger) *Indexer {
	apps := cfg.Providers.Applications
	return New(Sources{
		DesktopDirs:          cfg.ApplicationDirs(),
		FlatpakInstallations: cfg.FlatpakInstallations(),
		FlatpakRefs:          apps.FlatpakRefs,
		Locale:               cfg.Locale,
	}, Options{
		Workers: cfg.Workers,
		Fuzzy:   apps.Fuzzy,
	}, logger)
}

// Snapshot returns the current index snapshot.
func (idx *Indexer) Snapshot() *Snapshot {
	return idx.current.Load()
}

// Search runs query against the current snapshot.
func (idx *Indexer) Search(query string, max int) []Match {
	return idx.Snapshot().Search(query, max)
}

// Sources returns the configured sources.
func (idx *Indexer) Sources() Sources {
	return idx.src
}

// Start builds the first snapshot.
func (idx *Indexer) Start(ctx context.Context) error {
	_, err := idx.Refresh(ctx)
	return err
}

// candidate is one source the next snapshot may take an entry from.
type candidate struct {
	key     string // file path, or a synthetic key for entries without a file
	id      string
	modTime time.Time
	flatpak bool
	synth   bool
}

// Refresh rescans all sources and publishes a new snapshot. Files whose
// modification time is unchanged since the previous snapshot are not
// parsed again. Concurrent calls are serialized. If ctx is cancelled the
// previous snapshot stays in place.
func (idx *Indexer) Refresh(ctx context.Context) (RefreshStats, error) {
	idx.refreshMu.Lock()
	defer idx.refreshMu.Unlock()

	start := time.Now()
	prev := idx.current.Load()

	cands, err := idx.collect(ctx)
	if err != nil {
		return RefreshStats{}, err
	}

	var stats RefreshStats
	records := make([]fileRecord, len(cands))
	var toParse []int
	for i, c := range cands {
		if old, ok := prev.files[c.key]; ok && old.modTime.Equal(c.modTime) {
			records[i] = old
			if old.entry == nil {
				stats.Failed++
			} else {
				stats.Reused++
			}
			continue
		}
		toParse = append(toParse, i)
	}

	errs := make([]error, len(cands))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.opts.Workers)
	for _, i := range toParse {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e, err := idx.load(cands[i])
			records[i] = fileRecord{modTime: cands[i].modTime, entry: e}
			errs[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RefreshStats{}, err
	}
	if err := ctx.Err(); err != nil {
		return RefreshStats{}, err
	}

	stats.Parsed = len(toParse)
	for _, i := range toParse {
		if errs[i] != nil {
			stats.Failed++
			idx.logger.Warn("Skipping unparsable entry",
				zap.String("path", cands[i].key), zap.Error(errs[i]))
		}
	}

	next := &Snapshot{
		entries:    make([]*Entry, 0, len(cands)),
		byID:       make(map[string]*Entry, len(cands)),
		files:      make(map[string]fileRecord, len(cands)),
		fuzzy:      idx.opts.Fuzzy,
		Generation: prev.Generation + 1,
		BuiltAt:    time.Now(),
	}
	for i, c := range cands {
		rec := records[i]
		next.files[c.key] = rec
		if rec.entry == nil {
			continue
		}
		if _, shadowed := next.byID[rec.entry.ID]; shadowed {
			continue
		}
		next.byID[rec.entry.ID] = rec.entry
		next.entries = append(next.entries, rec.entry)
	}
	for key := range prev.files {
		if _, ok := next.files[key]; !ok {
			stats.Removed++
		}
	}
	stats.Total = len(next.entries)

	idx.current.Store(next)

	idx.logger.Info("Index refreshed",
		zap.Uint64("generation", next.Generation),
		zap.Int("total", stats.Total),
		zap.Int("parsed", stats.Parsed),
		zap.Int("reused", stats.Reused),
		zap.Int("failed", stats.Failed),
		zap.Int("removed", stats.Removed),
		zap.Duration("took", time.Since(start)))

	return stats, nil
}

// collect enumerates candidates from every source in precedence order.
func (idx *Indexer) collect(ctx context.Context) ([]candidate, error) {
	var cands []candidate
	seen := make(map[string]struct{})
	add := func(c candidate) {
		if _, dup := seen[c.key]; dup {
			return
		}
		seen[c.key] = struct{}{}
		cands = append(cands, c)
	}

	for _, dir := range idx.src.DesktopDirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx.scanDesktopDir(dir, add)
	}

	for _, root := range idx.src.FlatpakInstallations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		apps, err := flatpak.Scan(root)
		if err != nil {
			idx.logger.Warn("Cannot read flatpak installation", zap.String("root", root), zap.Error(err))
			continue
		}
		for _, app := range apps {
			c := candidate{id: app.ID, modTime: app.ModTime, flatpak: true}
			if app.DesktopPath != "" {
				c.key = app.DesktopPath
			} else {
				c.key = app.Dir
				c.synth = true
			}
			add(c)
		}
	}

	for _, ref := range idx.src.FlatpakRefs {
		id, err := flatpak.ParseRef(ref)
		if err != nil {
			idx.logger.Warn("Ignoring flatpak ref", zap.String("ref", ref), zap.Error(err))
			continue
		}
		// An installed ref resolves to the same key the scan above used.
		if app, ok := flatpak.Lookup(idx.src.FlatpakInstallations, id); ok {
			if app.DesktopPath != "" {
				add(candidate{key: app.DesktopPath, id: id, modTime: app.ModTime, flatpak: true})
			} else {
				add(candidate{key: app.Dir, id: id, modTime: app.ModTime, flatpak: true, synth: true})
			}
			continue
		}
		add(candidate{key: "flatpak-ref:" + id, id: id, flatpak: true, synth: true})
	}

	return cands, nil
}

func (idx *Indexer) scanDesktopDir(dir string, add func(candidate)) {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		idx.logger.Debug("Application directory does not exist", zap.String("dir", dir))
		return
	case err != nil:
		idx.logger.Warn("Cannot access application directory", zap.String("dir", dir), zap.Error(err))
		return
	case !info.IsDir():
		idx.logger.Warn("Application directory is not a directory", zap.String("dir", dir))
		return
	}

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Skip directories we can't access
			idx.logger.Warn("Cannot read directory", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), desktop.Extension) {
			return nil
		}
		// Stat follows symlinks, which exported flatpak entries often are.
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			return nil
		}
		add(candidate{key: path, id: desktop.ID(path), modTime: fi.ModTime()})
		return nil
	})
}

func (idx *Indexer) load(c candidate) (*Entry, error) {
	if c.synth {
		return newEntry(&Entry{
			ID:      c.id,
			Name:    flatpak.DisplayName(c.id),
			Exec:    flatpak.RunCommand(c.id),
			Icon:    c.id,
			Flatpak: true,
			ModTime: c.modTime,
		}), nil
	}

	d, err := desktop.ParseDesktopFile(c.key)
	if err != nil {
		return nil, err
	}
	e := fromDesktop(c.id, d, idx.src.Locale, c.modTime)
	e.Flatpak = c.flatpak
	return e, nil
}

package index

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/siphon/internal/models"
	"github.com/starford/siphon/internal/storage"
)

// AnalyzeFunc turns the raw bytes of the document at path into its catalog
// entry. An error skips the document for this run.
type AnalyzeFunc func(path string, data []byte) (models.Poem, error)

// SyncOptions controls a catalog sync.
type SyncOptions struct {
	Dir       string
	Extension string
	Workers   int
	// Skip excludes listed paths, e.g. collection output inside the source tree.
	Skip func(path string) bool
}

// Sync walks the store and brings the catalog up to date:
//   - new/changed documents are read and analyzed in parallel
//   - unchanged documents are served from the catalog
//   - documents removed from disk are deleted from the catalog
//
// The returned poems are in discovery order regardless of how the parallel
// reads were scheduled.
func Sync(ctx context.Context, db Catalog, store storage.Provider, analyze AnalyzeFunc, opts SyncOptions, logger *slog.Logger) ([]models.Poem, error) {
	metas, err := store.List(opts.Dir, opts.Extension)
	if err != nil {
		return nil, err
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		return nil, err
	}

	var kept []models.DocumentMetadata
	for _, m := range metas {
		if opts.Skip != nil && opts.Skip(m.Path) {
			continue
		}
		kept = append(kept, m)
	}

	slots := make([]*models.Poem, len(kept))
	changed := make([]bool, len(kept))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for i, m := range kept {
		if checksums[m.Path] == m.Checksum {
			p, err := db.GetPoem(m.Path)
			if err == nil {
				slots[i] = p
				continue
			}
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			data, err := store.Read(m.Path)
			if err != nil {
				logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
				return nil
			}
			p, err := analyze(m.Path, data)
			if err != nil {
				logger.Warn("sync: skipped document", slog.String("path", m.Path), slog.String("error", err.Error()))
				return nil
			}
			p.Path = m.Path
			p.Checksum = storage.Checksum(data)
			p.UpdatedAt = m.UpdatedAt
			slots[i] = &p
			changed[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		out     []models.Poem
		updates []models.Poem
	)
	for i, p := range slots {
		if p == nil {
			continue
		}
		out = append(out, *p)
		if changed[i] {
			updates = append(updates, *p)
			logger.Debug("sync: analyzed", slog.String("path", p.Path))
		}
	}
	if err := db.UpsertPoems(updates); err != nil {
		return nil, err
	}

	disk := make(map[string]struct{}, len(kept))
	for _, m := range kept {
		disk[m.Path] = struct{}{}
	}
	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeletePoem(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("path", p))
		}
	}

	return out, nil
}

// Package builder runs one collection build: it discovers documents, folds
// the published ones into a collection index and writes one summary document
// per collection.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/starford/siphon/internal/apperr"
	"github.com/starford/siphon/internal/collection"
	"github.com/starford/siphon/internal/frontmatter"
	"github.com/starford/siphon/internal/index"
	"github.com/starford/siphon/internal/models"
	"github.com/starford/siphon/internal/poem"
	"github.com/starford/siphon/internal/storage"
)

// Options controls naming, filtering and output of a build.
type Options struct {
	SourceExtension string
	TargetExtension string
	// KeepExtension lists members by file name instead of file stem.
	KeepExtension bool
	// CleanDrafts leaves draft sections out of the text returned by Poem.
	CleanDrafts   bool
	DryRun        bool
	Workers       int
	Missing       collection.MissingPolicy
}

// Output describes what happened to one collection document.
type Output struct {
	Collection string `json:"collection"`
	Path       string `json:"path"`
	Members    int    `json:"members"`
	Written    bool   `json:"written"`
	Unchanged  bool   `json:"unchanged"`
}

// Report summarises a build.
type Report struct {
	Documents int               `json:"documents"`
	Published int               `json:"published"`
	Outputs   []Output          `json:"outputs"`
	Index     *collection.Index `json:"-"`
}

// PoemView is a cataloged poem with its current text.
type PoemView struct {
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Published   bool     `json:"published"`
	Collections []string `json:"collections"`
	Text        string   `json:"text"`
}

// Builder coordinates the source tree, the target directory and the catalog.
// Builds are serialized; reads may run alongside them.
type Builder struct {
	mu sync.Mutex

	source storage.Provider
	target storage.Provider
	db     index.Catalog
	opts   Options
	logger *slog.Logger
}

// New creates a builder.
func New(source, target storage.Provider, db index.Catalog, opts Options, logger *slog.Logger) *Builder {
	if opts.Missing == "" {
		opts.Missing = collection.MissingDefault
	}
	return &Builder{source: source, target: target, db: db, opts: opts, logger: logger}
}

// Build runs discovery, aggregation and rendering. A document that cannot be
// parsed is logged and skipped; a collection that cannot be updated aborts
// the build.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	poems, err := index.Sync(ctx, b.db, b.source, b.Analyze, index.SyncOptions{
		Extension: b.opts.SourceExtension,
		Workers:   b.opts.Workers,
		Skip:      b.insideTarget,
	}, b.logger)
	if err != nil {
		return nil, fmt.Errorf("builder: sync: %w", err)
	}

	report := &Report{Documents: len(poems)}
	idx := collection.NewIndex()
	for _, p := range poems {
		if !p.Published {
			continue
		}
		report.Published++
		name := DocumentName(p.Path, b.opts.KeepExtension)
		collection.Aggregate(name, b.namedCollections(p), idx)
	}
	report.Index = idx

	for _, name := range idx.Names() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := b.writeCollection(name, idx.Members(name))
		if err != nil {
			return nil, err
		}
		report.Outputs = append(report.Outputs, out)
	}

	if !b.opts.DryRun {
		if err := b.db.ReplaceMemberships(idx); err != nil {
			return nil, fmt.Errorf("builder: store memberships: %w", err)
		}
	}

	b.logger.Info("build finished",
		slog.Int("documents", report.Documents),
		slog.Int("published", report.Published),
		slog.Int("collections", idx.Len()),
		slog.Bool("dry_run", b.opts.DryRun))
	return report, nil
}

// Analyze parses one document into its catalog entry.
func (b *Builder) Analyze(_ string, data []byte) (models.Poem, error) {
	md, err := frontmatter.Parse(string(data))
	if err != nil {
		return models.Poem{}, err
	}
	return models.Poem{
		Published:   poem.IsPublished(md),
		Collections: poem.Collections(md),
	}, nil
}

// namedCollections drops blank collection names, which would otherwise map
// to an output file named only by its extension.
func (b *Builder) namedCollections(p models.Poem) []string {
	out := make([]string, 0, len(p.Collections))
	for _, c := range p.Collections {
		if strings.TrimSpace(c) == "" {
			b.logger.Warn("blank collection name ignored", slog.String("path", p.Path))
			continue
		}
		out = append(out, c)
	}
	return out
}

func (b *Builder) writeCollection(name string, members []string) (Output, error) {
	out := Output{Collection: name, Path: b.CollectionPath(name), Members: len(members)}

	existing, err := b.existing(out.Path)
	if err != nil {
		return out, err
	}
	rec, err := collection.Update(name, existing, members, b.opts.Missing)
	if err != nil {
		return out, err
	}
	text := collection.Render(rec)

	if existing != nil && *existing == text {
		out.Unchanged = true
		b.logger.Debug("collection unchanged", slog.String("collection", name))
		return out, nil
	}
	if b.opts.DryRun {
		b.logger.Info("dry run: would write collection",
			slog.String("collection", name),
			slog.String("path", out.Path),
			slog.String("content", text))
		return out, nil
	}
	if err := b.target.Write(out.Path, []byte(text)); err != nil {
		return out, fmt.Errorf("builder: write collection %q: %w", name, err)
	}
	out.Written = true
	b.logger.Info("collection written", slog.String("collection", name), slog.String("path", out.Path))
	return out, nil
}

// existing returns the current text of a collection document, or nil.
func (b *Builder) existing(p string) (*string, error) {
	ok, err := b.target.Exists(p)
	if err != nil {
		return nil, fmt.Errorf("builder: locate collection: %w", err)
	}
	if !ok {
		return nil, nil
	}
	data, err := b.target.Read(p)
	if err != nil {
		return nil, fmt.Errorf("builder: read collection: %w", err)
	}
	text := string(data)
	return &text, nil
}

// CollectionPath returns the target-relative path of a collection document.
func (b *Builder) CollectionPath(name string) string {
	return name + b.opts.TargetExtension
}

// Collections returns the index stored by the latest non-dry-run build.
func (b *Builder) Collections(_ context.Context) (*collection.Index, error) {
	return b.db.Collections()
}

// MemberOf returns the collections document was listed in by the latest
// non-dry-run build, in collection order.
func (b *Builder) MemberOf(_ context.Context, document string) ([]string, error) {
	return b.db.CollectionsOf(document)
}

// Poem returns the cataloged poem listed under member name. When two paths
// share a name the lexically first wins.
func (b *Builder) Poem(_ context.Context, name string) (PoemView, error) {
	sums, err := b.db.AllChecksums()
	if err != nil {
		return PoemView{}, err
	}
	var paths []string
	for p := range sums {
		if DocumentName(p, b.opts.KeepExtension) == name {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return PoemView{}, fmt.Errorf("poem %q: %w", name, apperr.ErrNotFound)
	}
	sort.Strings(paths)

	entry, err := b.db.GetPoem(paths[0])
	if err != nil {
		return PoemView{}, err
	}
	data, err := b.source.Read(entry.Path)
	if err != nil {
		return PoemView{}, fmt.Errorf("builder: read poem: %w", err)
	}
	text := string(data)
	if b.opts.CleanDrafts {
		text = poem.CleanDrafts(text)
	}
	return PoemView{
		Name:        name,
		Path:        entry.Path,
		Published:   entry.Published,
		Collections: entry.Collections,
		Text:        text,
	}, nil
}

// Preview renders collection name from the latest stored index without
// writing anything.
func (b *Builder) Preview(ctx context.Context, name string) (collection.Record, string, error) {
	idx, err := b.Collections(ctx)
	if err != nil {
		return collection.Record{}, "", err
	}
	members := idx.Members(name)
	if members == nil {
		return collection.Record{}, "", fmt.Errorf("collection %q: %w", name, apperr.ErrNotFound)
	}
	existing, err := b.existing(b.CollectionPath(name))
	if err != nil {
		return collection.Record{}, "", err
	}
	rec, err := collection.Update(name, existing, members, b.opts.Missing)
	if err != nil {
		return collection.Record{}, "", err
	}
	return rec, collection.Render(rec), nil
}

// insideTarget reports whether a source-relative path lies in the target
// directory, so collection output is never read back as a poem.
func (b *Builder) insideTarget(rel string) bool {
	abs := filepath.Join(b.source.Root(), filepath.FromSlash(rel))
	return strings.HasPrefix(abs, b.target.Root()+string(os.PathSeparator))
}

// IgnorePath is insideTarget for absolute paths, for the watcher.
func (b *Builder) IgnorePath(abs string) bool {
	return abs == b.target.Root() || strings.HasPrefix(abs, b.target.Root()+string(os.PathSeparator))
}

// DocumentName is the member name listed for the document at the
// slash-separated path rel.
func DocumentName(rel string, keepExtension bool) string {
	base := path.Base(rel)
	if keepExtension {
		return base
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// IsNotFound reports whether err means an unknown collection.
func IsNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}

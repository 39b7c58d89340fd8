package index

import (
	"github.com/starford/siphon/internal/collection"
	"github.com/starford/siphon/internal/models"
)

// Catalog is the set of catalog operations the builder and the read-only
// surfaces depend on.
type Catalog interface {
	UpsertPoems(poems []models.Poem) error
	DeletePoem(path string) error
	GetPoem(path string) (*models.Poem, error)
	AllChecksums() (map[string]string, error)
	ReplaceMemberships(idx *collection.Index) error
	Collections() (*collection.Index, error)
	CollectionsOf(document string) ([]string, error)
	Close() error
}

var _ Catalog = (*DB)(nil)

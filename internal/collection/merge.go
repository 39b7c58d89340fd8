package collection

import (
	"fmt"

	"github.com/starford/siphon/internal/apperr"
)

// MissingPolicy decides what happens when a collection has no existing
// document to merge into.
type MissingPolicy string

const (
	// MissingDefault starts from an empty record.
	MissingDefault MissingPolicy = "default"
	// MissingError fails with apperr.ErrMissingCollection.
	MissingError MissingPolicy = "error"
)

// Update builds the record written for collection name. existing is the
// current document text, or nil when there is none. Only title, created and
// description are taken from it; members always come from the index.
func Update(name string, existing *string, members []string, policy MissingPolicy) (Record, error) {
	if existing == nil {
		if policy == MissingError {
			return Record{}, fmt.Errorf("collection %q: %w", name, apperr.ErrMissingCollection)
		}
		return WithMembers(Record{}, members), nil
	}
	r, err := Parse(*existing)
	if err != nil {
		return Record{}, fmt.Errorf("collection %q: %w", name, err)
	}
	return WithMembers(r, members), nil
}

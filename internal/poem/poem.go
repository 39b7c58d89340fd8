// Package poem holds the metadata predicates applied to each parsed document.
package poem

import (
	"strings"

	"github.com/starford/siphon/internal/frontmatter"
)

// Well-known header keys.
const (
	KeyPublish     = "publish"
	KeyCollections = "collections"
)

// IsPublished reports whether the header carries exactly "publish: true".
func IsPublished(md *frontmatter.Metadata) bool {
	v, ok := md.Get(KeyPublish)
	return ok && v == "true"
}

// ParseNameList splits a folded list value on ", ". An empty value yields a
// single empty name.
func ParseNameList(raw string) []string {
	return strings.Split(strings.TrimSpace(raw), ", ")
}

// Collections returns the collection names a document declares, or nil when
// the key is absent.
func Collections(md *frontmatter.Metadata) []string {
	raw, ok := md.Get(KeyCollections)
	if !ok {
		return nil
	}
	return ParseNameList(raw)
}

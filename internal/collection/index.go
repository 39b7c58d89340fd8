// Package collection groups published documents by collection and renders
// the summary document written for each collection.
package collection

// Index maps collection names to member document names. Collections keep the
// order in which they were first mentioned; members keep discovery order and
// are not deduplicated.
type Index struct {
	names   []string
	members map[string][]string
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{members: make(map[string][]string)}
}

// Aggregate appends document to every named collection in idx and returns
// idx. A nil idx starts a new index.
func Aggregate(document string, collections []string, idx *Index) *Index {
	if idx == nil {
		idx = NewIndex()
	}
	for _, c := range collections {
		idx.add(c, document)
	}
	return idx
}

func (idx *Index) add(collection string, members ...string) {
	cur, ok := idx.members[collection]
	if !ok {
		idx.names = append(idx.names, collection)
	}
	idx.members[collection] = append(cur, members...)
}

// Merge appends the entries of the given partial indices in argument order.
// Shards must be passed in discovery order for member order to be stable.
func Merge(shards ...*Index) *Index {
	out := NewIndex()
	for _, s := range shards {
		if s == nil {
			continue
		}
		for _, name := range s.names {
			out.add(name, s.members[name]...)
		}
	}
	return out
}

// Names returns collection names in first-mention order.
func (idx *Index) Names() []string {
	out := make([]string, len(idx.names))
	copy(out, idx.names)
	return out
}

// Members returns the members of collection, or nil if it is unknown.
func (idx *Index) Members(collection string) []string {
	m, ok := idx.members[collection]
	if !ok {
		return nil
	}
	out := make([]string, len(m))
	copy(out, m)
	return out
}

// Len returns the number of collections.
func (idx *Index) Len() int {
	return len(idx.names)
}

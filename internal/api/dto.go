package api

import "github.com/starford/siphon/internal/collection"

// CollectionSummary is one entry of the collection listing.
type CollectionSummary struct {
	Name    string   `json:"name" example:"sample"`
	Members []string `json:"members"`
}

// CollectionListResponse wraps the collection listing.
type CollectionListResponse struct {
	Collections []CollectionSummary `json:"collections"`
	Total       int                 `json:"total" example:"3"`
}

// CollectionDetail is a collection record plus its rendered document.
type CollectionDetail struct {
	Name     string            `json:"name"`
	Record   collection.Record `json:"record"`
	Rendered string            `json:"rendered"`
}

// ParseRequest carries a raw document.
type ParseRequest struct {
	Content string `json:"content" example:"---\npublish: true\n---\n"`
}

// Field is one header key/value pair, in header order.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ParseResponse is the parsed header of a document.
type ParseResponse struct {
	Fields      []Field  `json:"fields"`
	Published   bool     `json:"published"`
	Collections []string `json:"collections"`
}

// ParseErrorResponse reports a header that could not be read.
type ParseErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Line  int    `json:"line,omitempty"`
}

// PoemCollectionsResponse lists the collections one poem belongs to.
type PoemCollectionsResponse struct {
	Name        string   `json:"name" example:"2021-05-30"`
	Collections []string `json:"collections"`
}

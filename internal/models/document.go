// Package models defines the domain types shared by storage and the catalog.
package models

import "time"

// DocumentMetadata is a lightweight listing entry for one document on disk.
type DocumentMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Poem is the catalog view of a parsed document.
type Poem struct {
	Path        string    `json:"path"`
	Checksum    string    `json:"checksum"`
	Published   bool      `json:"published"`
	Collections []string  `json:"collections,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

package collection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/starford/siphon/internal/frontmatter"
	"github.com/starford/siphon/internal/poem"
)

// Header keys of a collection document.
const (
	KeyTitle   = "title"
	KeyCreated = "created"
	KeyPoems   = "poems"
)

// ErrMissingRequiredField is returned when a collection document lacks a
// title or created field.
var ErrMissingRequiredField = errors.New("missing required field")

// Record is the content of one collection document. Created is an opaque
// token and is never interpreted as a date.
type Record struct {
	Title       string   `json:"title"`
	Created     string   `json:"created"`
	Members     []string `json:"members"`
	Description string   `json:"description"`
}

// Parse reads a collection document. The description is whatever remains
// once the header span is removed, located with frontmatter.GreedySpan.
func Parse(text string) (Record, error) {
	return ParseWith(text, frontmatter.GreedySpan)
}

// ParseWith is Parse with a custom header locator for the description.
func ParseWith(text string, locate frontmatter.Locator) (Record, error) {
	md, err := frontmatter.Parse(text)
	if err != nil {
		return Record{}, err
	}
	title, ok := md.Get(KeyTitle)
	if !ok {
		return Record{}, fmt.Errorf("collection: %w: %s", ErrMissingRequiredField, KeyTitle)
	}
	created, ok := md.Get(KeyCreated)
	if !ok {
		return Record{}, fmt.Errorf("collection: %w: %s", ErrMissingRequiredField, KeyCreated)
	}

	r := Record{
		Title:       title,
		Created:     created,
		Members:     []string{},
		Description: frontmatter.StripHeader(text, locate),
	}
	// An empty "poems:" line is how Render writes no members.
	if raw, ok := md.Get(KeyPoems); ok && strings.TrimSpace(raw) != "" {
		r.Members = poem.ParseNameList(raw)
	}
	return r, nil
}

// WithMembers returns a copy of r whose member list is members.
func WithMembers(r Record, members []string) Record {
	out := r
	out.Members = append([]string{}, members...)
	return out
}

// Render writes r in the collection document format. The output parses back
// to the same record as long as the description does not contain the
// delimiter sequence.
func Render(r Record) string {
	var b strings.Builder
	b.WriteString(frontmatter.Delimiter + "\n")
	b.WriteString(KeyTitle + ": " + r.Title + "\n")
	b.WriteString(KeyCreated + ": " + r.Created + "\n")
	b.WriteString(KeyPoems + ":\n")
	for _, m := range r.Members {
		b.WriteString("- " + m + "\n")
	}
	b.WriteString(frontmatter.Delimiter + "\n\n")
	b.WriteString(r.Description)
	b.WriteString("\n")
	return b.String()
}

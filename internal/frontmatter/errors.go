package frontmatter

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a front-matter parse failure.
type ErrorKind int

const (
	MissingLeadingDelimiter ErrorKind = iota + 1
	MissingTrailingDelimiter
	MalformedLine
	DanglingListItem
)

func (k ErrorKind) String() string {
	switch k {
	case MissingLeadingDelimiter:
		return "missing leading delimiter"
	case MissingTrailingDelimiter:
		return "missing trailing delimiter"
	case MalformedLine:
		return "malformed line"
	case DanglingListItem:
		return "dangling list item"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks against a *ParseError.
var (
	ErrMissingLeadingDelimiter  = &ParseError{Kind: MissingLeadingDelimiter}
	ErrMissingTrailingDelimiter = &ParseError{Kind: MissingTrailingDelimiter}
	ErrMalformedLine            = &ParseError{Kind: MalformedLine}
	ErrDanglingListItem         = &ParseError{Kind: DanglingListItem}
)

// ParseError describes why a header could not be read. Line is 1-based within
// the trimmed header and is zero for delimiter errors.
type ParseError struct {
	Kind ErrorKind
	Line int
	Text string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("frontmatter: %s at line %d: %q", e.Kind, e.Line, e.Text)
	}
	return "frontmatter: " + e.Kind.String()
}

// Is matches any *ParseError of the same kind.
func (e *ParseError) Is(target error) bool {
	var pe *ParseError
	if !errors.As(target, &pe) {
		return false
	}
	return pe.Kind == e.Kind
}

// KindOf returns the kind of a parse error anywhere in err's chain, or zero.
func KindOf(err error) ErrorKind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

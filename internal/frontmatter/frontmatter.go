// Package frontmatter reads the restricted key/value header dialect used by
// poems and collection documents.
//
// A header is delimited by "---" and holds "key: value" lines. A key with an
// empty value may be followed by "- item" lines, which fold into a single
// value joined with ", ".
package frontmatter

import "strings"

const (
	listMarker    = "- "
	listSeparator = ", "
)

type pair struct {
	key   string
	value string
}

// Parse reads the header at the start of text.
func Parse(text string) (*Metadata, error) {
	header, err := headerRegion(text)
	if err != nil {
		return nil, err
	}

	md := NewMetadata()
	header = strings.TrimSpace(header)
	if header == "" {
		return md, nil
	}

	var pairs []pair
	for i, line := range strings.Split(header, "\n") {
		line = strings.TrimRight(line, "\r")
		before, after, hasColon := strings.Cut(line, ":")
		before = strings.TrimSpace(before)
		after = strings.TrimSpace(after)

		if strings.HasPrefix(before, listMarker) {
			if len(pairs) == 0 {
				return nil, &ParseError{Kind: DanglingListItem, Line: i + 1, Text: line}
			}
			last := &pairs[len(pairs)-1]
			item := before[len(listMarker):]
			if last.value == "" {
				last.value = item
			} else {
				last.value += listSeparator + item
			}
			continue
		}
		if !hasColon {
			return nil, &ParseError{Kind: MalformedLine, Line: i + 1, Text: line}
		}
		pairs = append(pairs, pair{key: before, value: after})
	}

	for _, p := range pairs {
		md.Set(p.key, p.value)
	}
	return md, nil
}

// headerRegion returns the text between the first two delimiter occurrences.
// Occurrences are found as plain substrings, not whole lines.
func headerRegion(text string) (string, error) {
	if !strings.HasPrefix(text, Delimiter) {
		return "", &ParseError{Kind: MissingLeadingDelimiter}
	}
	rest := text[len(Delimiter):]
	end := strings.Index(rest, Delimiter)
	if end < 0 {
		return "", &ParseError{Kind: MissingTrailingDelimiter}
	}
	return rest[:end], nil
}

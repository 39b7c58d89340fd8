package frontmatter

import "strings"

// Delimiter bounds the header block.
const Delimiter = "---"

// Locator reports the byte range [start, end) of the header block in text,
// delimiters included.
type Locator func(text string) (start, end int, ok bool)

// GreedySpan spans from the first delimiter to the end of the last one found
// anywhere in text. A delimiter sequence inside the body therefore extends the
// span into the body.
func GreedySpan(text string) (int, int, bool) {
	first := strings.Index(text, Delimiter)
	if first < 0 {
		return 0, 0, false
	}
	last := strings.LastIndex(text, Delimiter)
	if last < first+len(Delimiter) {
		return 0, 0, false
	}
	return first, last + len(Delimiter), true
}

// LineAnchoredSpan only accepts delimiters that occupy a whole line, with the
// opening one at offset 0. Body text containing the sequence is left alone.
func LineAnchoredSpan(text string) (int, int, bool) {
	line, rest, found := strings.Cut(text, "\n")
	if !found || strings.TrimRight(line, "\r") != Delimiter {
		return 0, 0, false
	}
	offset := len(line) + 1
	for rest != "" {
		line, next, found := strings.Cut(rest, "\n")
		if strings.TrimRight(line, "\r") == Delimiter {
			return 0, offset + len(strings.TrimRight(line, "\r")), true
		}
		if !found {
			break
		}
		offset += len(line) + 1
		rest = next
	}
	return 0, 0, false
}

// StripHeader removes the span found by locate and trims what remains. Text
// without a span is only trimmed.
func StripHeader(text string, locate Locator) string {
	if locate == nil {
		locate = GreedySpan
	}
	start, end, ok := locate(text)
	if !ok {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:start] + text[end:])
}

package poem

import (
	"strings"

	"github.com/starford/siphon/internal/frontmatter"
)

// CleanDrafts drops draft sections that follow the published body. Drafts
// start at the third delimiter, so the header and the body before it are
// kept verbatim. Text with fewer delimiters is returned unchanged.
func CleanDrafts(text string) string {
	offset := 0
	for n := 0; n < 3; n++ {
		i := strings.Index(text[offset:], frontmatter.Delimiter)
		if i < 0 {
			return text
		}
		if n == 2 {
			return text[:offset+i]
		}
		offset += i + len(frontmatter.Delimiter)
	}
	return text
}

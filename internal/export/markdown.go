// Package export renders snippets as Markdown for previews and exports.
package export

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/snipsyncapp/snipsync-server/internal/domain"
)

// htmlTagPattern matches common HTML tags to detect if a string contains HTML.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// containsHTML checks if a string appears to contain HTML markup.
func containsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// htmlToMarkdown converts HTML content to Markdown.
// If the input doesn't contain HTML, it's returned unchanged.
func htmlToMarkdown(s string) string {
	if s == "" || !containsHTML(s) {
		return s
	}

	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		// If conversion fails, return the original string
		return s
	}

	return strings.TrimSpace(markdown)
}

// SnippetMarkdown renders a snippet as a Markdown document. HTML string
// values inside the block content are converted; other values are
// printed as-is.
func SnippetMarkdown(s *domain.Snippet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", s.Name)
	if s.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", htmlToMarkdown(s.Description))
	}

	fmt.Fprintf(&b, "- Category: %s\n", s.Category)
	fmt.Fprintf(&b, "- Block type: %s\n", s.BlockType)
	if len(s.Tags) > 0 {
		fmt.Fprintf(&b, "- Tags: %s\n", strings.Join(s.Tags, ", "))
	}
	b.WriteString("\n")

	keys := make([]string, 0, len(s.Content.Content))
	for k := range s.Content.Content {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := s.Content.Content[k]
		fmt.Fprintf(&b, "## %s\n\n", k)
		switch val := v.(type) {
		case string:
			fmt.Fprintf(&b, "%s\n\n", htmlToMarkdown(val))
		default:
			fmt.Fprintf(&b, "%v\n\n", val)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

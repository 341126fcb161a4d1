package domain

import "time"

// builtinEpoch is the stable timestamp builtin snippets carry so their
// identity and ordering never change between runs.
var builtinEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Builtins returns the default snippet library every installation starts
// with. Callers receive fresh clones; builtins sort ahead of user snippets
// in listings and reject destructive mutations.
func Builtins() []*Snippet {
	builtins := []*Snippet{
		{
			ID:          "snip-builtin-hero-banner",
			Name:        "Hero Banner",
			Description: "Full-width banner with heading and subheading",
			Category:    CategoryLayout,
			Tags:        []string{"banner", "hero"},
			BlockType:   "section",
			Content: Block{
				Type: "section",
				Content: map[string]any{
					"html": "<section class=\"hero\"><h1>Heading</h1><p>Subheading</p></section>",
				},
			},
		},
		{
			ID:          "snip-builtin-call-to-action",
			Name:        "Call to Action",
			Description: "Button row with a short prompt",
			Category:    CategoryContent,
			Tags:        []string{"button", "cta"},
			BlockType:   "text",
			Content: Block{
				Type: "text",
				Content: map[string]any{
					"html": "<p>Ready to start? <a class=\"button\" href=\"#\">Get going</a></p>",
				},
			},
		},
		{
			ID:          "snip-builtin-two-column",
			Name:        "Two Column Layout",
			Description: "Side-by-side content columns",
			Category:    CategoryLayout,
			Tags:        []string{"columns", "grid"},
			BlockType:   "section",
			Content: Block{
				Type: "section",
				Content: map[string]any{
					"html": "<div class=\"columns\"><div>Left</div><div>Right</div></div>",
				},
			},
		},
	}

	out := make([]*Snippet, 0, len(builtins))
	for _, b := range builtins {
		b.Builtin = true
		b.CreatedAt = builtinEpoch
		b.UpdatedAt = builtinEpoch
		out = append(out, b.Clone())
	}
	return out
}

// IsBuiltinID reports whether the id belongs to the builtin library.
func IsBuiltinID(id string) bool {
	for _, b := range Builtins() {
		if b.ID == id {
			return true
		}
	}
	return false
}

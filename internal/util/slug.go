// Package util provides common utility functions.
package util

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Matches spaces, underscores, and slashes (for replacement with dashes).
	wordSeparatorRe = regexp.MustCompile(`[\s_/]+`)
	// Matches non-alphanumeric characters (except dashes).
	nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9-]`)
	// Matches multiple consecutive dashes.
	multipleDashRe = regexp.MustCompile(`-+`)
)

// foldDiacritics decomposes accented characters and strips combining marks,
// so "café" normalizes the same as "cafe".
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeTagSlug converts user input to a canonical tag slug.
// The slug is the source of truth for tag identity.
//
// Normalization rules:
//  1. Trim whitespace and lowercase
//  2. Fold diacritics to their base letters
//  3. Replace spaces, underscores, and slashes with dashes
//  4. Remove non-alphanumeric characters (except dashes)
//  5. Collapse multiple dashes and trim leading/trailing ones
//
// Examples:
//
//	"Hero Banner"   → "hero-banner"
//	"hero_banner"   → "hero-banner"
//	"Café Layout"   → "cafe-layout"
//	"  multi   word " → "multi-word"
func NormalizeTagSlug(input string) string {
	// 1. Trim and lowercase
	s := strings.ToLower(strings.TrimSpace(input))

	// 2. Fold diacritics; on transform failure keep the lowered input
	if folded, _, err := transform.String(foldDiacritics, s); err == nil {
		s = folded
	}

	// 3. Replace word separators (spaces, underscores, slashes) with dashes
	s = wordSeparatorRe.ReplaceAllString(s, "-")

	// 4. Remove non-alphanumeric (except dashes)
	s = nonAlphanumericRe.ReplaceAllString(s, "")

	// 5. Collapse multiple dashes and trim
	s = multipleDashRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	return s
}

// NormalizeTags normalizes a list of raw tag inputs to sorted, unique slugs.
// Empty results after normalization are dropped.
func NormalizeTags(inputs []string) []string {
	seen := make(map[string]bool, len(inputs))
	out := make([]string, 0, len(inputs))
	for _, raw := range inputs {
		slug := NormalizeTagSlug(raw)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		out = append(out, slug)
	}
	// Keep output deterministic regardless of input order.
	slices.Sort(out)
	return out
}

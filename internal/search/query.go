package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a search query.
type Params struct {
	Query string // User's search query

	// Filters
	Categories    []string // Filter by exact category slugs
	Tags          []string // Filter by exact tag slugs (OR across tags)
	BlockTypes    []string // Filter by block type
	FavoritesOnly bool

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "relevance", "name", "recent", "usage"
	SortOrder string // "asc", "desc"

	// Options
	IncludeFacets bool
	FacetFields   []string
	Highlight     bool
}

// DefaultParams returns sensible defaults.
func DefaultParams() Params {
	return Params{
		Limit:         20,
		Offset:        0,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
		FacetFields:   []string{"category", "tags", "block_type"},
		Highlight:     true,
	}
}

// Result represents the search results.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
	Facets Facets `json:"facets,omitempty"`
}

// Hit represents a single search result.
type Hit struct {
	ID          string            `json:"id"`
	Score       float64           `json:"score"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Category    string            `json:"category,omitempty"`
	BlockType   string            `json:"block_type,omitempty"`
	UsageCount  int               `json:"usage_count,omitempty"`
	Highlights  map[string]string `json:"highlights,omitempty"`
}

// Facets contains facet counts.
type Facets struct {
	Categories []FacetCount `json:"categories,omitempty"`
	Tags       []FacetCount `json:"tags,omitempty"`
	BlockTypes []FacetCount `json:"block_types,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a search query.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	searchQuery := buildSearchQuery(params)

	searchRequest := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)

	addSorting(searchRequest, params)

	if params.IncludeFacets {
		for _, field := range params.FacetFields {
			searchRequest.AddFacet(field, bleve.NewFacetRequest(field, 20))
		}
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("name")
		searchRequest.Highlight.AddField("description")
	}

	searchRequest.Fields = []string{
		"id", "name", "description", "category", "block_type", "usage_count",
	}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		h := Hit{
			ID:    hit.ID,
			Score: hit.Score,
		}

		if n, ok := hit.Fields["name"].(string); ok {
			h.Name = n
		}
		if d, ok := hit.Fields["description"].(string); ok {
			h.Description = d
		}
		if c, ok := hit.Fields["category"].(string); ok {
			h.Category = c
		}
		if bt, ok := hit.Fields["block_type"].(string); ok {
			h.BlockType = bt
		}
		if u, ok := hit.Fields["usage_count"].(float64); ok {
			h.UsageCount = int(u)
		}

		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, h)
	}

	if params.IncludeFacets {
		result.Facets = extractFacets(searchResult)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params Params) query.Query {
	var queries []query.Query

	// Main text query: name carries the highest boost, then description
	// and body. A fuzzy variant on name tolerates typos and a prefix
	// variant serves autocomplete.
	if params.Query != "" {
		textQueries := []query.Query{}

		nameMatch := bleve.NewMatchQuery(params.Query)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)
		textQueries = append(textQueries, nameMatch)

		descMatch := bleve.NewMatchQuery(params.Query)
		descMatch.SetField("description")
		descMatch.SetBoost(1.5)
		textQueries = append(textQueries, descMatch)

		bodyMatch := bleve.NewMatchQuery(params.Query)
		bodyMatch.SetField("body")
		textQueries = append(textQueries, bodyMatch)

		fuzzyQuery := bleve.NewFuzzyQuery(params.Query)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("name")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		if len(params.Query) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefixQuery.SetField("name")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if len(params.Categories) > 0 {
		categoryQueries := make([]query.Query, len(params.Categories))
		for i, c := range params.Categories {
			cq := bleve.NewTermQuery(c)
			cq.SetField("category")
			categoryQueries[i] = cq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(categoryQueries...))
	}

	if len(params.Tags) > 0 {
		tagQueries := make([]query.Query, len(params.Tags))
		for i, tag := range params.Tags {
			tq := bleve.NewTermQuery(tag)
			tq.SetField("tags")
			tagQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(tagQueries...))
	}

	if len(params.BlockTypes) > 0 {
		btQueries := make([]query.Query, len(params.BlockTypes))
		for i, bt := range params.BlockTypes {
			bq := bleve.NewTermQuery(bt)
			bq.SetField("block_type")
			btQueries[i] = bq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(btQueries...))
	}

	if params.FavoritesOnly {
		favQuery := bleve.NewBoolFieldQuery(true)
		favQuery.SetField("is_favorite")
		queries = append(queries, favQuery)
	}

	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params Params) {
	switch params.SortBy {
	case "name":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-name"})
		} else {
			req.SortBy([]string{"name"})
		}
	case "recent":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"updated_at"})
		} else {
			req.SortBy([]string{"-updated_at"})
		}
	case "usage":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"usage_count"})
		} else {
			req.SortBy([]string{"-usage_count"})
		}
	default:
		req.SortBy([]string{"-_score"})
	}
}

// extractFacets converts Bleve facets to our format.
func extractFacets(result *bleve.SearchResult) Facets {
	facets := Facets{}

	if categoryFacet, ok := result.Facets["category"]; ok {
		for _, term := range categoryFacet.Terms.Terms() {
			facets.Categories = append(facets.Categories, FacetCount{
				Value: term.Term,
				Count: term.Count,
			})
		}
	}

	if tagFacet, ok := result.Facets["tags"]; ok {
		for _, term := range tagFacet.Terms.Terms() {
			facets.Tags = append(facets.Tags, FacetCount{
				Value: term.Term,
				Count: term.Count,
			})
		}
	}

	if btFacet, ok := result.Facets["block_type"]; ok {
		for _, term := range btFacet.Terms.Terms() {
			facets.BlockTypes = append(facets.BlockTypes, FacetCount{
				Value: term.Term,
				Count: term.Count,
			})
		}
	}

	return facets
}

package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for snippet documents.
//
// Text fields use the English analyzer for stemming; category, tag, and
// block type fields use the keyword analyzer so filters and facets match
// exact slugs.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// Name is the primary search target.
	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = en.AnalyzerName
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	descFieldMapping := bleve.NewTextFieldMapping()
	descFieldMapping.Analyzer = en.AnalyzerName
	descFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("description", descFieldMapping)

	// Body is searchable but not stored.
	bodyFieldMapping := bleve.NewTextFieldMapping()
	bodyFieldMapping.Analyzer = en.AnalyzerName
	bodyFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("body", bodyFieldMapping)

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	categoryFieldMapping := bleve.NewTextFieldMapping()
	categoryFieldMapping.Analyzer = keyword.Name
	categoryFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("category", categoryFieldMapping)

	// Keyword analyzer keeps compound tag slugs intact ("call-to-action").
	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = keyword.Name
	tagsFieldMapping.Store = true
	tagsFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("tags", tagsFieldMapping)

	blockTypeFieldMapping := bleve.NewTextFieldMapping()
	blockTypeFieldMapping.Analyzer = keyword.Name
	blockTypeFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("block_type", blockTypeFieldMapping)

	favoriteFieldMapping := bleve.NewBooleanFieldMapping()
	favoriteFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("is_favorite", favoriteFieldMapping)

	builtinFieldMapping := bleve.NewBooleanFieldMapping()
	builtinFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("builtin", builtinFieldMapping)

	usageFieldMapping := bleve.NewNumericFieldMapping()
	usageFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("usage_count", usageFieldMapping)

	createdAtFieldMapping := bleve.NewNumericFieldMapping()
	createdAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdAtFieldMapping)

	updatedAtFieldMapping := bleve.NewNumericFieldMapping()
	updatedAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("updated_at", updatedAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

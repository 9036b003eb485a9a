package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for entry documents.
//
// Review text is multilingual, so it uses the standard analyzer (unicode
// tokenization and lowercasing, no stemming). The dataset id is a keyword
// so every query can be scoped to one dataset.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name

	docMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	textFieldMapping.Store = true
	textFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("text", textFieldMapping)

	datasetFieldMapping := bleve.NewTextFieldMapping()
	datasetFieldMapping.Analyzer = keyword.Name
	datasetFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("dataset_id", datasetFieldMapping)

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	// Score is 0 for entries without one.
	scoreFieldMapping := bleve.NewNumericFieldMapping()
	scoreFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("score", scoreFieldMapping)

	positionFieldMapping := bleve.NewNumericFieldMapping()
	positionFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("position", positionFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

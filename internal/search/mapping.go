package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for book documents.
//
//   - name and author are full text with English stemming
//   - isbn is a single keyword term so substrings match with wildcards
//   - publisher uses the simple analyzer (no stemming)
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = en.AnalyzerName
	nameFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	authorFieldMapping := bleve.NewTextFieldMapping()
	authorFieldMapping.Analyzer = en.AnalyzerName
	authorFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("author", authorFieldMapping)

	publisherFieldMapping := bleve.NewTextFieldMapping()
	publisherFieldMapping.Analyzer = simple.Name
	docMapping.AddFieldMappingsAt("publisher", publisherFieldMapping)

	isbnFieldMapping := bleve.NewTextFieldMapping()
	isbnFieldMapping.Analyzer = keyword.Name
	isbnFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("isbn", isbnFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

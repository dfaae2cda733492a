package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for card documents:
// stemmed full-text on front/back/hint, exact keyword matching on tags
// and source for filtering.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	frontMapping := bleve.NewTextFieldMapping()
	frontMapping.Analyzer = en.AnalyzerName
	frontMapping.Store = true
	frontMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("front", frontMapping)

	backMapping := bleve.NewTextFieldMapping()
	backMapping.Analyzer = en.AnalyzerName
	backMapping.Store = true
	backMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("back", backMapping)

	hintMapping := bleve.NewTextFieldMapping()
	hintMapping.Analyzer = en.AnalyzerName
	hintMapping.Store = true
	docMapping.AddFieldMappingsAt("hint", hintMapping)

	tagsMapping := bleve.NewTextFieldMapping()
	tagsMapping.Analyzer = keyword.Name
	tagsMapping.Store = true
	docMapping.AddFieldMappingsAt("tags", tagsMapping)

	sourceMapping := bleve.NewTextFieldMapping()
	sourceMapping.Analyzer = keyword.Name
	sourceMapping.Store = true
	docMapping.AddFieldMappingsAt("source", sourceMapping)

	idMapping := bleve.NewTextFieldMapping()
	idMapping.Analyzer = keyword.Name
	idMapping.Store = true
	idMapping.Index = false
	docMapping.AddFieldMappingsAt("id", idMapping)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

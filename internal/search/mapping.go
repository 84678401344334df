package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

const titleAnalyzer = "title"

// buildIndexMapping creates the mapping for post documents.
//
// Titles are split on unicode word boundaries and lowercased without
// stemming or stop words, so every typed token can be prefix matched.
// created_at holds the store's fixed-width timestamp as a keyword, which
// makes its sort order chronological.
func buildIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(titleAnalyzer, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}
	indexMapping.DefaultAnalyzer = titleAnalyzer

	docMapping := bleve.NewDocumentMapping()

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = titleAnalyzer
	titleFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	ownerFieldMapping := bleve.NewTextFieldMapping()
	ownerFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("owner_user_id", ownerFieldMapping)

	createdAtFieldMapping := bleve.NewTextFieldMapping()
	createdAtFieldMapping.Analyzer = keyword.Name
	createdAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping, nil
}

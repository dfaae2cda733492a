package search

import (
	"context"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a card search.
type Params struct {
	Query string // User's search text
	Tag   string // Exact tag filter; matches the tag and its children

	Limit  int
	Offset int

	Highlight bool
}

// DefaultParams returns sensible defaults.
func DefaultParams() Params {
	return Params{
		Limit:     20,
		Offset:    0,
		Highlight: true,
	}
}

// Result holds the outcome of a search.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// Hit is a single matching card.
type Hit struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Front      string            `json:"front"`
	Back       string            `json:"back"`
	Hint       string            `json:"hint,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// Search executes a card search.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = 20
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params), params.Limit, params.Offset, false)
	req.Fields = []string{"id", "front", "back", "hint", "tags"}
	if params.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("front")
		req.Highlight.AddField("back")
	}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, hit := range res.Hits {
		h := Hit{
			ID:    hit.ID,
			Score: hit.Score,
		}
		if v, ok := hit.Fields["front"].(string); ok {
			h.Front = v
		}
		if v, ok := hit.Fields["back"].(string); ok {
			h.Back = v
		}
		if v, ok := hit.Fields["hint"].(string); ok {
			h.Hint = v
		}
		h.Tags = fieldStrings(hit.Fields["tags"])
		if params.Highlight && len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string, len(hit.Fragments))
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, h)
	}
	return result, nil
}

// buildQuery combines full-text matching with the optional tag filter.
func buildQuery(params Params) query.Query {
	var parts []query.Query

	text := strings.TrimSpace(params.Query)
	if text != "" {
		match := bleve.NewMatchQuery(text)
		match.SetBoost(2.0)

		fuzzy := bleve.NewMatchQuery(text)
		fuzzy.SetFuzziness(1)

		prefix := bleve.NewPrefixQuery(strings.ToLower(text))

		parts = append(parts, bleve.NewDisjunctionQuery(match, fuzzy, prefix))
	}

	if params.Tag != "" {
		tag := bleve.NewTermQuery(params.Tag)
		tag.SetField("tags")

		// Children of the tag share the "tag/" prefix.
		children := bleve.NewPrefixQuery(params.Tag + "/")
		children.SetField("tags")

		parts = append(parts, bleve.NewDisjunctionQuery(tag, children))
	}

	if len(parts) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return bleve.NewConjunctionQuery(parts...)
}

func fieldStrings(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Package search provides full-text card search using Bleve: fuzzy and
// prefix matching over front/back/hint text plus exact tag filtering.
package search

import (
	"github.com/cardboxapp/cardbox/internal/domain"
)

// Document is the indexed form of a card.
type Document struct {
	ID     string   `json:"id"`
	Front  string   `json:"front"`
	Back   string   `json:"back"`
	Hint   string   `json:"hint,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Source string   `json:"source"`
}

// FromCard builds the index document for a card.
func FromCard(c *domain.Card) *Document {
	return &Document{
		ID:     c.ID,
		Front:  c.Front,
		Back:   c.Back,
		Hint:   c.Hint,
		Tags:   c.Tags,
		Source: string(c.Source),
	}
}

// ToMap converts the document to a map so field names match the mapping.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":     d.ID,
		"front":  d.Front,
		"back":   d.Back,
		"source": d.Source,
	}
	if d.Hint != "" {
		m["hint"] = d.Hint
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	return m
}

package domain

import (
	"slices"
	"strings"
	"time"
)

// CardSource describes where a card came from.
type CardSource string

const (
	// SourceManual marks cards authored by the user.
	SourceManual CardSource = "manual"
	// SourcePublicPack marks cards imported from a published pack.
	SourcePublicPack CardSource = "public_pack"
)

// Card is a question/answer pair. The local ID is the storage key on this
// device; CloudID is the cross-device identity, assigned exactly once
// before the first push and never regenerated. A card with an empty
// CloudID has never been pushed remotely.
type Card struct {
	Syncable

	// CloudID is the globally unique identifier shared across devices.
	CloudID string `json:"cloud_id,omitempty"`

	Front string `json:"front"`
	Back  string `json:"back"`
	Hint  string `json:"hint,omitempty"`

	// Tags are hierarchical paths using "/" as separator, e.g.
	// "geography/europe/capitals". Stored sorted for stable display.
	Tags []string `json:"tags,omitempty"`

	Source CardSource `json:"source"`
	// SourcePackID references the pack a public_pack card came from.
	SourcePackID string `json:"source_pack_id,omitempty"`
	// SourcePublicID is the pack-scoped identifier used to dedup imports.
	SourcePublicID string `json:"source_public_id,omitempty"`

	// SyncedAt is the completion time of the last sync pass that pushed or
	// confirmed this card remotely. Nil means never synced.
	SyncedAt *time.Time `json:"synced_at,omitempty"`
}

// NormalizeTags sorts tags and drops duplicates and empty entries.
// Tag order is irrelevant for matching but display-sorted everywhere.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.Trim(strings.TrimSpace(t), "/")
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// HasTag reports whether the card carries the tag or any child of it.
func (c *Card) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag || strings.HasPrefix(t, tag+"/") {
			return true
		}
	}
	return false
}

// MarkSynced stamps the card with the completion time of a sync pass.
func (c *Card) MarkSynced(t time.Time) {
	c.SyncedAt = &t
}

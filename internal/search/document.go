// Package search provides full-text search over entry text using Bleve.
package search

import "github.com/sentilabel/sentilabel-server/internal/domain"

// EntryDocument is the indexed form of an entry.
type EntryDocument struct {
	ID        string `json:"id"`
	DatasetID string `json:"dataset_id"`
	Text      string `json:"text"`
	Score     int    `json:"score"`
	Position  int    `json:"position"`
}

// FromEntry converts an entry to its index document.
func FromEntry(e *domain.Entry) *EntryDocument {
	doc := &EntryDocument{
		ID:        e.ID,
		DatasetID: e.DatasetID,
		Text:      e.Text,
		Position:  e.Position,
	}
	if e.Score != nil {
		doc.Score = *e.Score
	}
	return doc
}

// FromEntries converts a slice of entries.
func FromEntries(entries []*domain.Entry) []*EntryDocument {
	docs := make([]*EntryDocument, len(entries))
	for i, e := range entries {
		docs[i] = FromEntry(e)
	}
	return docs
}

// ToMap returns the document keyed by the mapping's field names.
func (d *EntryDocument) ToMap() map[string]any {
	return map[string]any{
		"id":         d.ID,
		"dataset_id": d.DatasetID,
		"text":       d.Text,
		"score":      float64(d.Score),
		"position":   float64(d.Position),
	}
}

// Package search keeps a Bleve full-text index of the catalog so books can be
// found by partial title, ISBN or author. The store stays the source of truth:
// the index only answers which ISBNs match.
package search

import (
	"github.com/books-manager/books-manager-server/internal/domain"
)

// BookDocument is the indexed form of a book. Stock counts are not indexed;
// callers re-read matches from the store.
type BookDocument struct {
	ISBN      string `json:"isbn"`
	Name      string `json:"name"`
	Author    string `json:"author,omitempty"`
	Publisher string `json:"publisher,omitempty"`
}

// NewBookDocument builds the document for a book.
func NewBookDocument(b *domain.Book) *BookDocument {
	return &BookDocument{
		ISBN:      string(b.ISBN),
		Name:      string(b.Name),
		Author:    string(b.Author),
		Publisher: string(b.Publisher),
	}
}

// ToMap converts the document to a map with lowercase field names matching
// the index mapping.
func (d *BookDocument) ToMap() map[string]any {
	m := map[string]any{
		"isbn": d.ISBN,
		"name": d.Name,
	}
	if d.Author != "" {
		m["author"] = d.Author
	}
	if d.Publisher != "" {
		m["publisher"] = d.Publisher
	}
	return m
}

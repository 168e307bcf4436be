// Package catalog resolves category and subcategory ids to display names.
package catalog

import (
	"encoding/json"

	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
)

const (
	AllCategories    = "All Categories"
	AllSubcategories = "All Subcategories"
)

// Names answers display-name lookups against one snapshot of the category
// tree. Lookups never fail: unknown ids resolve to themselves.
type Names struct {
	tree          []domain.Category
	subcategories []domain.Subcategory
}

// NewNames indexes tree for lookups. tree is not copied and must not be
// mutated afterwards.
func NewNames(tree []domain.Category) *Names {
	var subs []domain.Subcategory
	for _, c := range tree {
		subs = append(subs, c.Subcategories...)
	}
	return &Names{tree: tree, subcategories: subs}
}

// Tree returns the snapshot the lookups run against.
func (n *Names) Tree() []domain.Category {
	if n == nil || n.tree == nil {
		return []domain.Category{}
	}
	return n.tree
}

// Category returns the name of category id.
func (n *Names) Category(id string) string {
	if id == domain.AllSentinel {
		return AllCategories
	}
	if n != nil {
		for _, c := range n.tree {
			if c.ID == id {
				return c.Name
			}
		}
	}
	return id
}

// Subcategory returns the name of subcategory id, scanning all categories.
func (n *Names) Subcategory(id string) string {
	if id == domain.AllSentinel {
		return AllSubcategories
	}
	if n != nil {
		for _, s := range n.subcategories {
			if s.ID == id {
				return s.Name
			}
		}
	}
	return id
}

// Decorate adds categoryName and subcategoryName to every item that carries
// the matching id. Items are modified in place.
func (n *Names) Decorate(items []domain.Item) {
	for _, item := range items {
		if id, ok := idField(item, "categoryId"); ok {
			item["categoryName"] = n.Category(id)
		}
		if id, ok := idField(item, "subcategoryId"); ok {
			item["subcategoryName"] = n.Subcategory(id)
		}
	}
}

// idField reads an id that the backend may send as a string or, since
// bodies are decoded with UseNumber, as a json.Number.
func idField(item domain.Item, key string) (string, bool) {
	var id string
	switch v := item[key].(type) {
	case string:
		id = v
	case json.Number:
		id = v.String()
	}
	return id, id != ""
}

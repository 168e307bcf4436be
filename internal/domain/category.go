package domain

// Category is a node of the category tree.
type Category struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Subcategories []Subcategory `json:"subcategories"`
}

// Subcategory is a leaf of the category tree.
type Subcategory struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CategoryID string `json:"categoryId"`
}

// AllSentinel is the filter value meaning "no restriction".
const AllSentinel = "all"

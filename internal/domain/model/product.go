//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import "strings"

// Product is a catalogue entry returned by the products endpoints.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	SKU         string  `json:"sku"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// ProductList is the envelope returned by GET /products.
type ProductList struct {
	Items []Product `json:"items"`
}

// InStock reports whether any units are available.
func (p Product) InStock() bool { return p.Quantity > 0 }

// UserListOptions controls filtering and paging for the admin user list.
// Zero values are omitted from the query string.
type UserListOptions struct {
	Role   string
	Search string
	Page   *int
	Limit  *int
}

// Normalize trims free-text filters.
func (o UserListOptions) Normalize() UserListOptions {
	o.Role = strings.TrimSpace(o.Role)
	o.Search = strings.TrimSpace(o.Search)
	return o
}

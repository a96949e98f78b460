package domain

import "time"

// Product is a catalog entry as the cart sees it.
type Product struct {
	ID         int64     `json:"id"`
	Slug       string    `json:"slug"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Stock      int       `json:"stock"`
	ImageURL   string    `json:"image_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// InStock reports whether at least one unit can be sold.
func (p *Product) InStock() bool {
	return p.Stock > 0
}

// CanSupply reports whether quantity units can be sold.
func (p *Product) CanSupply(quantity int) bool {
	return quantity <= p.Stock
}

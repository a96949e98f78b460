package domain

// Bundle is a set of products sold together at one price.
type Bundle struct {
	ID                 int64     `json:"id"`
	Slug               string    `json:"slug"`
	Name               string    `json:"name"`
	PriceCents         int64     `json:"price_cents"`
	DiscountPriceCents *int64    `json:"discount_price_cents,omitempty"`
	Products           []Product `json:"products"`
}

// EffectivePriceCents is the discount price when one is set.
func (b *Bundle) EffectivePriceCents() int64 {
	if b.DiscountPriceCents != nil {
		return *b.DiscountPriceCents
	}
	return b.PriceCents
}

// Stock is the number of whole bundles the components can supply: the
// lowest component stock. A bundle without products has none.
func (b *Bundle) Stock() int {
	if len(b.Products) == 0 {
		return 0
	}
	low := b.Products[0].Stock
	for _, p := range b.Products[1:] {
		if p.Stock < low {
			low = p.Stock
		}
	}
	return low
}

// CanSupply reports whether quantity bundles can be sold.
func (b *Bundle) CanSupply(quantity int) bool {
	return quantity <= b.Stock()
}

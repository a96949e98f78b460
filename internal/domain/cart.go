package domain

import "time"

// Cart limits enforced by the cart service.
const (
	MaxQuantityPerItem = 999
	MaxItemsPerCart    = 50
)

// Cart is the shopping cart of one shopper. Guests and signed-in users share
// the type; ShopperKey tells them apart ("guest:<session>", "user:<id>").
type Cart struct {
	ShopperKey string     `json:"shopper_key"`
	Items      []CartItem `json:"items"`
	Version    int        `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

// CartItem is one line of a cart. ID is unique across all carts and is what
// the remove and update endpoints address. A line holds either a product or,
// when BundleID is set, a bundle; Slug names whichever it is.
type CartItem struct {
	ID         int64  `json:"id"`
	ProductID  int64  `json:"product_id,omitempty"`
	BundleID   int64  `json:"bundle_id,omitempty"`
	Slug       string `json:"slug"`
	Name       string `json:"name"`
	Variant    string `json:"variant,omitempty"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

// Count is the number shown on the cart badge: the sum of quantities.
func (c *Cart) Count() int {
	var n int
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// TotalCents is the cart total in cents.
func (c *Cart) TotalCents() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.PriceCents * int64(item.Quantity)
	}
	return total
}

// FindLine returns the index of the line for productID and variant, or -1.
func (c *Cart) FindLine(productID int64, variant string) int {
	for i := range c.Items {
		if c.Items[i].BundleID == 0 && c.Items[i].ProductID == productID && c.Items[i].Variant == variant {
			return i
		}
	}
	return -1
}

// FindBundleLine returns the index of the line for bundleID, or -1.
func (c *Cart) FindBundleLine(bundleID int64) int {
	for i := range c.Items {
		if bundleID != 0 && c.Items[i].BundleID == bundleID {
			return i
		}
	}
	return -1
}

// IsBundle reports whether the line holds a bundle.
func (item *CartItem) IsBundle() bool {
	return item.BundleID != 0
}

// FindItem returns the index of the line with the given item id, or -1.
func (c *Cart) FindItem(itemID int64) int {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// RemoveAt drops the line at index i.
func (c *Cart) RemoveAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

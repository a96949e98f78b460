package domain

import "time"

// WishlistItem is a product saved in a user's wishlist.
type WishlistItem struct {
	UserID    string    `json:"user_id"`
	Product   Product   `json:"product"`
	CreatedAt time.Time `json:"created_at"`
}

package domain

import "time"

// User is a registered storefront account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Review is a user's rating of a product. A user reviews a product at most once.
type Review struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Rating    int       `json:"rating"`
	Title     string    `json:"title,omitempty"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	MinRating = 1
	MaxRating = 5
)

// ValidRating reports whether rating is within [MinRating, MaxRating].
func ValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}

// RatingSummary aggregates the reviews of one product.
type RatingSummary struct {
	Average float64 `json:"average_rating"`
	Count   int     `json:"review_count"`
}

// Wishlist is the set of products a user has saved. Every user owns one.
type Wishlist struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	Products []Product `json:"products"`
}

// Contains reports whether productID is on the wishlist.
func (w *Wishlist) Contains(productID int64) bool {
	for _, p := range w.Products {
		if p.ID == productID {
			return true
		}
	}
	return false
}

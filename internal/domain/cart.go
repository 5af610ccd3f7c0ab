package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartOwner identifies who a cart belongs to: an authenticated user or an
// anonymous session token, never both.
type CartOwner struct {
	userID     int64
	sessionKey string
}

// UserOwner returns the owner key of an authenticated user.
func UserOwner(userID int64) CartOwner {
	return CartOwner{userID: userID}
}

// SessionOwner returns the owner key of an anonymous visitor.
func SessionOwner(sessionKey string) CartOwner {
	return CartOwner{sessionKey: sessionKey}
}

func (o CartOwner) IsUser() bool       { return o.userID > 0 }
func (o CartOwner) UserID() int64      { return o.userID }
func (o CartOwner) SessionKey() string { return o.sessionKey }

// Valid reports whether exactly one of the identity keys is set.
func (o CartOwner) Valid() bool {
	return (o.userID > 0) != (o.sessionKey != "")
}

func (o CartOwner) String() string {
	if o.IsUser() {
		return "user"
	}
	return "session"
}

// Cart is the per-visitor collection of not yet purchased products.
type Cart struct {
	ID         int64      `json:"id"`
	UserID     *int64     `json:"user_id,omitempty"`
	SessionKey *string    `json:"-"`
	Items      []CartItem `json:"items"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Owner rebuilds the identity key the cart was stored under.
func (c *Cart) Owner() CartOwner {
	if c.UserID != nil {
		return UserOwner(*c.UserID)
	}
	if c.SessionKey != nil {
		return SessionOwner(*c.SessionKey)
	}
	return CartOwner{}
}

// OwnedBy reports whether the cart belongs to owner.
func (c *Cart) OwnedBy(owner CartOwner) bool {
	return owner.Valid() && c.Owner() == owner
}

// TotalPrice sums the line totals at current product prices.
func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for i := range c.Items {
		total = total.Add(c.Items[i].TotalPrice())
	}
	return total
}

// TotalItems sums the quantities of all lines.
func (c *Cart) TotalItems() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// LineCount is the number of distinct products in the cart.
func (c *Cart) LineCount() int {
	return len(c.Items)
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Item returns the line for productID, if present.
func (c *Cart) Item(productID int64) (*CartItem, bool) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i], true
		}
	}
	return nil, false
}

// CartItem is one (product, quantity) line of a cart. Product carries the
// live product row the line was loaded with.
type CartItem struct {
	ID        int64     `json:"id"`
	CartID    int64     `json:"cart_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
	Product   *Product  `json:"product,omitempty"`
}

// TotalPrice is quantity times the current product price.
func (i *CartItem) TotalPrice() decimal.Decimal {
	if i.Product == nil {
		return decimal.Zero
	}
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ExceedsStock reports whether the line asks for more units than are left.
func (i *CartItem) ExceedsStock() bool {
	return i.Product != nil && i.Quantity > i.Product.Stock
}

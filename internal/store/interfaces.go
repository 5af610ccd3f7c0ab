package store

import (
	"context"

	"solar-store-service/internal/domain"

	"github.com/shopspring/decimal"
)

// ListCategoriesParams holds parameters for listing categories.
type ListCategoriesParams struct {
	Limit  int
	Offset int
}

// CategoryStorer defines the database operations for categories.
type CategoryStorer interface {
	CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error)
	ListCategories(ctx context.Context, params ListCategoriesParams) ([]domain.Category, int, error) // Returns categories and total count
}

// ProductSort is a whitelisted sort key of the product listing.
type ProductSort string

const (
	SortName        ProductSort = "name"
	SortPriceLow    ProductSort = "price_low"
	SortPriceHigh   ProductSort = "price_high"
	SortWattageHigh ProductSort = "wattage_high"
	SortNewest      ProductSort = "newest"
	SortPopular     ProductSort = "popular"
)

// ListProductsParams holds parameters for listing products (pagination, filtering, sorting).
type ListProductsParams struct {
	Limit        int
	Offset       int
	CategorySlug *string
	CategoryID   *int64
	PanelType    *domain.PanelType
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	MinWattage   *int
	MaxWattage   *int
	SearchQuery  *string // name, description and category name
	SearchPanel  bool    // also match the search query against panel_type
	ExcludeID    *int64
	FeaturedOnly bool
	InStockOnly  bool
	SortBy       ProductSort
}

// ProductStorer defines the database operations for products.
type ProductStorer interface {
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	ListProducts(ctx context.Context, params ListProductsParams) ([]domain.Product, int, error) // Returns products and total count
	ListProductImages(ctx context.Context, productID int64) ([]domain.ProductImage, error)
}

// CartStorer defines the database operations for carts and their lines.
type CartStorer interface {
	// GetOrCreateCart returns the single cart of owner, inserting it if absent.
	GetOrCreateCart(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error)
	FindCart(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error)
	// GetCartItem returns the line and the cart it belongs to. The cart
	// carries its owner columns only, not its items.
	GetCartItem(ctx context.Context, itemID int64) (*domain.CartItem, *domain.Cart, error)
	// AddCartItem inserts the line or adds quantity to it, refusing to let the
	// resulting quantity exceed maxQuantity.
	AddCartItem(ctx context.Context, cartID, productID int64, quantity, maxQuantity int) (*domain.CartItem, error)
	SetCartItemQuantity(ctx context.Context, itemID int64, quantity int) (*domain.CartItem, error)
	DeleteCartItem(ctx context.Context, itemID int64) error
	// MergeCarts moves every line of the session cart into the user's cart and
	// deletes the session cart, in one transaction.
	MergeCarts(ctx context.Context, sessionKey string, userID int64) error
}

// PlaceOrderParams carries what checkout needs to turn a cart into an order.
// Exactly one of Address (new) or AddressID (existing, same user) is used.
type PlaceOrderParams struct {
	UserID    int64
	CartID    int64
	Address   *domain.ShippingAddress
	AddressID int64
}

// OrderStorer defines the database operations for addresses and orders.
type OrderStorer interface {
	DefaultShippingAddress(ctx context.Context, userID int64) (*domain.ShippingAddress, error)
	// PlaceOrder saves the address, creates the order and its items,
	// decrements stock and clears the cart atomically.
	PlaceOrder(ctx context.Context, params PlaceOrderParams) (*domain.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]domain.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, from, to domain.OrderStatus) (*domain.Order, error)
}

// ReviewStorer defines the database operations for product reviews.
type ReviewStorer interface {
	CreateReview(ctx context.Context, review *domain.Review) (*domain.Review, error)
	ListReviews(ctx context.Context, productID int64) ([]domain.Review, error)
	RatingSummary(ctx context.Context, productID int64) (domain.RatingSummary, error)
}

// WishlistStorer defines the database operations for wishlists.
type WishlistStorer interface {
	GetWishlist(ctx context.Context, userID int64) (*domain.Wishlist, error)
	// ToggleWishlistProduct removes productID if present, adds it otherwise,
	// and reports whether it is on the wishlist afterwards.
	ToggleWishlistProduct(ctx context.Context, userID, productID int64) (bool, error)
}

// UserStorer defines the database operations for accounts.
type UserStorer interface {
	// CreateUser inserts the user together with their empty wishlist.
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
}

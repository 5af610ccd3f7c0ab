package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solar-store-service/internal/domain"
	"solar-store-service/internal/store"
)

// CartLine is one line of a cart as shown to the visitor.
type CartLine struct {
	ID        int64            `json:"id"`
	ProductID int64            `json:"product_id"`
	Name      string           `json:"name"`
	Slug      string           `json:"slug"`
	Image     string           `json:"image"`
	URL       string           `json:"url"`
	PanelType domain.PanelType `json:"panel_type"`
	Wattage   int              `json:"wattage"`
	Price     decimal.Decimal  `json:"price"`
	Quantity  int              `json:"quantity"`
	Stock     int              `json:"stock"`
	LineTotal decimal.Decimal  `json:"line_total"`
}

// CartView is a cart with its totals and stock warnings.
type CartView struct {
	ID             int64           `json:"id"`
	Items          []CartLine      `json:"items"`
	Count          int             `json:"count"`
	TotalItems     int             `json:"total_items"`
	Total          decimal.Decimal `json:"total"`
	FormattedTotal string          `json:"formatted_total"`
	Warnings       []string        `json:"warnings,omitempty"`
}

func newCartView(cart *domain.Cart) *CartView {
	view := &CartView{
		ID:         cart.ID,
		Items:      make([]CartLine, 0, len(cart.Items)),
		Count:      cart.LineCount(),
		TotalItems: cart.TotalItems(),
		Total:      cart.TotalPrice(),
	}
	view.FormattedTotal = domain.FormatPrice(view.Total)
	for i := range cart.Items {
		item := &cart.Items[i]
		line := CartLine{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			LineTotal: item.TotalPrice(),
		}
		if p := item.Product; p != nil {
			line.Name = p.Name
			line.Slug = p.Slug
			line.Image = p.ImageURL()
			line.URL = p.URL()
			line.PanelType = p.PanelType
			line.Wattage = p.Wattage
			line.Price = p.Price
			line.Stock = p.Stock
		}
		if item.ExceedsStock() {
			view.Warnings = append(view.Warnings, fmt.Sprintf("Only %d of %s available", line.Stock, line.Name))
		}
		view.Items = append(view.Items, line)
	}
	return view
}

// CartSummary backs the header cart badge.
type CartSummary struct {
	Count          int             `json:"count"`
	Total          decimal.Decimal `json:"total"`
	FormattedTotal string          `json:"formatted_total"`
}

// CartMutation is the outcome of an add or remove.
type CartMutation struct {
	Message string    `json:"message"`
	Cart    *CartView `json:"cart"`
}

// CartUpdate is the outcome of a quantity change. ItemTotal is zero when the
// line was deleted.
type CartUpdate struct {
	Success   bool            `json:"success"`
	Total     decimal.Decimal `json:"total"`
	ItemTotal decimal.Decimal `json:"item_total"`
	Removed   bool            `json:"removed,omitempty"`
	Cart      *CartView       `json:"cart"`
}

// CartService manages visitor carts.
type CartService struct {
	carts    store.CartStorer
	products store.ProductStorer
	logger   zerolog.Logger
}

// NewCartService creates a CartService.
func NewCartService(carts store.CartStorer, products store.ProductStorer, logger zerolog.Logger) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		logger:   logger.With().Str("component", "cart").Logger(),
	}
}

// Resolve returns the single cart of owner, creating it on first use.
func (s *CartService) Resolve(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, domain.NewError(domain.KindValidation, "No cart identity.")
	}
	cart, err := s.carts.GetOrCreateCart(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("service: Resolve cart: %w", err)
	}
	return cart, nil
}

// View resolves the cart of owner and reports lines that exceed stock.
func (s *CartService) View(ctx context.Context, owner domain.CartOwner) (*CartView, error) {
	cart, err := s.Resolve(ctx, owner)
	if err != nil {
		return nil, err
	}
	return newCartView(cart), nil
}

// AddItem adds quantity units of a product to the cart of owner.
func (s *CartService) AddItem(ctx context.Context, owner domain.CartOwner, productID int64, quantity int) (*CartMutation, error) {
	if quantity < 1 {
		return nil, domain.NewError(domain.KindValidation, "Quantity must be at least 1.")
	}
	product, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, domain.WrapError(domain.KindNotFound, err, "Product not found.")
		}
		return nil, fmt.Errorf("service: AddItem: %w", err)
	}
	if !product.InStock() {
		return nil, domain.NewError(domain.KindOutOfStock, "This product is out of stock.")
	}

	cart, err := s.Resolve(ctx, owner)
	if err != nil {
		return nil, err
	}
	if line, ok := cart.Item(productID); ok && line.Quantity+quantity > product.Stock {
		return nil, domain.NewError(domain.KindInsufficientStock, "Not enough stock available.")
	}
	if _, err := s.carts.AddCartItem(ctx, cart.ID, productID, quantity, product.Stock); err != nil {
		if errors.Is(err, store.ErrQuantityExceeded) {
			return nil, domain.WrapError(domain.KindInsufficientStock, err, "Not enough stock available.")
		}
		return nil, fmt.Errorf("service: AddItem: %w", err)
	}

	view, err := s.reload(ctx, owner)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int64("product_id", productID).Int("quantity", quantity).Str("owner", owner.String()).Msg("cart item added")
	return &CartMutation{Message: fmt.Sprintf("Added %s to cart", product.Name), Cart: view}, nil
}

// ownedItem loads a line and checks that it belongs to the cart of owner.
func (s *CartService) ownedItem(ctx context.Context, owner domain.CartOwner, itemID int64) (*domain.CartItem, error) {
	item, cart, err := s.carts.GetCartItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrCartItemNotFound) {
			return nil, domain.WrapError(domain.KindNotFound, err, "Cart item not found.")
		}
		return nil, fmt.Errorf("service: load cart item: %w", err)
	}
	if !cart.OwnedBy(owner) {
		s.logger.Warn().Int64("item_id", itemID).Str("owner", owner.String()).Msg("cart ownership mismatch")
		return nil, domain.NewError(domain.KindUnauthorized, "Unauthorized")
	}
	return item, nil
}

// UpdateItem sets the quantity of a line. A quantity below 1 deletes it.
func (s *CartService) UpdateItem(ctx context.Context, owner domain.CartOwner, itemID int64, quantity int) (*CartUpdate, error) {
	item, err := s.ownedItem(ctx, owner, itemID)
	if err != nil {
		return nil, err
	}

	update := &CartUpdate{Success: true, ItemTotal: decimal.Zero}
	if quantity < 1 {
		if err := s.carts.DeleteCartItem(ctx, item.ID); err != nil && !errors.Is(err, store.ErrCartItemNotFound) {
			return nil, fmt.Errorf("service: UpdateItem delete: %w", err)
		}
		update.Removed = true
	} else {
		if item.Product != nil && quantity > item.Product.Stock {
			return nil, domain.NewError(domain.KindInsufficientStock, "Only %d items available", item.Product.Stock)
		}
		updated, err := s.carts.SetCartItemQuantity(ctx, item.ID, quantity)
		if err != nil {
			if errors.Is(err, store.ErrCartItemNotFound) {
				return nil, domain.WrapError(domain.KindNotFound, err, "Cart item not found.")
			}
			return nil, fmt.Errorf("service: UpdateItem: %w", err)
		}
		updated.Product = item.Product
		update.ItemTotal = updated.TotalPrice()
	}

	view, err := s.reload(ctx, owner)
	if err != nil {
		return nil, err
	}
	update.Total = view.Total
	update.Cart = view
	return update, nil
}

// RemoveItem deletes a line from the cart of owner.
func (s *CartService) RemoveItem(ctx context.Context, owner domain.CartOwner, itemID int64) (*CartMutation, error) {
	item, err := s.ownedItem(ctx, owner, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.carts.DeleteCartItem(ctx, item.ID); err != nil {
		if errors.Is(err, store.ErrCartItemNotFound) {
			return nil, domain.WrapError(domain.KindNotFound, err, "Cart item not found.")
		}
		return nil, fmt.Errorf("service: RemoveItem: %w", err)
	}

	view, err := s.reload(ctx, owner)
	if err != nil {
		return nil, err
	}
	name := "item"
	if item.Product != nil {
		name = item.Product.Name
	}
	return &CartMutation{Message: fmt.Sprintf("Removed %s from cart", name), Cart: view}, nil
}

// Summary returns line count and total of the cart of owner without creating
// one when the visitor has none yet.
func (s *CartService) Summary(ctx context.Context, owner domain.CartOwner) (*CartSummary, error) {
	empty := &CartSummary{Total: decimal.Zero, FormattedTotal: domain.FormatPrice(decimal.Zero)}
	if !owner.Valid() {
		return empty, nil
	}
	cart, err := s.carts.FindCart(ctx, owner)
	if err != nil {
		if errors.Is(err, store.ErrCartNotFound) {
			return empty, nil
		}
		return nil, fmt.Errorf("service: Summary: %w", err)
	}
	total := cart.TotalPrice()
	return &CartSummary{Count: cart.LineCount(), Total: total, FormattedTotal: domain.FormatPrice(total)}, nil
}

func (s *CartService) reload(ctx context.Context, owner domain.CartOwner) (*CartView, error) {
	cart, err := s.carts.FindCart(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("service: reload cart: %w", err)
	}
	return newCartView(cart), nil
}

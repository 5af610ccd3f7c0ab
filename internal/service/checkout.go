package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"solar-store-service/internal/domain"
	"solar-store-service/internal/notify"
	"solar-store-service/internal/store"
)

const notifyTimeout = 10 * time.Second

// CheckoutView is what the checkout form is rendered from.
type CheckoutView struct {
	Cart           *CartView               `json:"cart"`
	DefaultAddress *domain.ShippingAddress `json:"default_address,omitempty"`
}

// CheckoutRequest selects the shipping address of an order: a new Address,
// or the id of one the user saved before.
type CheckoutRequest struct {
	Address   *domain.ShippingAddress
	AddressID int64
}

// CheckoutService turns carts into orders.
type CheckoutService struct {
	carts    store.CartStorer
	orders   store.OrderStorer
	users    store.UserStorer
	notifier notify.Notifier
	cache    Cache
	logger   zerolog.Logger
}

// NewCheckoutService creates a CheckoutService. cache may be nil; when set it
// must be the cache the CatalogService reads the home feed from.
func NewCheckoutService(carts store.CartStorer, orders store.OrderStorer, users store.UserStorer,
	notifier notify.Notifier, cache Cache, logger zerolog.Logger) *CheckoutService {
	return &CheckoutService{
		carts:    carts,
		orders:   orders,
		users:    users,
		notifier: notifier,
		cache:    cache,
		logger:   logger.With().Str("component", "checkout").Logger(),
	}
}

// checkoutCart loads the user's cart and checks it can be ordered as is.
func (s *CheckoutService) checkoutCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	cart, err := s.carts.FindCart(ctx, domain.UserOwner(userID))
	if err != nil && !errors.Is(err, store.ErrCartNotFound) {
		return nil, fmt.Errorf("service: load checkout cart: %w", err)
	}
	if cart == nil || cart.IsEmpty() {
		return nil, domain.NewError(domain.KindValidation, "Your cart is empty.")
	}
	for i := range cart.Items {
		item := &cart.Items[i]
		if item.ExceedsStock() {
			return nil, domain.NewError(domain.KindStockUnavailable,
				"Only %d of %s available. Please update your cart.", item.Product.Stock, item.Product.Name)
		}
	}
	return cart, nil
}

// Prepare returns the cart and the default address for the checkout form.
func (s *CheckoutService) Prepare(ctx context.Context, userID int64) (*CheckoutView, error) {
	cart, err := s.checkoutCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := &CheckoutView{Cart: newCartView(cart)}
	address, err := s.orders.DefaultShippingAddress(ctx, userID)
	switch {
	case err == nil:
		view.DefaultAddress = address
	case errors.Is(err, store.ErrAddressNotFound):
	default:
		return nil, fmt.Errorf("service: Prepare default address: %w", err)
	}
	return view, nil
}

// PlaceOrder converts the user's cart into a pending order. Address save,
// order creation, stock decrement and cart clearing commit together; the
// confirmation is sent afterwards and never fails the order.
func (s *CheckoutService) PlaceOrder(ctx context.Context, userID int64, req CheckoutRequest) (*domain.Order, error) {
	if req.Address == nil && req.AddressID <= 0 {
		return nil, domain.NewError(domain.KindValidation, "A shipping address is required.")
	}
	cart, err := s.checkoutCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.PlaceOrder(ctx, store.PlaceOrderParams{
		UserID:    userID,
		CartID:    cart.ID,
		Address:   req.Address,
		AddressID: req.AddressID,
	})
	if err != nil {
		var stockErr *store.StockError
		switch {
		case errors.As(err, &stockErr):
			return nil, domain.WrapError(domain.KindStockUnavailable, err,
				"Only %d of %s available. Please update your cart.", stockErr.Available, stockErr.ProductName)
		case errors.Is(err, store.ErrCartEmpty):
			return nil, domain.WrapError(domain.KindValidation, err, "Your cart is empty.")
		case errors.Is(err, store.ErrAddressNotFound):
			return nil, domain.WrapError(domain.KindNotFound, err, "Shipping address not found.")
		}
		return nil, fmt.Errorf("service: PlaceOrder: %w", err)
	}

	s.logger.Info().Int64("order_id", order.ID).Int64("user_id", userID).
		Str("total", order.Total.StringFixed(2)).Int("items", order.ItemCount()).Msg("order placed")
	s.invalidateHome(ctx, order.ID)
	s.sendConfirmation(ctx, order)
	return order, nil
}

// invalidateHome drops the cached home feed, whose in-stock listings may
// still show products the order just sold out.
func (s *CheckoutService) invalidateHome(ctx context.Context, orderID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(context.WithoutCancel(ctx), homeCacheKey); err != nil {
		s.logger.Warn().Err(err).Int64("order_id", orderID).Msg("home feed cache invalidation failed")
	}
}

// sendConfirmation is best-effort: failures are logged, never returned.
func (s *CheckoutService) sendConfirmation(ctx context.Context, order *domain.Order) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	confirmation := notify.OrderConfirmation{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Total:     order.Total,
		ItemCount: order.ItemCount(),
		PlacedAt:  order.CreatedAt,
	}
	if order.ShippingAddress != nil {
		confirmation.Email = order.ShippingAddress.Email
		confirmation.Name = order.ShippingAddress.FullName()
	}
	if user, err := s.users.GetUserByID(ctx, order.UserID); err == nil && user.Email != "" {
		confirmation.Email = user.Email
	}

	if err := s.notifier.OrderPlaced(ctx, confirmation); err != nil {
		s.logger.Error().Err(err).Int64("order_id", order.ID).Msg("order confirmation failed")
	}
}

// ListOrders returns the user's orders, newest first.
func (s *CheckoutService) ListOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	orders, err := s.orders.ListOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: ListOrders: %w", err)
	}
	return orders, nil
}

// GetOrder returns one of the user's orders. Orders of other users are
// reported as missing.
func (s *CheckoutService) GetOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil, domain.WrapError(domain.KindNotFound, err, "Order not found.")
		}
		return nil, fmt.Errorf("service: GetOrder: %w", err)
	}
	if order.UserID != userID {
		return nil, domain.NewError(domain.KindNotFound, "Order not found.")
	}
	return order, nil
}

// UpdateStatus moves an order to next if the transition is allowed from its
// current status.
func (s *CheckoutService) UpdateStatus(ctx context.Context, orderID int64, next domain.OrderStatus) (*domain.Order, error) {
	if !next.Valid() {
		return nil, domain.NewError(domain.KindValidation, "Unknown order status %q.", next)
	}
	current, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil, domain.WrapError(domain.KindNotFound, err, "Order not found.")
		}
		return nil, fmt.Errorf("service: UpdateStatus: %w", err)
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, domain.NewError(domain.KindConflict, "Cannot move order from %s to %s.", current.Status, next)
	}

	order, err := s.orders.UpdateOrderStatus(ctx, orderID, current.Status, next)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrOrderNotFound):
			return nil, domain.WrapError(domain.KindNotFound, err, "Order not found.")
		case errors.Is(err, store.ErrStatusConflict):
			return nil, domain.WrapError(domain.KindConflict, err, "Order status changed concurrently, retry.")
		}
		return nil, fmt.Errorf("service: UpdateStatus: %w", err)
	}
	s.logger.Info().Int64("order_id", orderID).Str("from", string(current.Status)).Str("to", string(next)).Msg("order status updated")
	return order, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"solar-store-service/internal/domain"
)

// StockError reports the cart line that could not be fulfilled at checkout.
// It matches ErrStockUnavailable with errors.Is.
type StockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("store: only %d of %q available, %d requested", e.Available, e.ProductName, e.Requested)
}

func (e *StockError) Is(target error) bool { return target == ErrStockUnavailable }

// --- OrderStorer Implementation ---

const addressColumns = `id, user_id, first_name, last_name, email, phone, address_line1, address_line2,
			city, state, postal_code, country, is_default, created_at`

func scanAddress(row rowScanner) (*domain.ShippingAddress, error) {
	var a domain.ShippingAddress
	err := row.Scan(
		&a.ID, &a.UserID, &a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.AddressLine1, &a.AddressLine2,
		&a.City, &a.State, &a.PostalCode, &a.Country, &a.IsDefault, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) DefaultShippingAddress(ctx context.Context, userID int64) (*domain.ShippingAddress, error) {
	query := `
		SELECT ` + addressColumns + `
		FROM shipping_addresses
		WHERE user_id = $1 AND is_default = TRUE
		ORDER BY created_at DESC
		LIMIT 1;
	`
	address, err := scanAddress(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("store: DefaultShippingAddress failed to scan row: %w", err)
	}
	return address, nil
}

// saveAddress inserts a new address, clearing the user's previous default
// first so that at most one default exists per user.
func saveAddress(ctx context.Context, tx queryer, userID int64, address *domain.ShippingAddress) (*domain.ShippingAddress, error) {
	if address.IsDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE shipping_addresses SET is_default = FALSE WHERE user_id = $1 AND is_default = TRUE;`, userID); err != nil {
			return nil, fmt.Errorf("store: saveAddress failed to clear default address: %w", err)
		}
	}
	query := `
		INSERT INTO shipping_addresses
			(user_id, first_name, last_name, email, phone, address_line1, address_line2,
			 city, state, postal_code, country, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + addressColumns + `;
	`
	saved, err := scanAddress(tx.QueryRowContext(ctx, query,
		userID, address.FirstName, address.LastName, address.Email, address.Phone, address.AddressLine1,
		address.AddressLine2, address.City, address.State, address.PostalCode, address.Country, address.IsDefault,
	))
	if err != nil {
		return nil, fmt.Errorf("store: saveAddress failed to scan row: %w", err)
	}
	return saved, nil
}

func loadAddress(ctx context.Context, q queryer, addressID, userID int64) (*domain.ShippingAddress, error) {
	query := `
		SELECT ` + addressColumns + `
		FROM shipping_addresses
		WHERE id = $1 AND user_id = $2;
	`
	address, err := scanAddress(q.QueryRowContext(ctx, query, addressID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("store: loadAddress failed to scan row: %w", err)
	}
	return address, nil
}

type checkoutLine struct {
	productID int64
	name      string
	slug      string
	quantity  int
	price     decimal.Decimal
	stock     int
}

// lockCheckoutLines reads the cart lines with the current product price and
// stock. The cart row is locked first so no line can be added until the
// transaction ends; the lines and their product rows are then locked in
// product id order.
func lockCheckoutLines(ctx context.Context, tx queryer, cartID int64) ([]checkoutLine, error) {
	var lockedID int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE id = $1 FOR UPDATE;`, cartID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartEmpty
		}
		return nil, fmt.Errorf("store: PlaceOrder failed to lock cart: %w", err)
	}

	query := `
		SELECT ci.product_id, p.name, p.slug, ci.quantity, p.price, p.stock
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.product_id
		FOR UPDATE OF ci, p;
	`
	rows, err := tx.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("store: PlaceOrder failed to lock cart lines: %w", err)
	}
	defer rows.Close()

	var lines []checkoutLine
	for rows.Next() {
		var l checkoutLine
		if err := rows.Scan(&l.productID, &l.name, &l.slug, &l.quantity, &l.price, &l.stock); err != nil {
			return nil, fmt.Errorf("store: PlaceOrder failed to scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: PlaceOrder cart line iteration error: %w", err)
	}
	return lines, nil
}

// PlaceOrder converts the cart into an order in a single transaction. Any
// line whose quantity exceeds the locked stock aborts the whole checkout
// with a *StockError and leaves stock, cart and addresses untouched.
func (s *PostgresStore) PlaceOrder(ctx context.Context, params PlaceOrderParams) (*domain.Order, error) {
	var order *domain.Order
	err := s.withTx(ctx, "PlaceOrder", func(tx *sql.Tx) error {
		var address *domain.ShippingAddress
		var err error
		if params.Address != nil {
			address, err = saveAddress(ctx, tx, params.UserID, params.Address)
		} else {
			address, err = loadAddress(ctx, tx, params.AddressID, params.UserID)
		}
		if err != nil {
			return err
		}

		lines, err := lockCheckoutLines(ctx, tx, params.CartID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrCartEmpty
		}

		total := decimal.Zero
		for _, l := range lines {
			if l.quantity > l.stock {
				return &StockError{ProductID: l.productID, ProductName: l.name, Requested: l.quantity, Available: l.stock}
			}
			total = total.Add(l.price.Mul(decimal.NewFromInt(int64(l.quantity))))
		}

		order = &domain.Order{
			UserID:            params.UserID,
			ShippingAddressID: address.ID,
			ShippingAddress:   address,
			Status:            domain.OrderStatusPending,
			Total:             total,
			Items:             make([]domain.OrderItem, 0, len(lines)),
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO orders (user_id, shipping_address_id, status, total)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at;`,
			order.UserID, order.ShippingAddressID, order.Status, order.Total,
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("store: PlaceOrder failed to insert order: %w", err)
		}

		for _, l := range lines {
			result, err := tx.ExecContext(ctx,
				`UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1;`,
				l.quantity, l.productID)
			if err != nil {
				return fmt.Errorf("store: PlaceOrder failed to decrement stock: %w", err)
			}
			if n, err := result.RowsAffected(); err != nil {
				return fmt.Errorf("store: PlaceOrder failed to get rows affected: %w", err)
			} else if n == 0 {
				return &StockError{ProductID: l.productID, ProductName: l.name, Requested: l.quantity, Available: l.stock}
			}

			item := domain.OrderItem{
				OrderID:     order.ID,
				ProductID:   l.productID,
				ProductName: l.name,
				ProductSlug: l.slug,
				Quantity:    l.quantity,
				Price:       l.price,
			}
			err = tx.QueryRowContext(ctx, `
				INSERT INTO order_items (order_id, product_id, quantity, price)
				VALUES ($1, $2, $3, $4)
				RETURNING id;`,
				item.OrderID, item.ProductID, item.Quantity, item.Price,
			).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("store: PlaceOrder failed to insert order item: %w", err)
			}
			order.Items = append(order.Items, item)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1;`, params.CartID); err != nil {
			return fmt.Errorf("store: PlaceOrder failed to clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

const orderColumns = `id, user_id, shipping_address_id, status, total, created_at, updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(&o.ID, &o.UserID, &o.ShippingAddressID, &o.Status, &o.Total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders returns the user's orders, newest first, without their items.
func (s *PostgresStore) ListOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC;
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("store: ListOrders failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("store: ListOrders failed to scan row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListOrders iteration error: %w", err)
	}
	return orders, nil
}

// GetOrder loads an order with its shipping address and items.
func (s *PostgresStore) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1;`, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("store: GetOrder failed to scan row: %w", err)
	}

	address, err := loadAddress(ctx, s.db, order.ShippingAddressID, order.UserID)
	if err != nil && !errors.Is(err, ErrAddressNotFound) {
		return nil, err
	}
	order.ShippingAddress = address

	rows, err := s.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, p.slug, oi.quantity, oi.price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id ASC;`, orderID)
	if err != nil {
		return nil, fmt.Errorf("store: GetOrder failed to query items: %w", err)
	}
	defer rows.Close()

	order.Items = []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.ProductSlug, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("store: GetOrder failed to scan item row: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: GetOrder item iteration error: %w", err)
	}
	return order, nil
}

// UpdateOrderStatus moves the order from one status to another. It fails with
// ErrStatusConflict when the order is no longer in status from.
func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, orderID int64, from, to domain.OrderStatus) (*domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING `+orderColumns+`;`, to, orderID, from))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: UpdateOrderStatus failed to scan row: %w", err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1);`, orderID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("store: UpdateOrderStatus failed to check order: %w", err)
	}
	if !exists {
		return nil, ErrOrderNotFound
	}
	return nil, ErrStatusConflict
}

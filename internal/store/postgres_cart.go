package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"solar-store-service/internal/domain"
)

// --- CartStorer Implementation ---

// Carts are unique per owner key (partial unique indexes on user_id and
// session_key), so get-or-create is an insert-if-absent followed by a read.
const (
	insertUserCart    = `INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT (user_id) WHERE user_id IS NOT NULL DO NOTHING;`
	insertSessionCart = `INSERT INTO carts (session_key) VALUES ($1) ON CONFLICT (session_key) WHERE session_key IS NOT NULL DO NOTHING;`
	selectUserCart    = `SELECT id, user_id, session_key, created_at, updated_at FROM carts WHERE user_id = $1;`
	selectSessionCart = `SELECT id, user_id, session_key, created_at, updated_at FROM carts WHERE session_key = $1;`
)

const cartItemSelect = `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.added_at,
			p.name, p.slug, p.price, p.stock, p.image, p.panel_type, p.wattage
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id`

func ownerKey(owner domain.CartOwner) any {
	if owner.IsUser() {
		return owner.UserID()
	}
	return owner.SessionKey()
}

func scanCartItem(row rowScanner, extra ...any) (*domain.CartItem, error) {
	var item domain.CartItem
	product := &domain.Product{}
	dest := []any{
		&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.AddedAt,
		&product.Name, &product.Slug, &product.Price, &product.Stock, &product.Image, &product.PanelType, &product.Wattage,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	product.ID = item.ProductID
	item.Product = product
	return &item, nil
}

func (s *PostgresStore) GetOrCreateCart(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("store: GetOrCreateCart called with an invalid owner")
	}
	insert := insertSessionCart
	if owner.IsUser() {
		insert = insertUserCart
	}
	if _, err := s.db.ExecContext(ctx, insert, ownerKey(owner)); err != nil {
		return nil, fmt.Errorf("store: GetOrCreateCart failed to insert %s cart: %w", owner, err)
	}
	return s.FindCart(ctx, owner)
}

func (s *PostgresStore) FindCart(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, ErrCartNotFound
	}
	query := selectSessionCart
	if owner.IsUser() {
		query = selectUserCart
	}

	var cart domain.Cart
	var userID sql.NullInt64
	var sessionKey sql.NullString
	err := s.db.QueryRowContext(ctx, query, ownerKey(owner)).Scan(
		&cart.ID, &userID, &sessionKey, &cart.CreatedAt, &cart.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("store: FindCart failed to scan row: %w", err)
	}
	if userID.Valid {
		cart.UserID = &userID.Int64
	}
	if sessionKey.Valid {
		cart.SessionKey = &sessionKey.String
	}

	items, err := s.listCartItems(ctx, s.db, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	return &cart, nil
}

func (s *PostgresStore) listCartItems(ctx context.Context, q queryer, cartID int64) ([]domain.CartItem, error) {
	rows, err := q.QueryContext(ctx, cartItemSelect+`
		WHERE ci.cart_id = $1
		ORDER BY ci.added_at DESC, ci.id DESC;`, cartID)
	if err != nil {
		return nil, fmt.Errorf("store: listCartItems failed to query items: %w", err)
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, fmt.Errorf("store: listCartItems failed to scan row: %w", err)
		}
		items = append(items, *item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: listCartItems iteration error: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetCartItem(ctx context.Context, itemID int64) (*domain.CartItem, *domain.Cart, error) {
	var userID sql.NullInt64
	var sessionKey sql.NullString
	item, err := scanCartItem(s.db.QueryRowContext(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.added_at,
			p.name, p.slug, p.price, p.stock, p.image, p.panel_type, p.wattage,
			ct.user_id, ct.session_key
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		JOIN carts ct ON ct.id = ci.cart_id
		WHERE ci.id = $1;`, itemID), &userID, &sessionKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrCartItemNotFound
		}
		return nil, nil, fmt.Errorf("store: GetCartItem failed to scan row: %w", err)
	}

	cart := &domain.Cart{ID: item.CartID}
	if userID.Valid {
		cart.UserID = &userID.Int64
	}
	if sessionKey.Valid {
		cart.SessionKey = &sessionKey.String
	}
	return item, cart, nil
}

// AddCartItem inserts or increments a line in one statement. The conflict
// update only fires while the summed quantity stays within maxQuantity, so a
// concurrent add cannot push the line past the stock read by the caller.
func (s *PostgresStore) AddCartItem(ctx context.Context, cartID, productID int64, quantity, maxQuantity int) (*domain.CartItem, error) {
	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		SELECT $1, $2, $3 WHERE $3::int <= $4::int
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		WHERE cart_items.quantity + EXCLUDED.quantity <= $4::int
		RETURNING id, cart_id, product_id, quantity, added_at;
	`
	var item domain.CartItem
	err := s.db.QueryRowContext(ctx, query, cartID, productID, quantity, maxQuantity).Scan(
		&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.AddedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuantityExceeded
		}
		return nil, fmt.Errorf("store: AddCartItem failed to scan row: %w", err)
	}
	return &item, nil
}

func (s *PostgresStore) SetCartItemQuantity(ctx context.Context, itemID int64, quantity int) (*domain.CartItem, error) {
	query := `
		UPDATE cart_items
		SET quantity = $1
		WHERE id = $2
		RETURNING id, cart_id, product_id, quantity, added_at;
	`
	var item domain.CartItem
	err := s.db.QueryRowContext(ctx, query, quantity, itemID).Scan(
		&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.AddedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("store: SetCartItemQuantity failed to scan row: %w", err)
	}
	return &item, nil
}

func (s *PostgresStore) DeleteCartItem(ctx context.Context, itemID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1;`, itemID)
	if err != nil {
		return fmt.Errorf("store: DeleteCartItem failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteCartItem failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

// MergeCarts folds the session cart into the user's cart. Quantities of
// products present in both are summed; stock is not re-checked here.
func (s *PostgresStore) MergeCarts(ctx context.Context, sessionKey string, userID int64) error {
	return s.withTx(ctx, "MergeCarts", func(tx *sql.Tx) error {
		var sessionCartID int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE session_key = $1 FOR UPDATE;`, sessionKey).Scan(&sessionCartID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrCartNotFound
			}
			return fmt.Errorf("store: MergeCarts failed to lock session cart: %w", err)
		}

		if _, err := tx.ExecContext(ctx, insertUserCart, userID); err != nil {
			return fmt.Errorf("store: MergeCarts failed to create user cart: %w", err)
		}
		var userCartID int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id = $1 FOR UPDATE;`, userID).Scan(&userCartID); err != nil {
			return fmt.Errorf("store: MergeCarts failed to lock user cart: %w", err)
		}

		mergeQuery := `
			INSERT INTO cart_items (cart_id, product_id, quantity, added_at)
			SELECT $1, product_id, quantity, added_at
			FROM cart_items
			WHERE cart_id = $2
			ON CONFLICT (cart_id, product_id)
			DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity;
		`
		if _, err := tx.ExecContext(ctx, mergeQuery, userCartID, sessionCartID); err != nil {
			return fmt.Errorf("store: MergeCarts failed to move items: %w", err)
		}

		// cart_items rows of the session cart go with it (ON DELETE CASCADE).
		if _, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1;`, sessionCartID); err != nil {
			return fmt.Errorf("store: MergeCarts failed to delete session cart: %w", err)
		}
		return nil
	})
}

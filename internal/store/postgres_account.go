package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"solar-store-service/internal/domain"
)

// --- UserStorer Implementation ---

func (s *PostgresStore) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	created := *user
	err := s.withTx(ctx, "CreateUser", func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO users (username, email, password_hash)
			VALUES ($1, $2, $3)
			RETURNING id, created_at;`,
			created.Username, created.Email, created.PasswordHash,
		).Scan(&created.ID, &created.CreatedAt)
		if err != nil {
			if _, ok := uniqueViolation(err); ok {
				return ErrUsernameExists
			}
			return fmt.Errorf("store: CreateUser failed to insert user: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO wishlists (user_id) VALUES ($1);`, created.ID); err != nil {
			return fmt.Errorf("store: CreateUser failed to create wishlist: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *PostgresStore) getUser(ctx context.Context, op, where string, arg any) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE `+where+` = $1;`, arg).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("store: %s failed to scan row: %w", op, err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.getUser(ctx, "GetUserByID", "id", id)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, "GetUserByUsername", "username", username)
}

// --- ReviewStorer Implementation ---

func (s *PostgresStore) CreateReview(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	created := *review
	query := `
		INSERT INTO reviews (product_id, user_id, rating, title, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at;
	`
	err := s.db.QueryRowContext(ctx, query,
		created.ProductID, created.UserID, created.Rating, created.Title, created.Comment,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, ErrReviewExists
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: CreateReview failed to scan row: %w", err)
	}
	return &created, nil
}

// ListReviews returns the product's reviews, newest first.
func (s *PostgresStore) ListReviews(ctx context.Context, productID int64) ([]domain.Review, error) {
	query := `
		SELECT r.id, r.product_id, r.user_id, u.username, r.rating, r.title, r.comment, r.created_at, r.updated_at
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.product_id = $1
		ORDER BY r.created_at DESC, r.id DESC;
	`
	rows, err := s.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("store: ListReviews failed to query reviews: %w", err)
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		var r domain.Review
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserID, &r.Username, &r.Rating, &r.Title, &r.Comment, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: ListReviews failed to scan row: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListReviews iteration error: %w", err)
	}
	return reviews, nil
}

func (s *PostgresStore) RatingSummary(ctx context.Context, productID int64) (domain.RatingSummary, error) {
	var summary domain.RatingSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*) FROM reviews WHERE product_id = $1;`, productID,
	).Scan(&summary.Average, &summary.Count)
	if err != nil {
		return domain.RatingSummary{}, fmt.Errorf("store: RatingSummary failed to scan row: %w", err)
	}
	return summary, nil
}

// --- WishlistStorer Implementation ---

// ensureWishlist returns the id of the user's wishlist, creating it for
// accounts that predate wishlists.
func ensureWishlist(ctx context.Context, q queryer, userID int64) (int64, error) {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO wishlists (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING;`, userID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("store: ensureWishlist failed to insert wishlist: %w", err)
	}
	var id int64
	if err := q.QueryRowContext(ctx, `SELECT id FROM wishlists WHERE user_id = $1;`, userID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrWishlistNotFound
		}
		return 0, fmt.Errorf("store: ensureWishlist failed to scan row: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetWishlist(ctx context.Context, userID int64) (*domain.Wishlist, error) {
	id, err := ensureWishlist(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, productSelect+`
		JOIN wishlist_products wp ON wp.product_id = p.id
		WHERE wp.wishlist_id = $1
		ORDER BY wp.added_at DESC, p.id DESC;`, id)
	if err != nil {
		return nil, fmt.Errorf("store: GetWishlist failed to query products: %w", err)
	}
	defer rows.Close()

	wishlist := &domain.Wishlist{ID: id, UserID: userID, Products: []domain.Product{}}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("store: GetWishlist failed to scan product row: %w", err)
		}
		wishlist.Products = append(wishlist.Products, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: GetWishlist iteration error: %w", err)
	}
	return wishlist, nil
}

func (s *PostgresStore) ToggleWishlistProduct(ctx context.Context, userID, productID int64) (bool, error) {
	var added bool
	err := s.withTx(ctx, "ToggleWishlistProduct", func(tx *sql.Tx) error {
		wishlistID, err := ensureWishlist(ctx, tx, userID)
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx,
			`DELETE FROM wishlist_products WHERE wishlist_id = $1 AND product_id = $2;`, wishlistID, productID)
		if err != nil {
			return fmt.Errorf("store: ToggleWishlistProduct failed to delete: %w", err)
		}
		removed, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("store: ToggleWishlistProduct failed to get rows affected: %w", err)
		}
		if removed > 0 {
			added = false
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO wishlist_products (wishlist_id, product_id)
			VALUES ($1, $2)
			ON CONFLICT (wishlist_id, product_id) DO NOTHING;`, wishlistID, productID); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23503" {
				return ErrProductNotFound
			}
			return fmt.Errorf("store: ToggleWishlistProduct failed to insert: %w", err)
		}
		added = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"solar-store-service/internal/store"
)

// MergeSessionCart moves the anonymous cart of sessionKey into the cart of
// userID, summing quantities of shared products, and deletes the anonymous
// cart. Stock is not re-checked; over-stock lines surface as cart warnings and
// are refused at checkout. A visitor without an anonymous cart is a no-op.
func (s *CartService) MergeSessionCart(ctx context.Context, sessionKey string, userID int64) error {
	if sessionKey == "" || userID <= 0 {
		return nil
	}
	if err := s.carts.MergeCarts(ctx, sessionKey, userID); err != nil {
		if errors.Is(err, store.ErrCartNotFound) {
			return nil
		}
		return fmt.Errorf("service: MergeSessionCart: %w", err)
	}
	s.logger.Info().Int64("user_id", userID).Msg("session cart merged")
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"solar-store-service/internal/domain"
	"solar-store-service/internal/store"
)

const maxReviewTitle = 200

// ReviewInput is a review as submitted from the product page.
type ReviewInput struct {
	Rating  int
	Title   string
	Comment string
}

// ReviewService accepts product reviews.
type ReviewService struct {
	products store.ProductStorer
	reviews  store.ReviewStorer
	logger   zerolog.Logger
}

// NewReviewService creates a ReviewService.
func NewReviewService(products store.ProductStorer, reviews store.ReviewStorer, logger zerolog.Logger) *ReviewService {
	return &ReviewService{products: products, reviews: reviews, logger: logger.With().Str("component", "review").Logger()}
}

// Submit records the review of userID for the product at slug. A userID of
// zero means the visitor is anonymous.
func (s *ReviewService) Submit(ctx context.Context, userID int64, slug string, in ReviewInput) (*domain.Review, error) {
	if userID <= 0 {
		return nil, domain.NewError(domain.KindUnauthenticated, "Please login to submit a review.")
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Comment = strings.TrimSpace(in.Comment)
	switch {
	case !domain.ValidRating(in.Rating):
		return nil, domain.NewError(domain.KindValidation, "Rating must be between %d and %d.", domain.MinRating, domain.MaxRating)
	case in.Comment == "":
		return nil, domain.NewError(domain.KindValidation, "Comment is required.")
	case utf8.RuneCountInString(in.Title) > maxReviewTitle:
		return nil, domain.NewError(domain.KindValidation, "Title must be at most %d characters.", maxReviewTitle)
	}

	product, err := s.products.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, domain.WrapError(domain.KindNotFound, err, "Product not found.")
		}
		return nil, fmt.Errorf("service: Submit review: %w", err)
	}

	review, err := s.reviews.CreateReview(ctx, &domain.Review{
		ProductID: product.ID,
		UserID:    userID,
		Rating:    in.Rating,
		Title:     in.Title,
		Comment:   in.Comment,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrReviewExists):
			return nil, domain.WrapError(domain.KindDuplicateReview, err, "You have already reviewed this product.")
		case errors.Is(err, store.ErrProductNotFound):
			return nil, domain.WrapError(domain.KindNotFound, err, "Product not found.")
		}
		return nil, fmt.Errorf("service: Submit review: %w", err)
	}
	return review, nil
}

// WishlistToggle is the membership of a product after a toggle.
type WishlistToggle struct {
	Added   bool   `json:"added"`
	Message string `json:"message"`
}

// WishlistService manages saved products.
type WishlistService struct {
	wishlists store.WishlistStorer
	logger    zerolog.Logger
}

// NewWishlistService creates a WishlistService.
func NewWishlistService(wishlists store.WishlistStorer, logger zerolog.Logger) *WishlistService {
	return &WishlistService{wishlists: wishlists, logger: logger.With().Str("component", "wishlist").Logger()}
}

// Toggle flips the membership of productID on the user's wishlist.
func (s *WishlistService) Toggle(ctx context.Context, userID, productID int64) (*WishlistToggle, error) {
	added, err := s.wishlists.ToggleWishlistProduct(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, domain.WrapError(domain.KindNotFound, err, "Product not found.")
		}
		return nil, fmt.Errorf("service: Toggle wishlist: %w", err)
	}
	if added {
		return &WishlistToggle{Added: true, Message: "Added to wishlist"}, nil
	}
	return &WishlistToggle{Added: false, Message: "Removed from wishlist"}, nil
}

// List returns the products on the user's wishlist, most recently added first.
func (s *WishlistService) List(ctx context.Context, userID int64) ([]ProductCard, error) {
	wishlist, err := s.wishlists.GetWishlist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: List wishlist: %w", err)
	}
	return productCards(wishlist.Products), nil
}

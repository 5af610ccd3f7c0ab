package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solar-store-service/internal/domain"
	"solar-store-service/internal/store"
)

const (
	homeCacheKey      = "home"
	homeFeatured      = 8
	homeNewArrivals   = 6
	homeCategories    = 6
	homeBestSellers   = 4
	relatedProducts   = 4
	maxCategoryListed = 100
)

// ProductCard is the listing representation of a product.
type ProductCard struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	Slug         string           `json:"slug"`
	Price        decimal.Decimal  `json:"price"`
	Image        string           `json:"image"`
	URL          string           `json:"url"`
	Wattage      int              `json:"wattage"`
	Efficiency   decimal.Decimal  `json:"efficiency"`
	Stock        int              `json:"stock"`
	InStock      bool             `json:"in_stock"`
	PanelType    domain.PanelType `json:"panel_type"`
	PanelLabel   string           `json:"panel_type_label"`
	PricePerWatt decimal.Decimal  `json:"price_per_watt"`
}

// NewProductCard builds the listing card of p.
func NewProductCard(p *domain.Product) ProductCard {
	return ProductCard{
		ID:           p.ID,
		Name:         p.Name,
		Slug:         p.Slug,
		Price:        p.Price,
		Image:        p.ImageURL(),
		URL:          p.URL(),
		Wattage:      p.Wattage,
		Efficiency:   p.Efficiency,
		Stock:        p.Stock,
		InStock:      p.InStock(),
		PanelType:    p.PanelType,
		PanelLabel:   p.PanelType.Label(),
		PricePerWatt: p.PricePerWatt(),
	}
}

func productCards(products []domain.Product) []ProductCard {
	cards := make([]ProductCard, len(products))
	for i := range products {
		cards[i] = NewProductCard(&products[i])
	}
	return cards
}

// HomeFeed aggregates the storefront landing page.
type HomeFeed struct {
	Featured    []ProductCard     `json:"featured_products"`
	NewArrivals []ProductCard     `json:"new_arrivals"`
	Categories  []domain.Category `json:"categories"`
	BestSellers []ProductCard     `json:"best_sellers"`
}

// ProductQuery is a visitor's listing request. Zero values mean "no filter".
type ProductQuery struct {
	Category   string
	PanelType  string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	MinWattage *int
	MaxWattage *int
	Search     string
	Sort       string
	Page       int
}

// ProductDetail is everything shown on a product page.
type ProductDetail struct {
	Product       *domain.Product `json:"product"`
	PricePerWatt  decimal.Decimal `json:"price_per_watt"`
	Related       []ProductCard   `json:"related_products"`
	Reviews       []domain.Review `json:"reviews"`
	ReviewCount   int             `json:"review_count"`
	AverageRating float64         `json:"average_rating"`
}

// CategoryPage is a category with one page of its in-stock products.
type CategoryPage struct {
	Category *domain.Category `json:"category"`
	*ProductPage
}

// SearchResults is one page of a free-text search.
type SearchResults struct {
	Query string `json:"query"`
	*ProductPage
}

// FilterQuery is the input of the lightweight filter API.
type FilterQuery struct {
	Category  string
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	PanelType string
}

// AvailabilityLine asks whether quantity units of a product can be sold.
type AvailabilityLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Shortage reports a line that cannot be fulfilled from current stock.
type Shortage struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// CatalogOptions holds the listing limits.
type CatalogOptions struct {
	PageSize     int
	FilterAPICap int
}

// CatalogService serves the read side of the catalog.
type CatalogService struct {
	categories store.CategoryStorer
	products   store.ProductStorer
	reviews    store.ReviewStorer
	cache      Cache
	logger     zerolog.Logger
	opts       CatalogOptions
}

// NewCatalogService creates a CatalogService. cache may be nil.
func NewCatalogService(categories store.CategoryStorer, products store.ProductStorer, reviews store.ReviewStorer,
	cache Cache, logger zerolog.Logger, opts CatalogOptions) *CatalogService {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.FilterAPICap <= 0 {
		opts.FilterAPICap = 50
	}
	return &CatalogService{
		categories: categories,
		products:   products,
		reviews:    reviews,
		cache:      cache,
		logger:     logger.With().Str("component", "catalog").Logger(),
		opts:       opts,
	}
}

// Home returns the landing page aggregates, from cache when possible.
func (s *CatalogService) Home(ctx context.Context) (*HomeFeed, error) {
	if s.cache != nil {
		var cached HomeFeed
		hit, err := s.cache.Get(ctx, homeCacheKey, &cached)
		if err != nil {
			s.logger.Warn().Err(err).Msg("home feed cache read failed")
		} else if hit {
			return &cached, nil
		}
	}

	featured, _, err := s.products.ListProducts(ctx, store.ListProductsParams{
		Limit: homeFeatured, FeaturedOnly: true, InStockOnly: true, SortBy: store.SortNewest,
	})
	if err != nil {
		return nil, fmt.Errorf("service: Home featured: %w", err)
	}
	newest, _, err := s.products.ListProducts(ctx, store.ListProductsParams{
		Limit: homeNewArrivals, InStockOnly: true, SortBy: store.SortNewest,
	})
	if err != nil {
		return nil, fmt.Errorf("service: Home new arrivals: %w", err)
	}
	bestSellers, _, err := s.products.ListProducts(ctx, store.ListProductsParams{
		Limit: homeBestSellers, InStockOnly: true, SortBy: store.SortPopular,
	})
	if err != nil {
		return nil, fmt.Errorf("service: Home best sellers: %w", err)
	}
	categories, _, err := s.categories.ListCategories(ctx, store.ListCategoriesParams{Limit: homeCategories})
	if err != nil {
		return nil, fmt.Errorf("service: Home categories: %w", err)
	}

	feed := &HomeFeed{
		Featured:    productCards(featured),
		NewArrivals: productCards(newest),
		Categories:  categories,
		BestSellers: productCards(bestSellers),
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, homeCacheKey, feed); err != nil {
			s.logger.Warn().Err(err).Msg("home feed cache write failed")
		}
	}
	return feed, nil
}

// ListProducts filters, sorts and paginates the in-stock catalog.
func (s *CatalogService) ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	params := store.ListProductsParams{
		InStockOnly: true,
		MinPrice:    q.MinPrice,
		MaxPrice:    q.MaxPrice,
		MinWattage:  q.MinWattage,
		MaxWattage:  q.MaxWattage,
		SortBy:      store.ProductSort(q.Sort),
	}
	if q.Category != "" {
		params.CategorySlug = &q.Category
	}
	if q.PanelType != "" {
		pt := domain.PanelType(q.PanelType)
		params.PanelType = &pt
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		params.SearchQuery = &search
	}
	return s.page(ctx, params, q.Page)
}

// page runs params for the requested page, clamping out-of-range pages to
// the first or last page.
func (s *CatalogService) page(ctx context.Context, params store.ListProductsParams, page int) (*ProductPage, error) {
	if page < 1 {
		page = 1
	}
	params.Limit = s.opts.PageSize
	params.Offset = (page - 1) * s.opts.PageSize

	products, total, err := s.products.ListProducts(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("service: list products: %w", err)
	}
	if last := totalPages(total, s.opts.PageSize); page > last {
		page = last
		params.Offset = (page - 1) * s.opts.PageSize
		products, total, err = s.products.ListProducts(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("service: list products: %w", err)
		}
	}
	return newProductPage(productCards(products), page, s.opts.PageSize, total), nil
}

// ProductDetail loads a product page by slug.
func (s *CatalogService) ProductDetail(ctx context.Context, slug string) (*ProductDetail, error) {
	product, err := s.products.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, domain.WrapError(domain.KindNotFound, err, "Product not found.")
		}
		return nil, fmt.Errorf("service: ProductDetail: %w", err)
	}

	images, err := s.products.ListProductImages(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("service: ProductDetail images: %w", err)
	}
	product.Images = images

	related, _, err := s.products.ListProducts(ctx, store.ListProductsParams{
		Limit:      relatedProducts,
		CategoryID: &product.CategoryID,
		ExcludeID:  &product.ID,
		SortBy:     store.SortName,
	})
	if err != nil {
		return nil, fmt.Errorf("service: ProductDetail related: %w", err)
	}

	reviews, err := s.reviews.ListReviews(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("service: ProductDetail reviews: %w", err)
	}
	summary, err := s.reviews.RatingSummary(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("service: ProductDetail rating: %w", err)
	}

	return &ProductDetail{
		Product:       product,
		PricePerWatt:  product.PricePerWatt(),
		Related:       productCards(related),
		Reviews:       reviews,
		ReviewCount:   summary.Count,
		AverageRating: summary.Average,
	}, nil
}

// CategoryPage lists the in-stock products of one category.
func (s *CatalogService) CategoryPage(ctx context.Context, slug string, page int) (*CategoryPage, error) {
	category, err := s.categories.GetCategoryBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrCategoryNotFound) {
			return nil, domain.WrapError(domain.KindNotFound, err, "Category not found.")
		}
		return nil, fmt.Errorf("service: CategoryPage: %w", err)
	}
	products, err := s.page(ctx, store.ListProductsParams{
		CategoryID:  &category.ID,
		InStockOnly: true,
		SortBy:      store.SortName,
	}, page)
	if err != nil {
		return nil, err
	}
	return &CategoryPage{Category: category, ProductPage: products}, nil
}

// Search matches q against product name, description, category name and
// panel type.
func (s *CatalogService) Search(ctx context.Context, q string, page int) (*SearchResults, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, domain.NewError(domain.KindValidation, "Please enter a search term.")
	}
	products, err := s.page(ctx, store.ListProductsParams{
		SearchQuery: &q,
		SearchPanel: true,
		InStockOnly: true,
		SortBy:      store.SortName,
	}, page)
	if err != nil {
		return nil, err
	}
	return &SearchResults{Query: q, ProductPage: products}, nil
}

// Filter backs the filter API: in-stock products, capped result count.
func (s *CatalogService) Filter(ctx context.Context, q FilterQuery) ([]ProductCard, error) {
	params := store.ListProductsParams{
		Limit:       s.opts.FilterAPICap,
		InStockOnly: true,
		MinPrice:    q.MinPrice,
		MaxPrice:    q.MaxPrice,
		SortBy:      store.SortName,
	}
	if q.Category != "" {
		params.CategorySlug = &q.Category
	}
	if q.PanelType != "" {
		pt := domain.PanelType(q.PanelType)
		params.PanelType = &pt
	}
	products, _, err := s.products.ListProducts(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("service: Filter: %w", err)
	}
	return productCards(products), nil
}

// Categories lists every category by name.
func (s *CatalogService) Categories(ctx context.Context) ([]domain.Category, error) {
	categories, _, err := s.categories.ListCategories(ctx, store.ListCategoriesParams{Limit: maxCategoryListed})
	if err != nil {
		return nil, fmt.Errorf("service: Categories: %w", err)
	}
	return categories, nil
}

// GetProduct loads a product by id.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, domain.WrapError(domain.KindNotFound, err, "Product not found.")
		}
		return nil, fmt.Errorf("service: GetProduct: %w", err)
	}
	return product, nil
}

// CheckAvailability reports every line whose quantity exceeds current stock.
// Unknown products are reported with zero availability.
func (s *CatalogService) CheckAvailability(ctx context.Context, lines []AvailabilityLine) ([]Shortage, error) {
	shortages := []Shortage{}
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, domain.NewError(domain.KindValidation, "Quantity must be at least 1.")
		}
		product, err := s.products.GetProductByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrProductNotFound) {
				shortages = append(shortages, Shortage{ProductID: line.ProductID, Requested: line.Quantity})
				continue
			}
			return nil, fmt.Errorf("service: CheckAvailability: %w", err)
		}
		if line.Quantity > product.Stock {
			shortages = append(shortages, Shortage{
				ProductID: product.ID,
				Name:      product.Name,
				Requested: line.Quantity,
				Available: product.Stock,
			})
		}
	}
	return shortages, nil
}

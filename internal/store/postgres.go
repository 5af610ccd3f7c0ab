package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"solar-store-service/internal/domain"
)

// likeEscaper makes LIKE wildcards in visitor input match literally under
// PostgreSQL's default backslash escape.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// Predefined errors for store operations
var (
	ErrCategoryNotFound = errors.New("store: category not found")
	ErrProductNotFound  = errors.New("store: product not found")
	ErrProductSKUExists = errors.New("store: product SKU already exists")
	ErrSlugExists       = errors.New("store: slug already exists")
	ErrCartNotFound     = errors.New("store: cart not found")
	ErrCartItemNotFound = errors.New("store: cart item not found")
	ErrCartEmpty        = errors.New("store: cart is empty")
	ErrQuantityExceeded = errors.New("store: quantity would exceed the allowed maximum")
	ErrStockUnavailable = errors.New("store: insufficient stock to fulfil order line")
	ErrAddressNotFound  = errors.New("store: shipping address not found")
	ErrOrderNotFound    = errors.New("store: order not found")
	ErrStatusConflict   = errors.New("store: order status changed concurrently")
	ErrReviewExists     = errors.New("store: user already reviewed this product")
	ErrUserNotFound     = errors.New("store: user not found")
	ErrUsernameExists   = errors.New("store: username already exists")
	ErrWishlistNotFound = errors.New("store: wishlist not found")
)

// PostgresStore implements every storer interface of this package using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger.With().Str("component", "store").Logger()}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func uniqueViolation(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr, true
	}
	return nil, false
}

// withTx runs fn inside a transaction, rolling back when fn fails.
func (s *PostgresStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: %s failed to begin transaction: %w", op, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error().Err(rbErr).Str("op", op).Msg("rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: %s failed to commit: %w", op, err)
	}
	return nil
}

// --- CategoryStorer Implementation ---

func (s *PostgresStore) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	slug := category.Slug
	if slug == "" {
		slug = domain.Slugify(category.Name)
	}
	icon := category.Icon
	if icon == "" {
		icon = "solar-panel"
	}
	query := `
		INSERT INTO categories (name, slug, description, icon)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, slug, description, icon;
	`
	var created domain.Category
	err := s.db.QueryRowContext(ctx, query, category.Name, slug, category.Description, icon).Scan(
		&created.ID, &created.Name, &created.Slug, &created.Description, &created.Icon,
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, ErrSlugExists
		}
		return nil, fmt.Errorf("store: CreateCategory failed to scan row: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	query := `
		SELECT id, name, slug, description, icon
		FROM categories
		WHERE slug = $1;
	`
	var category domain.Category
	err := s.db.QueryRowContext(ctx, query, slug).Scan(
		&category.ID, &category.Name, &category.Slug, &category.Description, &category.Icon,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("store: GetCategoryBySlug failed to scan row: %w", err)
	}
	return &category, nil
}

// ListCategories retrieves a paginated list of categories ordered by name.
func (s *PostgresStore) ListCategories(ctx context.Context, params ListCategoriesParams) ([]domain.Category, int, error) {
	var totalCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories;`).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListCategories failed to count categories: %w", err)
	}
	if totalCount == 0 {
		return []domain.Category{}, 0, nil
	}

	query := `
		SELECT id, name, slug, description, icon
		FROM categories
		ORDER BY name ASC
		LIMIT $1 OFFSET $2;
	`
	rows, err := s.db.QueryContext(ctx, query, params.Limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListCategories failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, params.Limit)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Icon); err != nil {
			return nil, 0, fmt.Errorf("store: ListCategories failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListCategories iteration error: %w", err)
	}
	return categories, totalCount, nil
}

// --- ProductStorer Implementation ---

const productSelect = `
		SELECT p.id, p.name, p.slug, p.sku, p.description, p.detailed_description, p.price, p.category_id,
			p.panel_type, p.wattage, p.efficiency, p.dimensions, p.weight, p.warranty_years,
			p.temperature_coefficient, p.max_system_voltage, p.image, p.thumbnail, p.stock, p.is_featured,
			p.created_at, p.updated_at, c.name, c.slug
		FROM products p
		JOIN categories c ON c.id = p.category_id`

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var category domain.Category
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.SKU, &p.Description, &p.DetailedDescription, &p.Price, &p.CategoryID,
		&p.PanelType, &p.Wattage, &p.Efficiency, &p.Dimensions, &p.Weight, &p.WarrantyYears,
		&p.TemperatureCoefficient, &p.MaxSystemVoltage, &p.Image, &p.Thumbnail, &p.Stock, &p.IsFeatured,
		&p.CreatedAt, &p.UpdatedAt, &category.Name, &category.Slug,
	)
	if err != nil {
		return nil, err
	}
	category.ID = p.CategoryID
	p.Category = &category
	return &p, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	created := *product
	if created.Slug == "" {
		created.Slug = domain.Slugify(created.Name)
	}
	if created.SKU == "" {
		created.SKU = uuid.NewString()
	}
	if created.WarrantyYears == 0 {
		created.WarrantyYears = 25
	}
	if created.MaxSystemVoltage == 0 {
		created.MaxSystemVoltage = 1000
	}
	query := `
		INSERT INTO products
			(name, slug, sku, description, detailed_description, price, category_id, panel_type, wattage,
			 efficiency, dimensions, weight, warranty_years, temperature_coefficient, max_system_voltage,
			 image, thumbnail, stock, is_featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at, updated_at;
	`
	err := s.db.QueryRowContext(ctx, query,
		created.Name, created.Slug, created.SKU, created.Description, created.DetailedDescription,
		created.Price, created.CategoryID, created.PanelType, created.Wattage, created.Efficiency,
		created.Dimensions, created.Weight, created.WarrantyYears, created.TemperatureCoefficient,
		created.MaxSystemVoltage, created.Image, created.Thumbnail, created.Stock, created.IsFeatured,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if pqErr, ok := uniqueViolation(err); ok {
			if strings.Contains(pqErr.Constraint, "products_sku_key") {
				return nil, ErrProductSKUExists
			}
			return nil, ErrSlugExists
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" { // Foreign key violation on category_id
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("store: CreateProduct failed to scan row: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := scanProduct(s.db.QueryRowContext(ctx, productSelect+`
		WHERE p.id = $1;`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: GetProductByID failed to scan row: %w", err)
	}
	return product, nil
}

func (s *PostgresStore) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	product, err := scanProduct(s.db.QueryRowContext(ctx, productSelect+`
		WHERE p.slug = $1;`, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: GetProductBySlug failed to scan row: %w", err)
	}
	return product, nil
}

// productOrderBy maps the whitelisted sort keys to ORDER BY clauses.
var productOrderBy = map[ProductSort]string{
	SortName:        "p.name ASC",
	SortPriceLow:    "p.price ASC, p.name ASC",
	SortPriceHigh:   "p.price DESC, p.name ASC",
	SortWattageHigh: "p.wattage DESC, p.name ASC",
	SortNewest:      "p.created_at DESC, p.id DESC",
	SortPopular:     "(SELECT COUNT(*) FROM order_items oi WHERE oi.product_id = p.id) DESC, p.name ASC",
}

func (s *PostgresStore) ListProducts(ctx context.Context, params ListProductsParams) ([]domain.Product, int, error) {
	var queryArgs []any
	var whereClauses []string
	argID := 1

	addClause := func(format string, arg any) {
		whereClauses = append(whereClauses, fmt.Sprintf(format, argID))
		queryArgs = append(queryArgs, arg)
		argID++
	}

	if params.InStockOnly {
		whereClauses = append(whereClauses, "p.stock > 0")
	}
	if params.FeaturedOnly {
		whereClauses = append(whereClauses, "p.is_featured = TRUE")
	}
	if params.CategorySlug != nil {
		addClause("c.slug = $%d", *params.CategorySlug)
	}
	if params.CategoryID != nil {
		addClause("p.category_id = $%d", *params.CategoryID)
	}
	if params.ExcludeID != nil {
		addClause("p.id <> $%d", *params.ExcludeID)
	}
	if params.PanelType != nil {
		addClause("p.panel_type = $%d", string(*params.PanelType))
	}
	if params.MinPrice != nil {
		addClause("p.price >= $%d", *params.MinPrice)
	}
	if params.MaxPrice != nil {
		addClause("p.price <= $%d", *params.MaxPrice)
	}
	if params.MinWattage != nil {
		addClause("p.wattage >= $%d", *params.MinWattage)
	}
	if params.MaxWattage != nil {
		addClause("p.wattage <= $%d", *params.MaxWattage)
	}
	if params.SearchQuery != nil && *params.SearchQuery != "" {
		fields := []string{"p.name", "p.description", "c.name"}
		if params.SearchPanel {
			fields = append(fields, "p.panel_type")
		}
		matches := make([]string, len(fields))
		for i, field := range fields {
			matches[i] = fmt.Sprintf("%s ILIKE $%d", field, argID)
		}
		whereClauses = append(whereClauses, "("+strings.Join(matches, " OR ")+")")
		queryArgs = append(queryArgs, "%"+likeEscaper.Replace(*params.SearchQuery)+"%")
		argID++
	}

	whereCondition := ""
	if len(whereClauses) > 0 {
		whereCondition = "\n\t\tWHERE " + strings.Join(whereClauses, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM products p JOIN categories c ON c.id = p.category_id" + whereCondition
	var totalCount int
	if err := s.db.QueryRowContext(ctx, countQuery, queryArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts failed to count products: %w", err)
	}
	if totalCount == 0 {
		return []domain.Product{}, 0, nil
	}

	orderBy, ok := productOrderBy[params.SortBy]
	if !ok {
		orderBy = productOrderBy[SortName]
	}
	dataQuery := fmt.Sprintf("%s%s\n\t\tORDER BY %s\n\t\tLIMIT $%d OFFSET $%d",
		productSelect, whereCondition, orderBy, argID, argID+1)
	finalQueryArgs := append(queryArgs, params.Limit, params.Offset)

	rows, err := s.db.QueryContext(ctx, dataQuery, finalQueryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, params.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: ListProducts failed to scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts iteration error: %w", err)
	}
	return products, totalCount, nil
}

func (s *PostgresStore) ListProductImages(ctx context.Context, productID int64) ([]domain.ProductImage, error) {
	query := `
		SELECT id, product_id, image, alt_text, is_primary, sort_order
		FROM product_images
		WHERE product_id = $1
		ORDER BY sort_order ASC, id ASC;
	`
	rows, err := s.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("store: ListProductImages failed to query images: %w", err)
	}
	defer rows.Close()

	images := []domain.ProductImage{}
	for rows.Next() {
		var img domain.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.Image, &img.AltText, &img.IsPrimary, &img.Order); err != nil {
			return nil, fmt.Errorf("store: ListProductImages failed to scan row: %w", err)
		}
		images = append(images, img)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListProductImages iteration error: %w", err)
	}
	return images, nil
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		s.logger.Info().Msg("closing database connection pool")
		if err := s.db.Close(); err != nil {
			s.logger.Error().Err(err).Msg("failed to close database connection pool")
			return err
		}
		s.logger.Info().Msg("database connection pool closed")
	}
	return nil
}

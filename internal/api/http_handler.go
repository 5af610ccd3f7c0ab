package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"solar-store-service/internal/auth"
	"solar-store-service/internal/domain"
	"solar-store-service/internal/service"
)

// CatalogService is the read side of the catalog used by the storefront.
type CatalogService interface {
	Home(ctx context.Context) (*service.HomeFeed, error)
	ListProducts(ctx context.Context, q service.ProductQuery) (*service.ProductPage, error)
	ProductDetail(ctx context.Context, slug string) (*service.ProductDetail, error)
	CategoryPage(ctx context.Context, slug string, page int) (*service.CategoryPage, error)
	Search(ctx context.Context, q string, page int) (*service.SearchResults, error)
	Filter(ctx context.Context, q service.FilterQuery) ([]service.ProductCard, error)
	Categories(ctx context.Context) ([]domain.Category, error)
}

// CartService manages the visitor's cart.
type CartService interface {
	View(ctx context.Context, owner domain.CartOwner) (*service.CartView, error)
	AddItem(ctx context.Context, owner domain.CartOwner, productID int64, quantity int) (*service.CartMutation, error)
	UpdateItem(ctx context.Context, owner domain.CartOwner, itemID int64, quantity int) (*service.CartUpdate, error)
	RemoveItem(ctx context.Context, owner domain.CartOwner, itemID int64) (*service.CartMutation, error)
	Summary(ctx context.Context, owner domain.CartOwner) (*service.CartSummary, error)
}

// CheckoutService places and lists orders.
type CheckoutService interface {
	Prepare(ctx context.Context, userID int64) (*service.CheckoutView, error)
	PlaceOrder(ctx context.Context, userID int64, req service.CheckoutRequest) (*domain.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]domain.Order, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error)
}

// ReviewService accepts product reviews.
type ReviewService interface {
	Submit(ctx context.Context, userID int64, slug string, in service.ReviewInput) (*domain.Review, error)
}

// WishlistService manages saved products.
type WishlistService interface {
	Toggle(ctx context.Context, userID, productID int64) (*service.WishlistToggle, error)
	List(ctx context.Context, userID int64) ([]service.ProductCard, error)
}

// AccountService registers and authenticates users.
type AccountService interface {
	Register(ctx context.Context, in service.RegisterInput, sessionKey string) (*domain.User, error)
	Login(ctx context.Context, username, password, sessionKey string) (*domain.User, error)
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
}

// Services groups the use cases the HTTP handler serves.
type Services struct {
	Catalog   CatalogService
	Carts     CartService
	Checkout  CheckoutService
	Reviews   ReviewService
	Wishlists WishlistService
	Accounts  AccountService
}

// CookieConfig names the visitor cookies.
type CookieConfig struct {
	UserCookie string
	CartCookie string
	Secure     bool
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	svc      Services
	sessions *auth.SessionManager
	cookies  CookieConfig
	logger   zerolog.Logger
	validate *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(svc Services, sessions *auth.SessionManager, cookies CookieConfig, logger zerolog.Logger) *HTTPHandler {
	if cookies.UserCookie == "" {
		cookies.UserCookie = "store_session"
	}
	if cookies.CartCookie == "" {
		cookies.CartCookie = "cart_session"
	}
	return &HTTPHandler{
		svc:      svc,
		sessions: sessions,
		cookies:  cookies,
		logger:   logger.With().Str("component", "http").Logger(),
		validate: validator.New(),
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse carries a user-facing confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

func (h *HTTPHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, ErrorResponse{Error: message})
}

func (h *HTTPHandler) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.logger.Error().Err(err).Msg("failed to encode JSON response")
		}
	}
}

// statusForKind maps domain error kinds to HTTP status codes.
var statusForKind = map[domain.ErrorKind]int{
	domain.KindOutOfStock:        http.StatusConflict,
	domain.KindInsufficientStock: http.StatusBadRequest,
	domain.KindStockUnavailable:  http.StatusConflict,
	domain.KindUnauthorized:      http.StatusForbidden,
	domain.KindUnauthenticated:   http.StatusUnauthorized,
	domain.KindDuplicateReview:   http.StatusConflict,
	domain.KindNotFound:          http.StatusNotFound,
	domain.KindValidation:        http.StatusBadRequest,
	domain.KindConflict:          http.StatusConflict,
}

// writeServiceError answers with the status and message of a domain error, or
// a generic 500 for anything else.
func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var de *domain.Error
	if errors.As(err, &de) {
		code, ok := statusForKind[de.Kind]
		if !ok {
			code = http.StatusBadRequest
		}
		h.logger.Debug().Err(err).Str("path", r.URL.Path).Int("status", code).Msg("request rejected")
		h.respondWithError(w, code, de.Message)
		return
	}
	h.logger.Error().Err(err).Str("path", r.URL.Path).Msg(fallback)
	h.respondWithError(w, http.StatusInternalServerError, fallback)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryPage(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page <= 0 {
		return 1
	}
	return page
}

// --- Route Registration ---

// RegisterRoutes sets up the storefront routes. Paths keep their trailing
// slash.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.Identify)

		r.Get("/", h.Home)
		r.Get("/categories/", h.ListCategories)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/search/", h.Search)
			r.Get("/category/{slug}/", h.CategoryPage)
			r.Get("/{slug}/", h.ProductDetail)
			r.Post("/{slug}/", h.SubmitReview)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.ViewCart)
			r.Get("/count/", h.CartCount)
			r.Post("/add/{productID}/", h.AddToCart)
			r.Post("/update/{itemID}/", h.UpdateCartItem)
			r.Post("/remove/{itemID}/", h.RemoveCartItem)
		})

		r.Post("/register/", h.Register)
		r.Post("/login/", h.Login)
		r.Post("/logout/", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireLogin)
			r.Get("/account/", h.Account)
			r.Get("/checkout/", h.CheckoutForm)
			r.Post("/checkout/", h.PlaceOrder)
			r.Get("/orders/", h.ListOrders)
			r.Get("/orders/{orderID}/", h.GetOrder)
			r.Get("/wishlist/", h.Wishlist)
			r.Post("/wishlist/toggle/{productID}/", h.ToggleWishlist)
		})
	})

	r.Get("/api/products/filter/", h.FilterProducts)
}

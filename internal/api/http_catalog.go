package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"solar-store-service/internal/service"
)

// --- Catalog Handlers ---

func (h *HTTPHandler) Home(w http.ResponseWriter, r *http.Request) {
	feed, err := h.svc.Catalog.Home(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to load the storefront")
		return
	}
	h.respondWithJSON(w, http.StatusOK, feed)
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.Catalog.Categories(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to retrieve categories")
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func parseDecimal(values url.Values, key string) (*decimal.Decimal, bool) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil, false
	}
	return &d, true
}

func parseInt(values url.Values, key string) (*int, bool) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, false
	}
	return &n, true
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	qParams := r.URL.Query()
	query := service.ProductQuery{
		Category:  qParams.Get("category"),
		PanelType: qParams.Get("type"),
		Search:    qParams.Get("q"),
		Sort:      qParams.Get("sort"),
		Page:      queryPage(r),
	}

	var ok bool
	if query.MinPrice, ok = parseDecimal(qParams, "min_price"); !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid min_price format")
		return
	}
	if query.MaxPrice, ok = parseDecimal(qParams, "max_price"); !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid max_price format")
		return
	}
	if query.MinWattage, ok = parseInt(qParams, "min_wattage"); !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid min_wattage format")
		return
	}
	if query.MaxWattage, ok = parseInt(qParams, "max_wattage"); !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid max_wattage format")
		return
	}

	page, err := h.svc.Catalog.ListProducts(r.Context(), query)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to retrieve products")
		return
	}
	h.respondWithJSON(w, http.StatusOK, page)
}

func (h *HTTPHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.Catalog.Search(r.Context(), r.URL.Query().Get("q"), queryPage(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Search failed")
		return
	}
	h.respondWithJSON(w, http.StatusOK, results)
}

func (h *HTTPHandler) CategoryPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Catalog.CategoryPage(r.Context(), chi.URLParam(r, "slug"), queryPage(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to retrieve category")
		return
	}
	h.respondWithJSON(w, http.StatusOK, page)
}

func (h *HTTPHandler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Catalog.ProductDetail(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to retrieve product")
		return
	}
	h.respondWithJSON(w, http.StatusOK, detail)
}

// ReviewCreateInput is the review form of the product page. Rating and
// comment rules are enforced by the review service so that anonymous
// visitors are told to log in first.
type ReviewCreateInput struct {
	Rating  int    `json:"rating"`
	Title   string `json:"title" validate:"max=200"`
	Comment string `json:"comment"`
}

func (in *ReviewCreateInput) bindForm(values url.Values) error {
	rating, err := formInt(values, "rating", 0)
	if err != nil {
		return err
	}
	in.Rating = rating
	in.Title = values.Get("title")
	in.Comment = values.Get("comment")
	return nil
}

func (h *HTTPHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var input ReviewCreateInput
	if err := h.decodeInput(w, r, &input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	review, err := h.svc.Reviews.Submit(r.Context(), VisitorFrom(r.Context()).UserID, chi.URLParam(r, "slug"), service.ReviewInput{
		Rating:  input.Rating,
		Title:   input.Title,
		Comment: input.Comment,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to submit review")
		return
	}
	h.respondWithJSON(w, http.StatusCreated, map[string]any{
		"message": "Thank you for your review!",
		"review":  review,
	})
}

// FilterProducts is the lightweight JSON filter used by the listing page.
func (h *HTTPHandler) FilterProducts(w http.ResponseWriter, r *http.Request) {
	qParams := r.URL.Query()
	query := service.FilterQuery{
		Category:  qParams.Get("category"),
		PanelType: qParams.Get("panel_type"),
	}
	var ok bool
	if query.MinPrice, ok = parseDecimal(qParams, "min_price"); !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid min_price format")
		return
	}
	if query.MaxPrice, ok = parseDecimal(qParams, "max_price"); !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid max_price format")
		return
	}

	products, err := h.svc.Catalog.Filter(r.Context(), query)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to filter products")
		return
	}
	if products == nil {
		products = []service.ProductCard{}
	}
	h.respondWithJSON(w, http.StatusOK, map[string]any{"products": products})
}

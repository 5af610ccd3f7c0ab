package api

import (
	"net/http"
	"net/url"
)

// --- Cart Handlers ---

// CartQuantityInput carries the quantity of an add or update. A missing
// quantity means 1.
type CartQuantityInput struct {
	Quantity *int `json:"quantity" validate:"omitempty,max=1000"`
}

func (in *CartQuantityInput) bindForm(values url.Values) error {
	if values.Get("quantity") == "" {
		return nil
	}
	n, err := formInt(values, "quantity", 1)
	if err != nil {
		return err
	}
	in.Quantity = &n
	return nil
}

func (in *CartQuantityInput) quantity() int {
	if in.Quantity == nil {
		return 1
	}
	return *in.Quantity
}

func (h *HTTPHandler) ViewCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Carts.View(r.Context(), h.cartOwner(w, r))
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to load cart")
		return
	}
	h.respondWithJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) CartCount(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Carts.Summary(r.Context(), peekCartOwner(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to load cart")
		return
	}
	h.respondWithJSON(w, http.StatusOK, summary)
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(r, "productID")
	if !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	var input CartQuantityInput
	if err := h.decodeInput(w, r, &input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.Carts.AddItem(r.Context(), h.cartOwner(w, r), productID, input.quantity())
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to add product to cart")
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(r, "itemID")
	if !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid cart item ID format")
		return
	}
	var input CartQuantityInput
	if err := h.decodeInput(w, r, &input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.Carts.UpdateItem(r.Context(), peekCartOwner(r), itemID, input.quantity())
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to update cart")
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(r, "itemID")
	if !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid cart item ID format")
		return
	}

	result, err := h.svc.Carts.RemoveItem(r.Context(), peekCartOwner(r), itemID)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to remove cart item")
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}

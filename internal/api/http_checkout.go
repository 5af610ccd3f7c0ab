package api

import (
	"net/http"
	"net/url"

	"solar-store-service/internal/domain"
	"solar-store-service/internal/service"
)

// --- Checkout & Order Handlers ---

// ShippingAddressFields is the address part of the checkout form.
type ShippingAddressFields struct {
	FirstName    string `json:"first_name" validate:"required,max=100"`
	LastName     string `json:"last_name" validate:"required,max=100"`
	Email        string `json:"email" validate:"required,email,max=254"`
	Phone        string `json:"phone" validate:"required,max=20"`
	AddressLine1 string `json:"address_line1" validate:"required,max=255"`
	AddressLine2 string `json:"address_line2" validate:"max=255"`
	City         string `json:"city" validate:"required,max=100"`
	State        string `json:"state" validate:"required,max=100"`
	PostalCode   string `json:"postal_code" validate:"required,max=20"`
	Country      string `json:"country" validate:"required,max=100"`
	IsDefault    bool   `json:"is_default"`
}

// CheckoutInput selects a saved address by id or carries a new one.
type CheckoutInput struct {
	AddressID             int64 `json:"address_id" validate:"gte=0"`
	ShippingAddressFields `validate:"-"`
}

func (in *CheckoutInput) bindForm(values url.Values) error {
	id, err := formInt64(values, "address_id")
	if err != nil {
		return err
	}
	in.AddressID = id
	in.ShippingAddressFields = ShippingAddressFields{
		FirstName:    values.Get("first_name"),
		LastName:     values.Get("last_name"),
		Email:        values.Get("email"),
		Phone:        values.Get("phone"),
		AddressLine1: values.Get("address_line1"),
		AddressLine2: values.Get("address_line2"),
		City:         values.Get("city"),
		State:        values.Get("state"),
		PostalCode:   values.Get("postal_code"),
		Country:      values.Get("country"),
		IsDefault:    formBool(values, "is_default"),
	}
	return nil
}

func (f *ShippingAddressFields) toDomain() *domain.ShippingAddress {
	return &domain.ShippingAddress{
		FirstName:    f.FirstName,
		LastName:     f.LastName,
		Email:        f.Email,
		Phone:        f.Phone,
		AddressLine1: f.AddressLine1,
		AddressLine2: f.AddressLine2,
		City:         f.City,
		State:        f.State,
		PostalCode:   f.PostalCode,
		Country:      f.Country,
		IsDefault:    f.IsDefault,
	}
}

func (h *HTTPHandler) CheckoutForm(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Checkout.Prepare(r.Context(), VisitorFrom(r.Context()).UserID)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to prepare checkout")
		return
	}
	h.respondWithJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var input CheckoutInput
	if err := h.decodeInput(w, r, &input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := service.CheckoutRequest{AddressID: input.AddressID}
	if input.AddressID == 0 {
		if err := h.validate.Struct(&input.ShippingAddressFields); err != nil {
			h.respondWithError(w, http.StatusBadRequest, validationError(err).Error())
			return
		}
		req.Address = input.ShippingAddressFields.toDomain()
	}

	order, err := h.svc.Checkout.PlaceOrder(r.Context(), VisitorFrom(r.Context()).UserID, req)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to place order")
		return
	}
	h.respondWithJSON(w, http.StatusCreated, map[string]any{
		"message": "Order placed successfully!",
		"order":   order,
	})
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.Checkout.ListOrders(r.Context(), VisitorFrom(r.Context()).UserID)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to retrieve orders")
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	h.respondWithJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}
	order, err := h.svc.Checkout.GetOrder(r.Context(), VisitorFrom(r.Context()).UserID, orderID)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to retrieve order")
		return
	}
	h.respondWithJSON(w, http.StatusOK, order)
}

package api

import (
	"fmt"
	"net/http"
	"net/url"

	"solar-store-service/internal/domain"
	"solar-store-service/internal/service"
)

// --- Account Handlers ---

// RegisterInput is the registration form.
type RegisterInput struct {
	Username        string `json:"username" validate:"required,min=3,max=150"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
}

func (in *RegisterInput) bindForm(values url.Values) error {
	in.Username = values.Get("username")
	in.Email = values.Get("email")
	in.Password = values.Get("password")
	in.PasswordConfirm = values.Get("password_confirm")
	return nil
}

// LoginInput is the login form.
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (in *LoginInput) bindForm(values url.Values) error {
	in.Username = values.Get("username")
	in.Password = values.Get("password")
	return nil
}

// startSession issues the user cookie and drops the anonymous cart cookie,
// whose cart has been merged by now.
func (h *HTTPHandler) startSession(w http.ResponseWriter, r *http.Request, user *domain.User) error {
	token, err := h.sessions.Issue(user.ID, user.Username)
	if err != nil {
		return err
	}
	h.setCookie(w, h.cookies.UserCookie, token, h.sessions.TTL())
	if VisitorFrom(r.Context()).CartKey != "" {
		h.clearCookie(w, h.cookies.CartCookie)
	}
	return nil
}

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input RegisterInput
	if err := h.decodeInput(w, r, &input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.svc.Accounts.Register(r.Context(), service.RegisterInput{
		Username:        input.Username,
		Email:           input.Email,
		Password:        input.Password,
		PasswordConfirm: input.PasswordConfirm,
	}, VisitorFrom(r.Context()).CartKey)
	if err != nil {
		h.writeServiceError(w, r, err, "Registration failed")
		return
	}
	if err := h.startSession(w, r, user); err != nil {
		h.writeServiceError(w, r, err, "Failed to start session")
		return
	}
	h.respondWithJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful! Welcome to SolarStore.",
		"user":    user,
	})
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input LoginInput
	if err := h.decodeInput(w, r, &input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.svc.Accounts.Login(r.Context(), input.Username, input.Password, VisitorFrom(r.Context()).CartKey)
	if err != nil {
		h.writeServiceError(w, r, err, "Login failed")
		return
	}
	if err := h.startSession(w, r, user); err != nil {
		h.writeServiceError(w, r, err, "Failed to start session")
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Welcome back, %s!", user.Username),
		"user":    user,
	})
}

func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, h.cookies.UserCookie)
	h.respondWithJSON(w, http.StatusOK, MessageResponse{Message: "You have been logged out."})
}

// Account returns the profile of the logged-in user.
func (h *HTTPHandler) Account(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Accounts.GetUser(r.Context(), VisitorFrom(r.Context()).UserID)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to retrieve account")
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]any{"user": user})
}

// --- Wishlist Handlers ---

func (h *HTTPHandler) Wishlist(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.Wishlists.List(r.Context(), VisitorFrom(r.Context()).UserID)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to retrieve wishlist")
		return
	}
	if products == nil {
		products = []service.ProductCard{}
	}
	h.respondWithJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *HTTPHandler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(r, "productID")
	if !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	result, err := h.svc.Wishlists.Toggle(r.Context(), VisitorFrom(r.Context()).UserID, productID)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to update wishlist")
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}

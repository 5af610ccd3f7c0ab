package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"solar-store-service/internal/auth"
	"solar-store-service/internal/domain"
)

type visitorKey struct{}

// Visitor is who is making the request: an authenticated user, an anonymous
// cart holder, or neither yet.
type Visitor struct {
	UserID   int64
	Username string
	CartKey  string
}

// Authenticated reports whether the visitor carries a valid user session.
func (v *Visitor) Authenticated() bool { return v != nil && v.UserID > 0 }

// VisitorFrom returns the visitor attached by Identify, or an empty one.
func VisitorFrom(ctx context.Context) *Visitor {
	if v, ok := ctx.Value(visitorKey{}).(*Visitor); ok {
		return v
	}
	return &Visitor{}
}

// Identify resolves the visitor from the session cookies. Invalid or expired
// cookies are ignored.
func (h *HTTPHandler) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		v, ok := ctx.Value(visitorKey{}).(*Visitor)
		if !ok {
			v = &Visitor{}
			ctx = context.WithValue(ctx, visitorKey{}, v)
		}
		if c, err := r.Cookie(h.cookies.UserCookie); err == nil && c.Value != "" {
			claims, err := h.sessions.Validate(c.Value)
			if err == nil {
				if id, err := claims.UserID(); err == nil {
					v.UserID = id
					v.Username = claims.Username
				}
			} else {
				h.logger.Debug().Err(err).Msg("ignoring invalid session cookie")
			}
		}
		if c, err := r.Cookie(h.cookies.CartCookie); err == nil && auth.ValidCartSessionKey(c.Value) {
			v.CartKey = c.Value
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireLogin rejects anonymous visitors with 401.
func (h *HTTPHandler) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !VisitorFrom(r.Context()).Authenticated() {
			h.respondWithError(w, http.StatusUnauthorized, "Authentication required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cartOwner is the cart identity of the request. Anonymous visitors without a
// cart cookie get one issued on first use.
func (h *HTTPHandler) cartOwner(w http.ResponseWriter, r *http.Request) domain.CartOwner {
	v := VisitorFrom(r.Context())
	if v.Authenticated() {
		return domain.UserOwner(v.UserID)
	}
	if v.CartKey == "" {
		v.CartKey = auth.NewCartSessionKey()
		h.setCookie(w, h.cookies.CartCookie, v.CartKey, h.sessions.TTL())
	}
	return domain.SessionOwner(v.CartKey)
}

// peekCartOwner is the cart identity without issuing a cart cookie. It is
// invalid for visitors that never had a cart.
func peekCartOwner(r *http.Request) domain.CartOwner {
	v := VisitorFrom(r.Context())
	if v.Authenticated() {
		return domain.UserOwner(v.UserID)
	}
	if v.CartKey != "" {
		return domain.SessionOwner(v.CartKey)
	}
	return domain.CartOwner{}
}

func (h *HTTPHandler) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *HTTPHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequestLogger logs one line per request with zerolog. It seeds the visitor
// that Identify fills in so the line can carry the user id.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			v := &Visitor{}
			r = r.WithContext(context.WithValue(r.Context(), visitorKey{}, v))
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				event := logger.Info()
				if status >= http.StatusInternalServerError {
					event = logger.Error()
				}
				event.
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", status).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Str("remote", r.RemoteAddr).
					Int64("user_id", v.UserID).
					Msg("http request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// formBinder is implemented by inputs that can also be posted as
// application/x-www-form-urlencoded.
type formBinder interface {
	bindForm(values url.Values) error
}

// decodeInput fills dst from a JSON or form body and validates it. An empty
// body leaves dst at its zero value before validation.
func (h *HTTPHandler) decodeInput(w http.ResponseWriter, r *http.Request, dst formBinder) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("Invalid request payload: %w", err)
		}
	default:
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("Invalid form payload: %w", err)
		}
		if err := dst.bindForm(r.PostForm); err != nil {
			return err
		}
	}
	if err := h.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError turns validator output into a short, readable message.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("Validation failed: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("Validation failed: %s", strings.Join(fields, ", "))
}

func formInt(values url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("Invalid %s", key)
	}
	return n, nil
}

func formInt64(values url.Values, key string) (int64, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("Invalid %s", key)
	}
	return n, nil
}

func formBool(values url.Values, key string) bool {
	switch strings.ToLower(values.Get(key)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

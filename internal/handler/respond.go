package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/validation"
)

// requestError is a malformed request detected before any service call.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

func writeError(w http.ResponseWriter, status int, msg string, fields map[string]string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("error", func(e *jx.Encoder) { e.Str(msg) })
			if len(fields) == 0 {
				return
			}
			e.Field("fields", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					for name, reason := range fields {
						e.Field(name, func(e *jx.Encoder) { e.Str(reason) })
					}
				})
			})
		})
	})
}

// fail writes the response for err. Server-side failures are logged and
// reported with a generic message.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg, fields := classify(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, msg, fields)
}

func classify(err error) (status int, msg string, fields map[string]string) {
	var (
		reqErr   *requestError
		valErr   *validation.Error
		stockErr *product.InsufficientStockError
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.msg, nil
	case errors.As(err, &valErr):
		return http.StatusBadRequest, "validation failed", valErr.Fields
	case errors.As(err, &stockErr):
		return http.StatusBadRequest, stockErr.Error(), nil
	case errors.Is(err, order.ErrEmptyCart):
		return http.StatusBadRequest, order.ErrEmptyCart.Error(), nil
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, auth.ErrInvalidCredentials.Error(), nil
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, auth.ErrUnauthenticated.Error(), nil
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, auth.ErrForbidden.Error(), nil
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, product.ErrNotFound.Error(), nil
	case errors.Is(err, cart.ErrItemNotFound):
		return http.StatusNotFound, cart.ErrItemNotFound.Error(), nil
	case errors.Is(err, product.ErrInUse):
		return http.StatusConflict, product.ErrInUse.Error(), nil
	case errors.Is(err, order.ErrCommitFailed):
		return http.StatusInternalServerError, order.ErrCommitFailed.Error(), nil
	default:
		return http.StatusInternalServerError, "internal server error", nil
	}
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/bazarhub/checkout/internal/domain/order"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Code: status, Message: message})
}

// respondOrderError maps domain errors to HTTP status codes: invalid input
// 400, unknown product or order 404, insufficient stock 422, anything else
// 500.
func respondOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrTokenRequired),
		errors.Is(err, order.ErrEmptyItems):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		iqErr  *order.InvalidQuantityError
		naErr  *order.NegativeAmountError
		pnfErr *order.ProductNotFoundError
		oosErr *order.OutOfStockError
	)
	switch {
	case errors.As(err, &iqErr):
		respondError(w, http.StatusBadRequest, iqErr.Error())
	case errors.As(err, &naErr):
		respondError(w, http.StatusBadRequest, naErr.Error())
	case errors.As(err, &pnfErr):
		respondError(w, http.StatusNotFound, pnfErr.Error())
	case errors.Is(err, order.ErrNotFound):
		respondError(w, http.StatusNotFound, "order not found")
	case errors.As(err, &oosErr):
		respondError(w, http.StatusUnprocessableEntity, oosErr.Error())
	default:
		zctx.From(r.Context()).Error("order request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// Package api exposes the checkout core over a thin JSON boundary. Request
// validation and authentication are owned by upstream collaborators; the
// handlers trust the resolved user identity in the X-User-ID header and do
// only decode, delegate, encode.
package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bazarhub/checkout/internal/domain/address"
	"github.com/bazarhub/checkout/internal/domain/order"
)

// userIDHeader carries the authenticated user id resolved by the upstream
// auth layer.
const userIDHeader = "X-User-ID"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler serves the order placement and order read endpoints.
type Handler struct {
	orders    *order.Service
	addresses address.Repository
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(orders *order.Service, addresses address.Repository) *Handler {
	return &Handler{
		orders:    orders,
		addresses: addresses,
	}
}

// Register attaches all routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/order", h.placeOrder)
	mux.HandleFunc("GET /api/order/{id}", h.getOrder)
	mux.HandleFunc("GET /api/order", h.listUserOrders)
	mux.HandleFunc("GET /api/admin/order", h.listAllOrders)
	mux.HandleFunc("GET /api/address", h.listAddresses)
}

// authedUser extracts the authenticated user id. It returns uuid.Nil and
// writes a 401 when the header is missing or malformed.
func (h *Handler) authedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.Header.Get(userIDHeader))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "missing or invalid user identity")
		return uuid.Nil, false
	}
	return id, true
}

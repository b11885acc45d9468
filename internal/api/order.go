package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazarhub/checkout/internal/domain/order"
)

type orderItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type shippingAddressRequest struct {
	Address      string `json:"shipping_address"`
	PhoneNumber  string `json:"shipping_phone_number"`
	Email        string `json:"shipping_email,omitempty"`
	Line1        string `json:"shipping_line1,omitempty"`
	City         string `json:"shipping_city,omitempty"`
	District     string `json:"shipping_district,omitempty"`
	Instructions string `json:"shipping_instructions,omitempty"`
}

type placeOrderRequest struct {
	Items            []orderItemRequest     `json:"items"`
	IdempotencyKey   string                 `json:"idempotency_key"`
	ShippingAddress  shippingAddressRequest `json:"shipping_address"`
	ShippingCost     decimal.Decimal        `json:"shipping_cost"`
	TaxTotal         decimal.Decimal        `json:"tax_total"`
	DiscountTotal    decimal.Decimal        `json:"discount_total"`
	ShouldSaveAddr   bool                   `json:"should_save_address"`
	AddressLabel     string                 `json:"address_label,omitempty"`
	ShippingComments string                 `json:"shipping_instructions,omitempty"`
}

type placedItemResponse struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type placeOrderResponse struct {
	ID     uuid.UUID            `json:"id"`
	Status string               `json:"status"`
	Items  []placedItemResponse `json:"items"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	items := make([]order.RequestItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.RequestItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	instructions := req.ShippingAddress.Instructions
	if instructions == "" {
		instructions = req.ShippingComments
	}

	result, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:           userID,
		IdempotencyToken: req.IdempotencyKey,
		Items:            items,
		Shipping: order.ShippingAddress{
			Address:      req.ShippingAddress.Address,
			PhoneNumber:  req.ShippingAddress.PhoneNumber,
			Email:        req.ShippingAddress.Email,
			Line1:        req.ShippingAddress.Line1,
			City:         req.ShippingAddress.City,
			District:     req.ShippingAddress.District,
			Instructions: instructions,
		},
		ShippingCost:  req.ShippingCost,
		TaxTotal:      req.TaxTotal,
		DiscountTotal: req.DiscountTotal,
		SaveAddress:   req.ShouldSaveAddr,
		AddressLabel:  req.AddressLabel,
	})
	if err != nil {
		respondOrderError(w, r, err)
		return
	}

	respItems := make([]placedItemResponse, len(result.Items))
	for i, it := range result.Items {
		respItems[i] = placedItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		}
	}

	respondJSON(w, http.StatusOK, placeOrderResponse{
		ID:     result.ID,
		Status: result.Status,
		Items:  respItems,
	})
}

type orderResponse struct {
	ID            uuid.UUID            `json:"id"`
	UserID        uuid.UUID            `json:"user_id"`
	Status        string               `json:"status"`
	PaymentStatus string               `json:"payment_status"`
	SubTotal      decimal.Decimal      `json:"sub_total"`
	ShippingCost  decimal.Decimal      `json:"shipping_cost"`
	TaxTotal      decimal.Decimal      `json:"tax_total"`
	DiscountTotal decimal.Decimal      `json:"discount_total"`
	Total         decimal.Decimal      `json:"total"`
	Items         []placedItemResponse `json:"items,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]placedItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = placedItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		}
	}
	return orderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		SubTotal:      o.SubTotal,
		ShippingCost:  o.ShippingCost,
		TaxTotal:      o.TaxTotal,
		DiscountTotal: o.DiscountTotal,
		Total:         o.Total,
		Items:         items,
		CreatedAt:     o.CreatedAt,
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authedUser(w, r); !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		respondOrderError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderResponse(o))
}

type orderPageResponse struct {
	Data       []orderResponse `json:"data"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func (h *Handler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	cursor := r.URL.Query().Get("cursor")

	orders, next, err := h.orders.ListUserOrders(r.Context(), userID, cursor, limit)
	if err != nil {
		respondOrderError(w, r, err)
		return
	}

	resp := orderPageResponse{
		Data:       make([]orderResponse, len(orders)),
		NextCursor: next,
	}
	for i := range orders {
		resp.Data[i] = toOrderResponse(&orders[i])
	}

	respondJSON(w, http.StatusOK, resp)
}

type adminOrderPageResponse struct {
	Data  []orderResponse `json:"data"`
	Page  int             `json:"page"`
	Total int             `json:"total"`
}

func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authedUser(w, r); !ok {
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	orders, total, err := h.orders.ListAllOrders(r.Context(), page, limit)
	if err != nil {
		respondOrderError(w, r, err)
		return
	}

	resp := adminOrderPageResponse{
		Data:  make([]orderResponse, len(orders)),
		Page:  page,
		Total: total,
	}
	for i := range orders {
		resp.Data[i] = toOrderResponse(&orders[i])
	}

	respondJSON(w, http.StatusOK, resp)
}

type addressResponse struct {
	ID       uuid.UUID `json:"id"`
	Label    string    `json:"label"`
	Address  string    `json:"address"`
	Phone    string    `json:"phone"`
	Line1    string    `json:"line1,omitempty"`
	Line2    string    `json:"line2,omitempty"`
	District string    `json:"district,omitempty"`
	Area     string    `json:"area,omitempty"`
	PostCode string    `json:"post_code,omitempty"`
	Country  string    `json:"country,omitempty"`
}

func (h *Handler) listAddresses(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	addrs, err := h.addresses.ListByUser(r.Context(), userID)
	if err != nil {
		respondOrderError(w, r, err)
		return
	}

	resp := make([]addressResponse, len(addrs))
	for i, a := range addrs {
		resp[i] = addressResponse{
			ID:       a.ID,
			Label:    a.Label,
			Address:  a.Address,
			Phone:    a.Phone,
			Line1:    a.Line1,
			Line2:    a.Line2,
			District: a.District,
			Area:     a.Area,
			PostCode: a.PostCode,
			Country:  a.Country,
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func parseLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

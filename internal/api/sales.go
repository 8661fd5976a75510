package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/safar/pharmacy-pos/internal/models"
	"github.com/shopspring/decimal"
)

type checkoutRequest struct {
	Items              []models.CartItem `json:"items"`
	Customer           models.Customer   `json:"customer"`
	DiscountPercentage decimal.Decimal   `json:"discount_percentage"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Customer.Name = strings.TrimSpace(req.Customer.Name)
	req.Customer.Phone = strings.TrimSpace(req.Customer.Phone)
	if !models.ValidPhone(req.Customer.Phone) {
		respondError(w, http.StatusBadRequest, "customer phone must be 10 digits")
		return
	}

	s, err := h.svc.Checkout(r.Context(), req.Items, req.Customer, req.DiscountPercentage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, s)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := h.svc.ListSales(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid sale id")
		return
	}

	s, err := h.svc.GetSale(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/safar/pharmacy-pos/internal/models"
)

func (h *Handler) createMedicine(w http.ResponseWriter, r *http.Request) {
	var req models.MedicineInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.svc.CreateMedicine(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (h *Handler) importMedicines(w http.ResponseWriter, r *http.Request) {
	var req []models.MedicineInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.ImportMedicines(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) listMedicines(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	result, err := h.svc.ListMedicines(r.Context(), page, pageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) getMedicine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}

	m, err := h.svc.GetMedicine(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

type updateMedicineRequest struct {
	models.MedicineInput
	Version int `json:"version"`
}

func (h *Handler) updateMedicine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}
	var req updateMedicineRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Version < 1 {
		respondError(w, http.StatusBadRequest, "version is required")
		return
	}

	m, err := h.svc.UpdateMedicine(r.Context(), id, req.Version, req.MedicineInput)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (h *Handler) deleteMedicine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}

	if err := h.svc.DeleteMedicine(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteMedicines(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		respondError(w, http.StatusBadRequest, "ids are required")
		return
	}

	removed, err := h.svc.DeleteMedicines(r.Context(), req.IDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if removed == nil {
		removed = []int64{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": len(removed), "ids": removed})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.LowStockMedicines(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) expiring(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			respondError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		window = time.Duration(days) * 24 * time.Hour
	}

	items, err := h.svc.ExpiringMedicines(r.Context(), window)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

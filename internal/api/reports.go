package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/safar/pharmacy-pos/internal/models"
)

// parseRange reads the optional from/to query parameters. Both are calendar
// days and to is inclusive.
func parseRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			return from, to, errors.New("invalid from date")
		}
		from = d.Time
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			return from, to, errors.New("invalid to date")
		}
		to = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, errors.New("to date is before from date")
	}
	return from, to, nil
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *Handler) salesReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	lines, err := h.svc.SalesReport(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, lines)
}

func (h *Handler) taxReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.svc.TaxReport(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) stockSummary(w http.ResponseWriter, r *http.Request) {
	text, err := h.svc.StockSummary(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/safar/pharmacy-pos/internal/database"
	"github.com/safar/pharmacy-pos/internal/sale"
	"github.com/safar/pharmacy-pos/internal/service"
	"github.com/safar/pharmacy-pos/internal/store"
	"github.com/sirupsen/logrus"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	svc    *service.Service
	logger logrus.FieldLogger
}

func New(svc *service.Service, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{svc: svc, logger: logger}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/medicines", func(r chi.Router) {
		r.Post("/", h.createMedicine)
		r.Get("/", h.listMedicines)
		r.Post("/batch", h.importMedicines)
		r.Post("/batch-delete", h.deleteMedicines)
		r.Get("/low-stock", h.lowStock)
		r.Get("/expiring", h.expiring)
		r.Get("/{id}", h.getMedicine)
		r.Put("/{id}", h.updateMedicine)
		r.Delete("/{id}", h.deleteMedicine)
	})

	r.Route("/sales", func(r chi.Router) {
		r.Post("/", h.checkout)
		r.Get("/", h.listSales)
		r.Get("/{id}", h.getSale)
	})

	r.Route("/reports", func(r chi.Router) {
		r.Get("/dashboard", h.dashboard)
		r.Get("/sales", h.salesReport)
		r.Get("/tax", h.taxReport)
		r.Get("/stock-summary", h.stockSummary)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		h.logger.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
		}).Info("request")
	})
}

// fail maps a service error onto a status code. Unexpected errors are logged
// and reported without detail.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *sale.StockConflictError
	var missing *sale.MissingMedicineError

	switch {
	case sale.IsValidation(err),
		errors.Is(err, database.ErrInvalidMedicine),
		errors.Is(err, store.ErrInvalidCursor):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &conflict):
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":       err.Error(),
			"medicine_id": conflict.MedicineID,
			"available":   conflict.Available,
			"requested":   conflict.Requested,
		})
	case errors.As(err, &missing):
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":       err.Error(),
			"medicine_id": missing.MedicineID,
		})
	case errors.Is(err, database.ErrInsufficientStock):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrMedicineNotFound), errors.Is(err, database.ErrSaleNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrOptimisticLockFailed):
		respondError(w, http.StatusConflict, "record was modified concurrently, reload and retry")
	default:
		h.logger.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"path":       r.URL.Path,
		}).WithError(err).Error("request failed")
		respondError(w, http.StatusInternalServerError, "operation failed")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
